package html

import (
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"

	"chatstyle/internal/css"
)

// Serialize emits a node forest as markup. Element styles merge the
// explicit inline map, the cascade-computed map and the important-locked
// map, in that order of precedence (locked wins). A malformed element with
// no tag serializes to an empty string rather than failing the subtree.
func Serialize(nodes []Node) string {
	var sb strings.Builder
	for _, n := range nodes {
		serializeNode(&sb, n)
	}
	return sb.String()
}

func serializeNode(sb *strings.Builder, n Node) {
	switch node := n.(type) {
	case *Text:
		sb.WriteString(node.Content)

	case *Element:
		if node.Tag == "" {
			return
		}
		serializeElement(sb, node)
	}
}

func serializeElement(sb *strings.Builder, el *Element) {
	sb.WriteByte('<')
	sb.WriteString(el.Tag)

	// Fixed attribute order: style, class, id, then raw attributes in
	// their original insertion order.
	if style := styleAttribute(el); style != "" {
		writeAttr(sb, "style", style)
	}
	if len(el.Classes) > 0 {
		writeAttr(sb, "class", strings.Join(el.Classes, " "))
	}
	if el.ID != "" {
		writeAttr(sb, "id", el.ID)
	}
	for _, attr := range el.Attrs {
		writeAttr(sb, attr.Name, attr.Value)
	}

	if voidElements[el.Tag] && len(el.Children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')

	for _, child := range el.Children {
		serializeNode(sb, child)
	}

	sb.WriteString("</")
	sb.WriteString(el.Tag)
	sb.WriteByte('>')
}

// styleAttribute flattens the element's merged style maps into a
// `property: value;` declaration string. Properties are emitted in sorted
// order so output is stable; camelCase keys are rewritten to kebab-case.
func styleAttribute(el *Element) string {
	merged := make(css.StyleMap, len(el.ExplicitStyle)+len(el.Computed)+len(el.Locked))
	merged.Merge(el.ExplicitStyle)
	merged.Merge(el.Computed)
	merged.Merge(el.Locked)
	if len(merged) == 0 {
		return ""
	}

	properties := make([]string, 0, len(merged))
	for property := range merged {
		properties = append(properties, property)
	}
	sort.Strings(properties)

	parts := make([]string, 0, len(properties))
	for _, property := range properties {
		parts = append(parts, kebabCase(property)+": "+merged[property]+";")
	}
	return strings.Join(parts, " ")
}

// kebabCase rewrites camelCase property names (fontWeight) to their CSS
// form (font-weight). Already-kebab names pass through unchanged.
func kebabCase(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func writeAttr(sb *strings.Builder, name, value string) {
	sb.WriteByte(' ')
	sb.WriteString(name)
	sb.WriteString(`="`)
	sb.WriteString(xhtml.EscapeString(value))
	sb.WriteByte('"')
}
