package html

import (
	"strings"

	"chatstyle/internal/css"
)

// Node is one node of the parsed markup tree: either an *Element or a
// *Text. The tree is built fresh per parse call, annotated once during
// cascade resolution, and discarded after serialization.
type Node interface {
	// SiblingIndex is the 1-based position among the parent's children.
	// Text siblings count.
	SiblingIndex() int

	isNode()
}

// Attr is one raw attribute as written in the source. Attributes that the
// parser decomposes (style, class, id) never appear here.
type Attr struct {
	Name  string
	Value string
}

// Element is a markup element with its decomposed attributes and children.
type Element struct {
	Tag string

	ID            string
	Classes       []string
	ExplicitStyle css.StyleMap // from the style="" attribute
	Attrs         []Attr       // remaining attributes, insertion order

	Children []Node
	Index    int

	// Computed and Locked are written once, by cascade resolution, and are
	// nil before that phase. Locked holds !important and inline values; a
	// property present there is immune to ordinary cascade overwrites.
	Computed css.StyleMap
	Locked   css.StyleMap
}

func (e *Element) SiblingIndex() int { return e.Index }
func (e *Element) isNode()           {}

// Attr returns the value of a named attribute. The decomposed attributes
// are synthesized back: "id" from ID, "class" from the joined class list.
func (e *Element) Attr(name string) (string, bool) {
	switch name {
	case "id":
		if e.ID != "" {
			return e.ID, true
		}
		return "", false
	case "class":
		if len(e.Classes) > 0 {
			return strings.Join(e.Classes, " "), true
		}
		return "", false
	}
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Text is a literal text run.
type Text struct {
	Content string
	Index   int
}

func (t *Text) SiblingIndex() int { return t.Index }
func (t *Text) isNode()           {}
