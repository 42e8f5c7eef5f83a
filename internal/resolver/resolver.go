// Package resolver implements the cascade: it walks a parsed node tree and
// annotates every element with its final style, overlaying rule buckets in
// a fixed order with important-locking semantics.
package resolver

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"chatstyle/internal/css"
	"chatstyle/internal/html"
)

// Resolver applies a RuleSet to a node tree. It holds no state between
// calls; the RuleSet is read-only, the tree is annotated in place.
type Resolver struct {
	log *zap.Logger
}

// New creates a cascade resolver. A nil logger disables logging.
func New(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{log: log.Named("resolver")}
}

// Stats reports what one Resolve pass did.
type Stats struct {
	ElementsStyled int // elements that received at least one pass
	LayersApplied  int // rule layers that matched some element
}

// Resolve annotates every element in the forest with its computed style.
// Traversal is depth-first pre-order, carrying the immediate parent for
// combinator and positional lookups; root-level nodes have no parent.
func (r *Resolver) Resolve(rules *css.RuleSet, nodes []html.Node) Stats {
	walk := walker{
		rules:     rules,
		variables: rules.Variables(),
	}
	walk.resolveAll(nodes, nil)

	r.log.Debug("Cascade resolved",
		zap.Int("elements", walk.stats.ElementsStyled),
		zap.Int("layers", walk.stats.LayersApplied))
	return walk.stats
}

// walker carries the per-call resolution state.
type walker struct {
	rules     *css.RuleSet
	variables css.StyleMap
	stats     Stats
}

func (w *walker) resolveAll(nodes []html.Node, parent *html.Element) {
	for _, n := range nodes {
		el, ok := n.(*html.Element)
		if !ok {
			continue
		}
		w.resolveElement(el, parent)
		w.resolveAll(el.Children, el)
	}
}

// resolveElement applies the rule buckets to one element as successive
// overwrite layers: universal, element, direct-child combinator, positional
// pseudo-classes, classes in list order, attribute selectors, then id.
func (w *walker) resolveElement(el *html.Element, parent *html.Element) {
	el.Computed = make(css.StyleMap)
	el.Locked = make(css.StyleMap)
	w.stats.ElementsStyled++

	// Inline declarations from style="" seed the locked map. A later
	// !important layer may still replace them.
	for property, value := range el.ExplicitStyle {
		el.Locked[property] = stripImportant(value)
	}

	// 1. Universal.
	w.applyLayer(el, w.rules.Universal)

	// 2. Element.
	if er, ok := w.rules.Elements[el.Tag]; ok {
		w.applyLayer(el, er.Style)
	}

	// 3. Direct-child combinator.
	if parent != nil {
		if per, ok := w.rules.Elements[parent.Tag]; ok {
			if child, ok := per.Children[el.Tag]; ok {
				w.applyLayer(el, child.Style)
			}
		}
	}

	// 4. Positional pseudo-classes, in declaration order. Two entries
	// matching the same element apply last-wins.
	for _, key := range w.rules.Functions.Keys() {
		if key == ":root" {
			continue
		}
		if w.pseudoMatches(key, el, parent) {
			style, _ := w.rules.Functions.Get(key)
			w.applyLayer(el, style)
		}
	}

	// 5. Classes, in class-list order.
	for _, class := range el.Classes {
		if style, ok := w.rules.Classes["."+class]; ok {
			w.applyLayer(el, style)
		}
	}

	// 6. Attribute selectors, in declaration order.
	for _, key := range w.rules.Attributes.Keys() {
		if w.attributeMatches(key, el) {
			style, _ := w.rules.Attributes.Get(key)
			w.applyLayer(el, style)
		}
	}

	// 7. Id.
	if el.ID != "" {
		if style, ok := w.rules.IDs["#"+el.ID]; ok {
			w.applyLayer(el, style)
		}
	}
}

// applyLayer overlays one rule layer onto the element, resolving var(...)
// references first. An !important value goes into the locked map and wins
// unconditionally; an ordinary value lands in the computed map only if the
// property is not already locked.
func (w *walker) applyLayer(el *html.Element, layer css.StyleMap) {
	if len(layer) == 0 {
		return
	}
	w.stats.LayersApplied++

	for property, value := range layer {
		value = w.substituteVariables(value)
		if importantRegex.MatchString(value) {
			el.Locked[property] = stripImportant(value)
			continue
		}
		if _, locked := el.Locked[property]; locked {
			continue
		}
		el.Computed[property] = value
	}
}

var (
	importantRegex = regexp.MustCompile(`!\s*important`)
	varRegex       = regexp.MustCompile(`var\(\s*(--[A-Za-z0-9_-]+)\s*\)`)
	nthChildRegex  = regexp.MustCompile(`^nth-child\((even|odd|[0-9]+)\)$`)
)

// substituteVariables replaces var(--name) tokens with the :root value.
// Unresolved references stay as literal var(--name) text.
func (w *walker) substituteVariables(value string) string {
	if len(w.variables) == 0 || !strings.Contains(value, "var(") {
		return value
	}
	return varRegex.ReplaceAllStringFunc(value, func(token string) string {
		name := varRegex.FindStringSubmatch(token)[1]
		if resolved, ok := w.variables[name]; ok {
			return resolved
		}
		return token
	})
}

func stripImportant(value string) string {
	return strings.TrimSpace(importantRegex.ReplaceAllString(value, ""))
}

// pseudoMatches evaluates a functions-bucket key of the form
// `(tag|*)?:pseudo` against an element and its parent.
func (w *walker) pseudoMatches(key string, el *html.Element, parent *html.Element) bool {
	colon := strings.Index(key, ":")
	if colon < 0 {
		return false
	}
	tag := key[:colon]
	if tag != "" && tag != "*" && !strings.EqualFold(tag, el.Tag) {
		return false
	}

	pseudo := key[colon+1:]
	switch pseudo {
	case "first-child":
		return parent != nil && el.Index == 1
	case "last-child":
		return parent != nil && el.Index == len(parent.Children)
	case "empty":
		return len(el.Children) == 0
	}

	if m := nthChildRegex.FindStringSubmatch(pseudo); m != nil {
		switch m[1] {
		case "even":
			return el.Index%2 == 0
		case "odd":
			return el.Index%2 == 1
		default:
			n, err := strconv.Atoi(m[1])
			return err == nil && el.Index == n
		}
	}

	// Unknown pseudo-classes (:hover, :focus, ...) never match a static
	// tree.
	return false
}

// attributeMatches evaluates an attributes-bucket key against an element:
// the optional tag constraint must match, the element must carry the named
// attribute, and an `=value` form requires the exact value.
func (w *walker) attributeMatches(key string, el *html.Element) bool {
	tag, attr, required, hasValue, ok := css.ParseAttributeSelector(key)
	if !ok {
		return false
	}
	if tag != "" && tag != el.Tag {
		return false
	}
	value, present := el.Attr(attr)
	if !present {
		return false
	}
	if hasValue && value != required {
		return false
	}
	return true
}
