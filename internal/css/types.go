package css

import (
	"strings"
)

// StyleMap maps a CSS property name to its declared value. Values are kept
// as opaque strings; var(...) references and !important markers stay in the
// text until cascade resolution reinterprets them.
type StyleMap map[string]string

// Merge copies every property from other into m, overwriting existing
// entries. Later declarations win for the same property.
func (m StyleMap) Merge(other StyleMap) {
	for property, value := range other {
		m[property] = value
	}
}

// Clone returns an independent copy of the map.
func (m StyleMap) Clone() StyleMap {
	c := make(StyleMap, len(m))
	for property, value := range m {
		c[property] = value
	}
	return c
}

// ElementRule holds the styles declared for a tag selector, plus nested
// buckets for direct-child combinators (`parent > child`). Only the last
// level of a combinator chain carries declarations; intermediate levels
// exist purely as structure.
type ElementRule struct {
	Style    StyleMap
	Children map[string]*ElementRule
}

// NewElementRule creates an empty element bucket.
func NewElementRule() *ElementRule {
	return &ElementRule{
		Style:    make(StyleMap),
		Children: make(map[string]*ElementRule),
	}
}

// Child returns the nested bucket for a direct-child tag, creating it if
// necessary.
func (er *ElementRule) Child(tag string) *ElementRule {
	child, ok := er.Children[tag]
	if !ok {
		child = NewElementRule()
		er.Children[tag] = child
	}
	return child
}

// OrderedRules is a selector-to-StyleMap mapping that remembers insertion
// order. The attribute and pseudo-class buckets need this: the resolver
// applies their entries in declaration order, and a repeated selector
// merges into its first occurrence.
type OrderedRules struct {
	keys  []string
	rules map[string]StyleMap
}

// NewOrderedRules creates an empty ordered bucket.
func NewOrderedRules() *OrderedRules {
	return &OrderedRules{rules: make(map[string]StyleMap)}
}

// Add merges style into the entry for key, appending the key on first use.
func (o *OrderedRules) Add(key string, style StyleMap) {
	existing, ok := o.rules[key]
	if !ok {
		existing = make(StyleMap, len(style))
		o.rules[key] = existing
		o.keys = append(o.keys, key)
	}
	existing.Merge(style)
}

// Get returns the style for key.
func (o *OrderedRules) Get(key string) (StyleMap, bool) {
	s, ok := o.rules[key]
	return s, ok
}

// Keys returns the selector keys in insertion order.
func (o *OrderedRules) Keys() []string {
	return o.keys
}

// Len returns the number of entries.
func (o *OrderedRules) Len() int {
	return len(o.rules)
}

// RuleSet classifies a stylesheet's selectors into disjoint buckets. Every
// bucket is always present, possibly empty, so downstream stages never see
// a partially constructed value.
type RuleSet struct {
	// Universal holds declarations for the `*` selector.
	Universal StyleMap

	// Elements maps a tag name to its declarations and direct-child buckets.
	Elements map[string]*ElementRule

	// Classes maps a `.name` selector to its declarations. Keys include the
	// leading dot.
	Classes map[string]StyleMap

	// IDs maps a `#name` selector to its declarations. Keys include the
	// leading hash.
	IDs map[string]StyleMap

	// Attributes maps attribute selectors (optional tag plus `[attr]` or
	// `[attr=value]`) to declarations, in declaration order.
	Attributes *OrderedRules

	// Functions maps pseudo-class selectors (optional tag plus `:pseudo`)
	// and the literal `:root` to declarations, in declaration order.
	Functions *OrderedRules

	// Warnings collects descriptions of fragments that were skipped.
	Warnings []string
}

// NewRuleSet creates a RuleSet with every bucket present but empty.
func NewRuleSet() *RuleSet {
	return &RuleSet{
		Universal:  make(StyleMap),
		Elements:   make(map[string]*ElementRule),
		Classes:    make(map[string]StyleMap),
		IDs:        make(map[string]StyleMap),
		Attributes: NewOrderedRules(),
		Functions:  NewOrderedRules(),
	}
}

// Variables returns the custom properties declared on `:root`. Only names
// starting with `--` qualify; they are substitutable into var(--name)
// occurrences anywhere in the sheet.
func (rs *RuleSet) Variables() StyleMap {
	vars := make(StyleMap)
	root, ok := rs.Functions.Get(":root")
	if !ok {
		return vars
	}
	for property, value := range root {
		if strings.HasPrefix(property, "--") {
			vars[property] = value
		}
	}
	return vars
}

// RuleCount returns the total number of selector entries across all buckets.
func (rs *RuleSet) RuleCount() int {
	n := 0
	if len(rs.Universal) > 0 {
		n++
	}
	for _, er := range rs.Elements {
		n += er.count()
	}
	n += len(rs.Classes)
	n += len(rs.IDs)
	n += rs.Attributes.Len()
	n += rs.Functions.Len()
	return n
}

func (er *ElementRule) count() int {
	n := 0
	if len(er.Style) > 0 {
		n++
	}
	for _, child := range er.Children {
		n += child.count()
	}
	return n
}
