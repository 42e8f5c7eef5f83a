// Package substitute implements the placeholder pass that runs over
// template and theme sources before they enter the render pipeline.
package substitute

import (
	"regexp"
	"sort"
	"strings"
)

// Localizer looks up a localized phrase for a key. The phrase service
// itself lives outside this program; only the lookup the substituter needs
// is declared here.
type Localizer interface {
	Phrase(key string) (string, bool)
}

var (
	exprRegex = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)
	rollRegex = regexp.MustCompile(`\[\[\s*(.+?)\s*\]\]`)
)

// Substituter replaces {{ name }} placeholders and wraps [[ expr ]]
// inline-roll occurrences. It holds no mutable state.
type Substituter struct {
	localizer Localizer
}

// New creates a substituter. localizer may be nil.
func New(localizer Localizer) *Substituter {
	return &Substituter{localizer: localizer}
}

// Substitute replaces every {{ name }} token with expressions[name]. An
// absent name falls back to the localizer, then to the empty string.
func (s *Substituter) Substitute(text string, expressions map[string]string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	return exprRegex.ReplaceAllStringFunc(text, func(token string) string {
		name := exprRegex.FindStringSubmatch(token)[1]
		if value, ok := expressions[name]; ok {
			return value
		}
		if s.localizer != nil {
			if phrase, ok := s.localizer.Phrase(name); ok {
				return phrase
			}
		}
		return ""
	})
}

// WrapInlineRolls wraps every [[ expr ]] occurrence in the fixed
// inline-roll marker span. The render pipeline itself never interprets
// [[ ]]; the host's roll engine fills the marker in later.
func (s *Substituter) WrapInlineRolls(text string) string {
	if !strings.Contains(text, "[[") {
		return text
	}
	return rollRegex.ReplaceAllString(text, `<span class="inline-roll">$1</span>`)
}

// AppendVariableOverrides appends a generated :root block carrying the
// given custom-property overrides to a theme source. Because later
// declarations for the same selector overwrite earlier ones at parse time,
// the overrides win over the theme's own :root values.
func AppendVariableOverrides(cssSrc string, overrides map[string]string) string {
	if len(overrides) == 0 {
		return cssSrc
	}

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(cssSrc)
	sb.WriteString("\n:root { ")
	for _, name := range names {
		value := overrides[name]
		if !strings.HasPrefix(name, "--") {
			name = "--" + name
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(value)
		sb.WriteString("; ")
	}
	sb.WriteString("}\n")
	return sb.String()
}
