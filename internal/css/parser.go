package css

import (
	"errors"
	"io"
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Parser turns CSS source text into a bucketed RuleSet. It never fails:
// any fragment that cannot be classified is skipped with a warning, so
// downstream stages always receive a well-formed (possibly empty) RuleSet.
type Parser struct {
	log *zap.Logger

	classTokenRegex *regexp.Regexp
	idTokenRegex    *regexp.Regexp
	attrRegex       *regexp.Regexp
	tagRegex        *regexp.Regexp
}

// NewParser creates a new CSS parser. A nil logger disables logging.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{
		log: log.Named("css-parser"),

		// Leading simple tokens for class and id selectors. Anything after
		// the token (pseudo qualifiers, compound parts) is dropped.
		classTokenRegex: regexp.MustCompile(`^\.[A-Za-z_][A-Za-z0-9_-]*`),
		idTokenRegex:    regexp.MustCompile(`^#[A-Za-z_][A-Za-z0-9_-]*`),

		// Attribute selector: optional tag, [attr] or [attr=value] with the
		// value bare, double- or single-quoted. Values containing `]` or
		// escaped quotes are not supported.
		attrRegex: regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*)?\[([A-Za-z_][A-Za-z0-9_-]*)(?:=(?:"([^"]*)"|'([^']*)'|([^\]'"]+)))?\]$`),

		tagRegex: regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`),
	}
}

// Parse parses CSS text into a RuleSet. Comments are discarded by the
// tokenizer, at-rules are skipped whole, and declarations for repeated
// occurrences of the same selector merge with later values winning.
func (p *Parser) Parse(src string) *RuleSet {
	rs := NewRuleSet()

	input := parse.NewInput(strings.NewReader(src))
	parser := css.NewParser(input, false)

	var pending []string

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				p.log.Warn("Malformed CSS skipped", zap.Error(err))
				rs.Warnings = append(rs.Warnings, "malformed css: "+err.Error())
			}
			return rs

		case css.BeginAtRuleGrammar:
			// At-rules (@media, @keyframes, ...) are outside the supported
			// grammar; skip the whole block.
			atRule := string(data)
			p.skipAtRuleBlock(parser)
			p.log.Warn("Skipping at-rule", zap.String("rule", atRule))
			rs.Warnings = append(rs.Warnings, "unsupported at-rule: "+atRule)

		case css.AtRuleGrammar:
			p.log.Warn("Skipping at-rule", zap.String("rule", string(data)))
			rs.Warnings = append(rs.Warnings, "unsupported at-rule: "+string(data))

		case css.QualifiedRuleGrammar:
			// Comma-separated prelude member; the block arrives with the
			// last selector of the group.
			pending = append(pending, selectorList(data, parser.Values())...)

		case css.BeginRulesetGrammar:
			selectors := append(pending, selectorList(data, parser.Values())...)
			pending = nil

			declarations := p.parseDeclarations(parser)
			if len(declarations) == 0 {
				continue
			}
			for _, selector := range selectors {
				p.classifySelector(selector, declarations, rs)
			}
		}
	}
}

// parseDeclarations consumes property declarations until the ruleset ends.
// Values are reassembled as opaque raw strings; `!important` and `var(...)`
// stay textual for the cascade resolver to reinterpret.
func (p *Parser) parseDeclarations(parser *css.Parser) StyleMap {
	declarations := make(StyleMap)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar, css.EndRulesetGrammar:
			return declarations

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			property := strings.TrimSpace(string(data))
			value := rawValue(parser.Values())
			if property != "" && value != "" {
				declarations[property] = value
			}
		}
	}
}

// skipAtRuleBlock consumes tokens until the current at-rule block closes.
func (p *Parser) skipAtRuleBlock(parser *css.Parser) {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// classifySelector routes one trimmed selector into its RuleSet bucket.
// The tests run in a fixed precedence: `*`, class, id, attribute,
// pseudo-class, direct-child chain, bare tag. Unclassifiable selectors are
// skipped with a warning.
func (p *Parser) classifySelector(selector string, declarations StyleMap, rs *RuleSet) {
	selector = collapseWhitespace(selector)
	if selector == "" {
		return
	}

	switch {
	case selector == "*":
		rs.Universal.Merge(declarations)

	case strings.HasPrefix(selector, "."):
		key := p.classTokenRegex.FindString(selector)
		if key == "" {
			p.skipSelector(selector, rs)
			return
		}
		p.mergeInto(rs.Classes, key, declarations)

	case strings.HasPrefix(selector, "#"):
		key := p.idTokenRegex.FindString(selector)
		if key == "" {
			p.skipSelector(selector, rs)
			return
		}
		p.mergeInto(rs.IDs, key, declarations)

	case p.attrRegex.MatchString(selector):
		rs.Attributes.Add(selector, declarations)

	case strings.Contains(selector, ":"):
		rs.Functions.Add(selector, declarations)

	case strings.Contains(selector, ">"):
		p.classifyChildChain(selector, declarations, rs)

	case p.tagRegex.MatchString(selector):
		tag := strings.ToLower(selector)
		er, ok := rs.Elements[tag]
		if !ok {
			er = NewElementRule()
			rs.Elements[tag] = er
		}
		er.Style.Merge(declarations)

	default:
		p.skipSelector(selector, rs)
	}
}

// classifyChildChain handles `parent > child` chains of bare tag names.
// Intermediate levels become nested children buckets; only the last level
// receives the declarations.
func (p *Parser) classifyChildChain(selector string, declarations StyleMap, rs *RuleSet) {
	parts := strings.Split(selector, ">")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.ToLower(strings.TrimSpace(part))
		if !p.tagRegex.MatchString(tag) {
			p.skipSelector(selector, rs)
			return
		}
		tags = append(tags, tag)
	}
	if len(tags) < 2 {
		p.skipSelector(selector, rs)
		return
	}

	er, ok := rs.Elements[tags[0]]
	if !ok {
		er = NewElementRule()
		rs.Elements[tags[0]] = er
	}
	for _, tag := range tags[1:] {
		er = er.Child(tag)
	}
	er.Style.Merge(declarations)
}

func (p *Parser) mergeInto(bucket map[string]StyleMap, key string, declarations StyleMap) {
	existing, ok := bucket[key]
	if !ok {
		existing = make(StyleMap, len(declarations))
		bucket[key] = existing
	}
	existing.Merge(declarations)
}

func (p *Parser) skipSelector(selector string, rs *RuleSet) {
	p.log.Warn("Unsupported selector skipped", zap.String("selector", selector))
	rs.Warnings = append(rs.Warnings, "unsupported selector: "+selector)
}

// ParseAttributeSelector decomposes an attribute selector key as stored in
// the Attributes bucket. hasValue reports whether an exact value was
// required; ok is false when the key is not an attribute selector at all.
func ParseAttributeSelector(selector string) (tag, attr, value string, hasValue, ok bool) {
	m := attrKeyRegex.FindStringSubmatch(selector)
	if m == nil {
		return "", "", "", false, false
	}
	tag = strings.ToLower(m[1])
	attr = m[2]
	switch {
	case m[3] != "":
		value, hasValue = m[3], true
	case m[4] != "":
		value, hasValue = m[4], true
	case m[5] != "":
		value, hasValue = m[5], true
	case strings.Contains(selector, "="):
		// Explicit empty value, e.g. [data-x=""]
		hasValue = true
	}
	return tag, attr, value, hasValue, true
}

var attrKeyRegex = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*)?\[([A-Za-z_][A-Za-z0-9_-]*)(?:=(?:"([^"]*)"|'([^']*)'|([^\]'"]+)))?\]$`)

// ParseDeclarations parses a bare declaration list, the body of a
// `style="..."` attribute. Each declaration splits on the first colon;
// fragments without one are dropped.
func ParseDeclarations(text string) StyleMap {
	declarations := make(StyleMap)
	for _, part := range strings.Split(text, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		colon := strings.Index(part, ":")
		if colon <= 0 {
			continue
		}
		property := strings.TrimSpace(part[:colon])
		value := strings.TrimSpace(part[colon+1:])
		if property == "" || value == "" {
			continue
		}
		declarations[property] = value
	}
	return declarations
}

// selectorList reassembles the rule prelude and splits grouped selectors
// on commas.
func selectorList(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	var selectors []string
	for _, s := range strings.Split(sb.String(), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// rawValue joins value tokens into one string, collapsing whitespace runs.
func rawValue(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
