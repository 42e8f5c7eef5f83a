package html

import (
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"

	"chatstyle/internal/css"
)

// voidElements are tags that never carry children and never get a frame on
// the open-element stack.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Parser turns markup source into a node forest, best-effort. Close tags
// that do not match the open element are tolerated, and unclosed tags at
// end of input produce a diagnostic but still return the partial tree.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new markup parser. A nil logger disables logging.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("html-parser")}
}

// Parse tokenizes src and builds the top-level sibling forest. Comments are
// dropped, whitespace runs inside text collapse to single spaces, and blank
// text runs are skipped. The synthetic root holding the forest is never
// returned itself.
func (p *Parser) Parse(src string) []Node {
	tokenizer := xhtml.NewTokenizer(strings.NewReader(src))

	root := &Element{}
	stack := []*Element{root}

loop:
	for {
		switch tokenizer.Next() {
		case xhtml.ErrorToken:
			if err := tokenizer.Err(); !errors.Is(err, io.EOF) {
				p.log.Error("Tokenizer stopped on malformed markup", zap.Error(err))
			}
			break loop

		case xhtml.TextToken:
			content := collapseText(string(tokenizer.Text()))
			if content == "" {
				continue
			}
			top := stack[len(stack)-1]
			top.Children = append(top.Children, &Text{
				Content: content,
				Index:   len(top.Children) + 1,
			})

		case xhtml.StartTagToken:
			token := tokenizer.Token()
			el := p.buildElement(token)

			top := stack[len(stack)-1]
			el.Index = len(top.Children) + 1
			top.Children = append(top.Children, el)

			if !voidElements[el.Tag] {
				stack = append(stack, el)
			}

		case xhtml.SelfClosingTagToken:
			token := tokenizer.Token()
			el := p.buildElement(token)

			top := stack[len(stack)-1]
			el.Index = len(top.Children) + 1
			top.Children = append(top.Children, el)

		case xhtml.EndTagToken:
			// Pop without verifying the tag name; mismatches are tolerated.
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}

		case xhtml.CommentToken, xhtml.DoctypeToken:
			continue
		}
	}

	if unclosed := len(stack) - 1; unclosed > 0 {
		tags := make([]string, 0, unclosed)
		for _, el := range stack[1:] {
			tags = append(tags, el.Tag)
		}
		p.log.Error("Unbalanced markup, returning partial tree",
			zap.Int("unclosed", unclosed),
			zap.Strings("tags", tags))
	}

	return root.Children
}

// buildElement decomposes a start tag token: style="" becomes the explicit
// style map, class="" the class list, id="" the id; everything else stays a
// raw attribute in source order.
func (p *Parser) buildElement(token xhtml.Token) *Element {
	el := &Element{
		Tag:           token.Data,
		ExplicitStyle: make(css.StyleMap),
	}

	for _, attr := range token.Attr {
		switch attr.Key {
		case "style":
			el.ExplicitStyle.Merge(css.ParseDeclarations(attr.Val))
		case "class":
			el.Classes = append(el.Classes, strings.Fields(attr.Val)...)
		case "id":
			el.ID = attr.Val
		default:
			el.Attrs = append(el.Attrs, Attr{Name: attr.Key, Value: attr.Val})
		}
	}

	return el
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
