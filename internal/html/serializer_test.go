package html_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatstyle/internal/css"
	"chatstyle/internal/html"
)

func TestSerialize_TextNode(t *testing.T) {
	out := html.Serialize([]html.Node{&html.Text{Content: "plain text", Index: 1}})
	assert.Equal(t, "plain text", out)
}

func TestSerialize_MalformedElementYieldsEmptyString(t *testing.T) {
	out := html.Serialize([]html.Node{&html.Element{}})
	assert.Equal(t, "", out)
}

func TestSerialize_AttributeOrder(t *testing.T) {
	el := &html.Element{
		Tag:      "div",
		ID:       "main",
		Classes:  []string{"a", "b"},
		Computed: css.StyleMap{"color": "red"},
		Attrs: []html.Attr{
			{Name: "data-x", Value: "1"},
			{Name: "title", Value: "t"},
		},
		Children: []html.Node{&html.Text{Content: "x", Index: 1}},
		Index:    1,
	}

	out := html.Serialize([]html.Node{el})
	assert.Equal(t, `<div style="color: red;" class="a b" id="main" data-x="1" title="t">x</div>`, out)
}

func TestSerialize_LockedWinsOverComputed(t *testing.T) {
	el := &html.Element{
		Tag:      "span",
		Computed: css.StyleMap{"color": "black", "margin": "0"},
		Locked:   css.StyleMap{"color": "red"},
		Index:    1,
	}

	out := html.Serialize([]html.Node{el})
	assert.Equal(t, `<span style="color: red; margin: 0;"></span>`, out)
}

func TestSerialize_CamelCaseRewrittenToKebab(t *testing.T) {
	el := &html.Element{
		Tag:      "b",
		Computed: css.StyleMap{"fontWeight": "bold", "backgroundColor": "blue"},
		Index:    1,
	}

	out := html.Serialize([]html.Node{el})
	assert.Contains(t, out, "font-weight: bold;")
	assert.Contains(t, out, "background-color: blue;")
}

func TestSerialize_ExplicitStyleSurvivesWithoutResolution(t *testing.T) {
	p := html.NewParser(zap.NewNop())

	nodes := p.Parse(`<div style="color: red">x</div>`)
	out := html.Serialize(nodes)

	assert.Contains(t, out, `style="color: red;"`)
}

func TestSerialize_AttributeValuesEscaped(t *testing.T) {
	el := &html.Element{
		Tag:   "div",
		Attrs: []html.Attr{{Name: "title", Value: `say "hi" & go`}},
		Index: 1,
	}

	out := html.Serialize([]html.Node{el})
	assert.NotContains(t, out, `="say "hi"`)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	title, _ := doc.Find("div").Attr("title")
	assert.Equal(t, `say "hi" & go`, title)
}

func TestSerialize_RoundTrip(t *testing.T) {
	p := html.NewParser(zap.NewNop())

	src := `<div class="card urgent" id="c1" data-kind="note" style="color: red; padding: 4px">` +
		`<span title="inner">Hello</span><br/>world</div>`

	first := p.Parse(src)
	out := html.Serialize(first)
	second := p.Parse(out)

	requireEquivalent(t, first, second)
}

// requireEquivalent checks that two forests agree on tag names, class
// lists, ids, raw attributes and style property sets. Style attribute
// formatting may differ textually.
func requireEquivalent(t *testing.T, a, b []html.Node) {
	t.Helper()
	require.Equal(t, len(a), len(b), "sibling count")

	for i := range a {
		switch an := a[i].(type) {
		case *html.Text:
			bn, ok := b[i].(*html.Text)
			require.True(t, ok, "node %d: kind mismatch", i)
			assert.Equal(t, an.Content, bn.Content)

		case *html.Element:
			bn, ok := b[i].(*html.Element)
			require.True(t, ok, "node %d: kind mismatch", i)
			assert.Equal(t, an.Tag, bn.Tag)
			assert.Equal(t, an.ID, bn.ID)
			assert.Equal(t, an.Classes, bn.Classes)
			assert.Equal(t, sortedAttrs(an.Attrs), sortedAttrs(bn.Attrs))
			assert.Equal(t, an.ExplicitStyle, bn.ExplicitStyle)
			requireEquivalent(t, an.Children, bn.Children)
		}
	}
}

func sortedAttrs(attrs []html.Attr) []html.Attr {
	out := append([]html.Attr(nil), attrs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
