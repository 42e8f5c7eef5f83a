package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatstyle/internal/css"
	"chatstyle/internal/html"
	"chatstyle/internal/resolver"
)

func parseBoth(t *testing.T, cssSrc, htmlSrc string) (*css.RuleSet, []html.Node) {
	t.Helper()
	rules := css.NewParser(zap.NewNop()).Parse(cssSrc)
	nodes := html.NewParser(zap.NewNop()).Parse(htmlSrc)
	return rules, nodes
}

func resolve(t *testing.T, cssSrc, htmlSrc string) []html.Node {
	t.Helper()
	rules, nodes := parseBoth(t, cssSrc, htmlSrc)
	resolver.New(zap.NewNop()).Resolve(rules, nodes)
	return nodes
}

func element(t *testing.T, nodes []html.Node, index int) *html.Element {
	t.Helper()
	el, ok := nodes[index].(*html.Element)
	require.True(t, ok, "node %d is not an element", index)
	return el
}

// final returns the effective value for a property: locked wins over
// computed.
func final(el *html.Element, property string) string {
	if v, ok := el.Locked[property]; ok {
		return v
	}
	return el.Computed[property]
}

func TestResolve_ElementRuleApplies(t *testing.T) {
	nodes := resolve(t, `p { color: red; }`, `<p>x</p>`)
	assert.Equal(t, "red", final(element(t, nodes, 0), "color"))
}

func TestResolve_LayerOrder(t *testing.T) {
	// Later layers overwrite earlier ones: universal < element < class < id.
	nodes := resolve(t,
		`* { color: black; } div { color: gray; } .c { color: green; } #i { color: blue; }`,
		`<div class="c" id="i">x</div>`)

	assert.Equal(t, "blue", final(element(t, nodes, 0), "color"))
}

func TestResolve_ImportantBeatsLaterLayers(t *testing.T) {
	// The element layer runs before the class layer, but !important locks
	// the property against the later non-important overwrite.
	nodes := resolve(t,
		`div { color: blue !important; } .x { color: red; }`,
		`<div class="x">x</div>`)

	el := element(t, nodes, 0)
	assert.Equal(t, "blue", final(el, "color"))
	assert.Equal(t, "blue", el.Locked["color"])
	assert.NotContains(t, el.Locked["color"], "!important")
}

func TestResolve_LaterImportantOverridesEarlierImportant(t *testing.T) {
	nodes := resolve(t,
		`div { color: blue !important; } .x { color: red !important; }`,
		`<div class="x">x</div>`)

	assert.Equal(t, "red", final(element(t, nodes, 0), "color"))
}

func TestResolve_InlineStyleLockedAgainstCascade(t *testing.T) {
	nodes := resolve(t,
		`div { color: green; }`,
		`<div style="color: purple">x</div>`)

	assert.Equal(t, "purple", final(element(t, nodes, 0), "color"))
}

func TestResolve_ImportantRuleBeatsInlineStyle(t *testing.T) {
	nodes := resolve(t,
		`div { color: green !important; }`,
		`<div style="color: purple">x</div>`)

	assert.Equal(t, "green", final(element(t, nodes, 0), "color"))
}

func TestResolve_VariableSubstitution(t *testing.T) {
	nodes := resolve(t,
		`:root { --c: green; } div { color: var(--c); border-color: var(--missing); }`,
		`<div>x</div>`)

	el := element(t, nodes, 0)
	assert.Equal(t, "green", final(el, "color"))
	assert.Equal(t, "var(--missing)", final(el, "border-color"))
}

func TestResolve_VariableWithImportantMarker(t *testing.T) {
	nodes := resolve(t,
		`:root { --c: green; } div { color: var(--c) !important; } .x { color: red; }`,
		`<div class="x">x</div>`)

	assert.Equal(t, "green", final(element(t, nodes, 0), "color"))
}

func TestResolve_DirectChildCombinator(t *testing.T) {
	nodes := resolve(t,
		`div > p { color: green; }`,
		`<div><p>inner</p></div><p>outer</p>`)

	div := element(t, nodes, 0)
	inner := div.Children[0].(*html.Element)
	outer := element(t, nodes, 1)

	assert.Equal(t, "green", final(inner, "color"))
	assert.Empty(t, final(outer, "color"))
}

func TestResolve_NthChild(t *testing.T) {
	nodes := resolve(t,
		`li:nth-child(even) { color: gray; } li:nth-child(3) { font-weight: bold; }`,
		`<ul><li>1</li><li>2</li><li>3</li><li>4</li></ul>`)

	ul := element(t, nodes, 0)
	items := make([]*html.Element, 4)
	for i := range items {
		items[i] = ul.Children[i].(*html.Element)
	}

	assert.Empty(t, final(items[0], "color"))
	assert.Equal(t, "gray", final(items[1], "color"))
	assert.Empty(t, final(items[2], "color"))
	assert.Equal(t, "gray", final(items[3], "color"))

	assert.Equal(t, "bold", final(items[2], "font-weight"))
	assert.Empty(t, final(items[1], "font-weight"))
}

func TestResolve_FirstAndLastChild(t *testing.T) {
	nodes := resolve(t,
		`span:first-child { color: red; } span:last-child { color: blue; }`,
		`<div><span>a</span><span>b</span><span>c</span></div>`)

	div := element(t, nodes, 0)
	first := div.Children[0].(*html.Element)
	middle := div.Children[1].(*html.Element)
	last := div.Children[2].(*html.Element)

	assert.Equal(t, "red", final(first, "color"))
	assert.Empty(t, final(middle, "color"))
	assert.Equal(t, "blue", final(last, "color"))
}

func TestResolve_FirstChildNeverMatchesRootLevel(t *testing.T) {
	nodes := resolve(t,
		`div:first-child { color: red; } div:last-child { color: blue; }`,
		`<div>alone</div>`)

	assert.Empty(t, final(element(t, nodes, 0), "color"))
}

func TestResolve_Empty(t *testing.T) {
	nodes := resolve(t,
		`span:empty { display: none; }`,
		`<div><span></span><span>full</span></div>`)

	div := element(t, nodes, 0)
	empty := div.Children[0].(*html.Element)
	full := div.Children[1].(*html.Element)

	assert.Equal(t, "none", final(empty, "display"))
	assert.Empty(t, final(full, "display"))
}

func TestResolve_PseudoTagConstraint(t *testing.T) {
	nodes := resolve(t,
		`li:first-child { color: red; } *:first-child { margin: 0; }`,
		`<div><p>a</p></div>`)

	p := element(t, nodes, 0).Children[0].(*html.Element)
	assert.Empty(t, final(p, "color"))
	assert.Equal(t, "0", final(p, "margin"))
}

func TestResolve_ClassListOrder(t *testing.T) {
	// Classes apply in the node's class-list order, not the sheet order.
	nodes := resolve(t,
		`.b { color: blue; } .a { color: amber; }`,
		`<div class="a b">x</div>`)

	assert.Equal(t, "blue", final(element(t, nodes, 0), "color"))
}

func TestResolve_AttributeSelectors(t *testing.T) {
	nodes := resolve(t,
		`[data-role] { color: red; } a[href="x"] { color: blue; } a[href="y"] { color: green; }`,
		`<a href="x" data-role="nav">go</a>`)

	assert.Equal(t, "blue", final(element(t, nodes, 0), "color"))
}

func TestResolve_AttributeTagConstraint(t *testing.T) {
	nodes := resolve(t,
		`a[title] { color: red; }`,
		`<div title="t">x</div>`)

	assert.Empty(t, final(element(t, nodes, 0), "color"))
}

func TestResolve_IDLayer(t *testing.T) {
	nodes := resolve(t,
		`#x { font-weight: bold; }`,
		`<div id="x">x</div>`)

	assert.Equal(t, "bold", final(element(t, nodes, 0), "font-weight"))
}

func TestResolve_DoesNotMutateRuleSet(t *testing.T) {
	rules, nodes := parseBoth(t,
		`:root { --c: green; } div { color: var(--c) !important; }`,
		`<div>x</div>`)

	resolver.New(zap.NewNop()).Resolve(rules, nodes)

	// The rule value must still carry the var reference and the marker.
	assert.Contains(t, rules.Elements["div"].Style["color"], "var(--c)")
	assert.Contains(t, rules.Elements["div"].Style["color"], "!important")
}

func TestResolve_TextNodesUntouched(t *testing.T) {
	nodes := resolve(t, `* { color: black; }`, `text only`)

	_, ok := nodes[0].(*html.Text)
	require.True(t, ok)
}

func TestResolve_EndToEndScenario(t *testing.T) {
	nodes := resolve(t,
		`* { color: black; } .alert { color: red !important; } #x:first-child { font-weight: bold; }`,
		`<div id="x" class="alert">Hi</div>`)

	out := html.Serialize(nodes)
	assert.Contains(t, out, `style="color: red; font-weight: bold;"`)
	assert.Contains(t, out, `class="alert"`)
	assert.Contains(t, out, `id="x"`)
}
