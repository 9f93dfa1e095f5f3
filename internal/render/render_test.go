package render

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/queryplan/internal/core"
	"github.com/coregx/queryplan/internal/protocol"
	"github.com/coregx/queryplan/internal/provider"
	"github.com/coregx/queryplan/resources"
)

const planTemplate = `<body style="background:{backColor};color:{textColor}"><script>show('{plan}', '{query}');</script></body>`

func testTemplates() FSTemplates {
	return FSTemplates{FS: fstest.MapFS{
		"Common/template.html":   {Data: []byte(`<pre style="background:{backColor};color:{textColor}">{query}</pre>`)},
		"Postgres/template.html": {Data: []byte(planTemplate)},
		"SQLite/template.html":   {Data: []byte(`<div class="tf-tree">{plan}</div><script>q('{query}')</script>`)},
	}}
}

func mustProvider(t *testing.T, id string) provider.Provider {
	t.Helper()
	p, err := provider.Lookup(id)
	require.NoError(t, err)
	return p
}

func TestLuminance(t *testing.T) {
	tests := []struct {
		name     string
		color    protocol.Color
		wantDark bool
		wantText string
	}{
		{name: "black", color: protocol.Color{}, wantDark: true, wantText: "white"},
		{name: "white", color: protocol.White, wantDark: false, wantText: "black"},
		{name: "exact_boundary_is_light", color: protocol.Color{R: 13, G: 163, B: 113}, wantDark: false, wantText: "black"},
		{name: "just_below_boundary", color: protocol.Color{R: 13, G: 163, B: 112}, wantDark: true, wantText: "white"},
		{name: "mid_gray_127", color: protocol.Color{R: 127, G: 127, B: 127}, wantDark: true, wantText: "white"},
		{name: "mid_gray_128", color: protocol.Color{R: 128, G: 128, B: 128}, wantDark: false, wantText: "black"},
		{name: "vs_dark_theme", color: protocol.Color{R: 30, G: 30, B: 30}, wantDark: true, wantText: "white"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantDark, IsDark(tt.color))
			assert.Equal(t, tt.wantText, TextColor(tt.color))
		})
	}

	assert.InDelta(t, 127.5, Luminance(protocol.Color{R: 13, G: 163, B: 113}), 1e-9)
}

func TestCSSColor(t *testing.T) {
	assert.Equal(t, "rgb(30 144 255)", CSSColor(protocol.Color{R: 30, G: 144, B: 255}))
}

func TestRenderPlan(t *testing.T) {
	r := New(testTemplates())

	doc, err := r.RenderPlan(mustProvider(t, "postgres"),
		"Seq Scan on \"users\"\n  Filter: (name = 'x')",
		"SELECT * FROM users WHERE name = 'x'",
		protocol.Color{R: 30, G: 30, B: 30})

	require.NoError(t, err)
	assert.Equal(t,
		`<body style="background:rgb(30 30 30);color:white"><script>show('Seq Scan on \"users\"\n  Filter: (name = \'x\')', 'SELECT * FROM users WHERE name = \'x\'');</script></body>`,
		doc)
}

func TestRenderPlan_SQLiteKeepsMarkup(t *testing.T) {
	r := New(testTemplates())
	tree := provider.BuildPlanTree([]provider.PlanItem{{ID: 0, Parent: -1, Detail: "Query Plan"}, {ID: 2, Parent: 0, Detail: "SCAN t"}})

	doc, err := r.RenderPlan(mustProvider(t, "sqlite"), tree, "SELECT * FROM t", protocol.White)

	require.NoError(t, err)
	assert.Contains(t, doc, `<span class="tf-nc">SCAN t</span>`)
	assert.Contains(t, doc, `q('SELECT * FROM t')`)
}

func TestRenderPlan_PlaceholdersInPlanAreNotExpanded(t *testing.T) {
	r := New(testTemplates())

	doc, err := r.RenderPlan(mustProvider(t, "postgres"), "{query}", "SELECT 1", protocol.White)

	require.NoError(t, err)
	assert.Contains(t, doc, "show('{query}', 'SELECT 1')")
}

func TestRenderPlan_TextCannotEscapeScript(t *testing.T) {
	templates := FSTemplates{FS: resources.FS}
	tmpl, err := templates.Load("SqlServer")
	require.NoError(t, err)

	doc, err := New(templates).RenderPlan(mustProvider(t, "sqlserver"),
		`<ShowPlanXML><!-- </script><b>plan</b> --></ShowPlanXML>`,
		"SELECT '</script><img src=x onerror=alert(1)>'",
		protocol.White)

	require.NoError(t, err)
	assert.Equal(t, strings.Count(tmpl, "</script>"), strings.Count(doc, "</script>"))
	assert.NotContains(t, doc, "<img")
	assert.NotContains(t, doc, "<b>")
	assert.Contains(t, doc, `\u003cShowPlanXML\u003e`)
}

func TestRenderQuery(t *testing.T) {
	r := New(testTemplates())

	doc, err := r.RenderQuery("-- @p0='5'\nSELECT * FROM t WHERE a < @p0 AND b = \"x\"", protocol.White)

	require.NoError(t, err)
	assert.Equal(t,
		`<pre style="background:rgb(255 255 255);color:black">-- @p0=&#39;5&#39;`+"\n"+`SELECT * FROM t WHERE a &lt; @p0 AND b = &#34;x&#34;</pre>`,
		doc)
}

func TestRender_TemplateMissing(t *testing.T) {
	r := New(FSTemplates{FS: fstest.MapFS{}})

	_, err := r.RenderQuery("SELECT 1", protocol.White)
	require.Error(t, err)
	assert.Equal(t, core.KindTemplateMissing, core.KindOf(err))
	assert.Contains(t, err.Error(), "Common/template.html")

	_, err = r.RenderPlan(mustProvider(t, "oracle"), "plan", "SELECT 1 FROM dual", protocol.White)
	assert.Equal(t, core.KindTemplateMissing, core.KindOf(err))
}

type failingTemplates struct{}

func (failingTemplates) Load(string) (string, error) { return "", errors.New("disk unplugged") }

func TestRender_LoaderErrorIsTemplateMissing(t *testing.T) {
	_, err := New(failingTemplates{}).RenderQuery("SELECT 1", protocol.White)

	assert.Equal(t, core.KindTemplateMissing, core.KindOf(err))
	assert.Contains(t, err.Error(), "disk unplugged")
}
