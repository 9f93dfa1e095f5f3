// Package render turns a raw plan and its query into a self-contained HTML
// document by substituting placeholders in a per-provider template.
package render

import (
	"errors"
	"io/fs"
	"path"
	"strings"

	"github.com/coregx/queryplan/internal/core"
	"github.com/coregx/queryplan/internal/escape"
	"github.com/coregx/queryplan/internal/protocol"
	"github.com/coregx/queryplan/internal/provider"
)

// CommonDirectory holds the query-only template.
const CommonDirectory = "Common"

// TemplateFile is the template name inside every directory.
const TemplateFile = "template.html"

// Template placeholders.
const (
	PlaceholderBackColor = "{backColor}"
	PlaceholderTextColor = "{textColor}"
	PlaceholderPlan      = "{plan}"
	PlaceholderQuery     = "{query}"
)

// Templates supplies template markup by directory.
type Templates interface {
	Load(dir string) (string, error)
}

// FSTemplates loads <dir>/template.html from a file system, typically
// os.DirFS(resources) or the embedded default resources.
type FSTemplates struct {
	FS fs.FS
}

// Load reads the template for dir. A missing file is KindTemplateMissing.
func (t FSTemplates) Load(dir string) (string, error) {
	name := path.Join(dir, TemplateFile)
	data, err := fs.ReadFile(t.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &core.Error{Kind: core.KindTemplateMissing, Message: "template file not found: " + name, Err: err}
		}
		return "", core.Wrap(core.KindUnexpected, "failed to read template "+name, err)
	}
	return string(data), nil
}

// Renderer fills templates. It never writes files.
type Renderer struct {
	templates Templates
}

// New creates a renderer over templates.
func New(templates Templates) *Renderer {
	return &Renderer{templates: templates}
}

// RenderPlan renders plan and query with the template of p.
// The plan is encoded by p; the query is script-encoded.
func (r *Renderer) RenderPlan(p provider.Provider, plan, query string, color protocol.Color) (string, error) {
	tmpl, err := r.load(p.PlanDirectory())
	if err != nil {
		return "", err
	}

	return substitute(tmpl, color,
		PlaceholderPlan, p.Encode(plan),
		PlaceholderQuery, escape.Script(query),
	), nil
}

// RenderQuery renders the query alone with the common template.
// The query is HTML-encoded.
func (r *Renderer) RenderQuery(query string, color protocol.Color) (string, error) {
	tmpl, err := r.load(CommonDirectory)
	if err != nil {
		return "", err
	}

	return substitute(tmpl, color, PlaceholderQuery, escape.HTML(query)), nil
}

func (r *Renderer) load(dir string) (string, error) {
	tmpl, err := r.templates.Load(dir)
	if err != nil {
		if core.KindOf(err) == core.KindUnexpected {
			return "", core.Wrap(core.KindTemplateMissing, "failed to load "+dir+" template", err)
		}
		return "", err
	}
	return tmpl, nil
}

// substitute replaces the color placeholders and the given pairs in a single
// pass, so substituted text is never scanned for further placeholders.
func substitute(tmpl string, color protocol.Color, pairs ...string) string {
	oldnew := append([]string{
		PlaceholderBackColor, CSSColor(color),
		PlaceholderTextColor, TextColor(color),
	}, pairs...)
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}
