// Package renderer runs the four-stage render pipeline: it fetches a
// template and a theme, substitutes placeholders, parses the CSS and the
// markup, resolves the cascade and serializes the styled tree back into a
// single inline-styled string.
package renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"chatstyle/internal/css"
	"chatstyle/internal/html"
	"chatstyle/internal/resolver"
	"chatstyle/internal/store"
	"chatstyle/internal/substitute"
)

// Deps are the collaborators a Renderer is constructed with. The stores
// and the substituter are owned by the caller; the renderer never reaches
// for them through any ambient registry.
type Deps struct {
	Templates   store.Store
	Themes      store.Store
	Substituter *substitute.Substituter
	Logger      *zap.Logger
}

// Renderer is the pipeline orchestrator. It retains no state between
// Render calls; every call re-parses its inputs.
type Renderer struct {
	templates  store.Store
	themes     store.Store
	subst      *substitute.Substituter
	cssParser  *css.Parser
	htmlParser *html.Parser
	resolver   *resolver.Resolver
	log        *zap.Logger
}

// New creates a renderer from its dependency set. A nil logger disables
// logging; a nil substituter gets a default one without localization.
func New(deps Deps) *Renderer {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	subst := deps.Substituter
	if subst == nil {
		subst = substitute.New(nil)
	}
	return &Renderer{
		templates:  deps.Templates,
		themes:     deps.Themes,
		subst:      subst,
		cssParser:  css.NewParser(log),
		htmlParser: html.NewParser(log),
		resolver:   resolver.New(log),
		log:        log.Named("renderer"),
	}
}

// Request names what to render and with which substitutions.
type Request struct {
	Template string // template store key
	Theme    string // theme store key

	// Expressions fill {{ name }} placeholders in both sources.
	Expressions map[string]string

	// CSSVariables override :root custom properties in the theme.
	CSSVariables map[string]string
}

// Result is the outcome of one pipeline run.
type Result struct {
	HTML     string
	Stats    Stats
	Warnings []string
}

// Stats contains processing metrics from one render.
type Stats struct {
	CSSRulesParsed   int
	ElementsStyled   int
	SelectorsMatched int
	ProcessingTimeMs int64
}

// PipelineError is the single wrapped failure a render surfaces. Stage
// names the pipeline stage that failed.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("render pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Render runs one pipeline pass. The template and theme fetches run
// concurrently; everything after them is synchronous pure computation. A
// failure during cascade resolution degrades to the unstyled template text
// instead of aborting.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	templateSrc, themeSrc, err := r.fetch(ctx, req)
	if err != nil {
		r.log.Error("Source fetch failed", zap.Error(err))
		return nil, &PipelineError{Stage: "fetch", Err: err}
	}

	templateSrc = r.subst.WrapInlineRolls(r.subst.Substitute(templateSrc, req.Expressions))
	themeSrc = r.subst.Substitute(themeSrc, req.Expressions)
	themeSrc = substitute.AppendVariableOverrides(themeSrc, req.CSSVariables)

	rules := r.cssParser.Parse(themeSrc)
	nodes := r.htmlParser.Parse(templateSrc)

	result := &Result{Warnings: rules.Warnings}
	result.Stats.CSSRulesParsed = rules.RuleCount()

	output, stats, err := r.resolveAndSerialize(rules, nodes)
	if err != nil {
		// Degrade to the unstyled input rather than abort.
		r.log.Error("Cascade resolution failed, returning unstyled markup", zap.Error(err))
		result.Warnings = append(result.Warnings, "cascade resolution failed: unstyled output")
		result.HTML = templateSrc
		result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}

	result.HTML = output
	result.Stats.ElementsStyled = stats.ElementsStyled
	result.Stats.SelectorsMatched = stats.LayersApplied
	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()

	r.log.Debug("Render complete",
		zap.String("template", req.Template),
		zap.String("theme", req.Theme),
		zap.Int("rules", result.Stats.CSSRulesParsed),
		zap.Int("elements", result.Stats.ElementsStyled))
	return result, nil
}

// fetch retrieves the template and theme sources concurrently. The two
// writes are independent, so ordering between them does not matter.
func (r *Renderer) fetch(ctx context.Context, req Request) (templateSrc, themeSrc string, err error) {
	var (
		wg          sync.WaitGroup
		templateErr error
		themeErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		templateSrc, templateErr = r.templates.Get(ctx, req.Template)
	}()
	go func() {
		defer wg.Done()
		themeSrc, themeErr = r.themes.Get(ctx, req.Theme)
	}()
	wg.Wait()

	if templateErr != nil {
		templateErr = fmt.Errorf("template %q: %w", req.Template, templateErr)
	}
	if themeErr != nil {
		themeErr = fmt.Errorf("theme %q: %w", req.Theme, themeErr)
	}
	return templateSrc, themeSrc, multierr.Combine(templateErr, themeErr)
}

// resolveAndSerialize runs the resolver stage with a recovery boundary so
// an unexpected panic degrades instead of escaping the pipeline.
func (r *Renderer) resolveAndSerialize(rules *css.RuleSet, nodes []html.Node) (out string, stats resolver.Stats, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cascade stage panicked: %v", rec)
		}
	}()

	stats = r.resolver.Resolve(rules, nodes)
	return html.Serialize(nodes), stats, nil
}
