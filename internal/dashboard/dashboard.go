// Package dashboard turns one user interaction into a render plan and serves
// plans over HTTP.
package dashboard

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/drilldown"
	"github.com/sells-group/election-map/internal/election"
	"github.com/sells-group/election-map/internal/geo"
	"github.com/sells-group/election-map/internal/loader"
	"github.com/sells-group/election-map/internal/registry"
	"github.com/sells-group/election-map/internal/render"
)

// View selects which dashboard page a plan is for.
type View string

// Views.
const (
	ViewElection     View = "election"
	ViewConstituency View = "constituency"
)

// Valid reports whether v names a known view.
func (v View) Valid() bool {
	return v == ViewElection || v == ViewConstituency
}

// Request is the input of one rendering pass.
type Request struct {
	View View `json:"view"`
	Year int  `json:"year"`
	// Click carries the properties of the feature clicked on the picker map.
	Click       map[string]any `json:"click,omitempty"`
	Fallback    string         `json:"fallback,omitempty"`
	UseFallback bool           `json:"use_fallback,omitempty"`
}

// Level is an advisory severity.
type Level string

// Advisory levels.
const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Advisory is a user-visible message.
type Advisory struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Plan is everything the page needs to draw one pass.
type Plan struct {
	ID             string                 `json:"id"`
	View           View                   `json:"view"`
	Year           int                    `json:"year"`
	Title          string                 `json:"title"`
	Header         string                 `json:"header"`
	Caption        string                 `json:"caption,omitempty"`
	Subheader      string                 `json:"subheader,omitempty"`
	Advisories     []Advisory             `json:"advisories"`
	Map            *render.Map            `json:"map,omitempty"`
	Detail         *render.Map            `json:"detail,omitempty"`
	Drilldown      *drilldown.Summary     `json:"drilldown,omitempty"`
	Join           *election.JoinStats    `json:"join,omitempty"`
	Legend         []election.LegendEntry `json:"legend,omitempty"`
	Constituencies []string               `json:"constituencies,omitempty"`
	Footer         string                 `json:"footer,omitempty"`
}

func (p *Plan) advise(level Level, format string, args ...any) {
	p.Advisories = append(p.Advisories, Advisory{Level: level, Message: fmt.Sprintf(format, args...)})
}

// adviseError records err as an advisory, using the loader's message when it has one.
func (p *Plan) adviseError(err error) {
	if le, ok := loader.AsLoadError(err); ok {
		p.advise(LevelError, "%s", le.Advisory())
		return
	}
	p.advise(LevelError, "%v", err)
}

// DataLoader loads boundaries, results and the fine-grained layer.
type DataLoader interface {
	LoadBoundaries(ctx context.Context, source string) (*geo.Collection, error)
	LoadResults(ctx context.Context, path string) (*loader.Table, error)
	LoadFine(ctx context.Context) (*geo.Collection, error)
	Stats() []loader.CacheStats
}

// Dashboard is the single entry point: Handle is called once per interaction.
type Dashboard struct {
	reg      *registry.Registry
	data     DataLoader
	palette  *election.Palette
	renderer *render.Renderer
	resolver *drilldown.Resolver
	plans    atomic.Int64
	log      *zap.Logger
}

// New creates a Dashboard.
func New(reg *registry.Registry, data DataLoader, palette *election.Palette, renderer *render.Renderer) *Dashboard {
	if palette == nil {
		palette = election.DefaultPalette()
	}
	if renderer == nil {
		renderer = render.New(render.DefaultOptions())
	}
	return &Dashboard{
		reg:      reg,
		data:     data,
		palette:  palette,
		renderer: renderer,
		resolver: drilldown.NewResolver(data),
		log:      zap.L().With(zap.String("component", "dashboard")),
	}
}

// Registry returns the dataset registry.
func (d *Dashboard) Registry() *registry.Registry {
	return d.reg
}

// Handle computes the render plan for req. It never fails: problems become
// advisories and the steps that depend on them are skipped.
func (d *Dashboard) Handle(ctx context.Context, req Request) *Plan {
	d.plans.Add(1)

	if req.View == "" {
		req.View = ViewElection
	}
	if req.Year == 0 {
		req.Year = d.reg.DefaultYear()
	}

	plan := &Plan{
		ID:         uuid.NewString(),
		View:       req.View,
		Year:       req.Year,
		Title:      "UK Parliamentary Map Hub",
		Advisories: []Advisory{},
	}

	ds, err := d.reg.Lookup(req.Year)
	if err != nil {
		plan.advise(LevelError, "No election data is registered for %d.", req.Year)
		return plan
	}

	switch req.View {
	case ViewElection:
		d.electionView(ctx, plan, ds)
	case ViewConstituency:
		d.constituencyView(ctx, plan, ds, req)
	default:
		plan.advise(LevelError, "Unknown view %q.", req.View)
	}

	d.log.Debug("plan computed",
		zap.String("plan_id", plan.ID),
		zap.String("view", string(plan.View)),
		zap.Int("year", plan.Year),
		zap.Int("advisories", len(plan.Advisories)),
	)
	return plan
}

func (d *Dashboard) electionView(ctx context.Context, plan *Plan, ds registry.Dataset) {
	plan.Header = fmt.Sprintf("Results for %d", ds.Year)
	plan.Caption = "Hover over a constituency to see the winning candidate and party."

	boundaries, berr := d.data.LoadBoundaries(ctx, ds.BoundaryURL)
	if berr != nil {
		plan.adviseError(berr)
	}
	results, rerr := d.data.LoadResults(ctx, ds.ResultsPath)
	if rerr != nil {
		plan.adviseError(rerr)
	}
	if berr != nil || rerr != nil {
		plan.advise(LevelWarning, "Could not load all data. The map cannot be displayed.")
		return
	}

	joined, stats := election.JoinAndColourize(d.palette, boundaries, results, ds.CodeColumn)
	plan.Join = &stats
	if stats.Unmatched > 0 {
		plan.advise(LevelInfo, "%s constituencies have no matching result and are shown as %s.",
			d.renderer.FormatCount(stats.Unmatched), election.DefaultCategory)
	}
	if stats.Duplicates > 0 {
		plan.advise(LevelWarning, "The results file repeats %s constituency codes; the first row of each was used.",
			d.renderer.FormatCount(stats.Duplicates))
	}

	m, err := d.renderer.RenderElection(joined, ds.NameColumn)
	if err != nil {
		plan.adviseError(err)
		return
	}
	plan.Map = m
	plan.Legend = election.Legend(joined)
	plan.Footer = fmt.Sprintf("Constituencies: %s | With results: %s",
		d.renderer.FormatCount(len(joined)), d.renderer.FormatCount(stats.Matched))
}

func (d *Dashboard) constituencyView(ctx context.Context, plan *Plan, ds registry.Dataset, req Request) {
	plan.Header = "UK Parliamentary Constituency Data"
	plan.Caption = fmt.Sprintf("Click a constituency (%d boundaries). If in England/Wales, its LSOAs will be drawn inside the boundary.", ds.Year)

	parents, err := d.data.LoadBoundaries(ctx, ds.BoundaryURL)
	if err != nil {
		plan.adviseError(err)
		plan.advise(LevelWarning, "Could not load constituency layer.")
		return
	}
	if parents.Len() == 0 {
		plan.advise(LevelWarning, "Could not load constituency layer.")
		return
	}

	plan.Constituencies = sortedNames(parents, ds.NameColumn)

	picker, err := d.renderer.RenderPicker(parents, ds.NameColumn, ds.CodeColumn)
	if err != nil {
		plan.adviseError(err)
		return
	}
	plan.Map = picker

	state := drilldown.Select(drilldown.Input{
		Click:       req.Click,
		Fallback:    req.Fallback,
		UseFallback: req.UseFallback,
	}, parents, ds.CodeColumn, ds.NameColumn)

	if state.Phase == drilldown.Selected {
		plan.Subheader = fmt.Sprintf("%s (%s)", state.Selection.Name, state.Selection.Code)
		state = d.resolver.Resolve(ctx, state)
	}
	summary := state.Summary()
	plan.Drilldown = &summary

	fine := d.reg.Fine()
	switch state.Phase {
	case drilldown.NoSelection:
		plan.advise(LevelInfo, "Tip: click a constituency on the map, or use the fallback selector in the sidebar.")
	case drilldown.Failed:
		plan.advise(LevelError, "%s", state.Reason)
	case drilldown.Empty:
		plan.advise(LevelWarning, "No LSOAs found. This likely means the constituency is outside England & Wales.")
	case drilldown.Resolved:
		detail, err := d.renderer.RenderDetail(state.Boundary, state.Subset, fine.CodeColumn, fine.NameColumn)
		if err != nil {
			plan.adviseError(err)
			return
		}
		plan.Detail = detail
		plan.Footer = fmt.Sprintf("LSOAs found: %s | Geometry: super-generalised (BSC) © ONS",
			d.renderer.FormatCount(len(state.Subset)))
	}
}

// Stats reports cache statistics and the number of plans computed.
type Stats struct {
	Plans  int64               `json:"plans"`
	Caches []loader.CacheStats `json:"caches"`
}

// Stats returns current statistics.
func (d *Dashboard) Stats() Stats {
	return Stats{Plans: d.plans.Load(), Caches: d.data.Stats()}
}
