// Package drilldown resolves a constituency selection to the fine-grained
// areas that intersect it.
package drilldown

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/geo"
	"github.com/sells-group/election-map/internal/loader"
)

// Phase is a drill-down state.
type Phase string

// Drill-down phases.
const (
	NoSelection Phase = "no_selection"
	Selected    Phase = "selected"
	Resolved    Phase = "resolved"
	Empty       Phase = "empty"
	Failed      Phase = "failed"
)

// Source records where a selection came from.
type Source string

// Selection sources.
const (
	FromClick    Source = "click"
	FromFallback Source = "fallback"
)

// Input is the interaction of one rendering pass.
type Input struct {
	// Click holds the properties of the clicked map feature, if any.
	Click map[string]any
	// Fallback is the constituency name picked from the selector.
	Fallback string
	// UseFallback enables the selector.
	UseFallback bool
}

// Selection is the chosen parent region.
type Selection struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Source Source `json:"source"`
}

// State is the outcome of one pass. Boundary is set from Selected onwards;
// Subset only when Resolved.
type State struct {
	Phase     Phase
	Selection *Selection
	Boundary  *geo.Feature
	Subset    []*geo.Feature
	Reason    string
}

// Summary is the JSON view of a State.
type Summary struct {
	Phase  Phase  `json:"phase"`
	Code   string `json:"code,omitempty"`
	Name   string `json:"name,omitempty"`
	Source Source `json:"source,omitempty"`
	Count  int    `json:"count"`
	Reason string `json:"reason,omitempty"`
}

// Summary returns s without geometries.
func (s State) Summary() Summary {
	out := Summary{Phase: s.Phase, Count: len(s.Subset), Reason: s.Reason}
	if s.Selection != nil {
		out.Code = s.Selection.Code
		out.Name = s.Selection.Name
		out.Source = s.Selection.Source
	}
	return out
}

func failed(sel *Selection, format string, args ...any) State {
	return State{Phase: Failed, Selection: sel, Reason: fmt.Sprintf(format, args...)}
}

// Select turns the pass input into a selection against parents. A click with
// a code beats a fallback choice in the same pass.
func Select(in Input, parents *geo.Collection, codeCol, nameCol string) State {
	if code := geo.PropertyString(in.Click[codeCol]); code != "" {
		b := parents.Find(codeCol, code)
		if b == nil {
			return failed(&Selection{Code: code, Source: FromClick}, "Constituency %s is not in the boundary data.", code)
		}
		name := geo.PropertyString(in.Click[nameCol])
		if name == "" {
			name = b.String(nameCol)
		}
		return State{
			Phase:     Selected,
			Selection: &Selection{Code: code, Name: name, Source: FromClick},
			Boundary:  b,
		}
	}

	name := strings.TrimSpace(in.Fallback)
	if in.UseFallback && name != "" {
		b := parents.Find(nameCol, name)
		if b == nil {
			return failed(&Selection{Name: name, Source: FromFallback}, "Constituency %q was not found.", name)
		}
		return State{
			Phase:     Selected,
			Selection: &Selection{Code: b.String(codeCol), Name: name, Source: FromFallback},
			Boundary:  b,
		}
	}

	return State{Phase: NoSelection}
}

// FineLoader supplies the fine-grained layer.
type FineLoader interface {
	LoadFine(ctx context.Context) (*geo.Collection, error)
}

// Resolver moves a Selected state to Resolved, Empty or Failed.
type Resolver struct {
	fine FineLoader
	log  *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(fine FineLoader) *Resolver {
	return &Resolver{
		fine: fine,
		log:  zap.L().With(zap.String("component", "drilldown")),
	}
}

// Resolve filters the fine layer to the areas sharing at least one point
// with the selected boundary. States other than Selected are returned as is.
func (r *Resolver) Resolve(ctx context.Context, s State) State {
	if s.Phase != Selected {
		return s
	}
	if s.Boundary == nil || s.Boundary.Geometry == nil {
		return failed(s.Selection, "The selected constituency has no geometry.")
	}

	layer, err := r.fine.LoadFine(ctx)
	if err != nil {
		if le, ok := loader.AsLoadError(err); ok {
			return failed(s.Selection, "%s", le.Advisory())
		}
		return failed(s.Selection, "Could not load the LSOA layer: %v", err)
	}

	subset, err := geo.Filter(layer, s.Boundary.Geometry)
	if err != nil {
		r.log.Warn("spatial filter failed", zap.String("code", s.Selection.Code), zap.Error(err))
		return failed(s.Selection, "Could not compare geometries: %v", err)
	}

	r.log.Debug("drill-down resolved",
		zap.String("code", s.Selection.Code),
		zap.Int("candidates", layer.Len()),
		zap.Int("matched", len(subset)),
	)

	out := s
	if len(subset) == 0 {
		out.Phase = Empty
		out.Subset = nil
		return out
	}
	out.Phase = Resolved
	out.Subset = subset
	return out
}
