// Package election joins constituency boundaries to results and assigns each
// one a party category and display colour.
package election

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/geo"
	"github.com/sells-group/election-map/internal/loader"
)

// JoinedFeature pairs one boundary with at most one result record.
type JoinedFeature struct {
	Boundary *geo.Feature
	// Result is nil when no result row shares the boundary's code.
	Result map[string]string
	// Party is the raw winning-party label shown in tooltips.
	Party    string
	Category string
	Colour   string
}

// Matched reports whether a result row was joined.
func (j JoinedFeature) Matched() bool {
	return j.Result != nil
}

// Field returns a result column value, or "" for unmatched features.
func (j JoinedFeature) Field(col string) string {
	if j.Result == nil {
		return ""
	}
	return j.Result[col]
}

// JoinStats summarizes a join.
type JoinStats struct {
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	// Duplicates counts result rows ignored because an earlier row had the same code.
	Duplicates int `json:"duplicates"`
}

// Join left-joins boundaries to results on boundaryCodeCol = resultsCodeCol.
// The output has one entry per boundary, in boundary order. When several
// result rows share a code the first one wins. Codes are compared trimmed.
func Join(boundaries *geo.Collection, results *loader.Table, boundaryCodeCol, resultsCodeCol string) ([]JoinedFeature, JoinStats) {
	var stats JoinStats

	byCode := make(map[string]int, results.Len())
	for i := 0; i < results.Len(); i++ {
		code := strings.TrimSpace(results.Get(i, resultsCodeCol))
		if code == "" {
			continue
		}
		if _, seen := byCode[code]; seen {
			stats.Duplicates++
			continue
		}
		byCode[code] = i
	}

	out := make([]JoinedFeature, 0, boundaries.Len())
	for _, b := range boundaries.Features {
		jf := JoinedFeature{Boundary: b}
		if row, ok := byCode[b.String(boundaryCodeCol)]; ok {
			jf.Result = results.Record(row)
			stats.Matched++
		} else {
			stats.Unmatched++
		}
		out = append(out, jf)
	}

	if stats.Unmatched > 0 || stats.Duplicates > 0 {
		zap.L().Warn("election: join mismatch",
			zap.String("boundary_code", boundaryCodeCol),
			zap.String("results_code", resultsCodeCol),
			zap.Int("matched", stats.Matched),
			zap.Int("unmatched", stats.Unmatched),
			zap.Int("duplicates", stats.Duplicates),
		)
	}

	return out, stats
}
