// Package geo holds the boundary feature model, GeoJSON and shapefile decoding,
// and the spatial predicates used by the drill-down view.
package geo

import (
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
)

// SRIDWGS84 is the canonical longitude/latitude reference system.
const SRIDWGS84 = 4326

// Feature is one region boundary with its attribute properties.
type Feature struct {
	ID         string
	Geometry   geom.T
	Properties map[string]any
}

// String returns the named property rendered as text ("" when absent).
func (f *Feature) String(name string) string {
	if f == nil || f.Properties == nil {
		return ""
	}
	return PropertyString(f.Properties[name])
}

// PropertyString renders a decoded GeoJSON property value as text.
// Whole-number floats print without a fractional part.
func PropertyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// Collection is an immutable set of features loaded from one source.
type Collection struct {
	Features []*Feature
	// CRS is the reference system declared by the source before normalization.
	CRS string
}

// Len returns the number of features.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Features)
}

// Find returns the first feature whose property col equals value.
func (c *Collection) Find(col, value string) *Feature {
	if c == nil || value == "" {
		return nil
	}
	for _, f := range c.Features {
		if f.String(col) == value {
			return f
		}
	}
	return nil
}

// HasProperty reports whether any feature carries the named property.
func (c *Collection) HasProperty(name string) bool {
	if c == nil {
		return false
	}
	for _, f := range c.Features {
		if _, ok := f.Properties[name]; ok {
			return true
		}
	}
	return false
}

// Bounds returns the extent of every feature geometry, or nil when there is none.
func (c *Collection) Bounds() *geom.Bounds {
	if c == nil {
		return nil
	}
	var b *geom.Bounds
	for _, f := range c.Features {
		if f.Geometry == nil {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b.Extend(f.Geometry)
	}
	return b
}
