package geo

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ErrProjectedCRS is returned for sources in a projected CRS such as British
// National Grid. Their coordinates are not longitude/latitude, so relabelling
// them would misplace every feature.
var ErrProjectedCRS = eris.New("geo: projected CRS not supported")

// wgs84Names are CRS identifiers that already denote WGS-84 longitude/latitude.
var wgs84Names = []string{
	"epsg:4326",
	"urn:ogc:def:crs:epsg::4326",
	"urn:ogc:def:crs:ogc:1.3:crs84",
	"ogc:crs84",
	"crs84",
	"wgs84",
	"wgs_1984",
}

// IsWGS84 reports whether a declared CRS name denotes WGS-84.
func IsWGS84(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, w := range wgs84Names {
		if n == w || strings.HasSuffix(n, w) {
			return true
		}
	}
	return false
}

// NormalizeCRS labels every geometry with SRID 4326. An absent or different
// declared CRS is overridden, not reprojected.
func NormalizeCRS(c *Collection, source string) {
	if c == nil {
		return
	}
	if c.CRS != "" && !IsWGS84(c.CRS) {
		zap.L().Warn("geo: overriding declared CRS with EPSG:4326",
			zap.String("source", source),
			zap.String("declared", c.CRS),
		)
	}
	for _, f := range c.Features {
		f.Geometry = withSRID(f.Geometry, SRIDWGS84)
	}
}

func withSRID(g geom.T, srid int) geom.T {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.SetSRID(srid)
	case *geom.MultiPolygon:
		return t.SetSRID(srid)
	case *geom.Point:
		return t.SetSRID(srid)
	case *geom.MultiPoint:
		return t.SetSRID(srid)
	case *geom.LineString:
		return t.SetSRID(srid)
	case *geom.MultiLineString:
		return t.SetSRID(srid)
	default:
		return g
	}
}
