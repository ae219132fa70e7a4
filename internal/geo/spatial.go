package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"
)

// ErrUnsupportedGeometry is returned for geometry types the predicates do not handle.
var ErrUnsupportedGeometry = eris.New("geo: unsupported geometry type")

// Intersects reports whether a and b share at least one point. Boundaries
// count: polygons that only touch along an edge or at a vertex intersect.
// Polygons, multipolygons and points are supported.
func Intersects(a, b geom.T) (bool, error) {
	if a == nil || b == nil {
		return false, nil
	}
	pa, ptsA, err := parts(a)
	if err != nil {
		return false, err
	}
	pb, ptsB, err := parts(b)
	if err != nil {
		return false, err
	}

	if !a.Bounds().Overlaps(geom.XY, b.Bounds()) {
		return false, nil
	}

	for _, p := range pa {
		for _, q := range pb {
			if polygonsIntersect(p, q) {
				return true, nil
			}
		}
		for _, c := range ptsB {
			if polygonContains(p, c) {
				return true, nil
			}
		}
	}
	for _, c := range ptsA {
		for _, q := range pb {
			if polygonContains(q, c) {
				return true, nil
			}
		}
		for _, d := range ptsB {
			if c[0] == d[0] && c[1] == d[1] {
				return true, nil
			}
		}
	}
	return false, nil
}

// Filter returns the features of c whose geometry intersects g, in order.
func Filter(c *Collection, g geom.T) ([]*Feature, error) {
	if c == nil {
		return nil, nil
	}
	var out []*Feature
	for _, f := range c.Features {
		ok, err := Intersects(f.Geometry, g)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: intersects feature %s", f.ID)
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Center returns the midpoint of g's bounding box as (lat, lng).
func Center(g geom.T) (float64, float64) {
	if g == nil {
		return 0, 0
	}
	b := g.Bounds()
	return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2
}

func parts(g geom.T) ([]*geom.Polygon, []geom.Coord, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}, nil, nil
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys = append(polys, t.Polygon(i))
		}
		return polys, nil, nil
	case *geom.Point:
		return nil, []geom.Coord{t.Coords()}, nil
	case *geom.MultiPoint:
		pts := make([]geom.Coord, 0, t.NumPoints())
		for i := 0; i < t.NumPoints(); i++ {
			pts = append(pts, t.Point(i).Coords())
		}
		return nil, pts, nil
	default:
		return nil, nil, eris.Wrapf(ErrUnsupportedGeometry, "%T", g)
	}
}

func polygonsIntersect(p, q *geom.Polygon) bool {
	if p.NumLinearRings() == 0 || q.NumLinearRings() == 0 {
		return false
	}
	if !p.Bounds().Overlaps(geom.XY, q.Bounds()) {
		return false
	}

	// Any boundary crossing or touch.
	for i := 0; i < p.NumLinearRings(); i++ {
		pr := p.LinearRing(i)
		for j := 0; j < q.NumLinearRings(); j++ {
			if ringsCross(pr.FlatCoords(), pr.Stride(), q.LinearRing(j).FlatCoords(), q.LinearRing(j).Stride()) {
				return true
			}
		}
	}

	// No boundary contact: one lies wholly inside the other, or they are disjoint.
	return polygonContains(q, p.LinearRing(0).Coord(0)) || polygonContains(p, q.LinearRing(0).Coord(0))
}

// polygonContains is boundary-inclusive and hole-aware.
func polygonContains(p *geom.Polygon, c geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	layout := p.Layout()
	if xy.LocatePointInRing(layout, c, p.LinearRing(0).FlatCoords()) == location.Exterior {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.LocatePointInRing(layout, c, p.LinearRing(i).FlatCoords()) == location.Interior {
			return false
		}
	}
	return true
}

// ringsCross reports whether any segment of ring a touches or crosses any
// segment of ring b.
func ringsCross(a []float64, sa int, b []float64, sb int) bool {
	strategy := lineintersector.RobustLineIntersector{}
	for i := sa; i < len(a); i += sa {
		a1, a2 := geom.Coord(a[i-sa:i-sa+2]), geom.Coord(a[i:i+2])
		for j := sb; j < len(b); j += sb {
			res := lineintersector.LineIntersectsLine(strategy, a1, a2, geom.Coord(b[j-sb:j-sb+2]), geom.Coord(b[j:j+2]))
			if res.HasIntersection() {
				return true
			}
		}
	}
	return false
}
