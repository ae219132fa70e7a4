package geo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ReadShapefile reads every record of a shapefile into a Collection. The
// attribute table becomes feature properties; the sibling .prj, when present,
// supplies the declared CRS. A projected .prj is rejected with ErrProjectedCRS.
func ReadShapefile(shpPath string) (*Collection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	crs, projected := readPRJ(shpPath)
	if projected {
		return nil, eris.Wrapf(ErrProjectedCRS, "%s declares %s", filepath.Base(shpPath), crs)
	}
	c := &Collection{CRS: crs}
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		g := shapeToGeom(shape)
		if g == nil {
			skipped++
		}
		c.Features = append(c.Features, &Feature{
			ID:         PropertyString(n),
			Geometry:   g,
			Properties: props,
		})
	}

	if skipped > 0 {
		zap.L().Debug("geo: shapefile records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	return c, nil
}

// readPRJ returns the name of the CRS declared in the .prj next to shpPath
// and whether it is a projected system.
func readPRJ(shpPath string) (string, bool) {
	data, err := os.ReadFile(strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj")
	if err != nil {
		return "", false
	}
	wkt := strings.TrimSpace(string(data))
	projected := strings.HasPrefix(wkt, "PROJCS")
	if strings.HasPrefix(wkt, "GEOGCS") && strings.Contains(wkt, "WGS_1984") {
		return "EPSG:4326", false
	}
	// PROJCS["British_National_Grid",...] -> British_National_Grid
	if open := strings.Index(wkt, `["`); open >= 0 {
		rest := wkt[open+2:]
		if end := strings.Index(rest, `"`); end >= 0 {
			return rest[:end], projected
		}
	}
	return wkt, projected
}

// shapeToGeom converts a go-shp shape to a go-geom geometry.
// Returns nil for unsupported or empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.Polygon:
		return polygonToMultiPolygon(s)
	default:
		return nil
	}
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of
// the polygon before them.
func polygonToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if isHole(flat) && current != nil {
			if err := current.Push(ring); err != nil {
				zap.L().Debug("geo: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
			}
			continue
		}

		flush()
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			current = nil
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// isHole reports whether a shapefile ring is an inner ring. Outer rings are
// clockwise, holes counter-clockwise.
func isHole(flat []float64) bool {
	return xy.IsRingCounterClockwise(geom.XY, flat)
}
