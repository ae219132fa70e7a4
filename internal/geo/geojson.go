package geo

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

type crsDoc struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

type featureDoc struct {
	ID         json.RawMessage `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type collectionDoc struct {
	Type     string       `json:"type"`
	CRS      *crsDoc      `json:"crs"`
	Features []featureDoc `json:"features"`
}

// DecodeGeoJSON reads a GeoJSON FeatureCollection. Features with a null
// geometry are kept with a nil Geometry.
func DecodeGeoJSON(r io.Reader) (*Collection, error) {
	var doc collectionDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "geo: decode feature collection")
	}
	if doc.Type != "FeatureCollection" {
		return nil, eris.Errorf("geo: expected FeatureCollection, got %q", doc.Type)
	}

	c := &Collection{Features: make([]*Feature, 0, len(doc.Features))}
	if doc.CRS != nil {
		c.CRS = doc.CRS.Properties.Name
	}

	for i, fd := range doc.Features {
		f := &Feature{
			ID:         rawID(fd.ID),
			Properties: fd.Properties,
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		if len(fd.Geometry) > 0 && !bytes.Equal(bytes.TrimSpace(fd.Geometry), []byte("null")) {
			var g geom.T
			if err := geojson.Unmarshal(fd.Geometry, &g); err != nil {
				return nil, eris.Wrapf(err, "geo: decode geometry of feature %d", i)
			}
			f.Geometry = g
		}
		c.Features = append(c.Features, f)
	}

	return c, nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return PropertyString(v)
}

// EncodeFeatureCollection writes features as a GeoJSON FeatureCollection.
// extra is merged over each feature's own properties; features without a
// geometry are skipped.
func EncodeFeatureCollection(features []*Feature, extra func(i int, f *Feature) map[string]any) (json.RawMessage, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(features))}
	for i, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		props := make(map[string]any, len(f.Properties)+4)
		for k, v := range f.Properties {
			props[k] = v
		}
		if extra != nil {
			for k, v := range extra(i, f) {
				props[k] = v
			}
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   f.Geometry,
			Properties: props,
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode feature collection")
	}
	return data, nil
}
