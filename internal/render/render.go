// Package render turns joined constituencies and drill-down subsets into map
// descriptions the web page draws with Leaflet.
package render

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/election-map/internal/election"
	"github.com/sells-group/election-map/internal/geo"
	"github.com/sells-group/election-map/internal/loader"
)

// StyleProperty is the feature property that carries each feature's Style.
const StyleProperty = "style"

// Style is a Leaflet path style.
type Style struct {
	FillColor   string  `json:"fillColor,omitempty"`
	Color       string  `json:"color,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Fields lists the feature properties a tooltip or popup shows, in order,
// with their display aliases.
type Fields struct {
	Names   []string `json:"fields"`
	Aliases []string `json:"aliases"`
	Sticky  bool     `json:"sticky"`
}

// Layer is one GeoJSON overlay.
type Layer struct {
	Name      string          `json:"name"`
	Features  json.RawMessage `json:"features"`
	Count     int             `json:"count"`
	Style     Style           `json:"style"`
	Tooltip   *Fields         `json:"tooltip,omitempty"`
	Popup     *Fields         `json:"popup,omitempty"`
	Highlight *Style          `json:"highlight,omitempty"`
	// Clickable layers report the clicked feature's properties back to the server.
	Clickable bool `json:"clickable"`
}

// Map is a complete map widget description.
type Map struct {
	Center [2]float64 `json:"center"`
	Zoom   int        `json:"zoom"`
	// Bounds is south, west, north, east.
	Bounds       *[4]float64 `json:"bounds,omitempty"`
	TileURL      string      `json:"tile_url"`
	Layers       []Layer     `json:"layers"`
	LayerControl bool        `json:"layer_control"`
}

// Options holds the viewport settings.
type Options struct {
	CenterLat  float64
	CenterLng  float64
	Zoom       int
	DetailZoom int
	TileURL    string
}

// DefaultOptions centres the map on Great Britain.
func DefaultOptions() Options {
	return Options{
		CenterLat:  54.5,
		CenterLng:  -2.5,
		Zoom:       6,
		DetailZoom: 10,
		TileURL:    "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	}
}

// Renderer builds Maps. It is safe for concurrent use.
type Renderer struct {
	opts    Options
	printer *message.Printer
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Zoom == 0 {
		opts.Zoom = def.Zoom
	}
	if opts.DetailZoom == 0 {
		opts.DetailZoom = def.DetailZoom
	}
	if opts.TileURL == "" {
		opts.TileURL = def.TileURL
	}
	if opts.CenterLat == 0 && opts.CenterLng == 0 {
		opts.CenterLat, opts.CenterLng = def.CenterLat, def.CenterLng
	}
	return &Renderer{
		opts:    opts,
		printer: message.NewPrinter(language.BritishEnglish),
	}
}

var (
	electionStyle = Style{Color: "black", Weight: 0.5, FillOpacity: 0.7}
	pickerStyle   = Style{FillColor: "#3186cc", Color: "#333333", Weight: 1, FillOpacity: 0.2}
	pickerHover   = Style{Color: "#666666", Weight: 3, FillOpacity: 0.4}
	boundaryStyle = Style{FillColor: "#000000", Color: "#000000", Weight: 2, FillOpacity: 0.05}
	lsoaStyle     = Style{FillColor: "#444444", Color: "#444444", Weight: 0.6, FillOpacity: 0.2}
)

// RenderElection draws every joined constituency filled with its party colour.
func (r *Renderer) RenderElection(joined []election.JoinedFeature, nameCol string) (*Map, error) {
	features := make([]*geo.Feature, len(joined))
	for i := range joined {
		features[i] = joined[i].Boundary
	}

	data, err := geo.EncodeFeatureCollection(features, func(i int, _ *geo.Feature) map[string]any {
		jf := joined[i]
		style := electionStyle
		style.FillColor = jf.Colour
		return map[string]any{
			StyleProperty:       style,
			loader.ColParty:     jf.Party,
			loader.ColFirstName: jf.Field(loader.ColFirstName),
			loader.ColSurname:   jf.Field(loader.ColSurname),
			loader.ColVotes:     r.FormatVotes(jf.Field(loader.ColVotes)),
			"category":          jf.Category,
		}
	})
	if err != nil {
		return nil, eris.Wrap(err, "render: election layer")
	}

	tooltip := &Fields{
		Names:   []string{nameCol, loader.ColParty, loader.ColFirstName, loader.ColSurname, loader.ColVotes},
		Aliases: []string{"Constituency:", "Winning Party:", "First Name:", "Surname:", "Majority Votes:"},
		Sticky:  true,
	}

	return &Map{
		Center:  [2]float64{r.opts.CenterLat, r.opts.CenterLng},
		Zoom:    r.opts.Zoom,
		TileURL: r.opts.TileURL,
		Layers: []Layer{{
			Name:     "Election results",
			Features: data,
			Count:    countDrawn(features),
			Style:    electionStyle,
			Tooltip:  tooltip,
		}},
	}, nil
}

// RenderPicker draws the clickable constituency layer of the drill-down view.
func (r *Renderer) RenderPicker(parents *geo.Collection, nameCol, codeCol string) (*Map, error) {
	var features []*geo.Feature
	if parents != nil {
		features = parents.Features
	}

	data, err := geo.EncodeFeatureCollection(features, func(int, *geo.Feature) map[string]any {
		return map[string]any{StyleProperty: pickerStyle}
	})
	if err != nil {
		return nil, eris.Wrap(err, "render: picker layer")
	}

	fields := Fields{
		Names:   []string{nameCol, codeCol},
		Aliases: []string{"Constituency:", "Code:"},
	}
	tooltip := fields
	highlight := pickerHover

	return &Map{
		Center:  [2]float64{r.opts.CenterLat, r.opts.CenterLng},
		Zoom:    r.opts.Zoom,
		TileURL: r.opts.TileURL,
		Layers: []Layer{{
			Name:      "Constituencies",
			Features:  data,
			Count:     countDrawn(features),
			Style:     pickerStyle,
			Tooltip:   &tooltip,
			Popup:     &fields,
			Highlight: &highlight,
			Clickable: true,
		}},
	}, nil
}

// RenderDetail draws the selected constituency outline with the LSOAs that
// intersect it, centred on the selection.
func (r *Renderer) RenderDetail(selected *geo.Feature, subset []*geo.Feature, fineCodeCol, fineNameCol string) (*Map, error) {
	if selected == nil || selected.Geometry == nil {
		return nil, eris.New("render: detail map needs a selected boundary")
	}

	outline, err := geo.EncodeFeatureCollection([]*geo.Feature{selected}, func(int, *geo.Feature) map[string]any {
		return map[string]any{StyleProperty: boundaryStyle}
	})
	if err != nil {
		return nil, eris.Wrap(err, "render: boundary layer")
	}

	lsoas, err := geo.EncodeFeatureCollection(subset, func(int, *geo.Feature) map[string]any {
		return map[string]any{StyleProperty: lsoaStyle}
	})
	if err != nil {
		return nil, eris.Wrap(err, "render: lsoa layer")
	}

	lsoaLayer := Layer{
		Name:     "LSOAs",
		Features: lsoas,
		Count:    countDrawn(subset),
		Style:    lsoaStyle,
	}
	if fields := presentFields(subset, []string{fineCodeCol, fineNameCol}, []string{"LSOA Code:", "LSOA Name:"}); fields != nil {
		tooltip := *fields
		tooltip.Sticky = true
		lsoaLayer.Tooltip = &tooltip
		lsoaLayer.Popup = fields
	}

	lat, lng := geo.Center(selected.Geometry)
	b := selected.Geometry.Bounds()
	bounds := [4]float64{b.Min(1), b.Min(0), b.Max(1), b.Max(0)}

	return &Map{
		Center:  [2]float64{lat, lng},
		Zoom:    r.opts.DetailZoom,
		Bounds:  &bounds,
		TileURL: r.opts.TileURL,
		Layers: []Layer{
			{Name: "Constituency boundary", Features: outline, Count: 1, Style: boundaryStyle},
			lsoaLayer,
		},
		LayerControl: true,
	}, nil
}

// FormatVotes renders a majority with en-GB digit grouping. Non-numeric
// values are returned unchanged.
func (r *Renderer) FormatVotes(v string) string {
	s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if s == "" {
		return ""
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return r.printer.Sprintf("%d", n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return r.printer.Sprintf("%d", int64(f))
	}
	return v
}

// FormatCount renders an integer with en-GB digit grouping.
func (r *Renderer) FormatCount(n int) string {
	return r.printer.Sprintf("%d", n)
}

// presentFields keeps the names (and matching aliases) some feature carries.
func presentFields(features []*geo.Feature, names, aliases []string) *Fields {
	c := &geo.Collection{Features: features}
	out := &Fields{}
	for i, name := range names {
		if name != "" && c.HasProperty(name) {
			out.Names = append(out.Names, name)
			out.Aliases = append(out.Aliases, aliases[i])
		}
	}
	if len(out.Names) == 0 {
		return nil
	}
	return out
}

func countDrawn(features []*geo.Feature) int {
	var n int
	for _, f := range features {
		if f != nil && f.Geometry != nil {
			n++
		}
	}
	return n
}
