package election

import (
	"sort"
	"strings"

	"github.com/sells-group/election-map/internal/geo"
	"github.com/sells-group/election-map/internal/loader"
)

// Sentinel category and colour for absent or unrecognized party labels.
const (
	DefaultCategory = "Others"
	DefaultColour   = "#808080"
)

// Entry is one palette row.
type Entry struct {
	Label  string `json:"label"`
	Colour string `json:"colour"`
}

// Palette maps party labels to colours. It is read-only after construction.
type Palette struct {
	entries []Entry
	colours map[string]string
}

var defaultEntries = []Entry{
	{"Lab", "#E4003B"},
	{"Con", "#0087DC"},
	{"LD", "#FAA61A"},
	{"SNP", "#FDF000"},
	{"Reform", "#12B6CF"},
	{"Green", "#6AB023"},
	{"PC", "#008142"},
	{"DUP", "#D46A4C"},
	{"SF", "#326760"},
	{"Alliance", "#F6CB2F"},
	{"Speaker", "#808080"},
	{DefaultCategory, DefaultColour},
	{"UKIP", "#70147A"},
	{"BRX", "#12B6CF"},
	{"KHHC", "#008080"},
}

// NewPalette builds a palette. A later entry for a label replaces an earlier one.
func NewPalette(entries ...Entry) *Palette {
	p := &Palette{colours: make(map[string]string, len(entries))}
	for _, e := range entries {
		if _, ok := p.colours[e.Label]; !ok {
			p.entries = append(p.entries, e)
		} else {
			for i := range p.entries {
				if p.entries[i].Label == e.Label {
					p.entries[i] = e
				}
			}
		}
		p.colours[e.Label] = e.Colour
	}
	return p
}

// DefaultPalette returns the party colours used on the results map.
func DefaultPalette() *Palette {
	return NewPalette(defaultEntries...)
}

// Lookup returns the colour for label.
func (p *Palette) Lookup(label string) (string, bool) {
	c, ok := p.colours[label]
	return c, ok
}

// Entries returns a copy of the palette in declaration order.
func (p *Palette) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Categorize resolves a party label to its display category and colour.
// Absent and unmapped labels fall into the sentinel category.
func (p *Palette) Categorize(label string) (string, string) {
	label = strings.TrimSpace(label)
	if c, ok := p.colours[label]; ok && label != "" {
		return label, c
	}
	if c, ok := p.colours[DefaultCategory]; ok {
		return DefaultCategory, c
	}
	return DefaultCategory, DefaultColour
}

// Colourize sets Party, Category and Colour on every feature from the
// partyCol result field. Unmatched features are labelled with the sentinel.
func (p *Palette) Colourize(features []JoinedFeature, partyCol string) {
	for i := range features {
		label := strings.TrimSpace(features[i].Field(partyCol))
		if label == "" {
			label = DefaultCategory
		}
		features[i].Party = label
		features[i].Category, features[i].Colour = p.Categorize(label)
	}
}

// JoinAndColourize runs Join then Colourize on the canonical party column.
func JoinAndColourize(p *Palette, boundaries *geo.Collection, results *loader.Table, boundaryCodeCol string) ([]JoinedFeature, JoinStats) {
	joined, stats := Join(boundaries, results, boundaryCodeCol, loader.ColCode)
	p.Colourize(joined, loader.ColParty)
	return joined, stats
}

// LegendEntry is one category on the seat-count legend.
type LegendEntry struct {
	Category string `json:"category"`
	Colour   string `json:"colour"`
	Seats    int    `json:"seats"`
}

// Legend counts features per category, most seats first.
func Legend(features []JoinedFeature) []LegendEntry {
	idx := make(map[string]int)
	var out []LegendEntry
	for _, f := range features {
		i, ok := idx[f.Category]
		if !ok {
			i = len(out)
			idx[f.Category] = i
			out = append(out, LegendEntry{Category: f.Category, Colour: f.Colour})
		}
		out[i].Seats++
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Seats != out[b].Seats {
			return out[a].Seats > out[b].Seats
		}
		return out[a].Category < out[b].Category
	})
	return out
}
