package dashboard

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/election-map/internal/geo"
)

// sortedNames returns the distinct non-empty values of nameCol in en-GB
// collation order ("Ynys Môn" sorts with "Ynys Mon").
func sortedNames(c *geo.Collection, nameCol string) []string {
	seen := make(map[string]bool, c.Len())
	names := make([]string, 0, c.Len())
	for _, f := range c.Features {
		n := f.String(nameCol)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	collate.New(language.BritishEnglish, collate.IgnoreCase).SortStrings(names)
	return names
}

// foldName lowercases s and strips diacritics for matching.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// filterNames keeps the names containing q, ignoring case and accents.
func filterNames(names []string, q string) []string {
	fq := foldName(q)
	if fq == "" {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.Contains(foldName(n), fq) {
			out = append(out, n)
		}
	}
	return out
}

// Constituencies returns the sorted constituency names for year matching q.
func (d *Dashboard) Constituencies(ctx context.Context, year int, q string) ([]string, error) {
	ds, err := d.reg.Lookup(year)
	if err != nil {
		return nil, err
	}
	parents, err := d.data.LoadBoundaries(ctx, ds.BoundaryURL)
	if err != nil {
		return nil, err
	}
	return filterNames(sortedNames(parents, ds.NameColumn), q), nil
}
