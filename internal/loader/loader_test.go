package loader

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/election-map/internal/geo"
)

func requireKind(t *testing.T, err error, kind Kind) *LoadError {
	t.Helper()
	require.Error(t, err)
	le, ok := AsLoadError(err)
	require.True(t, ok, "expected *LoadError, got %T", err)
	assert.Equal(t, kind, le.Kind)
	return le
}

func TestLoadBoundaries_Remote(t *testing.T) {
	srv, count := countingServer(t, func(_ int64, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(constituencyGeoJSON))
	})
	l := newTestLoader(t, PolicyPermanent)

	c, err := l.LoadBoundaries(context.Background(), srv.URL+"/pcon24.geojson")
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "Alpha", c.Features[0].String("PCON24NM"))
	assert.Equal(t, geo.SRIDWGS84, c.Features[0].Geometry.SRID())

	again, err := l.LoadBoundaries(context.Background(), srv.URL+"/pcon24.geojson")
	require.NoError(t, err)
	assert.Same(t, c, again, "second load is served from cache")
	assert.Equal(t, int64(1), count.Load())
}

func TestLoadBoundaries_NotFoundIsCached(t *testing.T) {
	srv, count := countingServer(t, func(_ int64, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
	})
	l := newTestLoader(t, PolicyPermanent)

	_, err := l.LoadBoundaries(context.Background(), srv.URL)
	le := requireKind(t, err, SourceUnavailable)
	assert.True(t, le.Permanent())
	assert.Contains(t, le.Advisory(), "Could not download boundary data")

	_, err = l.LoadBoundaries(context.Background(), srv.URL)
	requireKind(t, err, SourceUnavailable)
	assert.Equal(t, int64(1), count.Load(), "permanent failure is not refetched")
}

func TestLoadBoundaries_TransientFailureIsRetried(t *testing.T) {
	srv, count := countingServer(t, func(n int64, w http.ResponseWriter) {
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(constituencyGeoJSON))
	})
	l := newTestLoader(t, PolicyPermanent)

	_, err := l.LoadBoundaries(context.Background(), srv.URL)
	le := requireKind(t, err, SourceUnavailable)
	assert.False(t, le.Permanent())

	c, err := l.LoadBoundaries(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), count.Load())
}

func TestLoadBoundaries_PolicyAllCachesTransient(t *testing.T) {
	srv, count := countingServer(t, func(n int64, w http.ResponseWriter) {
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(constituencyGeoJSON))
	})
	l := newTestLoader(t, PolicyAll)

	_, err := l.LoadBoundaries(context.Background(), srv.URL)
	requireKind(t, err, SourceUnavailable)
	_, err = l.LoadBoundaries(context.Background(), srv.URL)
	requireKind(t, err, SourceUnavailable)
	assert.Equal(t, int64(1), count.Load())
}

func TestLoadBoundaries_PolicyNoneRetriesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pcon.geojson")
	l := newTestLoader(t, PolicyNone)

	_, err := l.LoadBoundaries(context.Background(), path)
	requireKind(t, err, FileMissing)

	writeFile(t, dir, "pcon.geojson", constituencyGeoJSON)
	c, err := l.LoadBoundaries(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestLoadBoundaries_MissingFileCachedByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pcon.geojson")
	l := newTestLoader(t, PolicyPermanent)

	_, err := l.LoadBoundaries(context.Background(), path)
	requireKind(t, err, FileMissing)

	writeFile(t, dir, "pcon.geojson", constituencyGeoJSON)
	_, err = l.LoadBoundaries(context.Background(), path)
	requireKind(t, err, FileMissing)
}

func TestLoadBoundaries_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.geojson", `{"type":"FeatureCollection","features":[{`)
	l := newTestLoader(t, PolicyPermanent)

	_, err := l.LoadBoundaries(context.Background(), path)
	le := requireKind(t, err, ParseFailure)
	assert.True(t, le.Permanent())
	assert.Contains(t, le.Advisory(), "bad.geojson")
}

func TestLoadBoundaries_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pcon.kml", "<kml/>")
	_, err := newTestLoader(t, PolicyPermanent).LoadBoundaries(context.Background(), path)
	le := requireKind(t, err, ParseFailure)
	assert.Contains(t, le.Error(), "unsupported boundary format")
}

func TestLoadBoundaries_ZippedShapefile(t *testing.T) {
	zipPath := writeZippedShapefile(t)
	l := newTestLoader(t, PolicyPermanent)

	c, err := l.LoadBoundaries(context.Background(), zipPath)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "E01000001", c.Features[0].String("LSOA21CD"))
	assert.IsType(t, &geom.MultiPolygon{}, c.Features[0].Geometry)
}

func TestLoadBoundaries_ProjectedShapefileRejected(t *testing.T) {
	dir := t.TempDir()
	shpPath := writeShapefile(t, dir)
	prj := `PROJCS["British_National_Grid",GEOGCS["GCS_OSGB_1936",DATUM["D_OSGB_1936"]]]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lsoa.prj"), []byte(prj), 0o644))
	l := newTestLoader(t, PolicyPermanent)

	_, err := l.LoadBoundaries(context.Background(), shpPath)
	le := requireKind(t, err, ParseFailure)
	assert.ErrorIs(t, le, geo.ErrProjectedCRS)

	_, err = l.LoadBoundaries(context.Background(), zipShapefile(t, dir))
	le = requireKind(t, err, ParseFailure)
	assert.Contains(t, le.Advisory(), "British_National_Grid")
}

func TestLoadBoundaries_RemoteZip(t *testing.T) {
	data, err := os.ReadFile(writeZippedShapefile(t))
	require.NoError(t, err)
	srv, _ := countingServer(t, func(_ int64, w http.ResponseWriter) {
		_, _ = w.Write(data)
	})

	c, err := newTestLoader(t, PolicyPermanent).LoadBoundaries(context.Background(), srv.URL+"/lsoa.zip?download=1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestLoadBoundaries_ConcurrentCallersShareOneLoad(t *testing.T) {
	srv, count := countingServer(t, func(_ int64, w http.ResponseWriter) {
		_, _ = w.Write([]byte(constituencyGeoJSON))
	})
	l := newTestLoader(t, PolicyPermanent)

	var wg sync.WaitGroup
	results := make([]*geo.Collection, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := l.LoadBoundaries(context.Background(), srv.URL)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), count.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
}

func TestLoadFine(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lsoa.geojson", constituencyGeoJSON)
	l := New(Options{FineURL: path, TempDir: t.TempDir()})

	c, err := l.LoadFine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = New(Options{}).LoadFine(context.Background())
	requireKind(t, err, FileMissing)
}

func TestLoadResults_CSVNormalizes(t *testing.T) {
	csv := "\ufeffONS ID,Constituency name,First party,Member first name,Member surname,Majority,UUP (as UCUNF)\n" +
		"E14000001, Alpha ,Lab,Ada,Lovelace,12345,0\n" +
		"E14000002,Beta,Con,Charles,Babbage,678,0\n"
	path := writeFile(t, t.TempDir(), "HoC-GE2010-results-by-constituency.csv", csv)

	tbl, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	for _, col := range []string{ColCode, ColParty, ColFirstName, ColSurname, ColVotes, "UUP", "Of which other winner"} {
		assert.True(t, tbl.Has(col), "missing %s", col)
	}
	assert.False(t, tbl.Has("UUP (as UCUNF)"))
	assert.False(t, tbl.Has("ONS ID"))

	assert.Equal(t, "E14000001", tbl.Get(0, ColCode))
	assert.Equal(t, "Alpha", tbl.Get(0, "Constituency name"))
	assert.Equal(t, "Lab", tbl.Get(0, ColParty))
	assert.Equal(t, "12345", tbl.Get(0, ColVotes))
	assert.Equal(t, "0", tbl.Get(1, "Of which other winner"))
}

func TestLoadResults_InjectsDisplayColumns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "results.csv", "ONS ID\nE14000001\n")

	tbl, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "0", tbl.Get(0, ColVotes))
	assert.Equal(t, "", tbl.Get(0, ColParty))
	assert.True(t, tbl.Has(ColSurname))
}

func TestLoadResults_MissingCodeColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "results.csv", "Constituency name,First party\nAlpha,Lab\n")

	_, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), path)
	le := requireKind(t, err, ParseFailure)
	assert.Contains(t, le.Advisory(), "ons_id")
}

func TestLoadResults_FileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HoC-GE2024-results-by-constituency.csv")

	_, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), path)
	le := requireKind(t, err, FileMissing)
	assert.Contains(t, le.Advisory(), "HoC-GE2024-results-by-constituency.csv")
}

func TestLoadResults_EmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "results.csv", "")
	_, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), path)
	requireKind(t, err, ParseFailure)
}

func TestLoadResults_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	require.NoError(t, err)
	for _, data := range [][]string{
		{"ONS ID", "First party", "Majority"},
		{"E14000001", " Lab ", "100"},
	} {
		row := sheet.AddRow()
		for _, cell := range data {
			row.AddCell().SetString(cell)
		}
	}
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, f.Save(path))

	tbl, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Lab", tbl.Get(0, ColParty))
	assert.Equal(t, "100", tbl.Get(0, ColVotes))
}

func TestLoadResults_Cached(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "results.csv", "ONS ID,First party\nE1,Lab\n")
	l := newTestLoader(t, PolicyPermanent)

	first, err := l.LoadResults(context.Background(), path)
	require.NoError(t, err)

	writeFile(t, dir, "results.csv", "ONS ID,First party\nE1,Con\n")
	second, err := l.LoadResults(context.Background(), path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Lab", second.Get(0, ColParty))

	var results CacheStats
	for _, s := range l.Stats() {
		if s.Name == "results" {
			results = s
		}
	}
	assert.Equal(t, 1, results.Entries)
	assert.Equal(t, int64(1), results.Hits)
	assert.Equal(t, int64(1), results.Misses)
	assert.InDelta(t, 0.5, results.HitRate, 1e-9)
}

func TestLoadResults_Remote(t *testing.T) {
	srv, _ := countingServer(t, func(_ int64, w http.ResponseWriter) {
		_, _ = w.Write([]byte("ONS ID,First party\nE1,SNP\n"))
	})

	tbl, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), srv.URL+"/results.csv")
	require.NoError(t, err)
	assert.Equal(t, "SNP", tbl.Get(0, ColParty))
}

func TestLoadResults_RemoteNotFoundAdvisory(t *testing.T) {
	srv, _ := countingServer(t, func(_ int64, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := newTestLoader(t, PolicyPermanent).LoadResults(context.Background(), srv.URL+"/results.csv?v=2")
	le := requireKind(t, err, SourceUnavailable)
	assert.Contains(t, le.Advisory(), "Could not download results data from")
	assert.NotContains(t, le.Advisory(), "boundary")
}
