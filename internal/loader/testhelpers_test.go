package loader

import (
	"archive/zip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/election-map/internal/fetcher"
)

const constituencyGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"PCON24CD": "E14000001", "PCON24NM": "Alpha"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"PCON24CD": "E14000002", "PCON24NM": "Beta"},
     "geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}}
  ]
}`

func newTestLoader(t *testing.T, policy FailurePolicy) *Loader {
	t.Helper()
	return New(Options{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout:     5 * time.Second,
			MaxRetries:  1,
			BackoffBase: time.Millisecond,
		}),
		TempDir:       t.TempDir(),
		FailurePolicy: policy,
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// countingServer serves handler and counts requests.
func countingServer(t *testing.T, handler func(n int64, w http.ResponseWriter)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler(count.Add(1), w)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

// writeZippedShapefile writes a one-square polygon shapefile and zips its parts.
func writeZippedShapefile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeShapefile(t, dir)
	return zipShapefile(t, dir)
}

// writeShapefile writes lsoa.shp with one square polygon into dir.
func writeShapefile(t *testing.T, dir string) string {
	t.Helper()
	shpPath := filepath.Join(dir, "lsoa.shp")

	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("LSOA21CD", 12)})
	poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{
		{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}},
	}))
	w.Write(&poly)
	require.NoError(t, w.WriteAttribute(0, 0, "E01000001"))
	w.Close()
	return shpPath
}

// zipShapefile zips the lsoa.* parts found in dir.
func zipShapefile(t *testing.T, dir string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "lsoa.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	defer out.Close() //nolint:errcheck

	zw := zip.NewWriter(out)
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		if _, err := os.Stat(filepath.Join(dir, "lsoa"+ext)); os.IsNotExist(err) {
			continue
		}
		src, err := os.Open(filepath.Join(dir, "lsoa"+ext))
		require.NoError(t, err)
		fw, err := zw.Create("lsoa/lsoa" + ext)
		require.NoError(t, err)
		_, err = io.Copy(fw, src)
		require.NoError(t, err)
		require.NoError(t, src.Close())
	}
	require.NoError(t, zw.Close())
	return zipPath
}
