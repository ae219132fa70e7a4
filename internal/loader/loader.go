// Package loader reads boundary and results datasets into memory, normalizes
// their schema and caches every outcome per input.
package loader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/fetcher"
	"github.com/sells-group/election-map/internal/geo"
)

// Options configures a Loader.
type Options struct {
	Fetcher       fetcher.Fetcher
	TempDir       string
	FailurePolicy FailurePolicy
	// FineURL locates the fine-grained drill-down layer.
	FineURL string
}

// Loader loads datasets through per-operation caches.
type Loader struct {
	fetch      fetcher.Fetcher
	tempDir    string
	fineURL    string
	boundaries *Cache[*geo.Collection]
	results    *Cache[*Table]
	log        *zap.Logger
}

// New creates a Loader.
func New(opts Options) *Loader {
	if opts.Fetcher == nil {
		opts.Fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Loader{
		fetch:      opts.Fetcher,
		tempDir:    opts.TempDir,
		fineURL:    opts.FineURL,
		boundaries: NewCache[*geo.Collection]("boundaries", opts.FailurePolicy),
		results:    NewCache[*Table]("results", opts.FailurePolicy),
		log:        zap.L().With(zap.String("component", "loader")),
	}
}

// LoadBoundaries returns the region collection at source: an http(s) URL of
// a GeoJSON document or ZIP'd shapefile, or a local .geojson, .json, .shp or
// .zip file. The outcome is cached per source.
func (l *Loader) LoadBoundaries(ctx context.Context, source string) (*geo.Collection, error) {
	return l.boundaries.Get(ctx, source, func(ctx context.Context) (*geo.Collection, error) {
		c, err := l.loadBoundaries(ctx, source)
		if err != nil {
			l.log.Warn("boundary load failed", zap.String("source", source), zap.Error(err))
			return nil, err
		}
		geo.NormalizeCRS(c, source)
		if c.Len() == 0 {
			l.log.Warn("boundary source has no features", zap.String("source", source))
		}
		l.log.Info("boundaries loaded", zap.String("source", source), zap.Int("features", c.Len()))
		return c, nil
	})
}

// LoadFine returns the fine-grained drill-down layer.
func (l *Loader) LoadFine(ctx context.Context) (*geo.Collection, error) {
	if l.fineURL == "" {
		return nil, newError(FileMissing, "fine layer", eris.New("no fine-grained layer configured"))
	}
	return l.LoadBoundaries(ctx, l.fineURL)
}

// LoadResults returns the normalized results table at path (.csv or .xlsx).
// The outcome is cached per path.
func (l *Loader) LoadResults(ctx context.Context, path string) (*Table, error) {
	return l.results.Get(ctx, path, func(ctx context.Context) (*Table, error) {
		t, err := l.loadResults(ctx, path)
		if err != nil {
			l.log.Warn("results load failed", zap.String("path", path), zap.Error(err))
			return nil, err
		}
		l.log.Info("results loaded", zap.String("path", path), zap.Int("rows", t.Len()))
		return t, nil
	})
}

// Stats returns statistics for every cache.
func (l *Loader) Stats() []CacheStats {
	return []CacheStats{l.boundaries.Stats(), l.results.Stats()}
}

func (l *Loader) loadBoundaries(ctx context.Context, source string) (*geo.Collection, error) {
	if isRemote(source) {
		return l.loadRemoteBoundaries(ctx, source)
	}

	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return nil, newError(FileMissing, source, err)
		}
		return nil, newError(ParseFailure, source, err)
	}

	switch ext := strings.ToLower(filepath.Ext(source)); ext {
	case ".geojson", ".json":
		f, err := os.Open(source)
		if err != nil {
			return nil, newError(FileMissing, source, err)
		}
		defer f.Close() //nolint:errcheck
		return decodeGeoJSON(f, source)
	case ".shp":
		c, err := geo.ReadShapefile(source)
		if err != nil {
			return nil, newError(ParseFailure, source, err)
		}
		return c, nil
	case ".zip":
		return l.readZippedShapefile(source, source)
	default:
		return nil, newError(ParseFailure, source, eris.Errorf("unsupported boundary format %q", ext))
	}
}

func (l *Loader) loadRemoteBoundaries(ctx context.Context, url string) (*geo.Collection, error) {
	if strings.EqualFold(filepath.Ext(urlPath(url)), ".zip") {
		if err := os.MkdirAll(l.tempDir, 0o755); err != nil {
			return nil, newError(SourceUnavailable, url, eris.Wrap(err, "create temp dir"))
		}
		tmp, err := os.CreateTemp(l.tempDir, "boundaries-*.zip")
		if err != nil {
			return nil, newError(SourceUnavailable, url, eris.Wrap(err, "create temp file"))
		}
		_ = tmp.Close()
		defer os.Remove(tmp.Name()) //nolint:errcheck

		if _, err := l.fetch.DownloadToFile(ctx, url, tmp.Name()); err != nil {
			return nil, newError(SourceUnavailable, url, err)
		}
		return l.readZippedShapefile(tmp.Name(), url)
	}

	body, err := l.fetch.Download(ctx, url)
	if err != nil {
		return nil, newError(SourceUnavailable, url, err)
	}
	defer body.Close() //nolint:errcheck
	return decodeGeoJSON(body, url)
}

func (l *Loader) readZippedShapefile(zipPath, source string) (*geo.Collection, error) {
	if err := os.MkdirAll(l.tempDir, 0o755); err != nil {
		return nil, newError(ParseFailure, source, eris.Wrap(err, "create temp dir"))
	}
	dir, err := os.MkdirTemp(l.tempDir, "shp-*")
	if err != nil {
		return nil, newError(ParseFailure, source, eris.Wrap(err, "create extract dir"))
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	if _, err := fetcher.ExtractZIP(zipPath, dir); err != nil {
		return nil, newError(ParseFailure, source, err)
	}
	shpPath, err := fetcher.FindFileByExt(dir, ".shp")
	if err != nil {
		return nil, newError(ParseFailure, source, err)
	}
	c, err := geo.ReadShapefile(shpPath)
	if err != nil {
		return nil, newError(ParseFailure, source, err)
	}
	return c, nil
}

func decodeGeoJSON(r io.Reader, source string) (*geo.Collection, error) {
	c, err := geo.DecodeGeoJSON(r)
	if err != nil {
		// A body cut off mid-transfer is a transfer problem, not bad content.
		if isRemote(source) && isTruncated(err) {
			return nil, newError(SourceUnavailable, source, err)
		}
		return nil, newError(ParseFailure, source, err)
	}
	return c, nil
}

func (l *Loader) loadResults(ctx context.Context, path string) (*Table, error) {
	var (
		rows [][]string
		err  error
	)

	if isRemote(path) {
		body, derr := l.fetch.Download(ctx, path)
		if derr != nil {
			return nil, newError(SourceUnavailable, path, derr)
		}
		defer body.Close() //nolint:errcheck
		rows, err = fetcher.ReadCSV(ctx, body, fetcher.CSVOptions{TrimSpace: true})
	} else {
		if _, serr := os.Stat(path); serr != nil {
			if os.IsNotExist(serr) {
				return nil, newError(FileMissing, path, serr)
			}
			return nil, newError(ParseFailure, path, serr)
		}

		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".csv":
			f, oerr := os.Open(path)
			if oerr != nil {
				return nil, newError(FileMissing, path, oerr)
			}
			defer f.Close() //nolint:errcheck
			rows, err = fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})
		case ".xlsx":
			rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
			rows = trimCells(rows)
		default:
			return nil, newError(ParseFailure, path, eris.Errorf("unsupported results format %q", ext))
		}
	}
	if err != nil {
		return nil, newError(ParseFailure, path, err)
	}
	if len(rows) == 0 {
		return nil, newError(ParseFailure, path, eris.New("no header row"))
	}

	t := NewTable(rows[0], rows[1:])
	if err := NormalizeResults(t); err != nil {
		return nil, newError(ParseFailure, path, err)
	}
	return t, nil
}

func trimCells(rows [][]string) [][]string {
	for _, r := range rows {
		for i := range r {
			r[i] = strings.TrimSpace(r[i])
		}
	}
	return rows
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func urlPath(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

func isTruncated(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unexpected eof")
}
