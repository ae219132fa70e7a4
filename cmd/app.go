package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/config"
	"github.com/sells-group/election-map/internal/dashboard"
	"github.com/sells-group/election-map/internal/election"
	"github.com/sells-group/election-map/internal/fetcher"
	"github.com/sells-group/election-map/internal/loader"
	"github.com/sells-group/election-map/internal/registry"
	"github.com/sells-group/election-map/internal/render"
)

// loadRegistry builds the year registry from the built-in table or the
// configured override file, with paths and the drill-down layer applied.
func loadRegistry(c *config.Config) (*registry.Registry, error) {
	reg := registry.Default()
	if c.Data.RegistryFile != "" {
		r, err := registry.LoadFile(c.Data.RegistryFile)
		if err != nil {
			return nil, err
		}
		reg = r
		zap.L().Info("using registry file", zap.String("path", c.Data.RegistryFile), zap.Ints("years", reg.Years()))
	}

	return reg.ResolvePaths(c.Data.ResultsDir).WithFine(registry.FineLayer{
		URL:        c.Data.LSOAURL,
		CodeColumn: c.Data.LSOACodeCol,
		NameColumn: c.Data.LSOANameCol,
	}), nil
}

// buildDashboard wires the registry, loader, palette and renderer.
func buildDashboard(c *config.Config) (*dashboard.Dashboard, error) {
	reg, err := loadRegistry(c)
	if err != nil {
		return nil, err
	}

	policy, err := loader.ParseFailurePolicy(c.Cache.FailurePolicy)
	if err != nil {
		return nil, eris.Wrap(err, "build dashboard")
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: c.Fetch.MaxRetries,
	})

	ld := loader.New(loader.Options{
		Fetcher:       f,
		TempDir:       c.Fetch.TempDir,
		FailurePolicy: policy,
		FineURL:       reg.Fine().URL,
	})

	renderer := render.New(render.Options{
		CenterLat:  c.Map.CenterLat,
		CenterLng:  c.Map.CenterLng,
		Zoom:       c.Map.Zoom,
		DetailZoom: c.Map.DetailZoom,
		TileURL:    c.Map.TileURL,
	})

	return dashboard.New(reg, ld, election.DefaultPalette(), renderer), nil
}
