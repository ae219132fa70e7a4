package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/dashboard"
	"github.com/sells-group/election-map/internal/registry"
)

var (
	renderView string
	renderYear int
	renderCode string
	renderName string
	renderOut  string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Compute one render plan and write it as JSON",
	Long:  "Runs a single rendering pass without the web server. --code selects a constituency as if it had been clicked; --name uses the fallback selector.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("render"); err != nil {
			return err
		}

		d, err := buildDashboard(cfg)
		if err != nil {
			return err
		}

		req, err := renderRequest(d.Registry(), renderView, renderYear, renderCode, renderName)
		if err != nil {
			return err
		}

		plan := d.Handle(cmd.Context(), req)
		for _, a := range plan.Advisories {
			zap.L().Info("advisory", zap.String("level", string(a.Level)), zap.String("message", a.Message))
		}

		if renderOut == "" || renderOut == "-" {
			return writePlan(cmd.OutOrStdout(), plan)
		}
		return writePlanFile(renderOut, plan)
	},
}

// writePlanFile writes plan to path. A failed close is reported because it
// can mean the file was not fully written.
func writePlanFile(path string, plan *dashboard.Plan) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "render: create output")
	}
	if err := writePlan(f, plan); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "render: close output")
	}
	return nil
}

// renderRequest turns the command flags into a dashboard request. A code is
// keyed by the year's code column, the same shape a map click produces.
func renderRequest(reg *registry.Registry, view string, year int, code, name string) (dashboard.Request, error) {
	req := dashboard.Request{View: dashboard.View(view), Year: year}
	if !req.View.Valid() {
		return req, eris.Errorf("render: --view must be election or constituency, got %q", view)
	}
	if req.Year == 0 {
		req.Year = reg.DefaultYear()
	}
	ds, err := reg.Lookup(req.Year)
	if err != nil {
		return req, err
	}
	if code != "" {
		req.Click = map[string]any{ds.CodeColumn: code}
	}
	if name != "" {
		req.Fallback = name
		req.UseFallback = true
	}
	return req, nil
}

func writePlan(w io.Writer, plan *dashboard.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return eris.Wrap(err, "render: encode plan")
	}
	return nil
}

func init() {
	renderCmd.Flags().StringVar(&renderView, "view", "election", "view to render: election or constituency")
	renderCmd.Flags().IntVar(&renderYear, "year", 0, "election year (default: newest registered)")
	renderCmd.Flags().StringVar(&renderCode, "code", "", "constituency code to drill into")
	renderCmd.Flags().StringVar(&renderName, "name", "", "constituency name to drill into via the fallback selector")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(renderCmd)
}
