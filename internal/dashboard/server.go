package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/election-map/internal/render"
)

// Routes returns the HTTP handler for the dashboard page and API.
func (d *Dashboard) Routes(allowedOrigins []string) chi.Router {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", d.handlePage)
	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/years", d.handleYears)
		r.Get("/plan", d.handleGetPlan)
		r.Post("/plan", d.handlePostPlan)
		r.Get("/constituencies", d.handleConstituencies)
		r.Get("/stats", d.handleStats)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Dashboard) handlePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := render.Page(w, render.PageData{
		Years:       d.reg.Years(),
		DefaultYear: d.reg.DefaultYear(),
	})
	if err != nil {
		zap.L().Error("dashboard: render page", zap.Error(err))
	}
}

func (d *Dashboard) handleYears(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"years":   d.reg.Years(),
		"default": d.reg.DefaultYear(),
	})
}

func (d *Dashboard) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	year, err := d.reg.ParseYear(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := Request{View: View(r.URL.Query().Get("view")), Year: year}
	d.servePlan(w, r, req)
}

func (d *Dashboard) handlePostPlan(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Year != 0 {
		if _, err := d.reg.Lookup(req.Year); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	d.servePlan(w, r, req)
}

func (d *Dashboard) servePlan(w http.ResponseWriter, r *http.Request, req Request) {
	if req.View != "" && !req.View.Valid() {
		writeError(w, http.StatusBadRequest, "view must be election or constituency")
		return
	}
	writeJSON(w, http.StatusOK, d.Handle(r.Context(), req))
}

func (d *Dashboard) handleConstituencies(w http.ResponseWriter, r *http.Request) {
	year, err := d.reg.ParseYear(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	names, err := d.Constituencies(r.Context(), year, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load constituency layer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":           year,
		"constituencies": names,
	})
}

func (d *Dashboard) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, d.Stats())
}
