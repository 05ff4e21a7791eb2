package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/gbfs-cli/internal/export"
	"github.com/sells-group/gbfs-cli/internal/gbfs"
	"github.com/sells-group/gbfs-cli/internal/geo"
	"github.com/sells-group/gbfs-cli/internal/model"
)

// Options configures the router.
type Options struct {
	CORSOrigins []string
}

type systemView struct {
	model.SystemMeta
	Ready     bool       `json:"ready"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Stations  int        `json:"stations"`
}

type stationsView struct {
	System    model.SystemMeta `json:"system"`
	UpdatedAt time.Time        `json:"updated_at"`
	Count     int              `json:"count"`
	Stations  []model.Station  `json:"stations"`
}

// NewRouter returns the HTTP handler for reg.
func NewRouter(reg *Registry, opts Options) http.Handler {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &handlers{reg: reg}
	r.Get("/health", h.health)
	r.Route("/systems", func(r chi.Router) {
		r.Get("/", h.listSystems)
		r.Route("/{tag}", func(r chi.Router) {
			r.Get("/", h.getSystem)
			r.Get("/stations", h.stations)
			r.Get("/stations.geojson", h.stationsGeoJSON)
		})
	})
	return r
}

type handlers struct {
	reg *Registry
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	ready := 0
	for _, s := range h.reg.All() {
		if s.Ready() {
			ready++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"systems": h.reg.Len(),
		"ready":   ready,
	})
}

func (h *handlers) listSystems(w http.ResponseWriter, _ *http.Request) {
	all := h.reg.All()
	out := make([]systemView, 0, len(all))
	for _, s := range all {
		out = append(out, viewOf(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getSystem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.system(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s))
}

func (h *handlers) stations(w http.ResponseWriter, r *http.Request) {
	s, stations, updatedAt, ok := h.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stationsView{
		System:    s.Meta(),
		UpdatedAt: updatedAt,
		Count:     len(stations),
		Stations:  stations,
	})
}

func (h *handlers) stationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	s, stations, _, ok := h.filtered(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := export.GeoJSON(w, s.Meta(), stations); err != nil {
		zap.L().Warn("api: write geojson", zap.String("system", s.Tag()), zap.Error(err))
	}
}

// system resolves {tag}, writing 404 when unknown.
func (h *handlers) system(w http.ResponseWriter, r *http.Request) (*gbfs.System, bool) {
	tag := chi.URLParam(r, "tag")
	s, ok := h.reg.Get(tag)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown system "+strconv.Quote(tag))
		return nil, false
	}
	return s, true
}

// filtered returns the system's stations narrowed by the bbox and limit
// query parameters, with the time they were published.
func (h *handlers) filtered(w http.ResponseWriter, r *http.Request) (*gbfs.System, []model.Station, time.Time, bool) {
	s, ok := h.system(w, r)
	if !ok {
		return nil, nil, time.Time{}, false
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return nil, nil, time.Time{}, false
		}
		limit = n
	}

	var bounds [][]geo.Pair
	if v := r.URL.Query().Get("bbox"); v != "" {
		box, err := geo.ParseBBox(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, nil, time.Time{}, false
		}
		bounds = append(bounds, box)
	}

	all, updatedAt, ready := s.Snapshot()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, "system "+strconv.Quote(s.Tag())+" has no data yet")
		return nil, nil, time.Time{}, false
	}

	seq := geo.Slice(all)
	if len(bounds) > 0 {
		filtered, err := geo.FilterBounds(seq, nil, bounds...)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, nil, time.Time{}, false
		}
		seq = filtered
	}

	out := []model.Station{}
	for st := range seq {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, st)
	}
	return s, out, updatedAt, true
}

func viewOf(s *gbfs.System) systemView {
	stations, updatedAt, ready := s.Snapshot()
	v := systemView{SystemMeta: s.Meta(), Ready: ready, Stations: len(stations)}
	if ready {
		v.UpdatedAt = &updatedAt
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
