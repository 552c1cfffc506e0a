// Package server exposes station search over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tankfinder/tankfinder/internal/config"
	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/internal/finder"
	"github.com/tankfinder/tankfinder/internal/locate"
	"github.com/tankfinder/tankfinder/pkg/api"
)

// Searcher runs a station search. Implemented by finder.Finder.
type Searcher interface {
	Search(ctx context.Context, in finder.SearchInput) (derive.DerivedView, error)
}

// Resolver turns a free-text location into coordinates. Implemented by
// locate.Geocoder.
type Resolver interface {
	Search(query string) ([]locate.Place, error)
	First(query string) (locate.Place, error)
}

// Server serves the JSON API.
type Server struct {
	cfg      config.ServerConfig
	searcher Searcher
	geocoder Resolver
	logger   *httplog.Logger
}

// New builds a server around the given searcher and geocoder.
func New(cfg config.ServerConfig, searcher Searcher, geocoder Resolver, verbose bool) *Server {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := httplog.NewLogger("tankfinder", httplog.Options{
		JSON:            false,
		LogLevel:        level,
		Concise:         true,
		QuietDownPeriod: 10 * time.Second,
	})

	return &Server{
		cfg:      cfg,
		searcher: searcher,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Router assembles the chi router with the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))

	r.Get("/api/search", s.handleSearch)
	r.Get("/api/best", s.handleBest)
	r.Get("/api/geocode", s.handleGeocode)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe runs the server until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", "addr", s.cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	in, err := s.searchInput(r)
	if err != nil {
		searchesTotal.WithLabelValues(outcomeError).Inc()
		s.writeError(w, r, err)
		return
	}

	view, err := s.searcher.Search(r.Context(), in)
	if err != nil {
		searchesTotal.WithLabelValues(outcomeError).Inc()
		s.writeError(w, r, err)
		return
	}

	searchesTotal.WithLabelValues(outcomeOK).Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	in, err := s.searchInput(r)
	if err != nil {
		searchesTotal.WithLabelValues(outcomeError).Inc()
		s.writeError(w, r, err)
		return
	}

	view, err := s.searcher.Search(r.Context(), in)
	if err != nil {
		searchesTotal.WithLabelValues(outcomeError).Inc()
		s.writeError(w, r, err)
		return
	}

	searchesTotal.WithLabelValues(outcomeOK).Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	s.writeJSON(w, http.StatusOK, view.Best)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		geocodeTotal.WithLabelValues(outcomeError).Inc()
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing location query"})
		return
	}

	places, err := s.geocoder.Search(query)
	if err != nil {
		geocodeTotal.WithLabelValues(outcomeError).Inc()
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	geocodeTotal.WithLabelValues(outcomeOK).Inc()
	s.writeJSON(w, http.StatusOK, places)
}

// searchInput parses query parameters into a search. Either lat/lng or
// a free-text location is required; everything else has defaults.
func (s *Server) searchInput(r *http.Request) (finder.SearchInput, error) {
	query := r.URL.Query()
	var in finder.SearchInput

	latStr := query.Get("lat")
	lngStr := query.Get("lng")
	location := query.Get("location")

	switch {
	case latStr != "" && lngStr != "":
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return in, badParam("lat", latStr)
		}
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			return in, badParam("lng", lngStr)
		}
		in.Center = api.Coordinate{Lat: lat, Lng: lng}
	case location != "":
		place, err := s.geocoder.First(location)
		if err != nil {
			return in, err
		}
		in.Center = place.Location
		in.DisplayName = place.DisplayName
	default:
		return in, badParam("location", "")
	}

	if radiusStr := query.Get("radius"); radiusStr != "" {
		radius, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil {
			return in, badParam("radius", radiusStr)
		}
		in.RadiusKm = radius
	}

	if fuelStr := query.Get("fuel"); fuelStr != "" {
		fuel := api.FuelType(fuelStr)
		if !fuel.Valid() {
			return in, badParam("fuel", fuelStr)
		}
		in.Filter.Fuel = fuel
	}
	in.Filter.OnlyOpen = query.Get("open") == "true"

	if sortStr := query.Get("sort"); sortStr != "" {
		key := derive.SortKey(sortStr)
		if !key.Valid() {
			return in, badParam("sort", sortStr)
		}
		in.Sort.Key = key
	} else {
		in.Sort.Key = derive.SortDistance
	}
	in.Sort.Descending = query.Get("dir") == "desc"

	return in, nil
}

func badParam(name, value string) error {
	if value == "" {
		return api.NewInvalidParameter(fmt.Sprintf("missing parameter %s", name))
	}
	return api.NewInvalidParameter(fmt.Sprintf("invalid %s: %q", name, value))
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the client error taxonomy onto HTTP status codes:
// caller mistakes are 4xx, upstream failures are gateway errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case api.IsInvalidParameter(err):
		status = http.StatusBadRequest
	case api.IsUnauthorized(err), api.IsServerError(err):
		status = http.StatusBadGateway
	case api.IsTimeout(err), api.IsNoResponse(err):
		status = http.StatusGatewayTimeout
	case errors.Is(err, finder.ErrSuperseded):
		status = http.StatusConflict
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("error encoding response", "error", err)
	}
}
