// Package finder wires the station pipeline together: client, retry,
// cache, persistence and derivation behind a single Search call.
package finder

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tankfinder/tankfinder/internal/config"
	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/internal/fetch"
	"github.com/tankfinder/tankfinder/internal/store"
	"github.com/tankfinder/tankfinder/pkg/api"
)

// ErrSuperseded is returned when a newer search was issued while this
// one was in flight. Its result must not be applied to current state.
var ErrSuperseded = errors.New("search superseded by a newer request")

// Finder is the application-level search service.
type Finder struct {
	cfg   config.Config
	fetch fetch.FetchFunc
	cache *fetch.CachedFetcher
	store *store.Store
	seq   fetch.Sequencer
	log   *slog.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithFetchFunc replaces the upstream fetch pipeline, mainly for tests.
func WithFetchFunc(fn fetch.FetchFunc) Option {
	return func(f *Finder) { f.fetch = fn }
}

// New builds the pipeline from configuration: the cache wraps the
// retried client, so a fresh hit skips the network entirely and the
// stale fallback only engages once retries are exhausted. st may be nil
// when persistence is not wanted.
func New(cfg config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Finder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clientOpts := []api.Option{
		api.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout.Std()}),
	}
	if cfg.API.BaseURL != "" {
		clientOpts = append(clientOpts, api.WithBaseURL(cfg.API.BaseURL))
	}
	client := api.NewClient(clientOpts...)

	f := &Finder{
		cfg:   cfg,
		store: st,
		log:   logger,
	}
	f.fetch = fetch.Retrying(client.Fetch, fetch.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay.Std(),
	}, logger)

	for _, opt := range opts {
		opt(f)
	}

	f.cache = fetch.NewCachedFetcher(fetch.NewMemoryStore(), f.fetch, cfg.Cache.TTL.Std(), logger)
	f.fetch = f.cache.Fetch

	return f
}

// SearchInput describes one user-facing search.
type SearchInput struct {
	Center      api.Coordinate
	RadiusKm    float64
	DisplayName string
	Filter      derive.FilterState
	Sort        derive.SortState
}

// Search runs the full pipeline and returns the derived view.
//
// The upstream query always requests the full station set (closed
// stations included, no fuel narrowing): visibility toggles are view
// state handled by the derivation engine, and keeping the cached
// payload independent of them keeps the cache key honest.
func (f *Finder) Search(ctx context.Context, in SearchInput) (derive.DerivedView, error) {
	if in.RadiusKm == 0 {
		in.RadiusKm = f.cfg.Search.DefaultRadiusKm
	}

	seq := f.seq.Next()

	q := api.Query{
		Center:        in.Center,
		RadiusKm:      in.RadiusKm,
		Credential:    f.cfg.API.Credential,
		Fuel:          api.FuelAll,
		Sort:          api.SortHintDistance,
		IncludeClosed: true,
	}

	data, err := f.fetch(ctx, q)
	if err != nil {
		return derive.DerivedView{}, err
	}
	if !f.seq.Latest(seq) {
		return derive.DerivedView{}, ErrSuperseded
	}

	f.persistSearch(ctx, in)

	ref := in.Center
	return derive.View(data.Stations, &ref, in.Filter, in.Sort), nil
}

// persistSearch records the successful search; failures are logged and
// never fail the search itself.
func (f *Finder) persistSearch(ctx context.Context, in SearchInput) {
	if f.store == nil {
		return
	}
	err := f.store.SaveLastSearch(ctx, store.LastSearch{
		Center:      in.Center,
		RadiusKm:    in.RadiusKm,
		DisplayName: in.DisplayName,
		SearchedAt:  time.Now(),
	})
	if err != nil {
		f.log.Error("failed to save last search", "error", err)
	}
	if err := f.store.LogSearch(ctx, in.Center, in.RadiusKm); err != nil {
		f.log.Error("failed to log search location", "error", err)
	}
}

// DefaultCenter resolves the reference coordinate to start from: the
// stored last search when present, the configured default otherwise.
func (f *Finder) DefaultCenter(ctx context.Context) (api.Coordinate, float64, string) {
	if f.store != nil {
		if last, ok := f.store.LastSearch(ctx); ok {
			return last.Center, last.RadiusKm, last.DisplayName
		}
	}
	return api.Coordinate{
		Lat: f.cfg.Search.DefaultLat,
		Lng: f.cfg.Search.DefaultLng,
	}, f.cfg.Search.DefaultRadiusKm, ""
}

// StartSweeper runs the cache sweep on the configured interval until
// ctx is done.
func (f *Finder) StartSweeper(ctx context.Context) {
	interval := f.cfg.Cache.SweepInterval.Std()
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.cache.Sweep(f.cfg.Cache.Grace.Std())
			}
		}
	}()
}
