// Package fetch layers caching, retry and request sequencing on top of
// the station source client.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tankfinder/tankfinder/pkg/api"
)

// keyPrecisionDecimals matches the coordinate precision the upstream
// works with; finer coordinates would fragment the cache for no gain.
const keyPrecisionDecimals = 4

// FetchFunc is the shape shared by the client, the retry wrapper and
// the cached fetcher, so the layers compose freely.
type FetchFunc func(ctx context.Context, q api.Query) (*api.StationData, error)

// Entry is one cached station payload.
type Entry struct {
	Payload   *api.StationData
	FetchedAt time.Time
	ExpiresAt time.Time

	// LastRead tracks reads, including stale fallback reads, so the
	// sweep never deletes an entry the fallback path still relies on.
	LastRead time.Time
}

// Expired reports whether the entry's TTL has passed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the key-value backend for cache entries. Implementations do
// not interpret TTLs; expiry lives on the Entry and is enforced by the
// CachedFetcher.
type Store interface {
	Get(key string) (*Entry, bool)
	Set(key string, e *Entry)
	Delete(key string)
	Keys() []string
}

// MemoryStore is a Store backed by go-cache. Entries never expire at
// this level; the Sweep on CachedFetcher is the only eviction.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, 0)}
}

func (m *MemoryStore) Get(key string) (*Entry, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

func (m *MemoryStore) Set(key string, e *Entry) {
	m.c.Set(key, e, gocache.NoExpiration)
}

func (m *MemoryStore) Delete(key string) {
	m.c.Delete(key)
}

func (m *MemoryStore) Keys() []string {
	items := m.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

// CachedFetcher wraps a FetchFunc with a TTL cache and a stale-on-error
// fallback: an expired entry is silently reused when a fresh fetch
// fails, so the caller only sees an error on a cold key. Availability
// beats freshness here.
type CachedFetcher struct {
	// mu guards entry bookkeeping (LastRead updates, sweep scans) only.
	// It is never held across the wrapped fetch, so a slow upstream for
	// one key cannot block hits for others.
	mu    sync.Mutex
	store Store
	fetch FetchFunc
	ttl   time.Duration
	now   func() time.Time
	log   *slog.Logger
}

// NewCachedFetcher creates a cache around fetch using the given store.
func NewCachedFetcher(store Store, fetch FetchFunc, ttl time.Duration, logger *slog.Logger) *CachedFetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedFetcher{
		store: store,
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
		log:   logger,
	}
}

// Fetch returns cached data when fresh, otherwise fetches and caches.
// On fetch failure it falls back to whatever entry exists for the key,
// expired or not, and only propagates the error on a cold key.
//
// The upstream fetch runs unlocked. Concurrent misses for the same key
// may fetch more than once; the last write wins, which is harmless for
// an idempotent read.
func (f *CachedFetcher) Fetch(ctx context.Context, q api.Query) (*api.StationData, error) {
	key := CacheKey(q)

	if payload, ok := f.freshRead(key); ok {
		f.log.Debug("using cached data", "key", key)
		return payload, nil
	}

	data, err := f.fetch(ctx, q)
	if err != nil {
		if payload, fetchedAt, ok := f.anyRead(key); ok {
			f.log.Warn("fetch failed, serving stale cache entry",
				"key", key, "fetched_at", fetchedAt, "error", err)
			return payload, nil
		}
		return nil, err
	}

	f.put(key, data)
	return data, nil
}

// freshRead returns the payload for key if a non-expired entry exists,
// marking it read.
func (f *CachedFetcher) freshRead(key string) (*api.StationData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.store.Get(key)
	if !ok || entry.Expired(f.now()) {
		return nil, false
	}
	entry.LastRead = f.now()
	return entry.Payload, true
}

// anyRead returns whatever entry exists for key, expired or not, marking
// it read so the sweep keeps it alive while it serves as fallback.
func (f *CachedFetcher) anyRead(key string) (*api.StationData, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.store.Get(key)
	if !ok {
		return nil, time.Time{}, false
	}
	entry.LastRead = f.now()
	return entry.Payload, entry.FetchedAt, true
}

func (f *CachedFetcher) put(key string, data *api.StationData) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.store.Set(key, &Entry{
		Payload:   data,
		FetchedAt: now,
		ExpiresAt: now.Add(f.ttl),
		LastRead:  now,
	})
}

// Sweep removes entries that are both expired and unread for longer
// than grace, and returns how many it removed. The grace period keeps
// recently used fallback entries alive while the upstream is down.
func (f *CachedFetcher) Sweep(grace time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	removed := 0
	for _, key := range f.store.Keys() {
		entry, ok := f.store.Get(key)
		if !ok {
			continue
		}
		if now.After(entry.ExpiresAt.Add(grace)) && now.After(entry.LastRead.Add(grace)) {
			f.store.Delete(key)
			removed++
		}
	}
	if removed > 0 {
		f.log.Debug("cache sweep completed", "removed", removed)
	}
	return removed
}

// CacheKey derives the deterministic key for a query from its center
// (rounded to source precision), radius and a credential fingerprint.
// Fuel filter and sort hint are deliberately excluded: the upstream
// returns the full station set regardless.
func CacheKey(q api.Query) string {
	lat, lng := roundCoordinates(q.Center.Lat, q.Center.Lng, keyPrecisionDecimals)
	return fmt.Sprintf("stations_%.4f_%.4f_%.1f_%s", lat, lng, q.RadiusKm, fingerprint(q.Credential))
}

// fingerprint hashes the credential so cache keys never carry it in
// clear text.
func fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])[:12]
}

func roundCoordinates(lat, lng float64, decimalPlaces int) (roundedLat, roundedLng float64) {
	factor := math.Pow(10, float64(decimalPlaces))
	roundedLat = math.Round(lat*factor) / factor
	roundedLng = math.Round(lng*factor) / factor
	return
}
