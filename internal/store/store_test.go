package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankfinder/tankfinder/pkg/api"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLastSearchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := LastSearch{
		Center:      api.Coordinate{Lat: 52.52, Lng: 13.405},
		RadiusKm:    5,
		DisplayName: "Berlin, Deutschland",
		SearchedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveLastSearch(ctx, want))

	got, ok := s.LastSearch(ctx)
	require.True(t, ok)
	assert.Equal(t, want.Center, got.Center)
	assert.Equal(t, want.RadiusKm, got.RadiusKm)
	assert.Equal(t, want.DisplayName, got.DisplayName)
	assert.True(t, want.SearchedAt.Equal(got.SearchedAt))
}

func TestLastSearchOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := LastSearch{Center: api.Coordinate{Lat: 1, Lng: 2}, RadiusKm: 5, SearchedAt: time.Now()}
	second := LastSearch{Center: api.Coordinate{Lat: 3, Lng: 4}, RadiusKm: 10, SearchedAt: time.Now()}
	require.NoError(t, s.SaveLastSearch(ctx, first))
	require.NoError(t, s.SaveLastSearch(ctx, second))

	got, ok := s.LastSearch(ctx)
	require.True(t, ok)
	assert.Equal(t, second.Center, got.Center)
	assert.Equal(t, 10.0, got.RadiusKm)
}

func TestLastSearchMissingFallsBack(t *testing.T) {
	s := openTestStore(t)
	_, ok := s.LastSearch(context.Background())
	assert.False(t, ok)
}

func TestLastSearchCorruptFallsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO last_search (id, latitude, longitude, radius_km, display_name, searched_at)
		VALUES (1, 999, 13.4, 5, '', 'not-a-timestamp')
	`)
	require.NoError(t, err)

	_, ok := s.LastSearch(ctx)
	assert.False(t, ok, "corrupt rows must fall back silently")
}

func TestViewModePreference(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.Equal(t, ViewModeList, s.ViewMode(ctx), "default is the list view")

	require.NoError(t, s.SaveViewMode(ctx, ViewModeMap))
	assert.Equal(t, ViewModeMap, s.ViewMode(ctx))

	require.NoError(t, s.SaveViewMode(ctx, "hologram"))
	assert.Equal(t, ViewModeList, s.ViewMode(ctx), "unknown modes fall back to the default")
}

func TestLogSearchAggregates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	center := api.Coordinate{Lat: 52.5201, Lng: 13.4039}
	require.NoError(t, s.LogSearch(ctx, center, 5))
	// Same area at slightly different precision aggregates into one row.
	require.NoError(t, s.LogSearch(ctx, api.Coordinate{Lat: 52.5223, Lng: 13.4041}, 10))
	require.NoError(t, s.LogSearch(ctx, api.Coordinate{Lat: 48.13, Lng: 11.58}, 5))

	entries, err := s.PopularSearches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].SearchCount)
	assert.Equal(t, 52.52, entries[0].Latitude, "coordinates are stored at reduced precision")
	assert.Equal(t, 10.0, entries[0].RadiusKm)
}
