package finder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankfinder/tankfinder/internal/config"
	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/internal/store"
	"github.com/tankfinder/tankfinder/pkg/api"
)

func testStations() []api.Station {
	return []api.Station{
		{ID: "a1", Name: "Aral", Lat: 52.52, Lng: 13.41, Diesel: 1.549, E5: 1.679, E10: 1.619, IsOpen: true},
		{ID: "b2", Name: "Shell", Lat: 52.53, Lng: 13.42, Diesel: 1.569, E5: 1.649, E10: 1.599, IsOpen: false},
	}
}

func stubFetch(t *testing.T, calls *[]api.Query) func(context.Context, api.Query) (*api.StationData, error) {
	t.Helper()
	return func(_ context.Context, q api.Query) (*api.StationData, error) {
		*calls = append(*calls, q)
		return &api.StationData{Stations: testStations()}, nil
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.API.Credential = "test-credential"
	return cfg
}

func TestSearchReturnsDerivedView(t *testing.T) {
	var calls []api.Query
	f := New(testConfig(), nil, nil, WithFetchFunc(stubFetch(t, &calls)))

	view, err := f.Search(context.Background(), SearchInput{
		Center:   api.Coordinate{Lat: 52.52, Lng: 13.405},
		RadiusKm: 5,
		Sort:     derive.SortState{Key: derive.SortDistance},
	})
	require.NoError(t, err)
	require.Len(t, view.Stations, 2)
	assert.True(t, view.Stations[0].HasDistance)
	require.NotNil(t, view.Best.Diesel)
	assert.Equal(t, "a1", view.Best.Diesel.StationID)
}

func TestSearchRequestsFullStationSet(t *testing.T) {
	var calls []api.Query
	f := New(testConfig(), nil, nil, WithFetchFunc(stubFetch(t, &calls)))

	_, err := f.Search(context.Background(), SearchInput{
		Center: api.Coordinate{Lat: 52.52, Lng: 13.405},
		Filter: derive.FilterState{OnlyOpen: true, Fuel: api.FuelDiesel},
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	// The upstream query is filter-independent; narrowing is view state.
	assert.True(t, calls[0].IncludeClosed)
	assert.Equal(t, api.FuelAll, calls[0].Fuel)
}

func TestSearchAppliesDefaultRadius(t *testing.T) {
	var calls []api.Query
	f := New(testConfig(), nil, nil, WithFetchFunc(stubFetch(t, &calls)))

	_, err := f.Search(context.Background(), SearchInput{
		Center: api.Coordinate{Lat: 52.52, Lng: 13.405},
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, 5.0, calls[0].RadiusKm)
}

func TestSearchSupersededByNewerRequest(t *testing.T) {
	f := New(testConfig(), nil, nil)

	nested := false
	f.fetch = func(ctx context.Context, q api.Query) (*api.StationData, error) {
		if !nested {
			nested = true
			// A second search issued while this one is in flight wins.
			_, err := f.Search(ctx, SearchInput{Center: api.Coordinate{Lat: 48.13, Lng: 11.58}})
			require.NoError(t, err)
		}
		return &api.StationData{Stations: testStations()}, nil
	}

	_, err := f.Search(context.Background(), SearchInput{Center: api.Coordinate{Lat: 52.52, Lng: 13.405}})
	assert.ErrorIs(t, err, ErrSuperseded)
}

func TestSearchPersistsLastSearch(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var calls []api.Query
	f := New(testConfig(), st, nil, WithFetchFunc(stubFetch(t, &calls)))

	_, err = f.Search(ctx, SearchInput{
		Center:      api.Coordinate{Lat: 52.52, Lng: 13.405},
		RadiusKm:    8,
		DisplayName: "Berlin, Deutschland",
	})
	require.NoError(t, err)

	last, ok := st.LastSearch(ctx)
	require.True(t, ok)
	assert.Equal(t, 8.0, last.RadiusKm)
	assert.Equal(t, "Berlin, Deutschland", last.DisplayName)
	assert.WithinDuration(t, time.Now(), last.SearchedAt, time.Minute)
}

func TestDefaultCenterPrefersLastSearch(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "state.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	f := New(testConfig(), st, nil)

	center, radius, _ := f.DefaultCenter(ctx)
	assert.Equal(t, 52.52, center.Lat, "falls back to the configured default")
	assert.Equal(t, 5.0, radius)

	require.NoError(t, st.SaveLastSearch(ctx, store.LastSearch{
		Center:     api.Coordinate{Lat: 48.13, Lng: 11.58},
		RadiusKm:   12,
		SearchedAt: time.Now(),
	}))

	center, radius, _ = f.DefaultCenter(ctx)
	assert.Equal(t, 48.13, center.Lat)
	assert.Equal(t, 12.0, radius)
}
