package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankfinder/tankfinder/internal/config"
	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/internal/finder"
	"github.com/tankfinder/tankfinder/internal/locate"
	"github.com/tankfinder/tankfinder/pkg/api"
)

type stubSearcher struct {
	lastInput finder.SearchInput
	view      derive.DerivedView
	err       error
}

func (s *stubSearcher) Search(_ context.Context, in finder.SearchInput) (derive.DerivedView, error) {
	s.lastInput = in
	return s.view, s.err
}

type stubResolver struct {
	places []locate.Place
	err    error
}

func (r *stubResolver) Search(string) ([]locate.Place, error) {
	return r.places, r.err
}

func (r *stubResolver) First(q string) (locate.Place, error) {
	if r.err != nil {
		return locate.Place{}, r.err
	}
	return r.places[0], nil
}

func testView() derive.DerivedView {
	return derive.DerivedView{
		Stations: []derive.Station{
			{Station: api.Station{ID: "a1", Name: "Aral", Diesel: 1.549, IsOpen: true}},
		},
		Best: derive.BestPrices{
			Diesel: &derive.BestPriceRecord{Price: 1.549, StationID: "a1", StationName: "Aral", Fuel: api.FuelDiesel},
		},
	}
}

func newTestServer(searcher *stubSearcher, resolver *stubResolver) *Server {
	cfg := config.Default().Server
	return New(cfg, searcher, resolver, false)
}

func doRequest(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestSearchByCoordinates(t *testing.T) {
	searcher := &stubSearcher{view: testView()}
	s := newTestServer(searcher, &stubResolver{})

	rec := doRequest(t, s, "/api/search?lat=52.52&lng=13.405&radius=8&fuel=diesel&open=true")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 52.52, searcher.lastInput.Center.Lat)
	assert.Equal(t, 8.0, searcher.lastInput.RadiusKm)
	assert.Equal(t, api.FuelDiesel, searcher.lastInput.Filter.Fuel)
	assert.True(t, searcher.lastInput.Filter.OnlyOpen)
	assert.Equal(t, derive.SortDistance, searcher.lastInput.Sort.Key)

	var view derive.DerivedView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Stations, 1)
	assert.Equal(t, "a1", view.Stations[0].ID)
}

func TestSearchByLocation(t *testing.T) {
	searcher := &stubSearcher{view: testView()}
	resolver := &stubResolver{places: []locate.Place{{
		DisplayName: "Berlin, Deutschland",
		Location:    api.Coordinate{Lat: 52.52, Lng: 13.405},
	}}}
	s := newTestServer(searcher, resolver)

	rec := doRequest(t, s, "/api/search?location=Berlin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 52.52, searcher.lastInput.Center.Lat)
	assert.Equal(t, "Berlin, Deutschland", searcher.lastInput.DisplayName)
}

func TestSearchParamValidation(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"no coordinates or location", "/api/search"},
		{"bad latitude", "/api/search?lat=north&lng=13.405"},
		{"bad radius", "/api/search?lat=52.52&lng=13.405&radius=wide"},
		{"bad fuel", "/api/search?lat=52.52&lng=13.405&fuel=kerosene"},
		{"bad sort", "/api/search?lat=52.52&lng=13.405&sort=vibes"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			searcher := &stubSearcher{view: testView()}
			s := newTestServer(searcher, &stubResolver{})
			rec := doRequest(t, s, tc.target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSearchErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid parameter", &api.Error{Kind: api.KindInvalidParameter, Message: "bad radius"}, http.StatusBadRequest},
		{"unauthorized", &api.Error{Kind: api.KindUnauthorized, Message: "bad key"}, http.StatusBadGateway},
		{"server error", &api.Error{Kind: api.KindServerError, Message: "upstream 500"}, http.StatusBadGateway},
		{"timeout", &api.Error{Kind: api.KindTimeout, Message: "deadline"}, http.StatusGatewayTimeout},
		{"no response", &api.Error{Kind: api.KindNoResponse, Message: "gone"}, http.StatusGatewayTimeout},
		{"superseded", finder.ErrSuperseded, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&stubSearcher{err: tc.err}, &stubResolver{})
			rec := doRequest(t, s, "/api/search?lat=52.52&lng=13.405")
			assert.Equal(t, tc.want, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestBestReturnsOnlyBestPrices(t *testing.T) {
	s := newTestServer(&stubSearcher{view: testView()}, &stubResolver{})

	rec := doRequest(t, s, "/api/best?lat=52.52&lng=13.405")
	require.Equal(t, http.StatusOK, rec.Code)

	var best derive.BestPrices
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &best))
	require.NotNil(t, best.Diesel)
	assert.Equal(t, "a1", best.Diesel.StationID)
}

func TestBestRecordsSearchMetrics(t *testing.T) {
	before := testutil.ToFloat64(searchesTotal.WithLabelValues(outcomeOK))

	s := newTestServer(&stubSearcher{view: testView()}, &stubResolver{})
	rec := doRequest(t, s, "/api/best?lat=52.52&lng=13.405")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, before+1, testutil.ToFloat64(searchesTotal.WithLabelValues(outcomeOK)))
}

func TestGeocode(t *testing.T) {
	resolver := &stubResolver{places: []locate.Place{{
		DisplayName: "Berlin, Deutschland",
		Location:    api.Coordinate{Lat: 52.52, Lng: 13.405},
	}}}
	s := newTestServer(&stubSearcher{}, resolver)

	rec := doRequest(t, s, "/api/geocode?q=Berlin")
	require.Equal(t, http.StatusOK, rec.Code)

	var places []locate.Place
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &places))
	require.Len(t, places, 1)
	assert.Equal(t, "Berlin, Deutschland", places[0].DisplayName)
}

func TestGeocodeMissingQuery(t *testing.T) {
	s := newTestServer(&stubSearcher{}, &stubResolver{})
	rec := doRequest(t, s, "/api/geocode")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeocodeNotFound(t *testing.T) {
	s := newTestServer(&stubSearcher{}, &stubResolver{err: errors.New("no results found for location: Nirgendwo")})
	rec := doRequest(t, s, "/api/geocode?q=Nirgendwo")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&stubSearcher{}, &stubResolver{})
	rec := doRequest(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
