package locate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/muesli/gominatim"
	gocache "github.com/patrickmn/go-cache"

	"github.com/tankfinder/tankfinder/pkg/api"
)

const (
	nominatimServer = "https://nominatim.openstreetmap.org/"

	geocodeCacheExpiry  = 30 * time.Minute
	geocodeCacheCleanup = 90 * time.Minute

	// DefaultResultLimit caps how many candidates a lookup returns.
	DefaultResultLimit = 5
)

// Place is one geocoding candidate. Only the first (or a user-picked)
// result is normally used.
type Place struct {
	DisplayName string         `json:"displayName"`
	Location    api.Coordinate `json:"location"`
}

// Geocoder resolves free-text queries to coordinates via Nominatim,
// caching results so repeated searches for the same place stay off the
// network.
type Geocoder struct {
	cache   *gocache.Cache
	country string
	limit   int
}

// NewGeocoder creates a geocoder restricted to the given ISO country
// code (empty for no restriction).
func NewGeocoder(country string, limit int) *Geocoder {
	gominatim.SetServer(nominatimServer)
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	return &Geocoder{
		cache:   gocache.New(geocodeCacheExpiry, geocodeCacheCleanup),
		country: country,
		limit:   limit,
	}
}

// Search returns geocoding candidates for the query.
func (g *Geocoder) Search(query string) ([]Place, error) {
	if cached, ok := g.cache.Get(query); ok {
		return cached.([]Place), nil
	}

	q := gominatim.SearchQuery{
		Q:     query,
		Limit: g.limit,
	}
	if g.country != "" {
		q.Countrycodes = []string{g.country}
	}

	results, err := q.Get()
	if err != nil {
		return nil, fmt.Errorf("geocoding error: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			continue
		}
		places = append(places, Place{
			DisplayName: r.DisplayName,
			Location:    api.Coordinate{Lat: lat, Lng: lng},
		})
	}
	if len(places) == 0 {
		return nil, fmt.Errorf("no results found for location: %s", query)
	}

	g.cache.Set(query, places, gocache.DefaultExpiration)
	return places, nil
}

// First resolves the query to its best candidate.
func (g *Geocoder) First(query string) (Place, error) {
	places, err := g.Search(query)
	if err != nil {
		return Place{}, err
	}
	return places[0], nil
}
