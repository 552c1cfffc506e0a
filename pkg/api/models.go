package api

import "fmt"

// FuelType identifies one of the fuel grades the price feed reports.
type FuelType string

const (
	FuelDiesel FuelType = "diesel"
	FuelE5     FuelType = "e5"
	FuelE10    FuelType = "e10"
	// FuelAll requests prices for every grade. It is also the default for
	// view filters that do not narrow down a grade.
	FuelAll FuelType = "all"
)

// FuelTypes lists the concrete grades in the order used to break
// best-price ties.
var FuelTypes = []FuelType{FuelDiesel, FuelE5, FuelE10}

// Valid reports whether f is a fuel type the upstream accepts.
func (f FuelType) Valid() bool {
	switch f {
	case FuelDiesel, FuelE5, FuelE10, FuelAll:
		return true
	}
	return false
}

// SortHint is the server-side ordering hint passed upstream. It does not
// affect which stations are returned, only their initial order.
type SortHint string

const (
	SortHintDistance SortHint = "dist"
	SortHintPrice    SortHint = "price"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Station is a single fuel station as reported by the price feed.
// A price of 0 means the feed has no data for that grade; such prices
// are excluded from best-price comparisons downstream.
type Station struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Street      string  `json:"street"`
	HouseNumber string  `json:"houseNumber"`
	PostCode    string  `json:"postCode"`
	Place       string  `json:"place"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Diesel      float64 `json:"diesel"`
	E5          float64 `json:"e5"`
	E10         float64 `json:"e10"`
	IsOpen      bool    `json:"isOpen"`

	// Rating is an optional, externally supplied attribute. Stations
	// without one carry 0.
	Rating float64 `json:"rating,omitempty"`
}

// Coordinate returns the station's location.
func (s *Station) Coordinate() Coordinate {
	return Coordinate{Lat: s.Lat, Lng: s.Lng}
}

// Price returns the station's price for the given grade, 0 if the feed
// has no data for it. FuelAll returns 0.
func (s *Station) Price(f FuelType) float64 {
	switch f {
	case FuelDiesel:
		return s.Diesel
	case FuelE5:
		return s.E5
	case FuelE10:
		return s.E10
	}
	return 0
}

// StationData is the payload the client hands to downstream layers. It
// is also what the cache layer stores.
type StationData struct {
	License  string    `json:"license,omitempty"`
	Source   string    `json:"source,omitempty"`
	Stations []Station `json:"stations"`
}

// listResponse is the raw upstream envelope.
type listResponse struct {
	OK       bool      `json:"ok"`
	License  string    `json:"license"`
	Data     string    `json:"data"`
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Stations []Station `json:"stations"`
}

// Query describes a single station search against the upstream feed.
type Query struct {
	Center     Coordinate
	RadiusKm   float64
	Credential string

	// Fuel and Sort are forwarded as upstream hints. They do not change
	// which stations come back, which is why the cache layer ignores
	// them when deriving keys.
	Fuel FuelType
	Sort SortHint

	// IncludeClosed keeps stations that are currently closed in the
	// result. By default they are filtered out at this boundary.
	IncludeClosed bool
}

// MaxRadiusKm is the largest search radius the upstream accepts.
const MaxRadiusKm = 25.0

// Validate checks the query locally. A non-nil result is always an
// InvalidParameter error and no network call should be made.
func (q Query) Validate() error {
	if q.RadiusKm <= 0 || q.RadiusKm > MaxRadiusKm {
		return newError(KindInvalidParameter,
			fmt.Sprintf("radius must be in (0, %g] km, got %g", MaxRadiusKm, q.RadiusKm))
	}
	if q.Credential == "" {
		return newError(KindInvalidParameter, "missing API credential")
	}
	if !q.Center.Valid() {
		return newError(KindInvalidParameter,
			fmt.Sprintf("coordinates out of range: %s", q.Center))
	}
	if q.Fuel != "" && !q.Fuel.Valid() {
		return newError(KindInvalidParameter,
			fmt.Sprintf("unknown fuel type %q", q.Fuel))
	}
	return nil
}
