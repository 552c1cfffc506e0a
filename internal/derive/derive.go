// Package derive turns a raw station list into the view the rest of
// the application consumes: distance annotations, best-price records,
// filtered and sorted station lists, aggregate stats.
//
// Everything here is a pure function of its inputs. Derived fields are
// recomputed wholesale on every call, never mutated incrementally, so
// distance, best-price and sort results can never drift apart.
package derive

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tankfinder/tankfinder/internal/geo"
	"github.com/tankfinder/tankfinder/pkg/api"
)

// SortKey selects the station ordering.
//
// Stations missing a numeric key (a fuel price of 0 means "no data",
// a rating of 0 means "unrated") sort after all stations that have it,
// in both directions. Treating missing as 0 would rank no-data stations
// as cheapest in ascending price sorts.
type SortKey string

const (
	SortDistance SortKey = "distance"
	SortDiesel   SortKey = "diesel"
	SortE5       SortKey = "e5"
	SortE10      SortKey = "e10"
	SortName     SortKey = "name"
	SortRating   SortKey = "rating"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortDistance, SortDiesel, SortE5, SortE10, SortName, SortRating:
		return true
	}
	return false
}

// SortState is the requested ordering. The zero value sorts by distance
// ascending.
type SortState struct {
	Key        SortKey `json:"key"`
	Descending bool    `json:"descending"`
}

// FilterState narrows the view. OnlyOpen removes closed stations; Fuel
// re-targets which best-price comparison drives the IsBestForFuel flag
// but never removes stations from the list.
type FilterState struct {
	OnlyOpen bool         `json:"onlyOpen"`
	Fuel     api.FuelType `json:"fuel"`
}

// BestPriceRecord names the cheapest valid price for one fuel grade, or
// overall.
type BestPriceRecord struct {
	Price       float64      `json:"price"`
	StationID   string       `json:"stationId"`
	StationName string       `json:"stationName"`
	Fuel        api.FuelType `json:"fuelType"`
}

// BestPrices holds one record per grade plus the overall winner. A nil
// record means no station had a valid price for that grade.
type BestPrices struct {
	Diesel  *BestPriceRecord `json:"diesel,omitempty"`
	E5      *BestPriceRecord `json:"e5,omitempty"`
	E10     *BestPriceRecord `json:"e10,omitempty"`
	Overall *BestPriceRecord `json:"overall,omitempty"`
}

// ForFuel returns the record for a specific grade, or the overall
// record for FuelAll.
func (b BestPrices) ForFuel(f api.FuelType) *BestPriceRecord {
	switch f {
	case api.FuelDiesel:
		return b.Diesel
	case api.FuelE5:
		return b.E5
	case api.FuelE10:
		return b.E10
	}
	return b.Overall
}

// Station is a station annotated with derived, per-view fields. These
// are ephemeral: they are owned by this package and recomputed on every
// input change.
type Station struct {
	api.Station

	// DistanceKm is only meaningful when HasDistance is set; without a
	// reference location it stays unset rather than defaulting to 0,
	// which would masquerade as "closest".
	DistanceKm  float64 `json:"distanceKm"`
	HasDistance bool    `json:"hasDistance"`

	// MinPrice is the station's cheapest valid price across grades;
	// HasPrice is false when the station has no valid price at all.
	MinPrice float64 `json:"minPrice"`
	HasPrice bool    `json:"hasPrice"`

	IsOverallBestPrice bool `json:"isOverallBestPrice"`
	IsBestForFuel      bool `json:"isBestForFuel"`
}

// Stats are aggregates over the filtered view.
type Stats struct {
	OpenCount int `json:"openCount"`
	// AveragePrice is the mean over all valid prices in the view,
	// formatted to exactly 3 decimals; "0.000" for an empty view.
	AveragePrice string `json:"averagePrice"`
}

// DerivedView is the complete result handed to the view layer.
type DerivedView struct {
	Stations []Station      `json:"stations"`
	Best     BestPrices     `json:"bestPrices"`
	Stats    Stats          `json:"stats"`
	Filter   FilterState    `json:"filter"`
	Sort     SortState      `json:"sort"`
	Ref      *api.Coordinate `json:"reference,omitempty"`
}

// Lookup finds a station in the view by id.
func (v *DerivedView) Lookup(stationID string) (*Station, bool) {
	for i := range v.Stations {
		if v.Stations[i].ID == stationID {
			return &v.Stations[i], true
		}
	}
	return nil, false
}

// nameCollator compares station names locale-aware; the feed's names
// carry umlauts.
var nameCollator = collate.New(language.German, collate.IgnoreCase)

// View derives the complete view from a raw station list and a
// reference location. A nil ref means no distance annotations and
// distance-based sorting is skipped.
func View(stations []api.Station, ref *api.Coordinate, filter FilterState, sortState SortState) DerivedView {
	best := FindBestPrices(stations)
	activeBest := best.ForFuel(filter.Fuel)

	derived := make([]Station, 0, len(stations))
	for _, s := range stations {
		d := Station{Station: s}

		if ref != nil {
			d.DistanceKm = geo.DistanceKm(ref.Lat, ref.Lng, s.Lat, s.Lng)
			d.HasDistance = true
		}

		if _, price, ok := CheapestFuel(s); ok {
			d.MinPrice = price
			d.HasPrice = true
		}

		if best.Overall != nil && best.Overall.StationID == s.ID {
			d.IsOverallBestPrice = true
		}
		if activeBest != nil && activeBest.StationID == s.ID {
			d.IsBestForFuel = true
		}

		derived = append(derived, d)
	}

	if filter.OnlyOpen {
		open := derived[:0]
		for _, d := range derived {
			if d.IsOpen {
				open = append(open, d)
			}
		}
		derived = open
	}

	sortStations(derived, sortState)

	return DerivedView{
		Stations: derived,
		Best:     best,
		Stats:    computeStats(derived),
		Filter:   filter,
		Sort:     sortState,
		Ref:      ref,
	}
}

// FindBestPrices scans the station list once and records the minimum
// valid (>0) price per grade and overall. An empty list yields all-nil
// records.
func FindBestPrices(stations []api.Station) BestPrices {
	var best BestPrices
	for i := range stations {
		s := &stations[i]
		for _, fuel := range api.FuelTypes {
			price := s.Price(fuel)
			if price <= 0 {
				continue
			}
			rec := best.ForFuel(fuel)
			if rec == nil || price < rec.Price {
				setBest(&best, fuel, &BestPriceRecord{
					Price:       price,
					StationID:   s.ID,
					StationName: s.Name,
					Fuel:        fuel,
				})
			}
		}

		if fuel, price, ok := CheapestFuel(*s); ok {
			if best.Overall == nil || price < best.Overall.Price {
				best.Overall = &BestPriceRecord{
					Price:       price,
					StationID:   s.ID,
					StationName: s.Name,
					Fuel:        fuel,
				}
			}
		}
	}
	return best
}

// CheapestFuel returns the grade holding the station's minimum valid
// price. Ties resolve in fixed grade order (diesel, e5, e10) so the
// result is deterministic. ok is false when the station has no valid
// price, which excludes it from all best-price comparisons.
func CheapestFuel(s api.Station) (api.FuelType, float64, bool) {
	var (
		bestFuel  api.FuelType
		bestPrice float64
		found     bool
	)
	for _, fuel := range api.FuelTypes {
		price := s.Price(fuel)
		if price <= 0 {
			continue
		}
		if !found || price < bestPrice {
			bestFuel = fuel
			bestPrice = price
			found = true
		}
	}
	return bestFuel, bestPrice, found
}

func setBest(b *BestPrices, fuel api.FuelType, rec *BestPriceRecord) {
	switch fuel {
	case api.FuelDiesel:
		b.Diesel = rec
	case api.FuelE5:
		b.E5 = rec
	case api.FuelE10:
		b.E10 = rec
	}
}

// sortStations orders the view in place. The sort is stable so equal
// keys preserve the pre-filter order. Distance sorting with no distance
// data is skipped entirely; leaving the upstream order is better than
// inventing one from zeros.
func sortStations(stations []Station, state SortState) {
	if state.Key == "" {
		state.Key = SortDistance
	}
	if state.Key == SortDistance && (len(stations) == 0 || !stations[0].HasDistance) {
		return
	}

	if state.Key == SortName {
		sort.SliceStable(stations, func(i, j int) bool {
			c := nameCollator.CompareString(stations[i].Name, stations[j].Name)
			if state.Descending {
				return c > 0
			}
			return c < 0
		})
		return
	}

	sort.SliceStable(stations, func(i, j int) bool {
		av, aok := numericKey(stations[i], state.Key)
		bv, bok := numericKey(stations[j], state.Key)
		if aok != bok {
			// Missing keys sort last regardless of direction.
			return aok
		}
		if !aok {
			return false
		}
		if state.Descending {
			return av > bv
		}
		return av < bv
	})
}

func numericKey(s Station, key SortKey) (float64, bool) {
	switch key {
	case SortDistance:
		return s.DistanceKm, s.HasDistance
	case SortDiesel:
		return s.Diesel, s.Diesel > 0
	case SortE5:
		return s.E5, s.E5 > 0
	case SortE10:
		return s.E10, s.E10 > 0
	case SortRating:
		return s.Rating, s.Rating > 0
	}
	return 0, false
}

// computeStats aggregates over the filtered, sorted view. The average
// covers every valid price of every grade; the empty view yields the
// "0.000" sentinel rather than NaN.
func computeStats(stations []Station) Stats {
	open := 0
	sum := 0.0
	count := 0
	for i := range stations {
		if stations[i].IsOpen {
			open++
		}
		for _, fuel := range api.FuelTypes {
			if price := stations[i].Price(fuel); price > 0 {
				sum += price
				count++
			}
		}
	}

	avg := 0.0
	if count > 0 {
		avg = sum / float64(count)
	}
	return Stats{
		OpenCount:    open,
		AveragePrice: fmt.Sprintf("%.3f", avg),
	}
}
