// Package bridge maps a station selection onto a typed navigation
// intent for the external view layer. It is a pure mapping: the view
// performs the actual scroll or viewport animation.
package bridge

import (
	"time"

	"github.com/tankfinder/tankfinder/internal/derive"
	"github.com/tankfinder/tankfinder/pkg/api"
)

// Mode is the presentation mode the caller is currently in.
type Mode int

const (
	// ModeList shows stations as a list; selections scroll and
	// highlight.
	ModeList Mode = iota
	// ModeMap shows stations on a map; selections fly the viewport to
	// the station.
	ModeMap
)

// IntentKind discriminates navigation intents.
type IntentKind string

const (
	IntentScrollHighlight IntentKind = "scroll-highlight"
	IntentFlyTo           IntentKind = "fly-to"
)

// DefaultHighlight is how long a scrolled-to station stays highlighted.
const DefaultHighlight = 2 * time.Second

// Intent is the instruction handed to the view layer.
type Intent struct {
	Kind      IntentKind      `json:"kind"`
	StationID string          `json:"stationId"`
	Target    *api.Coordinate `json:"target,omitempty"`
	Fuel      api.FuelType    `json:"fuelType,omitempty"`

	// HighlightMs is the highlight duration in milliseconds, the unit
	// the view layer consumes.
	HighlightMs int64 `json:"highlightMs,omitempty"`
}

// Resolve looks the station up in the current derived view and builds
// the intent for the given mode. A station that is not in the view
// (filtered out since the selection was queued) is a no-op, not an
// error: ok is false and the zero Intent is returned.
func Resolve(view *derive.DerivedView, stationID string, fuel api.FuelType, mode Mode) (Intent, bool) {
	station, found := view.Lookup(stationID)
	if !found {
		return Intent{}, false
	}

	if mode == ModeMap {
		target := station.Coordinate()
		return Intent{
			Kind:      IntentFlyTo,
			StationID: station.ID,
			Target:    &target,
			Fuel:      fuel,
		}, true
	}

	return Intent{
		Kind:        IntentScrollHighlight,
		StationID:   station.ID,
		HighlightMs: DefaultHighlight.Milliseconds(),
	}, true
}

// ResolveBest maps a best-price selection (e.g. a tap on the best-price
// table) to an intent for the station holding that record.
func ResolveBest(view *derive.DerivedView, fuel api.FuelType, mode Mode) (Intent, bool) {
	rec := view.Best.ForFuel(fuel)
	if rec == nil {
		return Intent{}, false
	}
	return Resolve(view, rec.StationID, fuel, mode)
}
