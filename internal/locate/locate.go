// Package locate resolves the user's reference coordinate, either from
// a device position source or from a free-text geocoding lookup.
package locate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tankfinder/tankfinder/pkg/api"
)

// Normalized geolocation failures. Callers are expected to fall back to
// a default coordinate on any of these rather than surfacing platform
// errors to the end user.
var (
	ErrUnsupported         = errors.New("geolocation: not supported on this device")
	ErrPermissionDenied    = errors.New("geolocation: permission denied")
	ErrPositionUnavailable = errors.New("geolocation: position unavailable")
	ErrTimeout             = errors.New("geolocation: timed out")
)

// Platform error codes, numbered like the W3C geolocation API.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

// SourceError is the raw failure a PositionSource reports.
type SourceError struct {
	Code    int
	Message string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("position source error %d: %s", e.Code, e.Message)
}

// Options mirror a single-shot platform position request.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxCacheAge  time.Duration
}

// PositionSource is the device location API. Implementations report
// failures as *SourceError where a platform code exists.
type PositionSource interface {
	Current(ctx context.Context, opts Options) (api.Coordinate, error)
}

// Adapter wraps a PositionSource and normalizes its failures into the
// four error kinds above. It performs single-shot requests only;
// serializing overlapping calls is the caller's responsibility.
type Adapter struct {
	source PositionSource
	opts   Options
}

// NewAdapter creates an adapter over source. A nil source models a
// platform without geolocation support.
func NewAdapter(source PositionSource, opts Options) *Adapter {
	return &Adapter{source: source, opts: opts}
}

// Current requests the device position once, bounded by the configured
// timeout.
func (a *Adapter) Current(ctx context.Context) (api.Coordinate, error) {
	if a.source == nil {
		return api.Coordinate{}, ErrUnsupported
	}

	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	pos, err := a.source.Current(ctx, a.opts)
	if err != nil {
		return api.Coordinate{}, normalize(err)
	}
	if !pos.Valid() {
		return api.Coordinate{}, fmt.Errorf("%w: coordinates out of range", ErrPositionUnavailable)
	}
	return pos, nil
}

// CurrentOrDefault returns the device position, or fallback on any
// failure. The pipeline must always have a usable reference coordinate.
func (a *Adapter) CurrentOrDefault(ctx context.Context, fallback api.Coordinate) api.Coordinate {
	pos, err := a.Current(ctx)
	if err != nil {
		return fallback
	}
	return pos
}

func normalize(err error) error {
	var se *SourceError
	if errors.As(err, &se) {
		switch se.Code {
		case CodePermissionDenied:
			return ErrPermissionDenied
		case CodePositionUnavailable:
			return ErrPositionUnavailable
		case CodeTimeout:
			return ErrTimeout
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
}
