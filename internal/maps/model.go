// README: Geo-distance provider boundary types.
package maps

import (
	"context"
	"errors"

	"spoke/internal/types"
)

// Source tells the caller how an estimate was produced.
type Source string

const (
	SourceCache    Source = "cache"
	SourceExternal Source = "external"
	SourceFallback Source = "fallback"
)

// Estimate is a travel estimate between two points.
type Estimate struct {
	DistanceKm  float64
	DurationMin int
	Source      Source
}

// Provider is the distance interface the dispatch core consumes. Callers must
// tolerate the fallback path silently returning a less accurate estimate.
type Provider interface {
	Distance(ctx context.Context, origin, dest types.Point) (Estimate, error)
}

// Place is a resolved address.
type Place struct {
	Point     types.Point
	Formatted string
}

// ErrUnresolvedAddress means no provider could geocode the address.
var ErrUnresolvedAddress = errors.New("address could not be resolved")
