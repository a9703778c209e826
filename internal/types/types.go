// README: Common value objects shared across modules.
package types

import "fmt"

// ID is an opaque entity identifier (UUID string in persistence).
type ID string

func (id ID) String() string { return string(id) }

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point is a plausible coordinate pair.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 && (p.Lat != 0 || p.Lng != 0)
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
