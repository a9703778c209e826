// README: Matching types: pickup candidates and assignment results.
package matching

import (
	"errors"

	"spoke/internal/maps"
	"spoke/internal/types"
)

var (
	ErrNoEligibleCourier = errors.New("no eligible courier")
	ErrCourierFull       = errors.New("courier at capacity")
)

// Candidate is a courier considered for a pickup. Live marks a fresh GPS
// position; false means the depot stand-in.
type Candidate struct {
	ID       types.ID
	Position types.Point
	Live     bool
}

// Ranked is a candidate with its travel estimate to the pickup point.
type Ranked struct {
	Candidate
	TravelKm float64
	Estimate maps.Estimate
}

// Assignment is the outcome of a pickup assignment.
type Assignment struct {
	OrderID   types.ID
	CourierID types.ID
	TravelKm  float64
	Source    maps.Source
}

// ReturnPickup is a pending pickup ranked by return-leg detour.
type ReturnPickup struct {
	OrderID       types.ID
	OrderNumber   string
	PickupAddress string
	PickupPoint   types.Point
	DetourKm      float64
}
