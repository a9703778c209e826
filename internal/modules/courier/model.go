// README: Courier identity, duty status, and position freshness.
package courier

import (
	"time"

	"spoke/internal/modules/pricing"
	"spoke/internal/types"
)

type DutyStatus string

const (
	DutyOffDuty    DutyStatus = "OFF_DUTY"
	DutyOnDuty     DutyStatus = "ON_DUTY"
	DutyOnPickup   DutyStatus = "ON_PICKUP"
	DutyOnDelivery DutyStatus = "ON_DELIVERY"
)

func ValidDuty(s DutyStatus) bool {
	switch s {
	case DutyOffDuty, DutyOnDuty, DutyOnPickup, DutyOnDelivery:
		return true
	}
	return false
}

type Courier struct {
	ID                types.ID
	Name              string
	Vehicle           pricing.Vehicle
	DutyStatus        DutyStatus
	DepotID           types.ID
	Position          *types.Point
	LastSeenAt        *time.Time
	ShiftStartHour    int
	ShiftEndHour      int
	MaxCapacity       int
	CurrentLoad       int
	MaxPickupsPerHour int
	CreatedAt         time.Time
}

// Location returns the courier's effective position. Live GPS reported within
// the freshness window wins; otherwise the home depot's position stands in.
func (c *Courier) Location(depot types.Point, freshness time.Duration, now time.Time) (types.Point, bool) {
	if c.Position != nil && c.LastSeenAt != nil && now.Sub(*c.LastSeenAt) <= freshness {
		return *c.Position, true
	}
	return depot, false
}

func (c *Courier) HasCapacity() bool {
	return c.CurrentLoad < c.MaxCapacity
}
