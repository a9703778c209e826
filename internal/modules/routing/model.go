// README: Delivery route aggregate produced by the optimizer.
package routing

import (
	"errors"
	"time"

	"spoke/internal/types"
)

type RouteStatus string

const (
	RoutePlanned    RouteStatus = "PLANNED"
	RouteInProgress RouteStatus = "IN_PROGRESS"
	RouteCompleted  RouteStatus = "COMPLETED"
	RouteCancelled  RouteStatus = "CANCELLED"
)

var (
	ErrNotFound            = errors.New("route not found")
	ErrInvalidRouteMove    = errors.New("invalid route status change")
	ErrBelowThreshold      = errors.New("depot batch below threshold")
	ErrCourierOverCapacity = errors.New("courier has no capacity for the route")
)

// Stop is one drop in visiting order.
type Stop struct {
	Seq     int
	OrderID types.ID
	Address string
	Point   types.Point
}

type DeliveryRoute struct {
	ID               types.ID
	CourierID        *types.ID
	DepotID          types.ID
	Status           RouteStatus
	Stops            []Stop
	TotalDistanceKm  float64
	TotalDurationMin int
	SavingsKm        float64
	TotalParcels     int
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}
