// README: Parcel order aggregate, lifecycle statuses, and transition table.
package order

import (
	"time"

	"spoke/internal/modules/pricing"
	"spoke/internal/types"
)

type Status string

const (
	StatusNone                    Status = "NONE"
	StatusPlaced                  Status = "PLACED"
	StatusPaymentConfirmed        Status = "PAYMENT_CONFIRMED"
	StatusPickupScheduled         Status = "PICKUP_SCHEDULED"
	StatusPickupCourierAssigned   Status = "PICKUP_COURIER_ASSIGNED"
	StatusPickupEnRoute           Status = "PICKUP_EN_ROUTE"
	StatusPickedUp                Status = "PICKED_UP"
	StatusInTransitToDepot        Status = "IN_TRANSIT_TO_DEPOT"
	StatusAtDepot                 Status = "AT_DEPOT"
	StatusRouteOptimized          Status = "ROUTE_OPTIMIZED"
	StatusDeliveryCourierAssigned Status = "DELIVERY_COURIER_ASSIGNED"
	StatusOutForDelivery          Status = "OUT_FOR_DELIVERY"
	StatusDelivered               Status = "DELIVERED"
	StatusCompleted               Status = "COMPLETED"
	StatusCancelled               Status = "CANCELLED"
	StatusRefunded                Status = "REFUNDED"
)

type PaymentMode string

const (
	PayCOD  PaymentMode = "COD"
	PayCard PaymentMode = "CARD"
	PayUPI  PaymentMode = "UPI"
)

func ValidPaymentMode(m PaymentMode) bool {
	switch m {
	case PayCOD, PayCard, PayUPI:
		return true
	}
	return false
}

type Order struct {
	ID          types.ID
	OrderNumber string
	CustomerID  types.ID

	Status        Status
	StatusVersion int

	PickupAddress string
	PickupPoint   types.Point
	DropAddress   string
	DropPoint     types.Point

	PackageSize pricing.PackageSize
	Vehicle     pricing.Vehicle

	DistanceKm           float64
	TimeFactor           pricing.TimeFactor
	BaseCost             float64
	SurgeMultiplier      float64
	SurgeReason          string
	CourierBonus         float64
	AddonCost            float64
	BatchDiscount        float64
	SubscriptionDiscount float64
	TotalCost            float64

	Addons              []string
	Plan                pricing.Plan
	FreeDeliveryApplied bool
	IsExpress           bool
	IsBatchEligible     bool

	PaymentMode  PaymentMode
	CODCollected bool

	PickupCourierID   *types.ID
	DeliveryCourierID *types.ID
	RouteID           *types.ID
	DepotID           *types.ID

	PickupSlot *time.Time

	IdempotencyKey *string

	CreatedAt         time.Time
	PickupConfirmedAt *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
}

type Event struct {
	ID        int64
	OrderID   types.ID
	From      Status
	To        Status
	ActorType string
	CreatedAt time.Time
}

// Transitions encodes the delivery lifecycle. Payment may go straight to
// assignment when no slot is booked (express). CANCELLED and REFUNDED are
// reachable from every non-terminal state via the cancellable helper below.
var Transitions = map[Status][]Status{
	StatusPlaced:                  {StatusPaymentConfirmed},
	StatusPaymentConfirmed:        {StatusPickupScheduled, StatusPickupCourierAssigned},
	StatusPickupScheduled:         {StatusPickupCourierAssigned},
	StatusPickupCourierAssigned:   {StatusPickupEnRoute},
	StatusPickupEnRoute:           {StatusPickedUp},
	StatusPickedUp:                {StatusInTransitToDepot},
	StatusInTransitToDepot:        {StatusAtDepot},
	StatusAtDepot:                 {StatusRouteOptimized},
	StatusRouteOptimized:          {StatusDeliveryCourierAssigned},
	StatusDeliveryCourierAssigned: {StatusOutForDelivery},
	StatusOutForDelivery:          {StatusDelivered},
	StatusDelivered:               {StatusCompleted},
}

func terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

func CanTransition(from, to Status) bool {
	if terminal(from) || from == StatusNone {
		return false
	}
	if to == StatusCancelled || to == StatusRefunded {
		return true
	}
	for _, s := range Transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
