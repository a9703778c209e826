// README: Order service drives the delivery lifecycle and its side effects.
package order

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spoke/internal/maps"
	"spoke/internal/modules/pricing"
	"spoke/internal/modules/schedule"
	"spoke/internal/notify"
	"spoke/internal/observability"
	"spoke/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrBadRequest        = errors.New("bad order request")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrConflict          = errors.New("order state conflict")
	ErrSlotUnavailable   = errors.New("pickup slot unavailable")
)

// Geo resolves addresses and estimates trip distances.
type Geo interface {
	Distance(ctx context.Context, origin, dest types.Point) (maps.Estimate, error)
	Geocode(ctx context.Context, address string) (maps.Place, error)
}

// OTP issues and verifies the one-time codes gating pickup and drop.
type OTP interface {
	Issue(ctx context.Context, orderID types.ID, leg string) (string, error)
	Verify(ctx context.Context, orderID types.ID, leg, code string) error
}

// Supply reports the on-duty courier count for the surge ratio and releases
// a pickup courier's load once its parcel is handed in at the depot.
type Supply interface {
	CountOnDuty(ctx context.Context) (int, error)
	ReleasePickup(ctx context.Context, id types.ID) error
}

// DepotLoad tracks a depot's pending-parcel count.
type DepotLoad interface {
	AdjustLoad(ctx context.Context, id types.ID, delta int) (int, error)
}

// Slots exposes the bookable pickup windows.
type Slots interface {
	AvailableSlots(ctx context.Context, now time.Time) ([]schedule.TimeSlot, error)
}

type Service struct {
	store          *Store
	geo            Geo
	otps           OTP
	supply         Supply
	depots         DepotLoad
	slots          Slots
	notifier       notify.Notifier
	batchThreshold int
	log            *slog.Logger
}

func NewService(store *Store, geo Geo, otps OTP, supply Supply, depots DepotLoad, slots Slots, notifier notify.Notifier, batchThreshold int, log *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:          store,
		geo:            geo,
		otps:           otps,
		supply:         supply,
		depots:         depots,
		slots:          slots,
		notifier:       notifier,
		batchThreshold: batchThreshold,
		log:            log,
	}
}

type CreateCommand struct {
	CustomerID     types.ID
	PickupAddress  string
	DropAddress    string
	Size           pricing.PackageSize
	Addons         []pricing.Addon
	IsExpress      bool
	BatchEligible  bool
	PaymentMode    PaymentMode
	Plan           pricing.Plan
	FreeDeliveries int
	IdempotencyKey string
}

// quote is the geocoded and priced view of a create/estimate request.
type quote struct {
	pickup    maps.Place
	drop      maps.Place
	estimate  maps.Estimate
	breakdown pricing.Breakdown
}

func (s *Service) buildQuote(ctx context.Context, cmd CreateCommand) (*quote, error) {
	if cmd.CustomerID == "" || cmd.PickupAddress == "" || cmd.DropAddress == "" {
		return nil, ErrBadRequest
	}
	if !pricing.ValidSize(cmd.Size) {
		return nil, ErrBadRequest
	}
	if cmd.Plan != "" && !pricing.ValidPlan(cmd.Plan) {
		return nil, ErrBadRequest
	}
	for _, a := range cmd.Addons {
		if !pricing.ValidAddon(a) {
			return nil, ErrBadRequest
		}
	}

	pickup, err := s.geo.Geocode(ctx, cmd.PickupAddress)
	if err != nil {
		return nil, err
	}
	drop, err := s.geo.Geocode(ctx, cmd.DropAddress)
	if err != nil {
		return nil, err
	}
	est, err := s.geo.Distance(ctx, pickup.Point, drop.Point)
	if err != nil {
		return nil, err
	}

	surgeMult, surgeReason := s.currentSurge(ctx)

	tf := pricing.TimeStandard
	if cmd.IsExpress {
		tf = pricing.TimeExpress
	}
	var sub *pricing.Subscription
	if cmd.Plan != "" {
		sub = &pricing.Subscription{Plan: cmd.Plan, FreeDeliveriesRemaining: cmd.FreeDeliveries}
	}
	bd := pricing.Calculate(pricing.Input{
		DistanceKm:      est.DistanceKm,
		DurationMin:     est.DurationMin,
		Size:            cmd.Size,
		TimeFactor:      tf,
		SurgeMultiplier: surgeMult,
		SurgeReason:     surgeReason,
		Addons:          cmd.Addons,
		BatchEligible:   cmd.BatchEligible,
		Subscription:    sub,
	})
	return &quote{pickup: pickup, drop: drop, estimate: est, breakdown: bd}, nil
}

// currentSurge derives the live demand/supply multiplier. Store failures
// degrade to no surge rather than blocking the quote.
func (s *Service) currentSurge(ctx context.Context) (float64, string) {
	active, err := s.store.CountActive(ctx)
	if err != nil {
		s.log.Warn("surge demand count failed", "error", err)
		return 1.0, ""
	}
	couriers, err := s.supply.CountOnDuty(ctx)
	if err != nil {
		s.log.Warn("surge supply count failed", "error", err)
		return 1.0, ""
	}
	return pricing.Surge(active, couriers)
}

// Estimate prices a prospective order without persisting anything.
func (s *Service) Estimate(ctx context.Context, cmd CreateCommand) (*pricing.Breakdown, error) {
	q, err := s.buildQuote(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return &q.breakdown, nil
}

// Create books the order. A repeated idempotency key returns the first
// order untouched.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if !ValidPaymentMode(cmd.PaymentMode) {
		return nil, ErrBadRequest
	}
	q, err := s.buildQuote(ctx, cmd)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	addons := make([]string, len(cmd.Addons))
	for i, a := range cmd.Addons {
		addons[i] = string(a)
	}
	o := &Order{
		ID:                   types.ID(uuid.NewString()),
		OrderNumber:          newOrderNumber(now),
		CustomerID:           cmd.CustomerID,
		Status:               StatusPlaced,
		PickupAddress:        q.pickup.Formatted,
		PickupPoint:          q.pickup.Point,
		DropAddress:          q.drop.Formatted,
		DropPoint:            q.drop.Point,
		PackageSize:          cmd.Size,
		Vehicle:              q.breakdown.Vehicle,
		DistanceKm:           q.breakdown.DistanceKm,
		TimeFactor:           q.breakdown.TimeFactor,
		BaseCost:             q.breakdown.BaseCost,
		SurgeMultiplier:      q.breakdown.SurgeMultiplier,
		SurgeReason:          q.breakdown.SurgeReason,
		CourierBonus:         q.breakdown.CourierSurgeBonus,
		AddonCost:            q.breakdown.AddonsCost,
		BatchDiscount:        q.breakdown.BatchDiscount,
		SubscriptionDiscount: q.breakdown.SubscriptionDiscount,
		TotalCost:            q.breakdown.TotalCost,
		Addons:               addons,
		Plan:                 cmd.Plan,
		FreeDeliveryApplied:  q.breakdown.FreeDeliveryApplied,
		IsExpress:            cmd.IsExpress,
		IsBatchEligible:      cmd.BatchEligible,
		PaymentMode:          cmd.PaymentMode,
		CreatedAt:            now,
	}
	if cmd.IdempotencyKey != "" {
		o.IdempotencyKey = &cmd.IdempotencyKey
	}

	stored, created, err := s.store.Create(ctx, o)
	if err != nil {
		return nil, err
	}
	if !created {
		return stored, nil
	}

	observability.OrdersCreated.Inc()
	s.notifier.Notify(ctx, o.CustomerID, "order.placed", map[string]any{
		"order_number": o.OrderNumber,
		"total_cost":   o.TotalCost,
	})
	s.log.Info("order placed",
		"order_id", string(o.ID),
		"order_number", o.OrderNumber,
		"total", o.TotalCost,
		"surge", o.SurgeMultiplier,
	)
	return stored, nil
}

type SchedulePickupCommand struct {
	OrderID   types.ID
	SlotStart time.Time
}

// SchedulePickup books an open slot and reprices the order for the slot's
// urgency bucket.
func (s *Service) SchedulePickup(ctx context.Context, cmd SchedulePickupCommand) (*Order, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusPickupScheduled) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	open, err := s.slots.AvailableSlots(ctx, now)
	if err != nil {
		return nil, err
	}
	var slot *schedule.TimeSlot
	for i := range open {
		if open[i].Start.Equal(cmd.SlotStart) {
			slot = &open[i]
			break
		}
	}
	if slot == nil {
		return nil, ErrSlotUnavailable
	}

	tf := schedule.TimeFactorFor(o.IsExpress, slot.Start, now)
	bd := s.reprice(ctx, o, tf)

	start := slot.Start
	ok, err := s.store.Transition(ctx, o.ID, o.Status, StatusPickupScheduled, o.StatusVersion, Mutation{
		ActorType:  "customer",
		PickupSlot: &start,
		Pricing: &PricingColumns{
			TimeFactor:           string(bd.TimeFactor),
			BaseCost:             bd.BaseCost,
			SurgeMultiplier:      bd.SurgeMultiplier,
			SurgeReason:          bd.SurgeReason,
			CourierBonus:         bd.CourierSurgeBonus,
			AddonCost:            bd.AddonsCost,
			BatchDiscount:        bd.BatchDiscount,
			SubscriptionDiscount: bd.SubscriptionDiscount,
			TotalCost:            bd.TotalCost,
		},
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, o.ID)
}

// reprice recomputes the breakdown for a new time factor, preserving a full
// subscription credit the original quote already granted.
func (s *Service) reprice(ctx context.Context, o *Order, tf pricing.TimeFactor) pricing.Breakdown {
	surgeMult, surgeReason := s.currentSurge(ctx)

	var sub *pricing.Subscription
	if o.Plan != "" {
		// A full free-delivery credit zeroed the post-batch subtotal at
		// quote time; carry it through the reprice.
		free := 0
		if o.FreeDeliveryApplied {
			free = 1
		}
		sub = &pricing.Subscription{Plan: o.Plan, FreeDeliveriesRemaining: free}
	}
	addons := make([]pricing.Addon, len(o.Addons))
	for i, a := range o.Addons {
		addons[i] = pricing.Addon(a)
	}
	return pricing.Calculate(pricing.Input{
		DistanceKm:      o.DistanceKm,
		Size:            o.PackageSize,
		TimeFactor:      tf,
		SurgeMultiplier: surgeMult,
		SurgeReason:     surgeReason,
		Addons:          addons,
		BatchEligible:   o.IsBatchEligible,
		Subscription:    sub,
	})
}

// ConfirmPayment settles the order and issues the pickup and drop codes.
// Courier assignment is triggered by the caller once this commits.
func (s *Service) ConfirmPayment(ctx context.Context, id types.ID) (*Order, error) {
	o, err := s.transition(ctx, id, StatusPaymentConfirmed, Mutation{ActorType: "customer"})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"order_number": o.OrderNumber}
	if code, err := s.otps.Issue(ctx, o.ID, "pickup"); err == nil {
		payload["pickup_otp"] = code
	} else {
		s.log.Error("pickup otp issue failed", "order_id", string(o.ID), "error", err)
	}
	if code, err := s.otps.Issue(ctx, o.ID, "drop"); err == nil {
		payload["drop_otp"] = code
	} else {
		s.log.Error("drop otp issue failed", "order_id", string(o.ID), "error", err)
	}
	s.notifier.Notify(ctx, o.CustomerID, "order.payment_confirmed", payload)
	return o, nil
}

func (s *Service) MarkPickupEnRoute(ctx context.Context, id types.ID) (*Order, error) {
	return s.transition(ctx, id, StatusPickupEnRoute, Mutation{ActorType: "courier"})
}

// VerifyPickupOTP gates the hand-off from customer to courier.
func (s *Service) VerifyPickupOTP(ctx context.Context, id types.ID, code string) (*Order, error) {
	return s.verifyOTP(ctx, id, "pickup", code, StatusPickedUp)
}

// VerifyDropOTP gates the final hand-off to the recipient.
func (s *Service) VerifyDropOTP(ctx context.Context, id types.ID, code string) (*Order, error) {
	return s.verifyOTP(ctx, id, "drop", code, StatusDelivered)
}

func (s *Service) verifyOTP(ctx context.Context, id types.ID, leg, code string, to Status) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	if err := s.otps.Verify(ctx, o.ID, leg, code); err != nil {
		observability.OTPRejections.Inc()
		return nil, err
	}
	ok, err := s.store.Transition(ctx, o.ID, o.Status, to, o.StatusVersion, Mutation{ActorType: "courier"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.notifier.Notify(ctx, o.CustomerID, "order."+string(to), map[string]any{"order_number": o.OrderNumber})
	return s.store.Get(ctx, id)
}

// GenerateOTP re-issues a leg's code, replacing any prior one.
func (s *Service) GenerateOTP(ctx context.Context, id types.ID, leg string) (string, error) {
	if leg != "pickup" && leg != "drop" {
		return "", ErrBadRequest
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if terminal(o.Status) || o.Status == StatusPlaced {
		return "", ErrInvalidTransition
	}
	if leg == "pickup" && o.PickupConfirmedAt != nil {
		return "", ErrInvalidTransition
	}
	if leg == "drop" && o.DeliveredAt != nil {
		return "", ErrInvalidTransition
	}
	return s.otps.Issue(ctx, o.ID, leg)
}

func (s *Service) DepartToDepot(ctx context.Context, id types.ID) (*Order, error) {
	return s.transition(ctx, id, StatusInTransitToDepot, Mutation{ActorType: "courier"})
}

type IntakeResult struct {
	Order        *Order
	PendingCount int
	ThresholdMet bool
}

// DepotIntake books the parcel into the hub and reports whether the depot's
// pending batch has reached the optimization threshold.
func (s *Service) DepotIntake(ctx context.Context, id, depotID types.ID) (*IntakeResult, error) {
	did := depotID
	o, err := s.transition(ctx, id, StatusAtDepot, Mutation{ActorType: "courier", DepotID: &did})
	if err != nil {
		return nil, err
	}
	if _, err := s.depots.AdjustLoad(ctx, depotID, 1); err != nil {
		s.log.Error("depot load bump failed", "depot_id", string(depotID), "error", err)
	}
	if o.PickupCourierID != nil {
		if err := s.supply.ReleasePickup(ctx, *o.PickupCourierID); err != nil {
			s.log.Error("pickup courier release failed", "courier_id", string(*o.PickupCourierID), "error", err)
		}
	}
	pending, err := s.store.CountAtDepot(ctx, depotID)
	if err != nil {
		return nil, err
	}
	return &IntakeResult{
		Order:        o,
		PendingCount: pending,
		ThresholdMet: pending >= s.batchThreshold,
	}, nil
}

// Complete closes a delivered order, marking cash collection for COD.
func (s *Service) Complete(ctx context.Context, id types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, id, StatusCompleted, Mutation{
		ActorType:    "system",
		CODCollected: o.PaymentMode == PayCOD,
	})
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string
	Reason    string
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Order, error) {
	if cmd.ActorType == "" {
		cmd.ActorType = "customer"
	}
	o, err := s.transition(ctx, cmd.OrderID, StatusCancelled, Mutation{ActorType: cmd.ActorType})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, o.CustomerID, "order.cancelled", map[string]any{
		"order_number": o.OrderNumber,
		"reason":       cmd.Reason,
	})
	return o, nil
}

func (s *Service) Refund(ctx context.Context, id types.ID) (*Order, error) {
	o, err := s.transition(ctx, id, StatusRefunded, Mutation{ActorType: "system"})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, o.CustomerID, "order.refunded", map[string]any{
		"order_number": o.OrderNumber,
		"amount":       o.TotalCost,
	})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Track(ctx context.Context, id types.ID) (*Order, []Event, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.store.Events(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, events, nil
}

// ListAtDepot reports the parcels a depot is currently holding.
func (s *Service) ListAtDepot(ctx context.Context, depotID types.ID) ([]*Order, error) {
	return s.store.ListAtDepot(ctx, depotID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]*Order, error) {
	return s.store.ListByCustomer(ctx, customerID, limit)
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, mut Mutation) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.store.Transition(ctx, o.ID, o.Status, to, o.StatusVersion, mut)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, id)
}

func newOrderNumber(now time.Time) string {
	var b [2]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint16(b[:]) % 10000
	return fmt.Sprintf("PCL-%s-%04d", now.Format("060102"), n)
}
