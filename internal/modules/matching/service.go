// README: Matching service: nearest-courier pickup assignment and return-trip
// detour lookups.
package matching

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"spoke/internal/config"
	"spoke/internal/maps"
	"spoke/internal/modules/courier"
	"spoke/internal/modules/depot"
	"spoke/internal/modules/order"
	"spoke/internal/notify"
	"spoke/internal/observability"
	"spoke/internal/types"
)

type Service struct {
	store    *Store
	orders   *order.Store
	couriers *courier.Store
	depots   *depot.Store
	geo      maps.Provider
	cfg      config.DispatchConfig
	notifier notify.Notifier
	log      *slog.Logger
}

func NewService(store *Store, orders *order.Store, couriers *courier.Store, depots *depot.Store, geo maps.Provider, cfg config.DispatchConfig, notifier notify.Notifier, log *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		orders:   orders,
		couriers: couriers,
		depots:   depots,
		geo:      geo,
		cfg:      cfg,
		notifier: notifier,
		log:      log,
	}
}

// AssignPickup matches the order to the nearest eligible courier. Calling it
// on an already-assigned order is a no-op returning the existing assignment.
// ErrNoEligibleCourier is non-fatal: the order stays put for a later retry.
func (s *Service) AssignPickup(ctx context.Context, orderID types.ID) (*Assignment, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PickupCourierID != nil {
		return &Assignment{OrderID: o.ID, CourierID: *o.PickupCourierID}, nil
	}
	if !order.CanTransition(o.Status, order.StatusPickupCourierAssigned) {
		return nil, order.ErrInvalidTransition
	}

	cands, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}
	ranked := Rank(ctx, s.geo, o.PickupPoint, cands, s.cfg.ZoneRadiusKm)
	if len(ranked) == 0 {
		observability.AssignmentMisses.Inc()
		return nil, ErrNoEligibleCourier
	}

	// Candidates were scanned lock-free; each reservation re-checks the
	// courier under a row lock and may lose, so walk down the ranking.
	for _, cand := range ranked {
		ok, err := s.store.Reserve(ctx, o.ID, cand.ID, o.Status, o.StatusVersion)
		if errors.Is(err, ErrCourierFull) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			// The order itself changed underneath us; resync.
			return nil, order.ErrConflict
		}

		observability.PickupAssignments.Inc()
		s.notifier.Notify(ctx, cand.ID, "pickup.assigned", map[string]any{
			"order_number": o.OrderNumber,
			"pickup":       o.PickupAddress,
			"distance_km":  cand.TravelKm,
		})
		s.notifier.Notify(ctx, o.CustomerID, "order.courier_assigned", map[string]any{
			"order_number": o.OrderNumber,
		})
		s.log.Info("pickup assigned",
			"order_id", string(o.ID),
			"courier_id", string(cand.ID),
			"travel_km", cand.TravelKm,
			"source", string(cand.Estimate.Source),
		)
		return &Assignment{
			OrderID:   o.ID,
			CourierID: cand.ID,
			TravelKm:  cand.TravelKm,
			Source:    cand.Estimate.Source,
		}, nil
	}

	observability.AssignmentMisses.Inc()
	return nil, ErrNoEligibleCourier
}

// candidates resolves the eligible pool with effective positions.
func (s *Service) candidates(ctx context.Context) ([]Candidate, error) {
	pool, err := s.couriers.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	depotPoints := map[types.ID]types.Point{}

	var cands []Candidate
	for _, c := range pool {
		pt, ok := depotPoints[c.DepotID]
		if !ok {
			d, err := s.depots.Get(ctx, c.DepotID)
			if err != nil {
				s.log.Warn("courier depot missing", "courier_id", string(c.ID), "depot_id", string(c.DepotID))
				continue
			}
			pt = d.Point
			depotPoints[c.DepotID] = pt
		}
		pos, live := c.Location(pt, s.cfg.LocationFreshness, now)
		cands = append(cands, Candidate{ID: c.ID, Position: pos, Live: live})
	}
	return cands, nil
}

// ReturnPickups lists pending pickups a courier could absorb on its way back
// to the depot, cheapest detour first. Read-only; accepting a match goes
// through AssignPickup.
func (s *Service) ReturnPickups(ctx context.Context, courierID types.ID) ([]ReturnPickup, error) {
	c, err := s.couriers.Get(ctx, courierID)
	if err != nil {
		return nil, err
	}
	d, err := s.depots.Get(ctx, c.DepotID)
	if err != nil {
		return nil, err
	}
	pos, _ := c.Location(d.Point, s.cfg.LocationFreshness, time.Now())

	pending, err := s.orders.ListPendingPickups(ctx)
	if err != nil {
		return nil, err
	}
	pickups := make([]ReturnPickup, len(pending))
	for i, o := range pending {
		pickups[i] = ReturnPickup{
			OrderID:       o.ID,
			OrderNumber:   o.OrderNumber,
			PickupAddress: o.PickupAddress,
			PickupPoint:   o.PickupPoint,
		}
	}

	dist := func(a, b types.Point) float64 {
		est, err := s.geo.Distance(ctx, a, b)
		if err != nil {
			return maps.RoadKm(a, b)
		}
		return est.DistanceKm
	}
	return ReturnDetours(dist, pos, d.Point, pickups, s.cfg.MaxDetourKm, s.cfg.MaxReturnPickups), nil
}
