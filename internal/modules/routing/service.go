// README: Route optimizer service: depot batching, solving, and courier
// handout, serialized per depot.
package routing

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"spoke/internal/config"
	"spoke/internal/maps"
	"spoke/internal/modules/depot"
	"spoke/internal/notify"
	"spoke/internal/observability"
	"spoke/internal/types"
)

// MatrixProvider produces the pairwise estimates the solver consumes.
type MatrixProvider interface {
	Matrix(ctx context.Context, points []types.Point) ([][]maps.Estimate, error)
}

type Service struct {
	store    *Store
	depots   *depot.Store
	geo      MatrixProvider
	cfg      config.DispatchConfig
	notifier notify.Notifier
	log      *slog.Logger
}

func NewService(store *Store, depots *depot.Store, geo MatrixProvider, cfg config.DispatchConfig, notifier notify.Notifier, log *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:    store,
		depots:   depots,
		geo:      geo,
		cfg:      cfg,
		notifier: notifier,
		log:      log,
	}
}

// OptimizeDepot batches the depot's held parcels into routes. A drained depot
// is a no-op returning no routes, so retriggering an already-optimized batch
// is harmless; a non-empty batch below the threshold reports ErrBelowThreshold
// without touching any order.
func (s *Service) OptimizeDepot(ctx context.Context, depotID types.ID) ([]*DeliveryRoute, error) {
	d, err := s.depots.Get(ctx, depotID)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.store.LockDepot(ctx, tx, depotID); err != nil {
		return nil, err
	}

	parcels, err := s.store.PendingAtDepot(ctx, tx, depotID)
	if err != nil {
		return nil, err
	}
	if len(parcels) == 0 {
		return nil, nil
	}
	if len(parcels) < s.cfg.BatchThreshold {
		s.log.Info("depot batch below threshold",
			"depot_id", string(depotID),
			"pending", len(parcels),
			"threshold", s.cfg.BatchThreshold,
		)
		return nil, ErrBelowThreshold
	}

	couriers, err := s.store.AvailableDeliveryCouriers(ctx, tx)
	if err != nil {
		return nil, err
	}

	var routes []*DeliveryRoute
	for _, group := range chunk(parcels, s.cfg.MaxParcelsPerRoute) {
		route, err := s.buildRoute(ctx, d, group)
		if err != nil {
			return nil, err
		}
		if i := pickCourier(couriers, len(group)); i >= 0 {
			cid := couriers[i].ID
			route.CourierID = &cid
			couriers[i].Load += len(group)
		}
		if err := s.store.InsertRoute(ctx, tx, route); err != nil {
			return nil, err
		}

		for _, p := range group {
			rid := route.ID
			ok, err := s.store.SwapOrder(ctx, tx, p.OrderID, "AT_DEPOT", "ROUTE_OPTIMIZED", &rid, nil)
			if err != nil {
				return nil, err
			}
			if !ok {
				s.log.Warn("parcel left the batch mid-optimization", "order_id", string(p.OrderID))
				continue
			}
			if route.CourierID != nil {
				if _, err := s.store.SwapOrder(ctx, tx, p.OrderID, "ROUTE_OPTIMIZED", "DELIVERY_COURIER_ASSIGNED", nil, route.CourierID); err != nil {
					return nil, err
				}
			}
		}
		if route.CourierID != nil {
			if err := s.store.LoadCourier(ctx, tx, *route.CourierID, route.TotalParcels); err != nil {
				return nil, err
			}
		}
		routes = append(routes, route)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for _, r := range routes {
		observability.RoutesOptimized.Inc()
		observability.RouteSavingsKm.Observe(r.SavingsKm)
		if r.CourierID != nil {
			s.notifier.Notify(ctx, *r.CourierID, "route.assigned", map[string]any{
				"route_id":    string(r.ID),
				"parcels":     r.TotalParcels,
				"distance_km": r.TotalDistanceKm,
			})
		}
		s.log.Info("route optimized",
			"route_id", string(r.ID),
			"depot_id", string(depotID),
			"parcels", r.TotalParcels,
			"distance_km", r.TotalDistanceKm,
			"savings_km", r.SavingsKm,
		)
	}
	return routes, nil
}

// buildRoute solves one group against the depot and shapes the result.
func (s *Service) buildRoute(ctx context.Context, d *depot.Depot, group []Parcel) (*DeliveryRoute, error) {
	points := make([]types.Point, 0, len(group)+1)
	points = append(points, d.Point)
	for _, p := range group {
		points = append(points, p.DropPoint)
	}

	matrix, err := s.metersMatrix(ctx, points)
	if err != nil {
		return nil, err
	}
	sol := Solve(matrix, s.cfg.SolveBudget)

	stops := make([]Stop, len(sol.Order))
	for i, idx := range sol.Order {
		p := group[idx-1]
		stops[i] = Stop{Seq: i + 1, OrderID: p.OrderID, Address: p.DropAddress, Point: p.DropPoint}
	}

	totalKm := round2(float64(sol.Meters) / 1000.0)
	return &DeliveryRoute{
		ID:               types.ID(uuid.NewString()),
		DepotID:          d.ID,
		Status:           RoutePlanned,
		Stops:            stops,
		TotalDistanceKm:  totalKm,
		TotalDurationMin: maps.EstimateDurationMin(totalKm),
		SavingsKm:        round2(float64(sol.SavingsMeters()) / 1000.0),
		TotalParcels:     len(group),
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// metersMatrix converts provider estimates to the solver's integer meters.
func (s *Service) metersMatrix(ctx context.Context, points []types.Point) ([][]int, error) {
	ests, err := s.geo.Matrix(ctx, points)
	if err != nil {
		return nil, err
	}
	matrix := make([][]int, len(points))
	for i := range matrix {
		matrix[i] = make([]int, len(points))
		for j := range matrix[i] {
			if i != j {
				matrix[i][j] = int(math.Round(ests[i][j].DistanceKm * 1000))
			}
		}
	}
	return matrix, nil
}

// StartRoute sends the courier out: the route goes IN_PROGRESS, its orders go
// OUT_FOR_DELIVERY, and the parcels leave the depot's load.
func (s *Service) StartRoute(ctx context.Context, routeID types.ID) (*DeliveryRoute, error) {
	r, err := s.store.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if r.Status != RoutePlanned || r.CourierID == nil {
		return nil, ErrInvalidRouteMove
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, st := range r.Stops {
		if _, err := s.store.SwapOrder(ctx, tx, st.OrderID, "DELIVERY_COURIER_ASSIGNED", "OUT_FOR_DELIVERY", nil, nil); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE delivery_routes
		SET status = 'IN_PROGRESS', started_at = NOW()
		WHERE id = $1 AND status = 'PLANNED'`, string(routeID)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if _, err := s.depots.AdjustLoad(ctx, r.DepotID, -r.TotalParcels); err != nil {
		s.log.Error("depot load release failed", "depot_id", string(r.DepotID), "error", err)
	}
	return s.store.Get(ctx, routeID)
}

// CompleteRoute closes the route once every stop is delivered and returns the
// courier to the on-duty pool with its load released.
func (s *Service) CompleteRoute(ctx context.Context, routeID types.ID) (*DeliveryRoute, error) {
	r, err := s.store.Get(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if r.Status != RouteInProgress {
		return nil, ErrInvalidRouteMove
	}
	undelivered, err := s.store.CountUndelivered(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if undelivered > 0 {
		return nil, ErrInvalidRouteMove
	}

	ok, err := s.store.UpdateStatus(ctx, routeID, RouteInProgress, RouteCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidRouteMove
	}
	if r.CourierID != nil {
		if err := s.store.ReleaseCourier(ctx, *r.CourierID, r.TotalParcels); err != nil {
			s.log.Error("courier release failed", "courier_id", string(*r.CourierID), "error", err)
		}
	}
	return s.store.Get(ctx, routeID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*DeliveryRoute, error) {
	return s.store.Get(ctx, id)
}

// pickCourier picks the least-loaded courier whose remaining capacity fits
// the group, or -1 when nobody fits. Callers bump the winner's Load so one
// courier does not swallow every route; a route nobody can carry stays
// PLANNED with no courier.
func pickCourier(couriers []DeliveryCourier, parcels int) int {
	best := -1
	for i, c := range couriers {
		if c.Load+parcels > c.Capacity {
			continue
		}
		if best < 0 || c.Load < couriers[best].Load {
			best = i
		}
	}
	return best
}

func chunk(parcels []Parcel, size int) [][]Parcel {
	if size <= 0 {
		size = 1
	}
	var groups [][]Parcel
	for len(parcels) > size {
		groups = append(groups, parcels[:size])
		parcels = parcels[size:]
	}
	if len(parcels) > 0 {
		groups = append(groups, parcels)
	}
	return groups
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
