// README: Order store backed by PostgreSQL; transitions commit the status
// CAS and the audit event in one transaction.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spoke/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, order_number, customer_id, status, status_version,
	pickup_address, pickup_lat, pickup_lng, drop_address, drop_lat, drop_lng,
	package_size, vehicle,
	distance_km, time_factor, base_cost, surge_multiplier, surge_reason,
	courier_bonus, addon_cost, batch_discount, subscription_discount, total_cost,
	addons, plan, free_delivery_applied, is_express, is_batch_eligible,
	payment_mode, cod_collected,
	pickup_courier_id, delivery_courier_id, route_id, depot_id,
	pickup_slot, idempotency_key,
	created_at, pickup_confirmed_at, delivered_at, cancelled_at`

// Create inserts the order and its creation audit event in one transaction.
// When an idempotency key is present and a prior order already carries it,
// the prior order is returned and created is false.
func (s *Store) Create(ctx context.Context, o *Order) (*Order, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number, customer_id, status, status_version,
			pickup_address, pickup_lat, pickup_lng, drop_address, drop_lat, drop_lng,
			package_size, vehicle,
			distance_km, time_factor, base_cost, surge_multiplier, surge_reason,
			courier_bonus, addon_cost, batch_discount, subscription_discount, total_cost,
			addons, plan, free_delivery_applied, is_express, is_batch_eligible,
			payment_mode, cod_collected,
			pickup_slot, idempotency_key, created_at
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9,$10,$11,
			$12,$13,
			$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,
			$24,$25,$26,$27,$28,
			$29,$30,
			$31,$32,$33
		) ON CONFLICT (idempotency_key) DO NOTHING`,
		string(o.ID), o.OrderNumber, string(o.CustomerID), string(o.Status), o.StatusVersion,
		o.PickupAddress, o.PickupPoint.Lat, o.PickupPoint.Lng, o.DropAddress, o.DropPoint.Lat, o.DropPoint.Lng,
		string(o.PackageSize), string(o.Vehicle),
		o.DistanceKm, string(o.TimeFactor), o.BaseCost, o.SurgeMultiplier, o.SurgeReason,
		o.CourierBonus, o.AddonCost, o.BatchDiscount, o.SubscriptionDiscount, o.TotalCost,
		o.Addons, string(o.Plan), o.FreeDeliveryApplied, o.IsExpress, o.IsBatchEligible,
		string(o.PaymentMode), o.CODCollected,
		o.PickupSlot, o.IdempotencyKey, o.CreatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() != 1 {
		existing, err := s.GetByIdempotencyKey(ctx, *o.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor_type, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		string(o.ID), string(StatusNone), string(o.Status), "customer", o.CreatedAt,
	); err != nil {
		return nil, false, err
	}
	return o, true, tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

func (s *Store) GetByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE idempotency_key = $1`, key)
	return scanOrder(row)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID types.ID, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2`, string(customerID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// Mutation carries the column writes that ride along with a transition.
type Mutation struct {
	ActorType         string
	PickupCourierID   *types.ID
	DeliveryCourierID *types.ID
	RouteID           *types.ID
	DepotID           *types.ID
	PickupSlot        *time.Time
	Pricing           *PricingColumns
	CODCollected      bool
}

// PricingColumns is the denormalized breakdown written when a slot booking
// reprices the order.
type PricingColumns struct {
	TimeFactor           string
	BaseCost             float64
	SurgeMultiplier      float64
	SurgeReason          string
	CourierBonus         float64
	AddonCost            float64
	BatchDiscount        float64
	SubscriptionDiscount float64
	TotalCost            float64
}

// Transition performs the optimistic status swap and appends the audit event
// atomically. A false return means the CAS lost (stale version or status).
func (s *Store) Transition(ctx context.Context, id types.ID, from, to Status, version int, mut Mutation) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	args := []any{
		string(to),                        // $1
		string(id),                        // $2
		string(from),                      // $3
		version,                           // $4
		idPtr(mut.PickupCourierID),        // $5
		idPtr(mut.DeliveryCourierID),      // $6
		idPtr(mut.RouteID),                // $7
		idPtr(mut.DepotID),                // $8
		mut.PickupSlot,                    // $9
		mut.CODCollected,                  // $10
	}
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
			status_version = status_version + 1,
			pickup_courier_id = COALESCE($5, pickup_courier_id),
			delivery_courier_id = COALESCE($6, delivery_courier_id),
			route_id = COALESCE($7, route_id),
			depot_id = COALESCE($8, depot_id),
			pickup_slot = COALESCE($9, pickup_slot),
			cod_collected = cod_collected OR $10,
			pickup_confirmed_at = CASE WHEN $1 = 'PICKED_UP' THEN NOW() ELSE pickup_confirmed_at END,
			delivered_at = CASE WHEN $1 = 'DELIVERED' THEN NOW() ELSE delivered_at END,
			cancelled_at = CASE WHEN $1 IN ('CANCELLED','REFUNDED') THEN NOW() ELSE cancelled_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		args...,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if p := mut.Pricing; p != nil {
		_, err = tx.Exec(ctx, `
			UPDATE orders
			SET time_factor = $1, base_cost = $2, surge_multiplier = $3, surge_reason = $4,
				courier_bonus = $5, addon_cost = $6, batch_discount = $7,
				subscription_discount = $8, total_cost = $9
			WHERE id = $10`,
			p.TimeFactor, p.BaseCost, p.SurgeMultiplier, p.SurgeReason,
			p.CourierBonus, p.AddonCost, p.BatchDiscount,
			p.SubscriptionDiscount, p.TotalCost, string(id),
		)
		if err != nil {
			return false, err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor_type, created_at)
		VALUES ($1,$2,$3,$4,NOW())`,
		string(id), string(from), string(to), mut.ActorType,
	)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) Events(ctx context.Context, id types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, from_status, to_status, actor_type, created_at
		FROM order_events WHERE order_id = $1 ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.ActorType, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountActive feeds the surge ratio's demand side.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE status NOT IN ('DELIVERED','COMPLETED','CANCELLED','REFUNDED')`).Scan(&n)
	return n, err
}

func (s *Store) CountAtDepot(ctx context.Context, depotID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE status = 'AT_DEPOT' AND depot_id = $1`, string(depotID)).Scan(&n)
	return n, err
}

func (s *Store) ListAtDepot(ctx context.Context, depotID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = 'AT_DEPOT' AND depot_id = $1
		ORDER BY created_at`, string(depotID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListPendingPickups returns paid orders still waiting for a pickup courier,
// the candidate set for return-trip detours.
func (s *Store) ListPendingPickups(ctx context.Context) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ('PAYMENT_CONFIRMED','PICKUP_SCHEDULED')
		  AND pickup_courier_id IS NULL
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// BookedPickups implements schedule.BookingSource: pickups booked per slot
// start within the window, counting only orders still headed for pickup.
// Keys are Unix seconds so equal instants match across time zones and
// monotonic-clock readings.
func (s *Store) BookedPickups(ctx context.Context, from, to time.Time) (map[int64]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pickup_slot, COUNT(*)
		FROM orders
		WHERE pickup_slot >= $1 AND pickup_slot < $2
		  AND status IN ('PICKUP_SCHEDULED','PICKUP_COURIER_ASSIGNED','PICKUP_EN_ROUTE')
		GROUP BY pickup_slot`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := make(map[int64]int)
	for rows.Next() {
		var slot time.Time
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		booked[slot.Unix()] = n
	}
	return booked, rows.Err()
}

func scanOrders(rows pgx.Rows) ([]*Order, error) {
	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var pickupCourier, deliveryCourier, routeID, depotID sql.NullString
	var idemKey sql.NullString
	var pickupSlot, pickupConfirmedAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.StatusVersion,
		&o.PickupAddress, &o.PickupPoint.Lat, &o.PickupPoint.Lng,
		&o.DropAddress, &o.DropPoint.Lat, &o.DropPoint.Lng,
		&o.PackageSize, &o.Vehicle,
		&o.DistanceKm, &o.TimeFactor, &o.BaseCost, &o.SurgeMultiplier, &o.SurgeReason,
		&o.CourierBonus, &o.AddonCost, &o.BatchDiscount, &o.SubscriptionDiscount, &o.TotalCost,
		&o.Addons, &o.Plan, &o.FreeDeliveryApplied, &o.IsExpress, &o.IsBatchEligible,
		&o.PaymentMode, &o.CODCollected,
		&pickupCourier, &deliveryCourier, &routeID, &depotID,
		&pickupSlot, &idemKey,
		&o.CreatedAt, &pickupConfirmedAt, &deliveredAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.PickupCourierID = toIDPtr(pickupCourier)
	o.DeliveryCourierID = toIDPtr(deliveryCourier)
	o.RouteID = toIDPtr(routeID)
	o.DepotID = toIDPtr(depotID)
	if idemKey.Valid {
		o.IdempotencyKey = &idemKey.String
	}
	o.PickupSlot = toTimePtr(pickupSlot)
	o.PickupConfirmedAt = toTimePtr(pickupConfirmedAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	return &o, nil
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
