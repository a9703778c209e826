// README: Routing store: route persistence and the batch-optimization
// transaction pieces. The per-depot advisory lock serializes triggers.
package routing

import (
	"context"
	"database/sql"
	"errors"

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

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.db.Begin(ctx)
}

// LockDepot takes the transaction-scoped advisory lock for the depot so two
// concurrent triggers cannot double-optimize the same pending set.
func (s *Store) LockDepot(ctx context.Context, tx pgx.Tx, depotID types.ID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(depotID))
	return err
}

// Parcel is the slice of an order the optimizer needs.
type Parcel struct {
	OrderID       types.ID
	DropAddress   string
	DropPoint     types.Point
	StatusVersion int
}

func (s *Store) PendingAtDepot(ctx context.Context, tx pgx.Tx, depotID types.ID) ([]Parcel, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, drop_address, drop_lat, drop_lng, status_version
		FROM orders
		WHERE status = 'AT_DEPOT' AND depot_id = $1
		ORDER BY created_at
		FOR UPDATE`, string(depotID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Parcel
	for rows.Next() {
		var p Parcel
		if err := rows.Scan(&p.OrderID, &p.DropAddress, &p.DropPoint.Lat, &p.DropPoint.Lng, &p.StatusVersion); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeliveryCourier is a handout candidate with its capacity headroom.
type DeliveryCourier struct {
	ID       types.ID
	Load     int
	Capacity int
}

// AvailableDeliveryCouriers locks the on-duty pool with spare capacity for
// the handout. The rows stay locked for the whole optimization transaction,
// so load bookkeeping against this snapshot cannot race a concurrent trigger.
func (s *Store) AvailableDeliveryCouriers(ctx context.Context, tx pgx.Tx) ([]DeliveryCourier, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, current_load, max_capacity FROM couriers
		WHERE duty_status = 'ON_DUTY' AND current_load < max_capacity
		ORDER BY current_load, created_at
		FOR UPDATE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliveryCourier
	for rows.Next() {
		var c DeliveryCourier
		if err := rows.Scan(&c.ID, &c.Load, &c.Capacity); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertRoute(ctx context.Context, tx pgx.Tx, r *DeliveryRoute) error {
	var courierID *string
	if r.CourierID != nil {
		v := string(*r.CourierID)
		courierID = &v
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO delivery_routes (
			id, courier_id, depot_id, status,
			total_distance_km, total_duration_min, savings_km, total_parcels, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		string(r.ID), courierID, string(r.DepotID), string(r.Status),
		r.TotalDistanceKm, r.TotalDurationMin, r.SavingsKm, r.TotalParcels, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, st := range r.Stops {
		_, err = tx.Exec(ctx, `
			INSERT INTO delivery_route_stops (route_id, seq, order_id, address, lat, lng)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			string(r.ID), st.Seq, string(st.OrderID), st.Address, st.Point.Lat, st.Point.Lng,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SwapOrder moves an order between adjacent statuses inside the optimizer
// transaction, appending the audit event. The status predicate is the guard;
// a zero-row update reports a concurrent change.
func (s *Store) SwapOrder(ctx context.Context, tx pgx.Tx, orderID types.ID, from, to string, routeID, courierID *types.ID) (bool, error) {
	var rid, cid *string
	if routeID != nil {
		v := string(*routeID)
		rid = &v
	}
	if courierID != nil {
		v := string(*courierID)
		cid = &v
	}
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
			status_version = status_version + 1,
			route_id = COALESCE($2, route_id),
			delivery_courier_id = COALESCE($3, delivery_courier_id)
		WHERE id = $4 AND status = $5`,
		to, rid, cid, string(orderID), from)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor_type, created_at)
		VALUES ($1,$2,$3,'system',NOW())`,
		string(orderID), from, to)
	return err == nil, err
}

// LoadCourier adds the group onto the courier and marks it out delivering.
// The capacity recheck in the WHERE clause refuses an overload even if the
// caller's snapshot went stale.
func (s *Store) LoadCourier(ctx context.Context, tx pgx.Tx, courierID types.ID, parcels int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE couriers
		SET duty_status = 'ON_DELIVERY', current_load = current_load + $1
		WHERE id = $2 AND current_load + $1 <= max_capacity`, parcels, string(courierID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCourierOverCapacity
	}
	return nil
}

// ReleaseCourier returns a courier to the on-duty pool after its route ends.
func (s *Store) ReleaseCourier(ctx context.Context, courierID types.ID, parcels int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE couriers
		SET duty_status = 'ON_DUTY',
			current_load = GREATEST(current_load - $1, 0)
		WHERE id = $2`, parcels, string(courierID))
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*DeliveryRoute, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, courier_id, depot_id, status,
			total_distance_km, total_duration_min, savings_km, total_parcels,
			created_at, started_at, completed_at
		FROM delivery_routes WHERE id = $1`, string(id))

	var r DeliveryRoute
	var courierID sql.NullString
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&r.ID, &courierID, &r.DepotID, &r.Status,
		&r.TotalDistanceKm, &r.TotalDurationMin, &r.SavingsKm, &r.TotalParcels,
		&r.CreatedAt, &startedAt, &completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if courierID.Valid {
		id := types.ID(courierID.String)
		r.CourierID = &id
	}
	if startedAt.Valid {
		t := startedAt.Time
		r.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}

	rows, err := s.db.Query(ctx, `
		SELECT seq, order_id, address, lat, lng
		FROM delivery_route_stops
		WHERE route_id = $1 ORDER BY seq`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st Stop
		if err := rows.Scan(&st.Seq, &st.OrderID, &st.Address, &st.Point.Lat, &st.Point.Lng); err != nil {
			return nil, err
		}
		r.Stops = append(r.Stops, st)
	}
	return &r, rows.Err()
}

// UpdateStatus swaps the route status, stamping start/completion times.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to RouteStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_routes
		SET status = $1,
			started_at = CASE WHEN $1 = 'IN_PROGRESS' THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $1 IN ('COMPLETED','CANCELLED') THEN NOW() ELSE completed_at END
		WHERE id = $2 AND status = $3`,
		string(to), string(id), string(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountUndelivered reports stops on the route whose orders are not yet
// delivered, used to guard route completion.
func (s *Store) CountUndelivered(ctx context.Context, routeID types.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE route_id = $1
		  AND status NOT IN ('DELIVERED','COMPLETED','CANCELLED','REFUNDED')`,
		string(routeID)).Scan(&n)
	return n, err
}
