// README: Assignment store: the courier-reservation transaction.
package matching

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"spoke/internal/modules/courier"
	"spoke/internal/modules/order"
	"spoke/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Reserve binds the courier to the order in one transaction: the courier row
// is locked, capacity re-checked under the lock, load incremented, and the
// order swapped to PICKUP_COURIER_ASSIGNED with its audit event. A false
// return without error means the optimistic order swap lost to a concurrent
// writer; ErrCourierFull means the courier was taken in the meantime.
func (s *Store) Reserve(ctx context.Context, orderID, courierID types.ID, from order.Status, version int) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var duty string
	var load, capacity int
	err = tx.QueryRow(ctx, `
		SELECT duty_status, current_load, max_capacity
		FROM couriers WHERE id = $1
		FOR UPDATE`, string(courierID),
	).Scan(&duty, &load, &capacity)
	if err != nil {
		return false, err
	}
	if courier.DutyStatus(duty) != courier.DutyOnDuty || load >= capacity {
		return false, ErrCourierFull
	}

	_, err = tx.Exec(ctx, `
		UPDATE couriers
		SET current_load = current_load + 1, duty_status = 'ON_PICKUP'
		WHERE id = $1`, string(courierID))
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = 'PICKUP_COURIER_ASSIGNED',
			status_version = status_version + 1,
			pickup_courier_id = $1
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(courierID), string(orderID), string(from), version)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_events (order_id, from_status, to_status, actor_type, created_at)
		VALUES ($1, $2, 'PICKUP_COURIER_ASSIGNED', 'system', NOW())`,
		string(orderID), string(from))
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}
