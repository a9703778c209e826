// README: Courier store backed by PostgreSQL.
package courier

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spoke/internal/modules/schedule"
	"spoke/internal/types"
)

var ErrNotFound = errors.New("courier not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const courierColumns = `
	id, name, vehicle, duty_status, depot_id,
	position_lat, position_lng, last_seen_at,
	shift_start_hour, shift_end_hour,
	max_capacity, current_load, max_pickups_per_hour, created_at`

func (s *Store) Create(ctx context.Context, c *Courier) error {
	var lat, lng *float64
	if c.Position != nil {
		lat, lng = &c.Position.Lat, &c.Position.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO couriers (
			id, name, vehicle, duty_status, depot_id,
			position_lat, position_lng, last_seen_at,
			shift_start_hour, shift_end_hour,
			max_capacity, current_load, max_pickups_per_hour, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		string(c.ID), c.Name, string(c.Vehicle), string(c.DutyStatus), string(c.DepotID),
		lat, lng, c.LastSeenAt,
		c.ShiftStartHour, c.ShiftEndHour,
		c.MaxCapacity, c.CurrentLoad, c.MaxPickupsPerHour, c.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Courier, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+courierColumns+`
		FROM couriers WHERE id = $1`, string(id))
	return scanCourier(row)
}

func (s *Store) List(ctx context.Context) ([]*Courier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+courierColumns+`
		FROM couriers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCouriers(rows)
}

// ListAvailable returns on-duty couriers with spare capacity, the eligible
// pool for pickup assignment.
func (s *Store) ListAvailable(ctx context.Context) ([]*Courier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+courierColumns+`
		FROM couriers
		WHERE duty_status = 'ON_DUTY' AND current_load < max_capacity
		ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCouriers(rows)
}

// CountOnDuty feeds the surge ratio's supply side.
func (s *Store) CountOnDuty(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM couriers WHERE duty_status = 'ON_DUTY'`).Scan(&n)
	return n, err
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, p types.Point, seenAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE couriers
		SET position_lat = $1, position_lng = $2, last_seen_at = $3
		WHERE id = $4`,
		p.Lat, p.Lng, seenAt, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateDuty(ctx context.Context, id types.ID, status DutyStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE couriers SET duty_status = $1 WHERE id = $2`,
		string(status), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleasePickup drops one parcel off the courier's load after a depot
// hand-in; an emptied ON_PICKUP courier returns to the on-duty pool.
func (s *Store) ReleasePickup(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE couriers
		SET current_load = GREATEST(current_load - 1, 0),
			duty_status = CASE
				WHEN duty_status = 'ON_PICKUP' AND current_load <= 1 THEN 'ON_DUTY'
				ELSE duty_status
			END
		WHERE id = $1`, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PickupShifts implements schedule.ShiftSource over the on-duty pool.
func (s *Store) PickupShifts(ctx context.Context) ([]schedule.Shift, error) {
	rows, err := s.db.Query(ctx, `
		SELECT shift_start_hour, shift_end_hour, max_pickups_per_hour
		FROM couriers
		WHERE duty_status IN ('ON_DUTY','ON_PICKUP','ON_DELIVERY')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []schedule.Shift
	for rows.Next() {
		var sh schedule.Shift
		if err := rows.Scan(&sh.StartHour, &sh.EndHour, &sh.MaxPickupsPerHour); err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func scanCouriers(rows pgx.Rows) ([]*Courier, error) {
	var out []*Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCourier(row pgx.Row) (*Courier, error) {
	var c Courier
	var lat, lng sql.NullFloat64
	var seenAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.Name, &c.Vehicle, &c.DutyStatus, &c.DepotID,
		&lat, &lng, &seenAt,
		&c.ShiftStartHour, &c.ShiftEndHour,
		&c.MaxCapacity, &c.CurrentLoad, &c.MaxPickupsPerHour, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		c.Position = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if seenAt.Valid {
		t := seenAt.Time
		c.LastSeenAt = &t
	}
	return &c, nil
}
