// README: Depot store backed by PostgreSQL.
package depot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spoke/internal/types"
)

var (
	ErrNotFound   = errors.New("depot not found")
	ErrBadRequest = errors.New("bad depot request")
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Depot) error {
	if d.Name == "" || !d.Point.Valid() {
		return ErrBadRequest
	}
	if d.ID == "" {
		d.ID = types.ID(uuid.NewString())
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO depots (id, name, address, lat, lng, capacity, current_load, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		string(d.ID), d.Name, d.Address, d.Point.Lat, d.Point.Lng,
		d.Capacity, d.CurrentLoad, d.IsActive, d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Depot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, address, lat, lng, capacity, current_load, is_active, created_at
		FROM depots WHERE id = $1`, string(id))
	return scanDepot(row)
}

func (s *Store) List(ctx context.Context) ([]*Depot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, address, lat, lng, capacity, current_load, is_active, created_at
		FROM depots WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Depot
	for rows.Next() {
		d, err := scanDepot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AdjustLoad moves the depot's parcel count by delta, clamped at zero, and
// returns the new load.
func (s *Store) AdjustLoad(ctx context.Context, id types.ID, delta int) (int, error) {
	var load int
	err := s.db.QueryRow(ctx, `
		UPDATE depots
		SET current_load = GREATEST(current_load + $1, 0)
		WHERE id = $2
		RETURNING current_load`,
		delta, string(id),
	).Scan(&load)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return load, err
}

func scanDepot(row pgx.Row) (*Depot, error) {
	var d Depot
	err := row.Scan(
		&d.ID, &d.Name, &d.Address, &d.Point.Lat, &d.Point.Lng,
		&d.Capacity, &d.CurrentLoad, &d.IsActive, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
