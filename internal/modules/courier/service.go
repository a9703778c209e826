// README: Courier service handles registration, duty changes, and GPS pings.
package courier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"spoke/internal/modules/pricing"
	"spoke/internal/types"
)

var (
	ErrBadRequest  = errors.New("bad courier request")
	ErrUnknownDuty = errors.New("unknown duty status")
	ErrBusy        = errors.New("courier has assigned parcels")
)

type Service struct {
	store *Store
	log   *slog.Logger
}

func NewService(store *Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

type RegisterCommand struct {
	Name              string
	Vehicle           pricing.Vehicle
	DepotID           types.ID
	ShiftStartHour    int
	ShiftEndHour      int
	MaxCapacity       int
	MaxPickupsPerHour int
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Courier, error) {
	if cmd.Name == "" || cmd.DepotID == "" {
		return nil, ErrBadRequest
	}
	if cmd.ShiftStartHour == 0 && cmd.ShiftEndHour == 0 {
		cmd.ShiftStartHour, cmd.ShiftEndHour = 8, 20
	}
	if cmd.ShiftStartHour < 0 || cmd.ShiftEndHour > 24 || cmd.ShiftStartHour >= cmd.ShiftEndHour {
		return nil, ErrBadRequest
	}
	if cmd.MaxCapacity <= 0 {
		cmd.MaxCapacity = 5
	}
	if cmd.MaxPickupsPerHour <= 0 {
		cmd.MaxPickupsPerHour = 3
	}
	switch cmd.Vehicle {
	case pricing.VehicleBike, pricing.VehicleAuto, pricing.VehicleVan:
	default:
		return nil, ErrBadRequest
	}

	c := &Courier{
		ID:                types.ID(uuid.NewString()),
		Name:              cmd.Name,
		Vehicle:           cmd.Vehicle,
		DutyStatus:        DutyOffDuty,
		DepotID:           cmd.DepotID,
		ShiftStartHour:    cmd.ShiftStartHour,
		ShiftEndHour:      cmd.ShiftEndHour,
		MaxCapacity:       cmd.MaxCapacity,
		MaxPickupsPerHour: cmd.MaxPickupsPerHour,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Courier, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Courier, error) {
	return s.store.List(ctx)
}

// UpdateLocation records a GPS ping. Stale or malformed coordinates are
// rejected before touching the row.
func (s *Service) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	if !p.Valid() {
		return ErrBadRequest
	}
	if err := s.store.UpdateLocation(ctx, id, p, time.Now().UTC()); err != nil {
		return err
	}
	s.log.Debug("courier location updated", "courier_id", string(id), "position", p.String())
	return nil
}

// SetDuty flips a courier between OFF_DUTY and ON_DUTY. The busy statuses
// (ON_PICKUP, ON_DELIVERY) are owned by assignment and routing, not this API.
func (s *Service) SetDuty(ctx context.Context, id types.ID, status DutyStatus) error {
	if status != DutyOffDuty && status != DutyOnDuty {
		return ErrUnknownDuty
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if status == DutyOffDuty && c.CurrentLoad > 0 {
		return ErrBusy
	}
	if c.DutyStatus == status {
		return nil
	}
	return s.store.UpdateDuty(ctx, id, status)
}
