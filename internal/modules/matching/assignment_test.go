// README: Assignment tests against PostgreSQL (gated on SPOKE_TEST_DSN).
package matching

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"spoke/internal/config"
	"spoke/internal/modules/courier"
	"spoke/internal/modules/depot"
	"spoke/internal/modules/order"
	"spoke/internal/modules/pricing"
	"spoke/internal/types"
)

func setupAssignmentTest(t *testing.T) (*Service, *order.Store, *courier.Store, *depot.Store) {
	t.Helper()

	dsn := os.Getenv("SPOKE_TEST_DSN")
	if dsn == "" {
		t.Skip("SPOKE_TEST_DSN not set; skipping DB-backed assignment tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_events, orders, couriers, depots CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	orders := order.NewStore(db)
	couriers := courier.NewStore(db)
	depots := depot.NewStore(db)
	cfg := config.DispatchConfig{ZoneRadiusKm: 25, LocationFreshness: 15 * time.Minute}
	svc := NewService(
		NewStore(db), orders, couriers, depots, haversineProvider{}, cfg,
		nil, slog.New(slog.NewTextHandler(os.Stderr, nil)),
	)
	return svc, orders, couriers, depots
}

func applyMigrations(ctx context.Context, db *pgxpool.Pool) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(root)
		if parent == root {
			return errors.New("go.mod not found above working directory")
		}
		root = parent
	}
	sql, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sql))
	return err
}

func seedAssignableOrder(t *testing.T, orders *order.Store, couriers *courier.Store, depots *depot.Store) *order.Order {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := depots.Create(ctx, &depot.Depot{
		ID:       "depot_asn",
		Name:     "HSR hub",
		Address:  "hsr layout",
		Point:    types.Point{Lat: 12.9116, Lng: 77.6389},
		Capacity: 100,
		IsActive: true,
	}); err != nil {
		t.Fatalf("create depot: %v", err)
	}
	if err := couriers.Create(ctx, &courier.Courier{
		ID:                "courier_asn",
		Name:              "Asha",
		Vehicle:           pricing.VehicleBike,
		DutyStatus:        courier.DutyOnDuty,
		DepotID:           "depot_asn",
		ShiftStartHour:    8,
		ShiftEndHour:      20,
		MaxCapacity:       3,
		MaxPickupsPerHour: 3,
		CreatedAt:         now,
	}); err != nil {
		t.Fatalf("create courier: %v", err)
	}

	o := &order.Order{
		ID:              "order_asn",
		OrderNumber:     "PCL-260827-9001",
		CustomerID:      "cust_asn",
		Status:          order.StatusPaymentConfirmed,
		PickupAddress:   "koramangala",
		PickupPoint:     pickupPoint,
		DropAddress:     "indiranagar",
		DropPoint:       midPoint,
		PackageSize:     pricing.SizeSmall,
		Vehicle:         pricing.VehicleBike,
		DistanceKm:      5,
		TimeFactor:      pricing.TimeStandard,
		BaseCost:        50,
		SurgeMultiplier: 1,
		TotalCost:       50,
		Plan:            pricing.PlanStarter,
		PaymentMode:     order.PayUPI,
		CreatedAt:       now,
	}
	if _, _, err := orders.Create(ctx, o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestAssignPickupRepeatIsNoOp(t *testing.T) {
	svc, orders, couriers, depots := setupAssignmentTest(t)
	ctx := context.Background()

	o := seedAssignableOrder(t, orders, couriers, depots)

	first, err := svc.AssignPickup(ctx, o.ID)
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if first.CourierID != "courier_asn" {
		t.Fatalf("assigned %s, want courier_asn", first.CourierID)
	}

	second, err := svc.AssignPickup(ctx, o.ID)
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}
	if second.CourierID != first.CourierID {
		t.Fatalf("repeat assign switched courier: %s then %s", first.CourierID, second.CourierID)
	}

	c, err := couriers.Get(ctx, first.CourierID)
	if err != nil {
		t.Fatalf("get courier: %v", err)
	}
	if c.CurrentLoad != 1 {
		t.Fatalf("repeat assign changed load: %d, want 1", c.CurrentLoad)
	}
	if c.DutyStatus != courier.DutyOnPickup {
		t.Fatalf("duty = %s, want ON_PICKUP", c.DutyStatus)
	}

	got, err := orders.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Status != order.StatusPickupCourierAssigned {
		t.Fatalf("status = %s, want PICKUP_COURIER_ASSIGNED", got.Status)
	}
	events, err := orders.Events(ctx, o.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	assignments := 0
	for _, e := range events {
		if e.To == order.StatusPickupCourierAssigned {
			assignments++
		}
	}
	if assignments != 1 {
		t.Fatalf("assignment recorded %d times, want 1", assignments)
	}
}
