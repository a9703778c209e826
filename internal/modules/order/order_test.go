// README: Order lifecycle tests (DB-backed tests gate on SPOKE_TEST_DSN).
package order

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"spoke/internal/maps"
	"spoke/internal/modules/pricing"
	"spoke/internal/modules/schedule"
	"spoke/internal/types"
)

type fakeGeo struct{}

func (fakeGeo) Geocode(_ context.Context, address string) (maps.Place, error) {
	points := map[string]types.Point{
		"koramangala": {Lat: 12.9352, Lng: 77.6245},
		"indiranagar": {Lat: 12.9719, Lng: 77.6412},
	}
	p, ok := points[address]
	if !ok {
		return maps.Place{}, maps.ErrUnresolvedAddress
	}
	return maps.Place{Point: p, Formatted: address}, nil
}

func (fakeGeo) Distance(_ context.Context, origin, dest types.Point) (maps.Estimate, error) {
	km := maps.RoadKm(origin, dest)
	return maps.Estimate{DistanceKm: km, DurationMin: maps.EstimateDurationMin(km), Source: maps.SourceFallback}, nil
}

type fakeOTP struct {
	codes map[string]string
}

func (f *fakeOTP) Issue(_ context.Context, orderID types.ID, leg string) (string, error) {
	f.codes[string(orderID)+":"+leg] = "123456"
	return "123456", nil
}

func (f *fakeOTP) Verify(_ context.Context, orderID types.ID, leg, code string) error {
	if f.codes[string(orderID)+":"+leg] != code {
		return errors.New("otp mismatch")
	}
	return nil
}

type fakeSupply struct{ n int }

func (f fakeSupply) CountOnDuty(context.Context) (int, error) { return f.n, nil }

func (f fakeSupply) ReleasePickup(context.Context, types.ID) error { return nil }

type fakeDepots struct{ load int }

func (f *fakeDepots) AdjustLoad(_ context.Context, _ types.ID, delta int) (int, error) {
	f.load += delta
	return f.load, nil
}

type fakeSlots struct{ slots []schedule.TimeSlot }

func (f fakeSlots) AvailableSlots(context.Context, time.Time) ([]schedule.TimeSlot, error) {
	return f.slots, nil
}

func tomorrowTen() time.Time {
	now := time.Now()
	d := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, 1)
}

func setupTestService(t *testing.T) (*Service, *Store, *fakeOTP) {
	t.Helper()

	dsn := os.Getenv("SPOKE_TEST_DSN")
	if dsn == "" {
		t.Skip("SPOKE_TEST_DSN not set; skipping DB-backed order tests")
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
	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_events, orders, delivery_route_stops, delivery_routes CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	store := NewStore(db)
	otps := &fakeOTP{codes: map[string]string{}}
	slot := tomorrowTen()
	svc := NewService(
		store, fakeGeo{}, otps, fakeSupply{n: 3}, &fakeDepots{},
		fakeSlots{slots: []schedule.TimeSlot{{Start: slot, End: slot.Add(time.Hour), AvailableCapacity: 3}}},
		nil, 5, slog.New(slog.NewTextHandler(os.Stderr, nil)),
	)
	return svc, store, otps
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

func mustCreate(t *testing.T, svc *Service, key string) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateCommand{
		CustomerID:     "cust_1",
		PickupAddress:  "koramangala",
		DropAddress:    "indiranagar",
		Size:           pricing.SizeSmall,
		PaymentMode:    PayUPI,
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	o, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != want {
		t.Fatalf("status = %s, want %s", o.Status, want)
	}
}

func TestOrderFlowHappyPath(t *testing.T) {
	svc, store, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreate(t, svc, "")
	assertStatus(t, svc, o.ID, StatusPlaced)
	if o.TotalCost < pricing.MinimumCharge {
		t.Fatalf("total %0.2f below floor", o.TotalCost)
	}

	if _, err := svc.ConfirmPayment(ctx, o.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusPaymentConfirmed)

	if _, err := svc.SchedulePickup(ctx, SchedulePickupCommand{OrderID: o.ID, SlotStart: tomorrowTen()}); err != nil {
		t.Fatalf("schedule pickup: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusPickupScheduled)

	// Assignment belongs to the matching service; drive the swap directly.
	cur, _ := svc.Get(ctx, o.ID)
	courierID := types.ID("courier_1")
	ok, err := store.Transition(ctx, o.ID, cur.Status, StatusPickupCourierAssigned, cur.StatusVersion, Mutation{
		ActorType:       "system",
		PickupCourierID: &courierID,
	})
	if err != nil || !ok {
		t.Fatalf("assign transition: ok=%v err=%v", ok, err)
	}

	if _, err := svc.MarkPickupEnRoute(ctx, o.ID); err != nil {
		t.Fatalf("en route: %v", err)
	}
	if _, err := svc.VerifyPickupOTP(ctx, o.ID, "123456"); err != nil {
		t.Fatalf("verify pickup otp: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusPickedUp)

	if _, err := svc.DepartToDepot(ctx, o.ID); err != nil {
		t.Fatalf("depart: %v", err)
	}
	res, err := svc.DepotIntake(ctx, o.ID, "depot_1")
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if res.PendingCount != 1 || res.ThresholdMet {
		t.Fatalf("intake result = %+v, want 1 pending below threshold", res)
	}
	assertStatus(t, svc, o.ID, StatusAtDepot)

	// Optimizer-owned swaps, driven directly.
	for _, to := range []Status{StatusRouteOptimized, StatusDeliveryCourierAssigned, StatusOutForDelivery} {
		cur, _ = svc.Get(ctx, o.ID)
		ok, err = store.Transition(ctx, o.ID, cur.Status, to, cur.StatusVersion, Mutation{ActorType: "system"})
		if err != nil || !ok {
			t.Fatalf("transition to %s: ok=%v err=%v", to, ok, err)
		}
	}

	if _, err := svc.VerifyDropOTP(ctx, o.ID, "123456"); err != nil {
		t.Fatalf("verify drop otp: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusDelivered)

	if _, err := svc.Complete(ctx, o.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusCompleted)

	_, events, err := svc.Track(ctx, o.ID)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(events) < 12 {
		t.Fatalf("expected full audit trail, got %d events", len(events))
	}
}

func TestIdempotentCreate(t *testing.T) {
	svc, _, _ := setupTestService(t)

	first := mustCreate(t, svc, "idem_key_1")
	second := mustCreate(t, svc, "idem_key_1")

	if first.ID != second.ID {
		t.Fatalf("idempotency key produced two orders: %s and %s", first.ID, second.ID)
	}
	if first.OrderNumber != second.OrderNumber {
		t.Fatalf("second submit changed the order number")
	}
}

func TestCreateWritesCreationEvent(t *testing.T) {
	svc, store, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreate(t, svc, "idem_evt")
	events, err := store.Events(ctx, o.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("creation wrote %d events, want 1", len(events))
	}
	if events[0].From != StatusNone || events[0].To != StatusPlaced || events[0].ActorType != "customer" {
		t.Fatalf("creation event = %+v", events[0])
	}

	// Replaying the same key returns the prior order without a second event.
	mustCreate(t, svc, "idem_evt")
	events, err = store.Events(ctx, o.ID)
	if err != nil {
		t.Fatalf("events after replay: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("replay appended events: got %d, want 1", len(events))
	}
}

func TestInvalidTransitions(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreate(t, svc, "")

	if _, err := svc.MarkPickupEnRoute(ctx, o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("en route before assignment: got %v", err)
	}
	if _, err := svc.SchedulePickup(ctx, SchedulePickupCommand{OrderID: o.ID, SlotStart: tomorrowTen()}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("schedule before payment: got %v", err)
	}
	if _, err := svc.Complete(ctx, o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from placed: got %v", err)
	}
	assertStatus(t, svc, o.ID, StatusPlaced)
}

func TestCancelThenLocked(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreate(t, svc, "")
	if _, err := svc.Cancel(ctx, CancelCommand{OrderID: o.ID, ActorType: "customer", Reason: "changed my mind"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	assertStatus(t, svc, o.ID, StatusCancelled)

	if _, err := svc.ConfirmPayment(ctx, o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirm after cancel: got %v", err)
	}
	if _, err := svc.Refund(ctx, o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("refund after cancel: got %v", err)
	}
}

func TestScheduleRejectsUnknownSlot(t *testing.T) {
	svc, _, _ := setupTestService(t)
	ctx := context.Background()

	o := mustCreate(t, svc, "")
	if _, err := svc.ConfirmPayment(ctx, o.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	notOffered := tomorrowTen().Add(3 * time.Hour)
	if _, err := svc.SchedulePickup(ctx, SchedulePickupCommand{OrderID: o.ID, SlotStart: notOffered}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("unknown slot: got %v", err)
	}
}

func TestEstimateDoesNotPersist(t *testing.T) {
	svc, store, _ := setupTestService(t)
	ctx := context.Background()

	bd, err := svc.Estimate(ctx, CreateCommand{
		CustomerID:    "cust_est",
		PickupAddress: "koramangala",
		DropAddress:   "indiranagar",
		Size:          pricing.SizeBulky,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if bd.Vehicle != pricing.VehicleVan {
		t.Fatalf("bulky parcel priced for %s, want VAN", bd.Vehicle)
	}
	if bd.TotalCost < pricing.MinimumCharge {
		t.Fatalf("total %0.2f below floor", bd.TotalCost)
	}

	n, err := store.CountActive(ctx)
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if n != 0 {
		t.Fatalf("estimate persisted an order: %d active", n)
	}
}
