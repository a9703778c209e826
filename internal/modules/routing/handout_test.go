package routing

import (
	"testing"

	"spoke/internal/types"
)

func TestPickCourierRespectsCapacity(t *testing.T) {
	couriers := []DeliveryCourier{
		{ID: types.ID("c1"), Load: 0, Capacity: 2},
	}
	if got := pickCourier(couriers, 5); got != -1 {
		t.Fatalf("capacity-2 courier picked for a 5-parcel group: index %d", got)
	}
	if got := pickCourier(couriers, 2); got != 0 {
		t.Fatalf("fitting group refused: index %d", got)
	}
	if got := pickCourier(nil, 1); got != -1 {
		t.Fatalf("empty pool: index %d", got)
	}
}

func TestPickCourierPrefersLeastLoaded(t *testing.T) {
	couriers := []DeliveryCourier{
		{ID: types.ID("c1"), Load: 3, Capacity: 5},
		{ID: types.ID("c2"), Load: 1, Capacity: 5},
		{ID: types.ID("c3"), Load: 2, Capacity: 5},
	}
	if got := pickCourier(couriers, 2); got != 1 {
		t.Fatalf("picked index %d, want least-loaded c2 at 1", got)
	}
	// c2 fills up after the caller bumps its load; the next group moves on.
	couriers[1].Load = 5
	if got := pickCourier(couriers, 2); got != 2 {
		t.Fatalf("picked index %d, want c3 at 2", got)
	}
}

func TestPickCourierSpreadsGroupsUnderBookkeeping(t *testing.T) {
	couriers := []DeliveryCourier{
		{ID: types.ID("c1"), Load: 0, Capacity: 5},
		{ID: types.ID("c2"), Load: 0, Capacity: 5},
	}
	groups := []int{5, 5, 5}
	assigned := 0
	for _, g := range groups {
		i := pickCourier(couriers, g)
		if i < 0 {
			continue
		}
		couriers[i].Load += g
		assigned++
		if couriers[i].Load > couriers[i].Capacity {
			t.Fatalf("courier %s overloaded: %d > %d", couriers[i].ID, couriers[i].Load, couriers[i].Capacity)
		}
	}
	if assigned != 2 {
		t.Fatalf("assigned %d groups, want 2 with the third left unassigned", assigned)
	}
}
