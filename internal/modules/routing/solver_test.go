package routing

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"spoke/internal/types"

	"spoke/internal/maps"
)

func metersMatrix(points []types.Point) [][]int {
	n := len(points)
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
		for j := range m[i] {
			if i != j {
				m[i][j] = int(math.Round(maps.RoadKm(points[i], points[j]) * 1000))
			}
		}
	}
	return m
}

func TestSolveEmptyAndSingle(t *testing.T) {
	if got := Solve([][]int{{0}}, time.Second); got.Order != nil {
		t.Fatalf("empty batch: got %+v", got)
	}

	m := [][]int{
		{0, 1000},
		{1000, 0},
	}
	got := Solve(m, time.Second)
	if len(got.Order) != 1 || got.Order[0] != 1 || got.Meters != 2000 {
		t.Fatalf("single stop: got %+v", got)
	}
}

func TestSolveBeatsNaiveOnBadOrdering(t *testing.T) {
	// Stops laid out on a line; arrival order ping-pongs across it.
	depot := types.Point{Lat: 12.90, Lng: 77.60}
	points := []types.Point{
		depot,
		{Lat: 12.98, Lng: 77.60}, // far
		{Lat: 12.92, Lng: 77.60}, // near
		{Lat: 12.96, Lng: 77.60},
		{Lat: 12.94, Lng: 77.60},
	}
	m := metersMatrix(points)

	sol := Solve(m, time.Second)
	if sol.Meters > sol.NaiveMeters {
		t.Fatalf("solver worse than naive: %d > %d", sol.Meters, sol.NaiveMeters)
	}
	if sol.SavingsMeters() <= 0 {
		t.Fatalf("expected positive savings on ping-pong ordering, got %d", sol.SavingsMeters())
	}
	if len(sol.Order) != 4 {
		t.Fatalf("tour covers %d stops, want 4", len(sol.Order))
	}
	seen := map[int]bool{}
	for _, s := range sol.Order {
		if s < 1 || s > 4 || seen[s] {
			t.Fatalf("invalid tour %v", sol.Order)
		}
		seen[s] = true
	}
}

// TestSolveNeverWorseThanNaive fuzzes random layouts; the optimizer must hold
// its one hard guarantee on all of them.
func TestSolveNeverWorseThanNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(4)
		points := make([]types.Point, n+1)
		for i := range points {
			points[i] = types.Point{
				Lat: 12.9 + rng.Float64()*0.2,
				Lng: 77.5 + rng.Float64()*0.2,
			}
		}
		sol := Solve(metersMatrix(points), 200*time.Millisecond)
		if sol.Meters > sol.NaiveMeters {
			t.Fatalf("trial %d: solver worse than naive: %d > %d", trial, sol.Meters, sol.NaiveMeters)
		}
		if len(sol.Order) != n {
			t.Fatalf("trial %d: tour covers %d stops, want %d", trial, len(sol.Order), n)
		}
	}
}

// TestSolveExhaustedBudget still returns a feasible tour.
func TestSolveExhaustedBudget(t *testing.T) {
	points := make([]types.Point, 6)
	for i := range points {
		points[i] = types.Point{Lat: 12.9 + 0.01*float64(i), Lng: 77.6}
	}
	sol := Solve(metersMatrix(points), 0)
	if len(sol.Order) != 5 {
		t.Fatalf("tour covers %d stops, want 5", len(sol.Order))
	}
	if sol.Meters > sol.NaiveMeters {
		t.Fatalf("zero budget broke the naive guarantee: %d > %d", sol.Meters, sol.NaiveMeters)
	}
}

func TestChunkBoundsGroups(t *testing.T) {
	parcels := make([]Parcel, 12)
	groups := chunk(parcels, 5)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	sizes := []int{5, 5, 2}
	for i, g := range groups {
		if len(g) != sizes[i] {
			t.Fatalf("group %d has %d parcels, want %d", i, len(g), sizes[i])
		}
	}
	if got := chunk(nil, 5); got != nil {
		t.Fatalf("empty chunk: got %v", got)
	}
}

func TestTourMeters(t *testing.T) {
	m := [][]int{
		{0, 10, 20},
		{10, 0, 5},
		{20, 5, 0},
	}
	if got := tourMeters(m, []int{1, 2}); got != 10+5+20 {
		t.Fatalf("tourMeters = %d, want 35", got)
	}
	if got := tourMeters(m, []int{2, 1}); got != 20+5+10 {
		t.Fatalf("tourMeters = %d, want 35", got)
	}
}
