package maps

import (
	"context"
	"math"
	"testing"

	"spoke/internal/logging"
	"spoke/internal/types"
)

var (
	koramangala = types.Point{Lat: 12.9352, Lng: 77.6245}
	indiranagar = types.Point{Lat: 12.9784, Lng: 77.6408}
)

func TestHaversineKm(t *testing.T) {
	// Koramangala → Indiranagar is roughly 5 km as the crow flies.
	got := HaversineKm(koramangala, indiranagar)
	if got < 4.0 || got > 6.0 {
		t.Fatalf("HaversineKm = %.2f, want ~5", got)
	}

	if d := HaversineKm(koramangala, koramangala); d != 0 {
		t.Fatalf("distance to self = %f, want 0", d)
	}
}

func TestHaversineSymmetry(t *testing.T) {
	ab := HaversineKm(koramangala, indiranagar)
	ba := HaversineKm(indiranagar, koramangala)
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("haversine asymmetric: %f vs %f", ab, ba)
	}
}

func TestRoadKmAppliesRoadFactor(t *testing.T) {
	straight := HaversineKm(koramangala, indiranagar)
	road := RoadKm(koramangala, indiranagar)
	if road < straight {
		t.Fatalf("road distance %.2f below straight-line %.2f", road, straight)
	}
}

func TestEstimateDurationMinFloor(t *testing.T) {
	if got := EstimateDurationMin(0.1); got != 1 {
		t.Fatalf("duration for tiny distance = %d, want floor of 1", got)
	}
	if got := EstimateDurationMin(25.0); got != 60 {
		t.Fatalf("duration for 25km at 25km/h = %d, want 60", got)
	}
}

// With no redis and no API client the service must degrade to the fallback
// path silently rather than erroring out.
func TestDistanceFallbackWithoutDependencies(t *testing.T) {
	svc, err := NewService(nil, "", 0, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	est, err := svc.Distance(context.Background(), koramangala, indiranagar)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if est.Source != SourceFallback {
		t.Fatalf("source = %s, want fallback", est.Source)
	}
	if est.DistanceKm <= 0 || est.DurationMin <= 0 {
		t.Fatalf("degenerate estimate: %+v", est)
	}
}

func TestMatrixShape(t *testing.T) {
	svc, err := NewService(nil, "", 0, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	points := []types.Point{koramangala, indiranagar, {Lat: 12.9116, Lng: 77.6389}}
	matrix, err := svc.Matrix(context.Background(), points)
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	if len(matrix) != 3 {
		t.Fatalf("matrix rows = %d, want 3", len(matrix))
	}
	for i := range matrix {
		if len(matrix[i]) != 3 {
			t.Fatalf("matrix row %d has %d cols, want 3", i, len(matrix[i]))
		}
		if matrix[i][i].DistanceKm != 0 {
			t.Fatalf("diagonal [%d][%d] = %f, want 0", i, i, matrix[i][i].DistanceKm)
		}
		for j := range matrix[i] {
			if i != j && matrix[i][j].DistanceKm <= 0 {
				t.Fatalf("matrix[%d][%d] not positive: %+v", i, j, matrix[i][j])
			}
		}
	}
}

func TestGeocodeParsesPin(t *testing.T) {
	svc, err := NewService(nil, "", 0, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	place, err := svc.Geocode(context.Background(), "12.9352, 77.6245")
	if err != nil {
		t.Fatalf("geocode pin: %v", err)
	}
	if place.Point.Lat != 12.9352 || place.Point.Lng != 77.6245 {
		t.Fatalf("pin parsed to %+v", place.Point)
	}

	if _, err := svc.Geocode(context.Background(), "100 MG Road, Bengaluru"); err != ErrUnresolvedAddress {
		t.Fatalf("expected ErrUnresolvedAddress without a geocoder, got %v", err)
	}
}

func TestParseLatLngRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "hello", "12.93", "999,77.62", "12.93;77.62"} {
		if _, ok := parseLatLng(bad); ok {
			t.Fatalf("parseLatLng(%q) accepted", bad)
		}
	}
}
