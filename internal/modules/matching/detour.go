// README: Return-trip detour ranking. Pure computation; the caller decides
// whether to accept any match.
package matching

import (
	"sort"

	"spoke/internal/types"
)

// DistanceFn measures travel distance between two points in km.
type DistanceFn func(origin, dest types.Point) float64

// ReturnDetours ranks pending pickups by the extra distance a courier heading
// back to its depot would incur: (courier→pickup + pickup→depot) − direct.
// Pickups whose detour exceeds maxDetourKm are dropped; the result is sorted
// ascending and capped at maxResults.
func ReturnDetours(dist DistanceFn, courier, depot types.Point, pending []ReturnPickup, maxDetourKm float64, maxResults int) []ReturnPickup {
	if len(pending) == 0 || maxResults <= 0 {
		return nil
	}

	direct := dist(courier, depot)

	var matched []ReturnPickup
	for _, p := range pending {
		detour := dist(courier, p.PickupPoint) + dist(p.PickupPoint, depot) - direct
		if detour < 0 {
			detour = 0
		}
		if detour > maxDetourKm {
			continue
		}
		p.DetourKm = detour
		matched = append(matched, p)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].DetourKm < matched[j].DetourKm
	})
	if len(matched) > maxResults {
		matched = matched[:maxResults]
	}
	return matched
}
