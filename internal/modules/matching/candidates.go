// README: Pure candidate ranking for pickup assignment.
package matching

import (
	"context"
	"sort"

	"spoke/internal/maps"
	"spoke/internal/types"
)

// Rank orders candidates by travel distance to the pickup point, nearest
// first. Couriers with live GPS are preferred wholesale over depot-fallback
// ones; within the preferred pool a haversine zone prefilter applies, and an
// empty zone falls back to the whole pool. Candidates whose distance lookup
// fails are skipped.
func Rank(ctx context.Context, prov maps.Provider, pickup types.Point, cands []Candidate, zoneRadiusKm float64) []Ranked {
	if len(cands) == 0 {
		return nil
	}

	pool := cands
	var live []Candidate
	for _, c := range cands {
		if c.Live {
			live = append(live, c)
		}
	}
	if len(live) > 0 {
		pool = live
	}

	var zone []Candidate
	for _, c := range pool {
		if maps.HaversineKm(c.Position, pickup) <= zoneRadiusKm {
			zone = append(zone, c)
		}
	}
	if len(zone) == 0 {
		zone = pool
	}

	ranked := make([]Ranked, 0, len(zone))
	for _, c := range zone {
		est, err := prov.Distance(ctx, c.Position, pickup)
		if err != nil {
			continue
		}
		ranked = append(ranked, Ranked{Candidate: c, TravelKm: est.DistanceKm, Estimate: est})
	}

	// Stable keeps iteration order as the tie-break.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TravelKm < ranked[j].TravelKm
	})
	return ranked
}
