// README: Geo-distance and geocoding service: redis cache, Google Maps, haversine fallback.
package maps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	gmaps "googlemaps.github.io/maps"

	"spoke/internal/observability"
	"spoke/internal/types"
)

const (
	distanceCacheTTL = 2 * time.Hour
	geocodeCacheTTL  = 30 * 24 * time.Hour
)

// Service resolves distances and addresses. Both the redis cache and the
// Google client are optional; with neither configured every lookup takes the
// haversine fallback path, which keeps the dispatch core functional offline.
type Service struct {
	redis       *redis.Client
	client      *gmaps.Client
	callTimeout time.Duration
	log         *slog.Logger
}

func NewService(redisClient *redis.Client, apiKey string, callTimeout time.Duration, log *slog.Logger) (*Service, error) {
	var client *gmaps.Client
	if apiKey != "" {
		c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
		if err != nil {
			return nil, fmt.Errorf("create maps client: %w", err)
		}
		client = c
	}
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &Service{redis: redisClient, client: client, callTimeout: callTimeout, log: log}, nil
}

// Distance returns a travel estimate between two points: cache first, then
// the external routing API, then the road-corrected haversine fallback. It
// never returns an error for a degraded provider; dispatch decisions must not
// stall on network weather.
func (s *Service) Distance(ctx context.Context, origin, dest types.Point) (Estimate, error) {
	key := distanceKey(origin, dest)

	if s.redis != nil {
		cached, err := s.redis.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			if est, ok := parseCachedEstimate(cached); ok {
				return est, nil
			}
		}
	}

	if s.client != nil {
		if est, ok := s.externalDistance(ctx, origin, dest); ok {
			if s.redis != nil {
				s.cacheEstimate(ctx, key, est)
			}
			return est, nil
		}
	}

	observability.GeoFallbacks.Inc()
	d := RoadKm(origin, dest)
	return Estimate{DistanceKm: d, DurationMin: EstimateDurationMin(d), Source: SourceFallback}, nil
}

// Matrix builds an n×n asymmetric estimate matrix over the given points.
// matrix[i][i] is the zero value.
func (s *Service) Matrix(ctx context.Context, points []types.Point) ([][]Estimate, error) {
	n := len(points)
	matrix := make([][]Estimate, n)
	for i := range matrix {
		matrix[i] = make([]Estimate, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			est, err := s.Distance(ctx, points[i], points[j])
			if err != nil {
				return nil, err
			}
			matrix[i][j] = est
		}
	}
	return matrix, nil
}

// Geocode resolves an address to coordinates. A "lat,lng" pin is parsed
// directly; otherwise the redis cache and then the external geocoder are
// consulted. There is no fallback for an unknown address.
func (s *Service) Geocode(ctx context.Context, address string) (Place, error) {
	if p, ok := parseLatLng(address); ok {
		return Place{Point: p, Formatted: address}, nil
	}

	key := "geo:" + shortHash(normalizeAddress(address))
	if s.redis != nil {
		cached, err := s.redis.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			if place, ok := parseCachedPlace(cached); ok {
				return place, nil
			}
		}
	}

	if s.client == nil {
		return Place{}, ErrUnresolvedAddress
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	results, err := s.client.Geocode(callCtx, &gmaps.GeocodingRequest{Address: address})
	if err != nil {
		s.log.Warn("geocode failed", "address", address, "err", err)
		return Place{}, ErrUnresolvedAddress
	}
	if len(results) == 0 {
		return Place{}, ErrUnresolvedAddress
	}

	loc := results[0].Geometry.Location
	place := Place{
		Point:     types.Point{Lat: loc.Lat, Lng: loc.Lng},
		Formatted: results[0].FormattedAddress,
	}
	if s.redis != nil {
		s.redis.HSet(ctx, key,
			"lat", strconv.FormatFloat(place.Point.Lat, 'f', -1, 64),
			"lng", strconv.FormatFloat(place.Point.Lng, 'f', -1, 64),
			"formatted", place.Formatted,
		)
		s.redis.Expire(ctx, key, geocodeCacheTTL)
	}
	return place, nil
}

func (s *Service) externalDistance(ctx context.Context, origin, dest types.Point) (Estimate, bool) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	resp, err := s.client.DistanceMatrix(callCtx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{origin.String()},
		Destinations: []string{dest.String()},
		Mode:         gmaps.TravelModeDriving,
	})
	if err != nil {
		s.log.Warn("distance matrix call failed", "err", err)
		return Estimate{}, false
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Estimate{}, false
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" || el.Distance.Meters <= 0 {
		return Estimate{}, false
	}

	durationMin := int(el.Duration.Round(time.Minute) / time.Minute)
	if durationMin < 1 {
		durationMin = 1
	}
	return Estimate{
		DistanceKm:  round2(float64(el.Distance.Meters) / 1000.0),
		DurationMin: durationMin,
		Source:      SourceExternal,
	}, true
}

func (s *Service) cacheEstimate(ctx context.Context, key string, est Estimate) {
	s.redis.HSet(ctx, key,
		"distance_km", strconv.FormatFloat(est.DistanceKm, 'f', -1, 64),
		"duration_min", strconv.Itoa(est.DurationMin),
	)
	s.redis.Expire(ctx, key, distanceCacheTTL)
}

func distanceKey(origin, dest types.Point) string {
	return "dist:" + shortHash(pointKey(origin)) + ":" + shortHash(pointKey(dest))
}

// pointKey rounds to 4 decimal places (~11m) so nearby lookups share entries.
func pointKey(p types.Point) string {
	return fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lng)
}

func shortHash(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])[:16]
}

func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

func parseCachedEstimate(fields map[string]string) (Estimate, bool) {
	d, err := strconv.ParseFloat(fields["distance_km"], 64)
	if err != nil {
		return Estimate{}, false
	}
	m, err := strconv.Atoi(fields["duration_min"])
	if err != nil {
		return Estimate{}, false
	}
	return Estimate{DistanceKm: d, DurationMin: m, Source: SourceCache}, true
}

func parseCachedPlace(fields map[string]string) (Place, bool) {
	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return Place{}, false
	}
	lng, err := strconv.ParseFloat(fields["lng"], 64)
	if err != nil {
		return Place{}, false
	}
	return Place{Point: types.Point{Lat: lat, Lng: lng}, Formatted: fields["formatted"]}, true
}

// parseLatLng accepts a "lat,lng" pin (e.g. from a shared location).
func parseLatLng(text string) (types.Point, bool) {
	parts := strings.SplitN(strings.TrimSpace(text), ",", 2)
	if len(parts) != 2 {
		return types.Point{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return types.Point{}, false
	}
	p := types.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return types.Point{}, false
	}
	return p, true
}
