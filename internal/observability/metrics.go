package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spoke", Name: "orders_created_total", Help: "Total orders created"})

	PickupAssignments = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spoke", Name: "pickup_assignments_total", Help: "Successful pickup courier assignments"})
	AssignmentMisses  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spoke", Name: "assignment_misses_total", Help: "Assignment attempts with no eligible courier"})

	RoutesOptimized = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spoke", Name: "routes_optimized_total", Help: "Delivery routes produced by the optimizer"})
	RouteSavingsKm  = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "spoke",
		Name:      "route_savings_km",
		Help:      "Distance saved per route vs naive sequential order",
		Buckets:   []float64{0, 0.5, 1, 2, 5, 10, 25},
	})

	OTPRejections = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spoke", Name: "otp_rejections_total", Help: "Failed OTP verification attempts"})

	GeoFallbacks = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spoke", Name: "geo_fallbacks_total", Help: "Distance lookups served by the haversine fallback"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spoke", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spoke",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
