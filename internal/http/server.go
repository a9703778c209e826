// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spoke/internal/modules/courier"
	"spoke/internal/modules/matching"
	"spoke/internal/modules/order"
	"spoke/internal/modules/routing"
	"spoke/internal/modules/schedule"
)

type ServerDeps struct {
	Order    *order.Service
	Matching *matching.Service
	Routing  *routing.Service
	Courier  *courier.Service
	Schedule *schedule.Service
	Depots   depotStore
	Log      *slog.Logger
}

type Server struct {
	order    *order.Service
	matching *matching.Service
	routing  *routing.Service
	courier  *courier.Service
	schedule *schedule.Service
	depots   depotStore
	log      *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	return &Server{
		order:    deps.Order,
		matching: deps.Matching,
		routing:  deps.Routing,
		courier:  deps.Courier,
		schedule: deps.Schedule,
		depots:   deps.Depots,
		log:      deps.Log,
	}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recovery(s.log), requestLogger(s.log), metrics())

	api := r.Group("/api")

	api.POST("/orders", s.handleCreateOrder)
	api.POST("/orders/estimate", s.handleEstimate)
	api.GET("/orders/:id", s.handleGetOrder)
	api.GET("/orders/:id/track", s.handleTrackOrder)
	api.POST("/orders/:id/schedule", s.handleSchedulePickup)
	api.POST("/orders/:id/cancel", s.handleCancelOrder)
	api.POST("/orders/:id/refund", s.handleRefundOrder)
	api.POST("/orders/:id/complete", s.handleCompleteOrder)
	api.POST("/orders/:id/pickup/en-route", s.handlePickupEnRoute)
	api.POST("/orders/:id/pickup/depart", s.handleDepartToDepot)
	api.POST("/orders/:id/otp/generate", s.handleGenerateOTP)
	api.POST("/orders/:id/otp/verify", s.handleVerifyOTP)
	api.GET("/customers/:id/orders", s.handleCustomerOrders)

	api.GET("/slots", s.handleSlots)

	api.POST("/payments/confirm/:orderID", s.handleConfirmPayment)
	api.POST("/payments/assign/:orderID", s.handleAssignPickup)

	api.POST("/couriers", s.handleRegisterCourier)
	api.GET("/couriers", s.handleListCouriers)
	api.PATCH("/couriers/:id/location", s.handleCourierLocation)
	api.PATCH("/couriers/:id/status", s.handleCourierStatus)
	api.GET("/couriers/:id/return-pickups", s.handleReturnPickups)

	api.POST("/depots", s.handleCreateDepot)
	api.GET("/depots", s.handleListDepots)
	api.GET("/depots/:id/orders", s.handleDepotOrders)
	api.POST("/depots/:id/intake", s.handleDepotIntake)
	api.POST("/depots/:id/optimize", s.handleOptimizeDepot)

	api.GET("/routes/:id", s.handleGetRoute)
	api.POST("/routes/:id/start", s.handleStartRoute)
	api.POST("/routes/:id/complete", s.handleCompleteRoute)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
