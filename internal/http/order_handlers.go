// README: Order lifecycle handlers: create, schedule, OTP, depot, terminal ops.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spoke/internal/modules/matching"
	"spoke/internal/modules/order"
	"spoke/internal/modules/pricing"
	"spoke/internal/types"
)

type createOrderReq struct {
	CustomerID     string   `json:"customer_id" binding:"required"`
	PickupAddress  string   `json:"pickup_address" binding:"required"`
	DropAddress    string   `json:"drop_address" binding:"required"`
	Size           string   `json:"size" binding:"required"`
	Addons         []string `json:"addons"`
	IsExpress      bool     `json:"is_express"`
	BatchEligible  bool     `json:"batch_eligible"`
	PaymentMode    string   `json:"payment_mode" binding:"required"`
	Plan           string   `json:"plan"`
	FreeDeliveries int      `json:"free_deliveries"`
	IdempotencyKey string   `json:"idempotency_key"`
}

func (r createOrderReq) command() order.CreateCommand {
	addons := make([]pricing.Addon, 0, len(r.Addons))
	for _, a := range r.Addons {
		addons = append(addons, pricing.Addon(a))
	}
	return order.CreateCommand{
		CustomerID:     types.ID(r.CustomerID),
		PickupAddress:  r.PickupAddress,
		DropAddress:    r.DropAddress,
		Size:           pricing.PackageSize(r.Size),
		Addons:         addons,
		IsExpress:      r.IsExpress,
		BatchEligible:  r.BatchEligible,
		PaymentMode:    order.PaymentMode(r.PaymentMode),
		Plan:           pricing.Plan(r.Plan),
		FreeDeliveries: r.FreeDeliveries,
		IdempotencyKey: r.IdempotencyKey,
	}
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.order.Create(c.Request.Context(), req.command())
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, orderView(o))
}

// estimateReq is the quote-only shape: no payment mode, no idempotency key,
// since nothing is persisted.
type estimateReq struct {
	CustomerID     string   `json:"customer_id" binding:"required"`
	PickupAddress  string   `json:"pickup_address" binding:"required"`
	DropAddress    string   `json:"drop_address" binding:"required"`
	Size           string   `json:"size" binding:"required"`
	Addons         []string `json:"addons"`
	IsExpress      bool     `json:"is_express"`
	BatchEligible  bool     `json:"batch_eligible"`
	Plan           string   `json:"plan"`
	FreeDeliveries int      `json:"free_deliveries"`
}

func (r estimateReq) command() order.CreateCommand {
	addons := make([]pricing.Addon, 0, len(r.Addons))
	for _, a := range r.Addons {
		addons = append(addons, pricing.Addon(a))
	}
	return order.CreateCommand{
		CustomerID:     types.ID(r.CustomerID),
		PickupAddress:  r.PickupAddress,
		DropAddress:    r.DropAddress,
		Size:           pricing.PackageSize(r.Size),
		Addons:         addons,
		IsExpress:      r.IsExpress,
		BatchEligible:  r.BatchEligible,
		Plan:           pricing.Plan(r.Plan),
		FreeDeliveries: r.FreeDeliveries,
	}
}

func (s *Server) handleEstimate(c *gin.Context) {
	var req estimateReq
	if !bindJSON(c, &req) {
		return
	}
	bd, err := s.order.Estimate(c.Request.Context(), req.command())
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, breakdownView(bd))
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (s *Server) handleTrackOrder(c *gin.Context) {
	o, events, err := s.order.Track(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	history := make([]gin.H, 0, len(events))
	for _, e := range events {
		history = append(history, gin.H{
			"from":       e.From,
			"to":         e.To,
			"actor_type": e.ActorType,
			"at":         e.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{
		"order":   orderView(o),
		"history": history,
	})
}

type schedulePickupReq struct {
	SlotStart time.Time `json:"slot_start" binding:"required"`
}

func (s *Server) handleSchedulePickup(c *gin.Context) {
	var req schedulePickupReq
	if !bindJSON(c, &req) {
		return
	}
	o, err := s.order.SchedulePickup(c.Request.Context(), order.SchedulePickupCommand{
		OrderID:   types.ID(c.Param("id")),
		SlotStart: req.SlotStart,
	})
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	var req cancelOrderReq
	_ = c.ShouldBindJSON(&req)
	o, err := s.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   types.ID(c.Param("id")),
		ActorType: "customer",
		Reason:    req.Reason,
	})
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (s *Server) handleRefundOrder(c *gin.Context) {
	o, err := s.order.Refund(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (s *Server) handleCompleteOrder(c *gin.Context) {
	o, err := s.order.Complete(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (s *Server) handlePickupEnRoute(c *gin.Context) {
	o, err := s.order.MarkPickupEnRoute(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (s *Server) handleDepartToDepot(c *gin.Context) {
	o, err := s.order.DepartToDepot(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

type generateOTPReq struct {
	Leg string `json:"leg" binding:"required,oneof=pickup drop"`
}

func (s *Server) handleGenerateOTP(c *gin.Context) {
	var req generateOTPReq
	if !bindJSON(c, &req) {
		return
	}
	code, err := s.order.GenerateOTP(c.Request.Context(), types.ID(c.Param("id")), req.Leg)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"leg": req.Leg, "code": code})
}

type verifyOTPReq struct {
	Leg  string `json:"leg" binding:"required,oneof=pickup drop"`
	Code string `json:"code" binding:"required,len=6"`
}

func (s *Server) handleVerifyOTP(c *gin.Context) {
	var req verifyOTPReq
	if !bindJSON(c, &req) {
		return
	}
	id := types.ID(c.Param("id"))
	var (
		o   *order.Order
		err error
	)
	if req.Leg == "pickup" {
		o, err = s.order.VerifyPickupOTP(c.Request.Context(), id, req.Code)
	} else {
		o, err = s.order.VerifyDropOTP(c.Request.Context(), id, req.Code)
	}
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, orderView(o))
}

func (s *Server) handleCustomerOrders(c *gin.Context) {
	orders, err := s.order.ListByCustomer(c.Request.Context(), types.ID(c.Param("id")), 50)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	out := make([]gin.H, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderView(o))
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}

func (s *Server) handleSlots(c *gin.Context) {
	slots, err := s.schedule.AvailableSlots(c.Request.Context(), time.Now())
	if err != nil {
		writeAPIError(c, err)
		return
	}
	out := make([]gin.H, 0, len(slots))
	for _, sl := range slots {
		out = append(out, gin.H{
			"start":              sl.Start,
			"end":                sl.End,
			"available_capacity": sl.AvailableCapacity,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"slots": out})
}

// handleConfirmPayment confirms payment and, for express orders, immediately
// tries assignment. A dry courier pool is not a payment failure.
func (s *Server) handleConfirmPayment(c *gin.Context) {
	id := types.ID(c.Param("orderID"))
	o, err := s.order.ConfirmPayment(c.Request.Context(), id)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	resp := gin.H{"order": orderView(o)}
	if o.IsExpress {
		asg, err := s.matching.AssignPickup(c.Request.Context(), id)
		switch {
		case err == nil:
			resp["assignment"] = assignmentView(asg)
		case errors.Is(err, matching.ErrNoEligibleCourier):
			resp["assignment_error"] = err.Error()
		default:
			writeAPIError(c, err)
			return
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleAssignPickup(c *gin.Context) {
	asg, err := s.matching.AssignPickup(c.Request.Context(), types.ID(c.Param("orderID")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, assignmentView(asg))
}

func assignmentView(a *matching.Assignment) gin.H {
	return gin.H{
		"order_id":   a.OrderID,
		"courier_id": a.CourierID,
		"travel_km":  a.TravelKm,
		"source":     a.Source,
	}
}

func orderView(o *order.Order) gin.H {
	v := gin.H{
		"id":             o.ID,
		"order_number":   o.OrderNumber,
		"customer_id":    o.CustomerID,
		"status":         o.Status,
		"pickup_address": o.PickupAddress,
		"drop_address":   o.DropAddress,
		"size":           o.PackageSize,
		"vehicle":        o.Vehicle,
		"distance_km":    o.DistanceKm,
		"payment_mode":   o.PaymentMode,
		"is_express":     o.IsExpress,
		"total_cost":     o.TotalCost,
		"pricing": gin.H{
			"base_cost":             o.BaseCost,
			"time_factor":           o.TimeFactor,
			"surge_multiplier":      o.SurgeMultiplier,
			"surge_reason":          o.SurgeReason,
			"addon_cost":            o.AddonCost,
			"batch_discount":        o.BatchDiscount,
			"subscription_discount": o.SubscriptionDiscount,
			"courier_bonus":         o.CourierBonus,
			"total_cost":            o.TotalCost,
		},
		"created_at": o.CreatedAt,
	}
	if o.PickupSlot != nil {
		v["pickup_slot"] = o.PickupSlot
	}
	if o.PickupCourierID != nil {
		v["pickup_courier_id"] = *o.PickupCourierID
	}
	if o.DeliveryCourierID != nil {
		v["delivery_courier_id"] = *o.DeliveryCourierID
	}
	if o.RouteID != nil {
		v["route_id"] = *o.RouteID
	}
	if o.DepotID != nil {
		v["depot_id"] = *o.DepotID
	}
	return v
}

func breakdownView(b *pricing.Breakdown) gin.H {
	return gin.H{
		"distance_km":           b.DistanceKm,
		"duration_min":          b.DurationMin,
		"vehicle":               b.Vehicle,
		"rate_per_km":           b.RatePerKm,
		"vehicle_multiplier":    b.VehicleMultiplier,
		"time_factor":           b.TimeFactor,
		"time_factor_value":     b.TimeFactorValue,
		"base_cost":             b.BaseCost,
		"surge_multiplier":      b.SurgeMultiplier,
		"surge_reason":          b.SurgeReason,
		"addons_cost":           b.AddonsCost,
		"batch_discount":        b.BatchDiscount,
		"subscription_discount": b.SubscriptionDiscount,
		"total_cost":            b.TotalCost,
	}
}
