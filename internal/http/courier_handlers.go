// README: Courier fleet handlers: registration, telemetry, duty, return legs.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spoke/internal/modules/courier"
	"spoke/internal/modules/pricing"
	"spoke/internal/types"
)

type registerCourierReq struct {
	Name              string `json:"name" binding:"required"`
	Vehicle           string `json:"vehicle" binding:"required,oneof=BIKE AUTO VAN"`
	DepotID           string `json:"depot_id" binding:"required"`
	ShiftStartHour    int    `json:"shift_start_hour" binding:"min=0,max=23"`
	ShiftEndHour      int    `json:"shift_end_hour" binding:"min=0,max=24"`
	MaxCapacity       int    `json:"max_capacity" binding:"min=0"`
	MaxPickupsPerHour int    `json:"max_pickups_per_hour" binding:"min=0"`
}

func (s *Server) handleRegisterCourier(c *gin.Context) {
	var req registerCourierReq
	if !bindJSON(c, &req) {
		return
	}
	cr, err := s.courier.Register(c.Request.Context(), courier.RegisterCommand{
		Name:              req.Name,
		Vehicle:           pricing.Vehicle(req.Vehicle),
		DepotID:           types.ID(req.DepotID),
		ShiftStartHour:    req.ShiftStartHour,
		ShiftEndHour:      req.ShiftEndHour,
		MaxCapacity:       req.MaxCapacity,
		MaxPickupsPerHour: req.MaxPickupsPerHour,
	})
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, courierView(cr))
}

func (s *Server) handleListCouriers(c *gin.Context) {
	list, err := s.courier.List(c.Request.Context())
	if err != nil {
		writeAPIError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, cr := range list {
		out = append(out, courierView(cr))
	}
	writeJSON(c, http.StatusOK, gin.H{"couriers": out})
}

type courierLocationReq struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

func (s *Server) handleCourierLocation(c *gin.Context) {
	var req courierLocationReq
	if !bindJSON(c, &req) {
		return
	}
	err := s.courier.UpdateLocation(c.Request.Context(), types.ID(c.Param("id")), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type courierStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleCourierStatus(c *gin.Context) {
	var req courierStatusReq
	if !bindJSON(c, &req) {
		return
	}
	err := s.courier.SetDuty(c.Request.Context(), types.ID(c.Param("id")), courier.DutyStatus(req.Status))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "duty_status": req.Status})
}

func (s *Server) handleReturnPickups(c *gin.Context) {
	picks, err := s.matching.ReturnPickups(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	out := make([]gin.H, 0, len(picks))
	for _, p := range picks {
		out = append(out, gin.H{
			"order_id":       p.OrderID,
			"order_number":   p.OrderNumber,
			"pickup_address": p.PickupAddress,
			"pickup_lat":     p.PickupPoint.Lat,
			"pickup_lng":     p.PickupPoint.Lng,
			"detour_km":      p.DetourKm,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"return_pickups": out})
}

func courierView(cr *courier.Courier) gin.H {
	v := gin.H{
		"id":                   cr.ID,
		"name":                 cr.Name,
		"vehicle":              cr.Vehicle,
		"duty_status":          cr.DutyStatus,
		"depot_id":             cr.DepotID,
		"shift_start_hour":     cr.ShiftStartHour,
		"shift_end_hour":       cr.ShiftEndHour,
		"max_capacity":         cr.MaxCapacity,
		"current_load":         cr.CurrentLoad,
		"max_pickups_per_hour": cr.MaxPickupsPerHour,
	}
	if cr.Position != nil {
		v["lat"] = cr.Position.Lat
		v["lng"] = cr.Position.Lng
	}
	if cr.LastSeenAt != nil {
		v["last_seen_at"] = cr.LastSeenAt
	}
	return v
}
