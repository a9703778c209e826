// README: Delivery route handlers: inspect, start, complete.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spoke/internal/modules/routing"
	"spoke/internal/types"
)

func (s *Server) handleGetRoute(c *gin.Context) {
	r, err := s.routing.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routeView(r))
}

func (s *Server) handleStartRoute(c *gin.Context) {
	r, err := s.routing.StartRoute(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routeView(r))
}

func (s *Server) handleCompleteRoute(c *gin.Context) {
	r, err := s.routing.CompleteRoute(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, routeView(r))
}

func routeView(r *routing.DeliveryRoute) gin.H {
	stops := make([]gin.H, 0, len(r.Stops))
	for _, st := range r.Stops {
		stops = append(stops, gin.H{
			"seq":      st.Seq,
			"order_id": st.OrderID,
			"address":  st.Address,
			"lat":      st.Point.Lat,
			"lng":      st.Point.Lng,
		})
	}
	v := gin.H{
		"id":                 r.ID,
		"depot_id":           r.DepotID,
		"status":             r.Status,
		"stops":              stops,
		"total_distance_km":  r.TotalDistanceKm,
		"total_duration_min": r.TotalDurationMin,
		"savings_km":         r.SavingsKm,
		"total_parcels":      r.TotalParcels,
		"created_at":         r.CreatedAt,
	}
	if r.CourierID != nil {
		v["courier_id"] = *r.CourierID
	}
	if r.StartedAt != nil {
		v["started_at"] = r.StartedAt
	}
	if r.CompletedAt != nil {
		v["completed_at"] = r.CompletedAt
	}
	return v
}
