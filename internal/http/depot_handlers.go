// README: Depot handlers: hub admin, parcel intake, batch optimization.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"spoke/internal/modules/depot"
	"spoke/internal/types"
)

// depotStore is the slice of the depot store the API surface needs.
type depotStore interface {
	Create(ctx context.Context, d *depot.Depot) error
	List(ctx context.Context) ([]*depot.Depot, error)
}

type createDepotReq struct {
	Name     string  `json:"name" binding:"required"`
	Address  string  `json:"address" binding:"required"`
	Lat      float64 `json:"lat" binding:"required"`
	Lng      float64 `json:"lng" binding:"required"`
	Capacity int     `json:"capacity" binding:"min=0"`
}

func (s *Server) handleCreateDepot(c *gin.Context) {
	var req createDepotReq
	if !bindJSON(c, &req) {
		return
	}
	d := &depot.Depot{
		Name:     req.Name,
		Address:  req.Address,
		Point:    types.Point{Lat: req.Lat, Lng: req.Lng},
		Capacity: req.Capacity,
		IsActive: true,
	}
	if err := s.depots.Create(c.Request.Context(), d); err != nil {
		writeAPIError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, depotView(d))
}

func (s *Server) handleListDepots(c *gin.Context) {
	list, err := s.depots.List(c.Request.Context())
	if err != nil {
		writeAPIError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, d := range list {
		out = append(out, depotView(d))
	}
	writeJSON(c, http.StatusOK, gin.H{"depots": out})
}

func (s *Server) handleDepotOrders(c *gin.Context) {
	orders, err := s.order.ListAtDepot(c.Request.Context(), types.ID(c.Param("id")))
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

type depotIntakeReq struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (s *Server) handleDepotIntake(c *gin.Context) {
	var req depotIntakeReq
	if !bindJSON(c, &req) {
		return
	}
	depotID := types.ID(c.Param("id"))
	res, err := s.order.DepotIntake(c.Request.Context(), types.ID(req.OrderID), depotID)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	resp := gin.H{
		"order":         orderView(res.Order),
		"pending_count": res.PendingCount,
		"threshold_met": res.ThresholdMet,
	}
	// Reaching the batch threshold kicks off optimization; a failure there
	// must not fail the intake that already committed.
	if res.ThresholdMet {
		routes, err := s.routing.OptimizeDepot(c.Request.Context(), depotID)
		if err != nil {
			s.log.Error("intake-triggered optimization failed", "depot_id", string(depotID), "error", err)
			resp["optimization_error"] = "route optimization failed"
		} else {
			views := make([]gin.H, 0, len(routes))
			for _, r := range routes {
				views = append(views, routeView(r))
			}
			resp["routes"] = views
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (s *Server) handleOptimizeDepot(c *gin.Context) {
	routes, err := s.routing.OptimizeDepot(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	out := make([]gin.H, 0, len(routes))
	for _, r := range routes {
		out = append(out, routeView(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"routes": out})
}

func depotView(d *depot.Depot) gin.H {
	return gin.H{
		"id":           d.ID,
		"name":         d.Name,
		"address":      d.Address,
		"lat":          d.Point.Lat,
		"lng":          d.Point.Lng,
		"capacity":     d.Capacity,
		"current_load": d.CurrentLoad,
		"is_active":    d.IsActive,
	}
}
