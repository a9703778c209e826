// README: JSON helpers and the module-error to HTTP-status mapping.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"spoke/internal/maps"
	"spoke/internal/modules/courier"
	"spoke/internal/modules/depot"
	"spoke/internal/modules/matching"
	"spoke/internal/modules/order"
	"spoke/internal/modules/otp"
	"spoke/internal/modules/routing"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// bindJSON decodes and validates the request body. Bind failures are always
// the caller's fault, so they answer 400 here regardless of error type.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeAPIError maps module errors onto statuses. Unknown errors stay 500
// without leaking internals.
func writeAPIError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		writeError(c, http.StatusBadRequest, verrs.Error())
		return
	}

	switch {
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, courier.ErrBadRequest),
		errors.Is(err, depot.ErrBadRequest),
		errors.Is(err, courier.ErrUnknownDuty),
		errors.Is(err, maps.ErrUnresolvedAddress),
		errors.Is(err, otp.ErrMismatch):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, courier.ErrNotFound),
		errors.Is(err, depot.ErrNotFound),
		errors.Is(err, routing.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrSlotUnavailable),
		errors.Is(err, routing.ErrInvalidRouteMove),
		errors.Is(err, routing.ErrBelowThreshold),
		errors.Is(err, routing.ErrCourierOverCapacity),
		errors.Is(err, courier.ErrBusy):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, otp.ErrExpired):
		writeError(c, http.StatusGone, err.Error())
	case errors.Is(err, otp.ErrTooManyAttempts):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, matching.ErrNoEligibleCourier):
		writeError(c, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
