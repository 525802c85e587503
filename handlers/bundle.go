package handlers

import (
	"cabbooking/middleware"

	"github.com/gin-gonic/gin"
)

// HandlerBundle groups the HTTP endpoint handlers for route registration.
type HandlerBundle struct {
	Limiter *middleware.RateLimiter

	HealthHandler       gin.HandlerFunc
	GetBookingHandler   gin.HandlerFunc
	ListBookingsHandler gin.HandlerFunc
	ListCabsHandler     gin.HandlerFunc
	AvailabilityHandler gin.HandlerFunc
}

// NewHandlerBundle wires h into a bundle.
func NewHandlerBundle(h *HealthHandler, limiter *middleware.RateLimiter) *HandlerBundle {
	return &HandlerBundle{
		Limiter:             limiter,
		HealthHandler:       h.Health,
		GetBookingHandler:   h.GetBookingHandler,
		ListBookingsHandler: h.ListBookingsHandler,
		ListCabsHandler:     h.ListCabsHandler,
		AvailabilityHandler: h.AvailabilityHandler,
	}
}
