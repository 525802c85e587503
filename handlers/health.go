package handlers

import (
	"net/http"

	"cabbooking/services/booking"
	"cabbooking/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthHandler serves the read-only HTTP surface next to the MCP stream.
type HealthHandler struct {
	Bookings booking.BookingService
	Monitor  *utils.HealthMonitor
	Logger   *zap.Logger
}

func NewHealthHandler(bookings booking.BookingService, monitor *utils.HealthMonitor, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{Bookings: bookings, Monitor: monitor, Logger: logger}
}

// Health reports the latest dependency snapshot. Any failing check yields
// 503.
func (h *HealthHandler) Health(c *gin.Context) {
	status := utils.HealthStatus{Healthy: true, Checks: map[string]bool{}}
	if h.Monitor != nil {
		status = h.Monitor.Status()
	}
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		h.Logger.Warn("Health check degraded", zap.Any("checks", status.Checks))
	}
	c.JSON(code, gin.H{
		"status":    map[bool]string{true: "ok", false: "degraded"}[status.Healthy],
		"checks":    status.Checks,
		"checkedAt": status.CheckedAt,
		"bookings":  len(h.Bookings.Bookings()),
	})
}

func (h *HealthHandler) GetBookingHandler(c *gin.Context) {
	b, err := h.Bookings.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.JSONError(c, utils.HTTPStatus(err), "Booking lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *HealthHandler) ListBookingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bookings": h.Bookings.Bookings()})
}

func (h *HealthHandler) ListCabsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cabs": h.Bookings.Cabs()})
}

func (h *HealthHandler) AvailabilityHandler(c *gin.Context) {
	avail, err := h.Bookings.ListAvailable(c.Request.Context(), c.Query("location"))
	if err != nil {
		utils.JSONError(c, utils.HTTPStatus(err), "Availability lookup failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, avail)
}
