package routes

import (
	"time"

	"cabbooking/handlers"
	"cabbooking/middleware"
	"cabbooking/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers the health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterBookingRoutes registers the read-only booking lookups.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.Use(middleware.RateLimitMiddleware(hb.Limiter))
		api.GET("/bookings", hb.ListBookingsHandler)
		api.GET("/bookings/:id", hb.GetBookingHandler)
		api.GET("/cabs", hb.ListCabsHandler)
		api.GET("/availability", hb.AvailabilityHandler)
	}
}

// NewRouter builds the gin engine with global middleware and all routes.
func NewRouter(hb *handlers.HandlerBundle) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(utils.ErrorHandler())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterBookingRoutes(r, hb)
	return r
}
