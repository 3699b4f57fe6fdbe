package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/handlers"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options carries the cross-cutting pieces routes are wrapped in
type Options struct {
	NewRelic       *newrelic.Application
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, auth *middleware.Authenticator, opts Options) {
	// Add New Relic middleware if enabled
	if opts.NewRelic != nil {
		r.Use(nrgin.Middleware(opts.NewRelic))
	}
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	r.Use(cors.New(corsConfig(opts)))

	// Health check
	r.GET("/health", h.Health)

	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	v1 := r.Group("/v1")
	{
		// WebSocket connection; browsers pass the token as a query parameter
		v1.GET("/ws", auth.Require(), h.HandleWebSocket)

		v1.POST("/auth/logout", auth.Require(), h.Logout)

		rides := v1.Group("/rides")
		{
			rides.POST("", auth.Require(middleware.RoleRider), h.CreateRide)
			rides.GET("/fare", auth.Require(middleware.RoleRider), h.GetFare)
			rides.GET("/:id", auth.Require(), h.GetRide)
			rides.POST("/:id/accept", auth.Require(middleware.RoleDriver), h.AcceptRide)
			rides.POST("/:id/start", auth.Require(middleware.RoleDriver), h.StartRide)
			rides.POST("/:id/end", auth.Require(middleware.RoleDriver), h.EndRide)
		}

		maps := v1.Group("/maps", auth.Require())
		{
			maps.GET("/coordinates", h.GetCoordinates)
			maps.GET("/distance-time", h.GetDistanceTime)
			maps.GET("/suggestions", h.GetSuggestions)
		}

		drivers := v1.Group("/drivers", auth.Require(middleware.RoleDriver))
		{
			drivers.POST("/location", h.UpdateDriverLocation)
			drivers.DELETE("/location", h.GoOffline)
		}
	}
}

func corsConfig(opts Options) cors.Config {
	cfg := cors.Config{
		AllowMethods:     opts.AllowedMethods,
		AllowHeaders:     opts.AllowedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	}

	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			// credentials cannot be combined with a wildcard origin
			cfg.AllowOriginFunc = func(string) bool { return true }
			return cfg
		}
	}
	cfg.AllowOrigins = opts.AllowedOrigins
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	}
	return cfg
}
