package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/domain/rider"
	"github.com/gocomet/ride-lifecycle/internal/service/geocoding"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
)

// RideEngine is the ride lifecycle the handlers expose
type RideEngine interface {
	RequestRide(ctx context.Context, rd *rider.Rider, in lifecycle.RequestInput) (*ride.Ride, error)
	QuoteFare(ctx context.Context, pickup, destination string, vehicleType ride.VehicleType) (*lifecycle.Quote, error)
	QuoteAllFares(ctx context.Context, pickup, destination string) (*lifecycle.Quote, error)
	GetRide(ctx context.Context, rideID uuid.UUID, p lifecycle.Principal) (*ride.Ride, error)
	AcceptRide(ctx context.Context, rideID uuid.UUID, d *driver.Driver) (*ride.Ride, error)
	StartRide(ctx context.Context, rideID uuid.UUID, otp string, d *driver.Driver) (*ride.Ride, error)
	EndRide(ctx context.Context, rideID uuid.UUID, d *driver.Driver) (*ride.Ride, error)
}

// Maps is the geocoding surface exposed to clients
type Maps interface {
	ResolveAddress(ctx context.Context, address string) (ride.Coordinate, error)
	RouteMetrics(ctx context.Context, origin, destination ride.Coordinate) (geocoding.RouteMetrics, error)
	Suggest(ctx context.Context, partial string) ([]string, error)
}

// LocationUpdater records driver positions
type LocationUpdater interface {
	UpdateLocation(ctx context.Context, d driver.Driver) error
	GoOffline(ctx context.Context, id uuid.UUID) error
}

// TokenRevoker revokes a token until it expires
type TokenRevoker interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

// Options tune the websocket upgrade and logout
type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
	// TokenTTL bounds the blacklist entry for tokens without an exp claim
	TokenTTL time.Duration
}

// Handlers holds all handler dependencies
type Handlers struct {
	Rides     RideEngine
	Maps      Maps
	Locations LocationUpdater
	Hub       *websocket.Hub
	Revoker   TokenRevoker
	Logger    *logger.Logger

	upgrader gorilla.Upgrader
	tokenTTL time.Duration
}

// NewHandlers creates a new Handlers instance. hub and revoker may be nil,
// which disables the websocket and logout endpoints respectively.
func NewHandlers(rides RideEngine, maps Maps, locations LocationUpdater, hub *websocket.Hub, revoker TokenRevoker, log *logger.Logger, opts Options) *Handlers {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Handlers{
		Rides:     rides,
		Maps:      maps,
		Locations: locations,
		Hub:       hub,
		Revoker:   revoker,
		Logger:    log,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		tokenTTL: opts.TokenTTL,
	}
}

// respondError renders err as {"code","message"}. Anything that is not an
// AppError is logged and reported as an internal error.
func (h *Handlers) respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.Logger.Error("Request failed",
			logger.Err(err),
			logger.String("path", c.FullPath()),
			logger.String("code", appErr.Code),
		)
	}
	c.AbortWithStatusJSON(appErr.Status, dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message})
}

func (h *Handlers) badRequest(c *gin.Context, message string) {
	h.respondError(c, apperrors.InvalidInput(message))
}

func parseRideID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput("ride id must be a UUID")
	}
	return id, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{"status": "healthy"}
	if h.Hub != nil {
		body["connections"] = gin.H{
			"total":   h.Hub.GetActiveConnections(),
			"riders":  h.Hub.GetClientsByUserType(rider.UserType),
			"drivers": h.Hub.GetClientsByUserType(driver.UserType),
		}
	}
	c.JSON(http.StatusOK, body)
}
