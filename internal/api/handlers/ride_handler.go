package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// CreateRide handles POST /v1/rides
func (h *Handlers) CreateRide(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	if p.Rider == nil {
		h.respondError(c, apperrors.Unauthorized("only riders can request rides"))
		return
	}

	var req dto.CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "pickup, destination and vehicle_type are required")
		return
	}

	created, err := h.Rides.RequestRide(c.Request.Context(), p.Rider, lifecycle.RequestInput{
		Pickup:      req.Pickup,
		Destination: req.Destination,
		VehicleType: ride.VehicleType(strings.ToLower(strings.TrimSpace(req.VehicleType))),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	// The rider is the only party who ever sees the OTP
	c.JSON(http.StatusCreated, created)
}

// GetFare handles GET /v1/rides/fare. Without vehicle_type every vehicle
// type is priced.
func (h *Handlers) GetFare(c *gin.Context) {
	var q dto.FareQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, "pickup and destination are required")
		return
	}

	var (
		quote *lifecycle.Quote
		err   error
	)
	if vt := strings.TrimSpace(q.VehicleType); vt != "" {
		quote, err = h.Rides.QuoteFare(c.Request.Context(), q.Pickup, q.Destination, ride.VehicleType(strings.ToLower(vt)))
	} else {
		quote, err = h.Rides.QuoteAllFares(c.Request.Context(), q.Pickup, q.Destination)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// GetRide handles GET /v1/rides/:id
func (h *Handlers) GetRide(c *gin.Context) {
	id, err := parseRideID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	p, _ := middleware.GetPrincipal(c)

	rd, err := h.Rides.GetRide(c.Request.Context(), id, p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *Handlers) AcceptRide(c *gin.Context) {
	h.driverTransition(c, func(d *driver.Driver) (*ride.Ride, error) {
		id, err := parseRideID(c)
		if err != nil {
			return nil, err
		}
		return h.Rides.AcceptRide(c.Request.Context(), id, d)
	})
}

// StartRide handles POST /v1/rides/:id/start
func (h *Handlers) StartRide(c *gin.Context) {
	h.driverTransition(c, func(d *driver.Driver) (*ride.Ride, error) {
		id, err := parseRideID(c)
		if err != nil {
			return nil, err
		}
		var req dto.StartRideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, apperrors.InvalidInput("otp is required")
		}
		return h.Rides.StartRide(c.Request.Context(), id, req.OTP, d)
	})
}

// EndRide handles POST /v1/rides/:id/end
func (h *Handlers) EndRide(c *gin.Context) {
	h.driverTransition(c, func(d *driver.Driver) (*ride.Ride, error) {
		id, err := parseRideID(c)
		if err != nil {
			return nil, err
		}
		return h.Rides.EndRide(c.Request.Context(), id, d)
	})
}

func (h *Handlers) driverTransition(c *gin.Context, fn func(d *driver.Driver) (*ride.Ride, error)) {
	p, _ := middleware.GetPrincipal(c)
	if p.Driver == nil {
		h.respondError(c, apperrors.Unauthorized("only drivers can perform this action"))
		return
	}

	rd, err := fn(p.Driver)
	if err != nil {
		h.Logger.Debug("Ride transition rejected",
			logger.Err(err),
			logger.String("path", c.FullPath()),
			logger.String("driver_id", p.Driver.ID.String()),
		)
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}
