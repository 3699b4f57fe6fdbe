package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// UpdateDriverLocation handles POST /v1/drivers/location. The driver is
// always the authenticated caller.
func (h *Handlers) UpdateDriverLocation(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	if p.Driver == nil {
		h.respondError(c, apperrors.Unauthorized("only drivers report locations"))
		return
	}

	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "latitude and longitude are required")
		return
	}
	loc, err := req.Coordinate()
	if err != nil {
		h.badRequest(c, err.Error())
		return
	}

	d := driver.Driver{
		ID:               p.Driver.ID,
		Location:         loc,
		ConnectionHandle: p.Driver.ConnectionHandle,
	}
	if err := h.Locations.UpdateLocation(c.Request.Context(), d); err != nil {
		h.Logger.Error("Failed to update driver location",
			logger.Err(err),
			logger.String("driver_id", d.ID.String()),
		)
		h.respondError(c, apperrors.Internal("Failed to update location", err))
		return
	}

	c.JSON(http.StatusOK, dto.LocationUpdateResponse{
		Status:    "success",
		DriverID:  d.ID.String(),
		Latitude:  loc.Lat,
		Longitude: loc.Lng,
		Timestamp: time.Now().UTC(),
	})
}

// GoOffline handles DELETE /v1/drivers/location
func (h *Handlers) GoOffline(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	if p.Driver == nil {
		h.respondError(c, apperrors.Unauthorized("only drivers report locations"))
		return
	}

	if err := h.Locations.GoOffline(c.Request.Context(), p.Driver.ID); err != nil {
		h.respondError(c, apperrors.Internal("Failed to go offline", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "offline", "driver_id": p.Driver.ID.String()})
}
