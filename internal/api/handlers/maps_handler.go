package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
)

// GetCoordinates handles GET /v1/maps/coordinates?address=
func (h *Handlers) GetCoordinates(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		h.badRequest(c, "address is required")
		return
	}

	coord, err := h.Maps.ResolveAddress(c.Request.Context(), address)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CoordinatesResponse{Address: address, Lat: coord.Lat, Lng: coord.Lng})
}

// GetDistanceTime handles GET /v1/maps/distance-time?origin=&destination=.
// Either end may be an address or a "lat,lng" pair.
func (h *Handlers) GetDistanceTime(c *gin.Context) {
	originParam := strings.TrimSpace(c.Query("origin"))
	destParam := strings.TrimSpace(c.Query("destination"))
	if originParam == "" || destParam == "" {
		h.badRequest(c, "origin and destination are required")
		return
	}

	origin, err := h.locate(c, originParam)
	if err != nil {
		h.respondError(c, err)
		return
	}
	dest, err := h.locate(c, destParam)
	if err != nil {
		h.respondError(c, err)
		return
	}

	metrics, err := h.Maps.RouteMetrics(c.Request.Context(), origin, dest)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DistanceTimeResponse{
		DistanceMeters:  metrics.DistanceMeters,
		DurationSeconds: metrics.DurationSeconds,
		Approximate:     metrics.Approximate,
	})
}

// GetSuggestions handles GET /v1/maps/suggestions?input=
func (h *Handlers) GetSuggestions(c *gin.Context) {
	input := strings.TrimSpace(c.Query("input"))
	if len(input) < 3 {
		h.badRequest(c, "input must be at least 3 characters")
		return
	}

	suggestions, err := h.Maps.Suggest(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, dto.SuggestionsResponse{Suggestions: suggestions})
}

func (h *Handlers) locate(c *gin.Context, param string) (ride.Coordinate, error) {
	coord, ok, err := dto.ParseCoordinate(param)
	if err != nil {
		return ride.Coordinate{}, apperrors.InvalidInput(err.Error())
	}
	if ok {
		return coord, nil
	}
	return h.Maps.ResolveAddress(c.Request.Context(), param)
}
