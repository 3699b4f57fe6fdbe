package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/rider"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/gocomet/ride-lifecycle/pkg/websocket"
)

// HandleWebSocket handles GET /v1/ws. The connection is registered under the
// authenticated user so ride events can find it.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	if h.Hub == nil {
		h.respondError(c, apperrors.Internal("Real-time updates are disabled", nil))
		return
	}

	p, _ := middleware.GetPrincipal(c)
	var userID, userType string
	switch {
	case p.Rider != nil:
		userID, userType = p.Rider.ID.String(), rider.UserType
	case p.Driver != nil:
		userID, userType = p.Driver.ID.String(), driver.UserType
	default:
		h.respondError(c, apperrors.ErrUnauthenticated)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn, userID, userType, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
