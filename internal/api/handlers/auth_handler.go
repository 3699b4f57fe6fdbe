package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
)

// Logout handles POST /v1/auth/logout by blacklisting the caller's token
// for the rest of its lifetime
func (h *Handlers) Logout(c *gin.Context) {
	if h.Revoker == nil {
		h.respondError(c, apperrors.Internal("Logout is not available", nil))
		return
	}

	token := middleware.GetToken(c)
	ttl := h.tokenTTL
	if exp, ok := middleware.GetTokenExpiry(c); ok {
		ttl = time.Until(exp)
	}

	if err := h.Revoker.Add(c.Request.Context(), token, ttl); err != nil {
		h.respondError(c, apperrors.Internal("Failed to log out", err))
		return
	}

	c.SetCookie("token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
