package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/rider"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the token
const (
	RoleRider  = rider.UserType
	RoleDriver = driver.UserType
)

const (
	principalKey = "principal"
	tokenKey     = "token"
	expiresKey   = "token_expires_at"
	tokenCookie  = "token"
	tokenQuery   = "token"
)

// Claims is the token payload. The subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenBlacklist reports revoked tokens
type TokenBlacklist interface {
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// ConnectionDirectory resolves a user's live connection handle
type ConnectionDirectory interface {
	ConnectionHandle(userID, userType string) string
}

// Authenticator verifies HS256 tokens issued by the account service and
// attaches the caller as a rider or driver principal
type Authenticator struct {
	secret    []byte
	blacklist TokenBlacklist
	directory ConnectionDirectory
	logger    *logger.Logger
}

// NewAuthenticator creates an authenticator. blacklist and directory may be nil.
func NewAuthenticator(secret string, blacklist TokenBlacklist, directory ConnectionDirectory, logger *logger.Logger) *Authenticator {
	return &Authenticator{
		secret:    []byte(secret),
		blacklist: blacklist,
		directory: directory,
		logger:    logger,
	}
}

// Require authenticates the request and, if roles are given, checks the
// caller has one of them
func (a *Authenticator) Require(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, apperrors.Unauthenticated("Authorization token is required", nil))
			return
		}

		if a.blacklist != nil {
			revoked, err := a.blacklist.IsBlacklisted(c.Request.Context(), token)
			if err != nil {
				a.logger.Error("Token blacklist lookup failed", logger.Err(err))
				abort(c, apperrors.Internal("Failed to verify token", err))
				return
			}
			if revoked {
				abort(c, apperrors.Unauthenticated("Token has been revoked", nil))
				return
			}
		}

		claims, err := a.parse(token)
		if err != nil {
			a.logger.Debug("Token rejected", logger.Err(err), logger.String("path", c.Request.URL.Path))
			abort(c, apperrors.Unauthenticated("Invalid or expired token", err))
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abort(c, apperrors.Unauthenticated("Invalid token subject", err))
			return
		}

		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			abort(c, apperrors.Unauthorized(fmt.Sprintf("Requires role %s", strings.Join(roles, " or "))))
			return
		}

		var handle string
		if a.directory != nil {
			handle = a.directory.ConnectionHandle(userID.String(), claims.Role)
		}

		var p lifecycle.Principal
		switch claims.Role {
		case RoleRider:
			p.Rider = &rider.Rider{ID: userID, ConnectionHandle: handle}
		case RoleDriver:
			p.Driver = &driver.Driver{ID: userID, ConnectionHandle: handle}
		default:
			abort(c, apperrors.Unauthorized(fmt.Sprintf("Unknown role %q", claims.Role)))
			return
		}

		c.Set(principalKey, p)
		c.Set(tokenKey, token)
		if claims.ExpiresAt != nil {
			c.Set(expiresKey, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

func (a *Authenticator) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// extractToken reads the bearer header, then the token cookie, then the
// token query parameter browsers use for websocket upgrades
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(tokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query(tokenQuery)
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

func abort(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.Status, dto.ErrorResponse{Code: err.Code, Message: err.Message})
}

// GetPrincipal returns the authenticated caller
func GetPrincipal(c *gin.Context) (lifecycle.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return lifecycle.Principal{}, false
	}
	p, ok := v.(lifecycle.Principal)
	return p, ok
}

// GetToken returns the raw token the caller authenticated with
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// GetTokenExpiry returns when the caller's token expires, if it carries an exp claim
func GetTokenExpiry(c *gin.Context) (time.Time, bool) {
	v, ok := c.Get(expiresKey)
	if !ok {
		return time.Time{}, false
	}
	exp, ok := v.(time.Time)
	return exp, ok
}
