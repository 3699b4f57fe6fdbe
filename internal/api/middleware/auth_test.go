package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubBlacklist struct {
	revoked map[string]bool
	err     error
}

func (s *stubBlacklist) IsBlacklisted(_ context.Context, token string) (bool, error) {
	return s.revoked[token], s.err
}

type stubDirectory map[string]string

func (d stubDirectory) ConnectionHandle(userID, userType string) string {
	return d[userType+":"+userID]
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, sub, role string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func setupRouter(auth *Authenticator, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", auth.Require(roles...), func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		body := gin.H{"token": GetToken(c)}
		if p.Rider != nil {
			body["rider"] = p.Rider.ID.String()
			body["handle"] = p.Rider.ConnectionHandle
		}
		if p.Driver != nil {
			body["driver"] = p.Driver.ID.String()
			body["handle"] = p.Driver.ConnectionHandle
		}
		c.JSON(http.StatusOK, body)
	})
	return r
}

func TestRequire_AcceptsBearerToken(t *testing.T) {
	userID := uuid.New()
	dir := stubDirectory{"rider:" + userID.String(): "conn-1"}
	auth := NewAuthenticator(testSecret, nil, dir, logger.NewNop())
	router := setupRouter(auth, RoleRider)

	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID.String(), RoleRider, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), `"handle":"conn-1"`)
}

func TestRequire_TokenSources(t *testing.T) {
	userID := uuid.New()
	auth := NewAuthenticator(testSecret, nil, nil, logger.NewNop())
	router := setupRouter(auth)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID.String(), RoleDriver, time.Now().Add(time.Hour))

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"driver":"`+userID.String())
	})

	t.Run("query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequire_Rejections(t *testing.T) {
	userID := uuid.New().String()
	valid := func(t *testing.T, role string) string {
		return signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, role, time.Now().Add(time.Hour))
	}

	tests := []struct {
		name   string
		header func(t *testing.T) string
		roles  []string
		status int
	}{
		{
			name:   "missing token",
			header: func(t *testing.T) string { return "" },
			status: http.StatusUnauthorized,
		},
		{
			name:   "malformed header",
			header: func(t *testing.T) string { return "Token " + valid(t, RoleRider) },
			status: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, RoleRider, time.Now().Add(-time.Minute))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong secret",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), userID, RoleRider, time.Now().Add(time.Hour))
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "non uuid subject",
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "alice", RoleRider, time.Now().Add(time.Hour))
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong role",
			header: func(t *testing.T) string { return "Bearer " + valid(t, RoleRider) },
			roles:  []string{RoleDriver},
			status: http.StatusForbidden,
		},
		{
			name:   "unknown role",
			header: func(t *testing.T) string { return "Bearer " + valid(t, "admin") },
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := NewAuthenticator(testSecret, nil, nil, logger.NewNop())
			router := setupRouter(auth, tt.roles...)

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequire_Blacklist(t *testing.T) {
	userID := uuid.New().String()
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userID, RoleRider, time.Now().Add(time.Hour))

	t.Run("revoked token", func(t *testing.T) {
		auth := NewAuthenticator(testSecret, &stubBlacklist{revoked: map[string]bool{token: true}}, nil, logger.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		setupRouter(auth).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("lookup failure", func(t *testing.T) {
		auth := NewAuthenticator(testSecret, &stubBlacklist{err: errors.New("redis down")}, nil, logger.NewNop())
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		setupRouter(auth).ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestBlacklistKeyHidesToken(t *testing.T) {
	key := blacklistKey("secret-token")
	assert.NotContains(t, key, "secret-token")
	assert.Equal(t, key, blacklistKey("secret-token"))
	assert.Len(t, key, len(blacklistPrefix)+64)
}

type recordingObserver struct {
	method, path string
	status       int
}

func (r *recordingObserver) ObserveHTTP(method, path string, status int, _ time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/v1/rides/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/v1/rides/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.MethodGet, obs.method)
	assert.Equal(t, "/v1/rides/:id", obs.path)
	assert.Equal(t, http.StatusNoContent, obs.status)
}
