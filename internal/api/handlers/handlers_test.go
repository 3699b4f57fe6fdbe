package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-lifecycle/internal/api/dto"
	"github.com/gocomet/ride-lifecycle/internal/api/middleware"
	"github.com/gocomet/ride-lifecycle/internal/domain/driver"
	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/internal/domain/rider"
	"github.com/gocomet/ride-lifecycle/internal/service/geocoding"
	"github.com/gocomet/ride-lifecycle/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-lifecycle/pkg/errors"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "handler-secret"

type fakeEngine struct {
	requested  lifecycle.RequestInput
	quotedType ride.VehicleType
	quotedAll  bool
	startOTP   string
	err        error
	ride       *ride.Ride
	lastDriver *driver.Driver
	principal  lifecycle.Principal
}

func (f *fakeEngine) RequestRide(_ context.Context, rd *rider.Rider, in lifecycle.RequestInput) (*ride.Ride, error) {
	f.requested = in
	if f.err != nil {
		return nil, f.err
	}
	r := *f.ride
	r.RiderID = rd.ID
	return &r, nil
}

func (f *fakeEngine) QuoteFare(_ context.Context, _, _ string, vt ride.VehicleType) (*lifecycle.Quote, error) {
	f.quotedType = vt
	if f.err != nil {
		return nil, f.err
	}
	return &lifecycle.Quote{Fares: map[ride.VehicleType]float64{vt: 125}}, nil
}

func (f *fakeEngine) QuoteAllFares(_ context.Context, _, _ string) (*lifecycle.Quote, error) {
	f.quotedAll = true
	return &lifecycle.Quote{Fares: map[ride.VehicleType]float64{ride.VehicleAuto: 50, ride.VehicleCar: 80, ride.VehicleMoto: 34}}, nil
}

func (f *fakeEngine) GetRide(_ context.Context, _ uuid.UUID, p lifecycle.Principal) (*ride.Ride, error) {
	f.principal = p
	if f.err != nil {
		return nil, f.err
	}
	return f.ride.WithoutOTP(), nil
}

func (f *fakeEngine) AcceptRide(_ context.Context, _ uuid.UUID, d *driver.Driver) (*ride.Ride, error) {
	f.lastDriver = d
	return f.ride, f.err
}

func (f *fakeEngine) StartRide(_ context.Context, _ uuid.UUID, otp string, d *driver.Driver) (*ride.Ride, error) {
	f.lastDriver = d
	f.startOTP = otp
	return f.ride, f.err
}

func (f *fakeEngine) EndRide(_ context.Context, _ uuid.UUID, d *driver.Driver) (*ride.Ride, error) {
	f.lastDriver = d
	return f.ride, f.err
}

type fakeMaps struct {
	coords   map[string]ride.Coordinate
	routedTo ride.Coordinate
}

func (m *fakeMaps) ResolveAddress(_ context.Context, address string) (ride.Coordinate, error) {
	c, ok := m.coords[address]
	if !ok {
		return ride.Coordinate{}, apperrors.AddressNotFound(address)
	}
	return c, nil
}

func (m *fakeMaps) RouteMetrics(_ context.Context, _, to ride.Coordinate) (geocoding.RouteMetrics, error) {
	m.routedTo = to
	return geocoding.RouteMetrics{DistanceMeters: 9500, DurationSeconds: 1200}, nil
}

func (m *fakeMaps) Suggest(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type fakeLocations struct {
	updated []driver.Driver
	offline []uuid.UUID
}

func (l *fakeLocations) GoOffline(_ context.Context, id uuid.UUID) error {
	l.offline = append(l.offline, id)
	return nil
}

func (l *fakeLocations) UpdateLocation(_ context.Context, d driver.Driver) error {
	l.updated = append(l.updated, d)
	return nil
}

type fakeRevoker struct {
	token string
	ttl   time.Duration
}

func (r *fakeRevoker) Add(_ context.Context, token string, ttl time.Duration) error {
	r.token, r.ttl = token, ttl
	return nil
}

type testServer struct {
	router    *gin.Engine
	engine    *fakeEngine
	maps      *fakeMaps
	locations *fakeLocations
	revoker   *fakeRevoker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		engine: &fakeEngine{ride: &ride.Ride{
			ID:          uuid.New(),
			OTP:         "123456",
			Status:      ride.StatusPending,
			VehicleType: ride.VehicleCar,
			Fare:        125,
		}},
		maps: &fakeMaps{coords: map[string]ride.Coordinate{
			"MG Road":     {Lat: 12.9756, Lng: 77.6050},
			"Indiranagar": {Lat: 12.9719, Lng: 77.6412},
		}},
		locations: &fakeLocations{},
		revoker:   &fakeRevoker{},
	}

	h := NewHandlers(ts.engine, ts.maps, ts.locations, nil, ts.revoker, logger.NewNop(), Options{})
	auth := middleware.NewAuthenticator(secret, nil, nil, logger.NewNop())

	r := gin.New()
	v1 := r.Group("/v1")
	v1.POST("/auth/logout", auth.Require(), h.Logout)
	v1.POST("/rides", auth.Require(middleware.RoleRider), h.CreateRide)
	v1.GET("/rides/fare", auth.Require(middleware.RoleRider), h.GetFare)
	v1.GET("/rides/:id", auth.Require(), h.GetRide)
	v1.POST("/rides/:id/accept", auth.Require(middleware.RoleDriver), h.AcceptRide)
	v1.POST("/rides/:id/start", auth.Require(middleware.RoleDriver), h.StartRide)
	v1.POST("/rides/:id/end", auth.Require(middleware.RoleDriver), h.EndRide)
	v1.GET("/maps/coordinates", auth.Require(), h.GetCoordinates)
	v1.GET("/maps/distance-time", auth.Require(), h.GetDistanceTime)
	v1.GET("/maps/suggestions", auth.Require(), h.GetSuggestions)
	v1.POST("/drivers/location", auth.Require(middleware.RoleDriver), h.UpdateDriverLocation)
	v1.DELETE("/drivers/location", auth.Require(middleware.RoleDriver), h.GoOffline)
	r.GET("/health", h.Health)
	ts.router = r
	return ts
}

func token(t *testing.T, sub uuid.UUID, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateRide_ReturnsOTPToRider(t *testing.T) {
	ts := newTestServer(t)
	riderID := uuid.New()

	w := ts.do(t, http.MethodPost, "/v1/rides", token(t, riderID, middleware.RoleRider),
		`{"pickup":"MG Road","destination":"Indiranagar","vehicle_type":" Car "}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var got ride.Ride
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "123456", got.OTP)
	assert.Equal(t, riderID, got.RiderID)
	assert.Equal(t, ride.VehicleCar, ts.engine.requested.VehicleType)
}

func TestCreateRide_RejectsDriversAndBadBodies(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/rides", token(t, uuid.New(), middleware.RoleDriver),
		`{"pickup":"a","destination":"b","vehicle_type":"car"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/rides", token(t, uuid.New(), middleware.RoleRider), `{"pickup":"a"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, decodeError(t, w).Code)

	w = ts.do(t, http.MethodPost, "/v1/rides", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateRide_MapsEngineErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.UnknownVehicleType("boat"), http.StatusBadRequest, apperrors.CodeUnknownVehicleType},
		{apperrors.AddressNotFound("nowhere"), http.StatusNotFound, apperrors.CodeAddressNotFound},
		{apperrors.ProviderUnavailable("down", nil), http.StatusServiceUnavailable, apperrors.CodeProviderUnavailable},
		{assert.AnError, http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ts := newTestServer(t)
			ts.engine.err = tt.err
			w := ts.do(t, http.MethodPost, "/v1/rides", token(t, uuid.New(), middleware.RoleRider),
				`{"pickup":"a","destination":"b","vehicle_type":"boat"}`)
			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestGetFare(t *testing.T) {
	ts := newTestServer(t)
	tok := token(t, uuid.New(), middleware.RoleRider)

	w := ts.do(t, http.MethodGet, "/v1/rides/fare?pickup=MG+Road&destination=Indiranagar&vehicle_type=AUTO", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ride.VehicleAuto, ts.engine.quotedType)

	w = ts.do(t, http.MethodGet, "/v1/rides/fare?pickup=MG+Road&destination=Indiranagar", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ts.engine.quotedAll)
	var q lifecycle.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Len(t, q.Fares, 3)

	w = ts.do(t, http.MethodGet, "/v1/rides/fare?pickup=MG+Road", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRide(t *testing.T) {
	ts := newTestServer(t)
	driverID := uuid.New()

	w := ts.do(t, http.MethodGet, "/v1/rides/"+ts.engine.ride.ID.String(), token(t, driverID, middleware.RoleDriver), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "123456")
	require.NotNil(t, ts.engine.principal.Driver)
	assert.Equal(t, driverID, ts.engine.principal.Driver.ID)

	w = ts.do(t, http.MethodGet, "/v1/rides/not-a-uuid", token(t, driverID, middleware.RoleDriver), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.engine.err = apperrors.ErrRideNotFound
	w = ts.do(t, http.MethodGet, "/v1/rides/"+uuid.NewString(), token(t, driverID, middleware.RoleDriver), "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CodeRideNotFound, decodeError(t, w).Code)
}

func TestDriverTransitions(t *testing.T) {
	ts := newTestServer(t)
	driverID := uuid.New()
	tok := token(t, driverID, middleware.RoleDriver)
	path := "/v1/rides/" + ts.engine.ride.ID.String()

	w := ts.do(t, http.MethodPost, path+"/accept", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, driverID, ts.engine.lastDriver.ID)

	w = ts.do(t, http.MethodPost, path+"/start", tok, `{"otp":"654321"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "654321", ts.engine.startOTP)

	w = ts.do(t, http.MethodPost, path+"/start", tok, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, path+"/end", tok, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, path+"/accept", token(t, uuid.New(), middleware.RoleRider), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDriverTransitions_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid state", apperrors.InvalidState("ride is not pending"), http.StatusConflict},
		{"invalid otp", apperrors.ErrInvalidOtp, http.StatusForbidden},
		{"not assigned", apperrors.Unauthorized("ride is assigned to another driver"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.engine.err = tt.err
			w := ts.do(t, http.MethodPost, "/v1/rides/"+uuid.NewString()+"/start",
				token(t, uuid.New(), middleware.RoleDriver), `{"otp":"000000"}`)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestMaps(t *testing.T) {
	ts := newTestServer(t)
	tok := token(t, uuid.New(), middleware.RoleRider)

	w := ts.do(t, http.MethodGet, "/v1/maps/coordinates?address=MG+Road", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lat":12.9756`)

	w = ts.do(t, http.MethodGet, "/v1/maps/coordinates?address=Atlantis", tok, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/maps/distance-time?origin=MG+Road&destination=12.97,77.75", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ride.Coordinate{Lat: 12.97, Lng: 77.75}, ts.maps.routedTo)
	var dt dto.DistanceTimeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dt))
	assert.Equal(t, 9500.0, dt.DistanceMeters)

	w = ts.do(t, http.MethodGet, "/v1/maps/distance-time?origin=MG+Road&destination=95,77", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/maps/suggestions?input=MG", tok, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/maps/suggestions?input=MG+Ro", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"suggestions":[]}`, w.Body.String())
}

func TestUpdateDriverLocation(t *testing.T) {
	ts := newTestServer(t)
	driverID := uuid.New()
	tok := token(t, driverID, middleware.RoleDriver)

	w := ts.do(t, http.MethodPost, "/v1/drivers/location", tok, `{"latitude":12.97,"longitude":77.59}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ts.locations.updated, 1)
	assert.Equal(t, driverID, ts.locations.updated[0].ID)
	assert.Equal(t, ride.Coordinate{Lat: 12.97, Lng: 77.59}, ts.locations.updated[0].Location)

	w = ts.do(t, http.MethodPost, "/v1/drivers/location", tok, `{"latitude":120,"longitude":77.59}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/drivers/location", tok, `{"latitude":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/drivers/location", token(t, uuid.New(), middleware.RoleRider), `{"latitude":1,"longitude":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGoOffline(t *testing.T) {
	ts := newTestServer(t)
	driverID := uuid.New()

	w := ts.do(t, http.MethodDelete, "/v1/drivers/location", token(t, driverID, middleware.RoleDriver), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{driverID}, ts.locations.offline)
}

func TestLogoutBlacklistsToken(t *testing.T) {
	ts := newTestServer(t)
	tok := token(t, uuid.New(), middleware.RoleRider)

	w := ts.do(t, http.MethodPost, "/v1/auth/logout", tok, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tok, ts.revoker.token)
	assert.InDelta(t, time.Hour.Seconds(), ts.revoker.ttl.Seconds(), 5)
}

func TestHealth_WithoutHub(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotContains(t, body, "connections")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/v1/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
