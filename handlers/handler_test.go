package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadassist/auth"
	"roadassist/domain"
	"roadassist/service"
)

// stubRepo overrides just the store calls a test exercises; anything else
// panics, which is exactly what we want from an unexpected call.
type stubRepo struct {
	domain.Repository
	createRequest func(*domain.ServiceRequest) (*domain.ServiceRequest, error)
	getRequest    func(string) (*domain.ServiceRequest, error)
	getMechanic   func(string) (*domain.Mechanic, error)
	acceptRequest func(string, string) (*domain.ServiceRequest, error)
}

func (s *stubRepo) CreateRequest(_ context.Context, req *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	return s.createRequest(req)
}

func (s *stubRepo) GetRequestByID(_ context.Context, id string) (*domain.ServiceRequest, error) {
	return s.getRequest(id)
}

func (s *stubRepo) GetMechanicByUserID(_ context.Context, userID string) (*domain.Mechanic, error) {
	return s.getMechanic(userID)
}

func (s *stubRepo) AcceptRequest(_ context.Context, requestID, mechanicUserID string, _ time.Time) (*domain.ServiceRequest, error) {
	return s.acceptRequest(requestID, mechanicUserID)
}

func (s *stubRepo) IncrementTotalJobs(context.Context, string) error { return nil }

func (s *stubRepo) SaveOutboxEvent(context.Context, *domain.OutboxEvent) error { return nil }

func newTestHandler(repo domain.Repository) *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(service.NewService(repo, logger), logger)
}

func asCustomer(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UserID: userID, Role: auth.RoleCustomer}))
}

func asMechanic(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UserID: userID, Role: auth.RoleMechanic}))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(domain.KindValidation))
	assert.Equal(t, http.StatusForbidden, statusForKind(domain.KindAuthorization))
	assert.Equal(t, http.StatusNotFound, statusForKind(domain.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusForKind(domain.KindStateConflict))
	assert.Equal(t, http.StatusConflict, statusForKind(domain.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(domain.KindInternal))
}

func TestCreateRequestEndpoint(t *testing.T) {
	repo := &stubRepo{
		createRequest: func(req *domain.ServiceRequest) (*domain.ServiceRequest, error) {
			return req, nil
		},
	}
	h := newTestHandler(repo)

	body := `{
		"problemType": "tirePuncture",
		"description": "Flat tire on the shoulder",
		"vehicleNumber": "ka01ab1234",
		"customerLocation": {"coordinates": [77.10, 28.70], "address": "NH48"},
		"paymentMethod": "cash",
		"estimatedCost": 300
	}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body)), "cust-1")
	rec := httptest.NewRecorder()
	h.CreateRequest(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var created domain.ServiceRequest
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, "cust-1", created.CustomerID)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.Equal(t, "KA01AB1234", created.VehicleNumber)
}

func TestCreateRequestEndpointRejectsBadCoordinates(t *testing.T) {
	h := newTestHandler(&stubRepo{})

	body := `{"problemType": "other", "description": "x", "customerLocation": {"coordinates": [77.10], "address": "NH48"}, "paymentMethod": "cash"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(body)), "cust-1")
	rec := httptest.NewRecorder()
	h.CreateRequest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "coordinates")
}

func TestGetRequestEndpointNotFound(t *testing.T) {
	repo := &stubRepo{
		getRequest: func(id string) (*domain.ServiceRequest, error) {
			return nil, domain.NewNotFound("service request %s not found", id)
		},
	}
	h := newTestHandler(repo)

	r := mux.NewRouter()
	r.HandleFunc("/api/requests/{requestID}", h.GetRequest).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, "/api/requests/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestAcceptRequestEndpointConflict(t *testing.T) {
	repo := &stubRepo{
		getMechanic: func(userID string) (*domain.Mechanic, error) {
			return &domain.Mechanic{ID: "mech-1", UserID: userID}, nil
		},
		acceptRequest: func(requestID, mechanicUserID string) (*domain.ServiceRequest, error) {
			return nil, domain.NewStateConflict("request %s is no longer available (status accepted)", requestID)
		},
	}
	h := newTestHandler(repo)

	r := mux.NewRouter()
	r.HandleFunc("/api/requests/{requestID}/accept", h.AcceptRequest).Methods("PUT")

	req := asMechanic(httptest.NewRequest(http.MethodPut, "/api/requests/req-1/accept", nil), "user-mech-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "no longer available")
}

func TestRespondErrorMasksInternal(t *testing.T) {
	repo := &stubRepo{
		getRequest: func(string) (*domain.ServiceRequest, error) {
			return nil, assert.AnError
		},
	}
	h := newTestHandler(repo)

	r := mux.NewRouter()
	r.HandleFunc("/api/requests/{requestID}", h.GetRequest).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, "/api/requests/req-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.NotContains(t, env.Message, assert.AnError.Error())
}
