package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadassist/auth"
	"roadassist/domain"
)

// createRequestBody mirrors the wire payload for opening a request.
type createRequestBody struct {
	ProblemType      string `json:"problemType"`
	Description      string `json:"description"`
	VehicleNumber    string `json:"vehicleNumber"`
	CustomerLocation struct {
		Coordinates []float64 `json:"coordinates"`
		Address     string    `json:"address"`
	} `json:"customerLocation"`
	Images        []string `json:"images"`
	PaymentMethod string   `json:"paymentMethod"`
	EstimatedCost float64  `json:"estimatedCost"`
}

// CreateRequest opens a new pending service request for the caller.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateRequest")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request body")
		h.respondError(w, domain.NewValidation("invalid request body: %v", err))
		return
	}
	if len(body.CustomerLocation.Coordinates) != 2 {
		h.respondError(w, domain.NewValidation("customerLocation.coordinates must be [longitude, latitude]"))
		return
	}

	input := &domain.CreateRequestInput{
		ProblemType:   domain.ProblemType(body.ProblemType),
		Description:   body.Description,
		VehicleNumber: body.VehicleNumber,
		Longitude:     body.CustomerLocation.Coordinates[0],
		Latitude:      body.CustomerLocation.Coordinates[1],
		Address:       body.CustomerLocation.Address,
		Images:        body.Images,
		PaymentMethod: domain.PaymentMethod(body.PaymentMethod),
		EstimatedCost: body.EstimatedCost,
	}
	req, err := h.service.CreateRequest(ctx, identity.UserID, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.String("requestID", req.ID))
	h.respondData(w, http.StatusCreated, "Service request created successfully", req)
}

// NearbyRequests lists pending requests near the mechanic's position.
func (h *Handler) NearbyRequests(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "NearbyRequests")
	defer span.End()

	lng, lat, err := parsePoint(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	radiusKm := parseFloatQuery(r, "radius", 0)

	nearby, err := h.service.FindRequestsNear(ctx, lng, lat, radiusKm)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.Int("requestCount", len(nearby)))
	h.respondList(w, len(nearby), nearby)
}

// GetRequest returns one request projection.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetRequest")
	defer span.End()

	requestID := mux.Vars(r)["requestID"]
	req, err := h.service.GetRequest(ctx, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	h.respondData(w, http.StatusOK, "", req)
}

// CustomerRequests lists the calling customer's requests, newest first.
func (h *Handler) CustomerRequests(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CustomerRequests")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	requests, err := h.service.ListCustomerRequests(ctx, identity.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	h.respondList(w, len(requests), requests)
}

// MechanicRequests lists requests assigned to the calling mechanic,
// newest first.
func (h *Handler) MechanicRequests(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MechanicRequests")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	requests, err := h.service.ListMechanicRequests(ctx, identity.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	h.respondList(w, len(requests), requests)
}

// AcceptRequest assigns the pending request to the calling mechanic.
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AcceptRequest")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	requestID := mux.Vars(r)["requestID"]

	req, err := h.service.AcceptRequest(ctx, requestID, identity.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.String("requestID", requestID))
	h.respondData(w, http.StatusOK, "Request accepted successfully", req)
}

// CompleteRequest closes the request with its final cost.
func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CompleteRequest")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	requestID := mux.Vars(r)["requestID"]

	var body struct {
		FinalCost float64 `json:"finalCost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, domain.NewValidation("invalid request body: %v", err))
		return
	}

	req, err := h.service.CompleteRequest(ctx, requestID, identity.UserID, body.FinalCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(
		attribute.String("requestID", requestID),
		attribute.Float64("finalCost", body.FinalCost),
	)
	h.respondData(w, http.StatusOK, "Request completed successfully", req)
}

// CancelRequest cancels the request on behalf of either party.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelRequest")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	requestID := mux.Vars(r)["requestID"]

	req, err := h.service.CancelRequest(ctx, requestID, identity.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.String("requestID", requestID))
	h.respondData(w, http.StatusOK, "Request cancelled successfully", req)
}

// parsePoint reads the required lat/lng query parameters.
func parsePoint(r *http.Request) (lng, lat float64, err error) {
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr == "" || lngStr == "" {
		return 0, 0, domain.NewValidation("latitude and longitude are required")
	}
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, domain.NewValidation("invalid latitude %q", latStr)
	}
	lng, err = strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, domain.NewValidation("invalid longitude %q", lngStr)
	}
	return lng, lat, nil
}

// parseFloatQuery reads an optional float parameter, falling back on
// missing or malformed input.
func parseFloatQuery(r *http.Request, key string, fallback float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
