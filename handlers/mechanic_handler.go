package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"roadassist/auth"
	"roadassist/domain"
	"roadassist/service"
)

// NearbyMechanics lists online, verified mechanics near a point.
func (h *Handler) NearbyMechanics(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "NearbyMechanics")
	defer span.End()

	lng, lat, err := parsePoint(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	radiusKm := parseFloatQuery(r, "radius", 0)

	mechanics, err := h.service.FindMechanicsNear(ctx, lng, lat, radiusKm)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.Int("mechanicCount", len(mechanics)))
	h.respondList(w, len(mechanics), mechanics)
}

// SearchMechanics filters mechanics by specialization, rating and distance.
func (h *Handler) SearchMechanics(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SearchMechanics")
	defer span.End()

	q := service.MechanicSearch{
		Specialization: r.URL.Query().Get("specialization"),
		MinRating:      parseFloatQuery(r, "minRating", 0),
	}
	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if latStr != "" && lngStr != "" {
		lng, lat, err := parsePoint(r)
		if err != nil {
			h.respondError(w, err)
			return
		}
		q.HasPoint = true
		q.Longitude = lng
		q.Latitude = lat
		q.RadiusKm = parseFloatQuery(r, "maxDistance", 0)
	}

	mechanics, err := h.service.SearchMechanics(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.Int("mechanicCount", len(mechanics)))
	h.respondList(w, len(mechanics), mechanics)
}

// MechanicProfile returns the calling mechanic's profile.
func (h *Handler) MechanicProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MechanicProfile")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	m, err := h.service.GetMechanicProfile(ctx, identity.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	h.respondData(w, http.StatusOK, "", m)
}

// UpdateLocation replaces the calling mechanic's current location.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateLocation")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}

	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Address   string  `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, domain.NewValidation("invalid request body: %v", err))
		return
	}

	if err := h.service.UpdateMechanicLocation(ctx, identity.UserID, body.Longitude, body.Latitude, body.Address); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	h.respondData(w, http.StatusOK, "Location updated successfully", nil)
}

// UpdateStatus toggles the calling mechanic's online flag.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateStatus")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}

	var body struct {
		IsOnline bool `json:"isOnline"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, domain.NewValidation("invalid request body: %v", err))
		return
	}

	if err := h.service.SetMechanicOnline(ctx, identity.UserID, body.IsOnline); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.Bool("isOnline", body.IsOnline))
	h.respondData(w, http.StatusOK, "Status updated successfully", map[string]bool{"isOnline": body.IsOnline})
}

// AddReview records the caller's review of a mechanic for one request.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddReview")
	defer span.End()

	identity, ok := auth.FromContext(ctx)
	if !ok {
		h.respondError(w, domain.NewAuthorization("authentication required"))
		return
	}
	mechanicID := mux.Vars(r)["mechanicID"]

	var body struct {
		Rating    int    `json:"rating"`
		Comment   string `json:"comment"`
		RequestID string `json:"requestId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, domain.NewValidation("invalid request body: %v", err))
		return
	}

	m, err := h.service.AddReview(ctx, mechanicID, identity.UserID, body.RequestID, body.Rating, body.Comment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(
		attribute.String("mechanicID", mechanicID),
		attribute.Int("rating", body.Rating),
	)
	h.respondData(w, http.StatusCreated, "Review added successfully", map[string]any{
		"rating":      m.Rating,
		"reviewCount": len(m.Reviews),
	})
}

// MechanicReviews returns the mechanic's reviews, newest first.
func (h *Handler) MechanicReviews(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MechanicReviews")
	defer span.End()

	mechanicID := mux.Vars(r)["mechanicID"]
	reviews, err := h.service.ListReviews(ctx, mechanicID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.respondError(w, err)
		return
	}
	span.SetAttributes(attribute.Int("reviewCount", reviews.Count))
	h.respondData(w, http.StatusOK, "", reviews)
}
