package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"roadassist/domain"
	"roadassist/geo"
)

// fakeRepo is an in-memory domain.Repository with the same conditional
// update semantics as the Mongo store: the guard on the current state and
// the write happen under one lock acquisition.
type fakeRepo struct {
	mu        sync.Mutex
	requests  map[string]*domain.ServiceRequest
	mechanics map[string]*domain.Mechanic
	outbox    []*domain.OutboxEvent
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		requests:  make(map[string]*domain.ServiceRequest),
		mechanics: make(map[string]*domain.Mechanic),
	}
}

func (f *fakeRepo) CreateRequest(_ context.Context, req *domain.ServiceRequest) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.requests[req.ID] = &cp
	return &cp, nil
}

func (f *fakeRepo) GetRequestByID(_ context.Context, id string) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, domain.NewNotFound("service request %s not found", id)
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRepo) ListRequestsByCustomer(_ context.Context, customerID string) ([]*domain.ServiceRequest, error) {
	return f.listRequests(func(r *domain.ServiceRequest) bool { return r.CustomerID == customerID }, 0)
}

func (f *fakeRepo) ListRequestsByMechanic(_ context.Context, mechanicUserID string) ([]*domain.ServiceRequest, error) {
	return f.listRequests(func(r *domain.ServiceRequest) bool { return r.MechanicID == mechanicUserID }, 0)
}

func (f *fakeRepo) FindPendingRequestsNear(_ context.Context, longitude, latitude, radiusMeters float64, limit int64) ([]*domain.ServiceRequest, error) {
	origin := geo.Point{Longitude: longitude, Latitude: latitude}
	return f.listRequests(func(r *domain.ServiceRequest) bool {
		if r.Status != domain.StatusPending {
			return false
		}
		there := geo.Point{Longitude: r.CustomerLocation.Longitude(), Latitude: r.CustomerLocation.Latitude()}
		return geo.Distance(origin, there)*1000 <= radiusMeters
	}, limit)
}

func (f *fakeRepo) listRequests(match func(*domain.ServiceRequest) bool, limit int64) ([]*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ServiceRequest
	for _, r := range f.requests {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) AcceptRequest(_ context.Context, requestID, mechanicUserID string, at time.Time) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return nil, domain.NewNotFound("service request %s not found", requestID)
	}
	if req.Status != domain.StatusPending {
		return nil, domain.NewStateConflict("request %s is no longer available (status %s)", requestID, req.Status)
	}
	req.MechanicID = mechanicUserID
	req.Status = domain.StatusAccepted
	req.AcceptedAt = &at
	req.UpdatedAt = at
	cp := *req
	return &cp, nil
}

func (f *fakeRepo) CompleteRequest(_ context.Context, requestID, actorID string, finalCost float64, at time.Time) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return nil, domain.NewNotFound("service request %s not found", requestID)
	}
	if req.MechanicID != actorID {
		return nil, domain.NewAuthorization("not authorized to complete this request")
	}
	if req.Status != domain.StatusAccepted && req.Status != domain.StatusInProgress {
		return nil, domain.NewStateConflict("cannot complete request %s in status %s", requestID, req.Status)
	}
	req.Status = domain.StatusCompleted
	req.FinalCost = &finalCost
	req.CompletedAt = &at
	req.UpdatedAt = at
	cp := *req
	return &cp, nil
}

func (f *fakeRepo) CancelRequest(_ context.Context, requestID, actorID string) (*domain.ServiceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return nil, domain.NewNotFound("service request %s not found", requestID)
	}
	if req.CustomerID != actorID && req.MechanicID != actorID {
		return nil, domain.NewAuthorization("not authorized to cancel this request")
	}
	if req.Status.Terminal() {
		return nil, domain.NewStateConflict("cannot cancel request %s in status %s", requestID, req.Status)
	}
	req.Status = domain.StatusCancelled
	req.UpdatedAt = time.Now()
	cp := *req
	return &cp, nil
}

func (f *fakeRepo) CreateMechanic(_ context.Context, m *domain.Mechanic) (*domain.Mechanic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.mechanics {
		if existing.UserID == m.UserID {
			return nil, domain.NewConflict("mechanic profile already exists for user %s", m.UserID)
		}
	}
	cp := *m
	f.mechanics[m.ID] = &cp
	return &cp, nil
}

func (f *fakeRepo) GetMechanicByID(_ context.Context, id string) (*domain.Mechanic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mechanics[id]
	if !ok {
		return nil, domain.NewNotFound("mechanic %s not found", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRepo) GetMechanicByUserID(_ context.Context, userID string) (*domain.Mechanic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findByUserLocked(userID)
	if m == nil {
		return nil, domain.NewNotFound("mechanic profile for user %s not found", userID)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRepo) findByUserLocked(userID string) *domain.Mechanic {
	for _, m := range f.mechanics {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

func (f *fakeRepo) FindMechanicsNear(_ context.Context, longitude, latitude, radiusMeters float64, limit int64) ([]*domain.Mechanic, error) {
	return f.listMechanics(domain.MechanicSearchFilter{
		HasPoint:     true,
		Longitude:    longitude,
		Latitude:     latitude,
		RadiusMeters: radiusMeters,
	}, limit)
}

func (f *fakeRepo) SearchMechanics(_ context.Context, filter domain.MechanicSearchFilter, limit int64) ([]*domain.Mechanic, error) {
	return f.listMechanics(filter, limit)
}

func (f *fakeRepo) listMechanics(filter domain.MechanicSearchFilter, limit int64) ([]*domain.Mechanic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	origin := geo.Point{Longitude: filter.Longitude, Latitude: filter.Latitude}
	var out []*domain.Mechanic
	for _, m := range f.mechanics {
		if !m.IsOnline || !m.IsVerified {
			continue
		}
		if filter.Specialization != "" && string(m.Specialization) != filter.Specialization {
			continue
		}
		if m.Rating < filter.MinRating {
			continue
		}
		if filter.HasPoint {
			there := geo.Point{Longitude: m.CurrentLocation.Longitude(), Latitude: m.CurrentLocation.Latitude()}
			if geo.Distance(origin, there)*1000 > filter.RadiusMeters {
				continue
			}
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) IncrementTotalJobs(_ context.Context, mechanicUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findByUserLocked(mechanicUserID)
	if m == nil {
		return domain.NewNotFound("mechanic profile for user %s not found", mechanicUserID)
	}
	m.TotalJobs++
	return nil
}

func (f *fakeRepo) IncrementCompletedJobs(_ context.Context, mechanicUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findByUserLocked(mechanicUserID)
	if m == nil {
		return domain.NewNotFound("mechanic profile for user %s not found", mechanicUserID)
	}
	m.CompletedJobs++
	return nil
}

func (f *fakeRepo) RecordEarnings(_ context.Context, mechanicUserID string, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findByUserLocked(mechanicUserID)
	if m == nil {
		return domain.NewNotFound("mechanic profile for user %s not found", mechanicUserID)
	}
	m.Earnings.ThisMonth += amount
	m.Earnings.Total += amount
	return nil
}

func (f *fakeRepo) AddReview(_ context.Context, mechanicID string, review domain.Review) (*domain.Mechanic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mechanics[mechanicID]
	if !ok {
		return nil, domain.NewNotFound("mechanic %s not found", mechanicID)
	}
	for _, r := range m.Reviews {
		if r.CustomerID == review.CustomerID && r.RequestID == review.RequestID {
			return nil, domain.NewConflict("customer %s already reviewed request %s", review.CustomerID, review.RequestID)
		}
	}
	m.Reviews = append(m.Reviews, review)
	m.Rating = domain.AverageRating(m.Reviews)
	m.UpdatedAt = time.Now()
	cp := *m
	return &cp, nil
}

func (f *fakeRepo) UpdateMechanicLocation(_ context.Context, mechanicUserID string, location domain.GeoPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findByUserLocked(mechanicUserID)
	if m == nil {
		return domain.NewNotFound("mechanic profile for user %s not found", mechanicUserID)
	}
	m.CurrentLocation = location
	m.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) SetMechanicOnline(_ context.Context, mechanicUserID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findByUserLocked(mechanicUserID)
	if m == nil {
		return domain.NewNotFound("mechanic profile for user %s not found", mechanicUserID)
	}
	m.IsOnline = online
	m.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepo) SaveOutboxEvent(_ context.Context, event *domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *event
	f.outbox = append(f.outbox, &cp)
	return nil
}

func (f *fakeRepo) GetUnprocessedOutboxEvents(_ context.Context) ([]*domain.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range f.outbox {
		if !e.Processed {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkOutboxEventProcessed(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.outbox {
		if e.ID == eventID {
			now := time.Now()
			e.Processed = true
			e.ProcessedAt = &now
			return nil
		}
	}
	return domain.NewNotFound("outbox event %s not found", eventID)
}

func (f *fakeRepo) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.outbox))
	for _, e := range f.outbox {
		types = append(types, e.EventType)
	}
	return types
}
