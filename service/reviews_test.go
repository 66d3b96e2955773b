package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadassist/domain"
)

func TestAddReview(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := seedMechanic(t, repo, "mech-1", "user-mech-1", true, true)

	got, err := svc.AddReview(ctx, m.ID, "cust-1", "req-1", 4, "quick and fair")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Rating)
	require.Len(t, got.Reviews, 1)

	got, err = svc.AddReview(ctx, m.ID, "cust-2", "req-2", 5, "")
	require.NoError(t, err)
	assert.Equal(t, 4.5, got.Rating, "mean of 4 and 5 rounded to one decimal")
	assert.Len(t, got.Reviews, 2)
}

func TestAddReviewDuplicate(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := seedMechanic(t, repo, "mech-1", "user-mech-1", true, true)

	_, err := svc.AddReview(ctx, m.ID, "cust-1", "req-1", 4, "fine")
	require.NoError(t, err)

	_, err = svc.AddReview(ctx, m.ID, "cust-1", "req-1", 1, "changed my mind")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindConflict), "got %v", err)

	got, err := svc.GetMechanicProfile(ctx, "user-mech-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, got.Rating, "rejected duplicate must not touch the aggregate")
	assert.Len(t, got.Reviews, 1)

	// Same customer reviewing a different request is fine.
	_, err = svc.AddReview(ctx, m.ID, "cust-1", "req-2", 2, "second visit went worse")
	require.NoError(t, err)
}

func TestAddReviewValidation(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := seedMechanic(t, repo, "mech-1", "user-mech-1", true, true)

	_, err := svc.AddReview(ctx, m.ID, "cust-1", "req-1", 0, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.AddReview(ctx, m.ID, "cust-1", "req-1", 6, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.AddReview(ctx, m.ID, "cust-1", "req-1", 3, strings.Repeat("x", 201))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.AddReview(ctx, m.ID, "", "req-1", 3, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.AddReview(ctx, "no-such-mechanic", "cust-1", "req-1", 3, "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestListReviews(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	m := seedMechanic(t, repo, "mech-1", "user-mech-1", true, true)

	repo.mu.Lock()
	repo.mechanics[m.ID].Reviews = []domain.Review{
		{CustomerID: "cust-1", RequestID: "req-1", Rating: 4, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{CustomerID: "cust-2", RequestID: "req-2", Rating: 5, CreatedAt: time.Now()},
		{CustomerID: "cust-3", RequestID: "req-3", Rating: 3, CreatedAt: time.Now().Add(-time.Hour)},
	}
	repo.mechanics[m.ID].Rating = domain.AverageRating(repo.mechanics[m.ID].Reviews)
	repo.mu.Unlock()

	got, err := svc.ListReviews(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 4.0, got.AverageRating)
	require.Len(t, got.Reviews, 3)
	assert.Equal(t, "cust-2", got.Reviews[0].CustomerID, "newest first")
	assert.Equal(t, "cust-3", got.Reviews[1].CustomerID)
	assert.Equal(t, "cust-1", got.Reviews[2].CustomerID)
}

// TestRequestLifecycleWithReview walks one request from creation through
// completion and the follow-up review, checking the ledger at the end.
func TestRequestLifecycleWithReview(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	mech := seedMechanic(t, repo, "mech-1", "user-mech-1", true, true)

	req, err := svc.CreateRequest(ctx, "cust-1", validCreateInput())
	require.NoError(t, err)

	nearby, err := svc.FindRequestsNear(ctx, 77.11, 28.71, 10)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	require.Equal(t, req.ID, nearby[0].ID)

	_, err = svc.AcceptRequest(ctx, req.ID, "user-mech-1")
	require.NoError(t, err)

	_, err = svc.CompleteRequest(ctx, req.ID, "user-mech-1", 500)
	require.NoError(t, err)

	reviewed, err := svc.AddReview(ctx, mech.ID, "cust-1", req.ID, 5, "got me moving again")
	require.NoError(t, err)
	assert.Equal(t, 5.0, reviewed.Rating)

	m, err := svc.GetMechanicProfile(ctx, "user-mech-1")
	require.NoError(t, err)
	assert.Equal(t, 1, m.TotalJobs)
	assert.Equal(t, 1, m.CompletedJobs)
	assert.Equal(t, 500.0, m.Earnings.Total)

	assert.Equal(t, []string{
		domain.EventRequestCreated,
		domain.EventRequestAccepted,
		domain.EventRequestCompleted,
	}, repo.eventTypes())
}
