package registrations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcp-registry/backend/internal/models"
)

// fakeStore is an in-memory Store honoring the same contract as the
// PostgreSQL repository: URL uniqueness across all statuses, atomic
// review of Pending rows, newest-first ordering.
type fakeStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Registration
	seq  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*models.Registration)}
}

func (s *fakeStore) Create(_ context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.EndpointURL == reg.EndpointURL {
			return ErrConflict
		}
	}
	s.seq++
	reg.ID = uuid.New()
	reg.Status = models.StatusPending
	reg.CreatedAt = time.Unix(int64(s.seq), 0).UTC()
	reg.UpdatedAt = reg.CreatedAt
	clone := *reg
	s.rows[reg.ID] = &clone
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *fakeStore) GetByURL(_ context.Context, endpointURL string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.EndpointURL == endpointURL {
			clone := *r
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) List(_ context.Context, f ListFilter) (*ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]models.Registration, 0)
	for _, r := range s.rows {
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.SubmitterID != nil && r.SubmitterID != *f.SubmitterID {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(r.EndpointName), needle) &&
				!strings.Contains(strings.ToLower(r.Description), needle) &&
				!strings.Contains(strings.ToLower(r.OwnerContact), needle) {
				continue
			}
		}
		matched = append(matched, *r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() > matched[j].ID.String()
	})
	total := len(matched)
	if f.Offset < total {
		matched = matched[f.Offset:]
	} else {
		matched = nil
	}
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	if matched == nil {
		matched = []models.Registration{}
	}
	return &ListResult{Total: total, Limit: f.Limit, Offset: f.Offset, Results: matched}, nil
}

func (s *fakeStore) Review(_ context.Context, id uuid.UUID, newStatus models.Status, approverID uuid.UUID, _ string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != models.StatusPending {
		return nil, ErrInvalidTransition
	}
	now := time.Now().UTC()
	r.Status = newStatus
	r.ApproverID = &approverID
	r.ApprovedAt = &now
	r.UpdatedAt = now
	clone := *r
	return &clone, nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func adminPrincipal() models.Principal {
	return models.Principal{UserID: uuid.New(), Email: "admin@example.com", IsAdmin: true}
}

func userPrincipal() models.Principal {
	return models.Principal{UserID: uuid.New(), Email: "user@example.com"}
}

func validInput(url string) SubmitInput {
	return SubmitInput{
		EndpointURL:  url,
		EndpointName: "billing tools",
		Description:  "invoice lookup and dunning",
		OwnerContact: "billing-team@example.com",
		Tools:        []models.Tool{{Name: "lookup_invoice"}},
	}
}

func TestSubmitCreatesPending(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/billing"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, reg.Status)
	assert.Equal(t, submitter.UserID, reg.SubmitterID)
	assert.Nil(t, reg.ApproverID)
	assert.Nil(t, reg.ApprovedAt)
	assert.NotEqual(t, uuid.Nil, reg.ID)
}

func TestSubmitValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	p := userPrincipal()

	in := validInput("ftp://mcp.example.com")
	in.EndpointName = "ab"
	in.OwnerContact = "   "
	in.Tools = []models.Tool{{Name: ""}}

	_, err := svc.Submit(context.Background(), p, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "endpoint_url")
	assert.Contains(t, verr.Fields, "endpoint_name")
	assert.Contains(t, verr.Fields, "owner_contact")
	assert.Contains(t, verr.Fields, "available_tools[0].name")
}

func TestSubmitDuplicateURLConflicts(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/dup"))
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/dup"))
	assert.ErrorIs(t, err, ErrConflict)

	// Still taken after rejection: the URL is reserved in any status.
	_, err = svc.Review(context.Background(), admin, reg.ID, models.StatusRejected, "broken endpoint")
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/dup"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReviewApprove(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/a"))
	require.NoError(t, err)

	reviewed, err := svc.Review(context.Background(), admin, reg.ID, models.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ApproverID)
	assert.Equal(t, admin.UserID, *reviewed.ApproverID)
	assert.NotNil(t, reviewed.ApprovedAt)
}

func TestReviewErrorPrecedence(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/p"))
	require.NoError(t, err)

	// Invalid target status wins even for non-admins.
	_, err = svc.Review(context.Background(), userPrincipal(), reg.ID, models.StatusPending, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Review(context.Background(), admin, reg.ID, models.Status("bogus"), "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Non-admin caller.
	_, err = svc.Review(context.Background(), userPrincipal(), reg.ID, models.StatusApproved, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// Unknown registration.
	_, err = svc.Review(context.Background(), admin, uuid.New(), models.StatusApproved, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReviewOwnSubmissionForbidden(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()

	reg, err := svc.Submit(context.Background(), admin, validInput("https://mcp.example.com/own"))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), admin, reg.ID, models.StatusApproved, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// Still pending, another admin can review it.
	other := adminPrincipal()
	reviewed, err := svc.Review(context.Background(), other, reg.ID, models.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, reviewed.Status)
}

func TestReviewTerminalStateIsFinal(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()

	reg, err := svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/t"))
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), admin, reg.ID, models.StatusApproved, "")
	require.NoError(t, err)

	for _, target := range []models.Status{models.StatusApproved, models.StatusRejected} {
		_, err = svc.Review(context.Background(), adminPrincipal(), reg.ID, target, "")
		assert.ErrorIs(t, err, ErrInvalidTransition, "target %s", target)
	}
}

func TestReviewConcurrentExactlyOneWins(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	reg, err := svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/race"))
	require.NoError(t, err)

	approver := adminPrincipal()
	rejecter := adminPrincipal()
	errs := make(chan error, 2)
	go func() {
		_, err := svc.Review(context.Background(), approver, reg.ID, models.StatusApproved, "")
		errs <- err
	}()
	go func() {
		_, err := svc.Review(context.Background(), rejecter, reg.ID, models.StatusRejected, "duplicate")
		errs <- err
	}()

	var wins, losses int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			wins++
		default:
			assert.ErrorIs(t, err, ErrInvalidTransition)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)

	final, err := svc.GetByID(context.Background(), approver, reg.ID)
	require.NoError(t, err)
	assert.True(t, final.Status.Terminal())
}

func TestSubmitApproveListScenario(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	userA := userPrincipal()
	adminB := adminPrincipal()
	userC := userPrincipal()

	reg, err := svc.Submit(context.Background(), userA, SubmitInput{
		EndpointURL:  "https://x.test",
		EndpointName: "Svc",
		OwnerContact: "a@x.test",
		Tools:        []models.Tool{{Name: "search"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, reg.Status)

	approved, err := svc.Review(context.Background(), adminB, reg.ID, models.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	require.NotNil(t, approved.ApproverID)
	assert.Equal(t, adminB.UserID, *approved.ApproverID)

	listed, err := svc.List(context.Background(), userC, ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, listed.Total)
	assert.Equal(t, reg.ID, listed.Results[0].ID)

	// No longer Pending, so even the submitter's review attempt fails.
	_, err = svc.Review(context.Background(), userA, reg.ID, models.StatusRejected, "")
	assert.Error(t, err)
}

func TestListVisibility(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	approved, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/v1"))
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), admin, approved.ID, models.StatusApproved, "")
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/v2"))
	require.NoError(t, err)

	// Admin with no filter sees both.
	result, err := svc.List(context.Background(), admin, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)

	// Non-admin sees only Approved, even when asking for Pending.
	pending := models.StatusPending
	result, err = svc.List(context.Background(), userPrincipal(), ListOptions{Status: &pending})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, models.StatusApproved, result.Results[0].Status)

	// The submitter's own pending row is hidden from List too; ListMine
	// is the window into it.
	mine, err := svc.ListMine(context.Background(), submitter, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, mine.Total)
}

func TestListSubmitterFilter(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/f1"))
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/f2"))
	require.NoError(t, err)

	id := submitter.UserID
	result, err := svc.List(context.Background(), admin, ListOptions{SubmitterID: &id})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, reg.ID, result.Results[0].ID)

	// For non-admins the forced Approved status still applies on top of
	// the submitter filter, so the pending row stays hidden.
	result, err = svc.List(context.Background(), userPrincipal(), ListOptions{SubmitterID: &id})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestListPagination(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()

	for i := 0; i < 5; i++ {
		_, err := svc.Submit(context.Background(), userPrincipal(),
			validInput(fmt.Sprintf("https://mcp.example.com/page/%d", i)))
		require.NoError(t, err)
	}

	first, err := svc.List(context.Background(), admin, ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	require.Len(t, first.Results, 2)

	second, err := svc.List(context.Background(), admin, ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, second.Total)
	require.Len(t, second.Results, 2)
	assert.NotEqual(t, first.Results[0].ID, second.Results[0].ID)

	// Newest first, no overlap between pages.
	assert.True(t, first.Results[0].CreatedAt.After(second.Results[1].CreatedAt))

	last, err := svc.List(context.Background(), admin, ListOptions{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, last.Results, 1)
}

func TestListLimitBounds(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()

	result, err := svc.List(context.Background(), admin, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, result.Limit)

	result, err = svc.List(context.Background(), admin, ListOptions{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, maxLimit, result.Limit)

	_, err = svc.List(context.Background(), admin, ListOptions{Limit: -1})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.List(context.Background(), admin, ListOptions{Offset: -1})
	assert.ErrorAs(t, err, &verr)
}

func TestGetByIDVisibility(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/g"))
	require.NoError(t, err)

	// Hidden rows read as not found, never as forbidden.
	_, err = svc.GetByID(context.Background(), userPrincipal(), reg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetByID(context.Background(), submitter, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	got, err = svc.GetByID(context.Background(), admin, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	_, err = svc.Review(context.Background(), admin, reg.ID, models.StatusApproved, "")
	require.NoError(t, err)
	got, err = svc.GetByID(context.Background(), userPrincipal(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestGetByURL(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/by-url"))
	require.NoError(t, err)

	got, err := svc.GetByURL(context.Background(), submitter, "https://mcp.example.com/by-url")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	// Same visibility rule as GetByID.
	_, err = svc.GetByURL(context.Background(), userPrincipal(), "https://mcp.example.com/by-url")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetByURL(context.Background(), submitter, "https://mcp.example.com/absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveAdminOnly(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()
	submitter := userPrincipal()

	reg, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/rm1"))
	require.NoError(t, err)

	// Ownership is irrelevant: even the submitter cannot remove.
	err = svc.Remove(context.Background(), submitter, reg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Remove(context.Background(), admin, reg.ID))
	_, err = svc.GetByID(context.Background(), admin, reg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Repeat removal reads as not found.
	err = svc.Remove(context.Background(), admin, reg.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Terminal states are removable too.
	reg2, err := svc.Submit(context.Background(), submitter, validInput("https://mcp.example.com/rm2"))
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), admin, reg2.ID, models.StatusApproved, "")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(context.Background(), admin, reg2.ID))
}

func TestRemoveFreesURL(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()

	reg, err := svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/free"))
	require.NoError(t, err)
	require.NoError(t, svc.Remove(context.Background(), admin, reg.ID))

	_, err = svc.Submit(context.Background(), userPrincipal(), validInput("https://mcp.example.com/free"))
	assert.NoError(t, err)
}

func TestListSearch(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	admin := adminPrincipal()

	in := validInput("https://mcp.example.com/s1")
	in.EndpointName = "payments gateway"
	_, err := svc.Submit(context.Background(), userPrincipal(), in)
	require.NoError(t, err)

	in = validInput("https://mcp.example.com/s2")
	in.EndpointName = "weather tools"
	in.Description = "forecast lookup"
	_, err = svc.Submit(context.Background(), userPrincipal(), in)
	require.NoError(t, err)

	result, err := svc.List(context.Background(), admin, ListOptions{Search: "PAYMENTS"})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "payments gateway", result.Results[0].EndpointName)

	result, err = svc.List(context.Background(), admin, ListOptions{Search: "forecast"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}
