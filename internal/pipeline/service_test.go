package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/backend"
	"recruit-pipeline/internal/common/config"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/validation"
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/feeds"
	"recruit-pipeline/internal/pipeline/merge"
	"recruit-pipeline/internal/pipeline/mutation"
)

// memStore keeps raw records the way a collaborator would return them, so
// writes made through the coordinator show up in the next read.
type memStore struct {
	mu           sync.Mutex
	candidate    backend.RawRecord
	rounds       map[string][]backend.RawRecord
	interviews   []backend.RawRecord
	hr           map[string][]backend.RawRecord
	manager      []backend.RawRecord
	managerDelay time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		candidate: backend.RawRecord{"id": "c1", "name": "Alice Martin", "email": "alice@example.com", "job_id": "job-1"},
		rounds: map[string][]backend.RawRecord{
			"job-1": {
				{"id": "r1", "round_order": 1, "name": "HR Screening"},
				{"id": "r2", "round_order": 2, "name": "Technical Interview"},
			},
		},
		interviews: []backend.RawRecord{
			{"id": "i1", "round_id": "r1", "candidate_id": "c1", "status": "completed"},
			{"id": "i2", "round_id": "r2", "candidate_id": "c1", "status": "scheduled"},
		},
		hr: map[string][]backend.RawRecord{
			"i1": {{"id": "h1", "decision": "hire", "rating": 4, "strengths": "clear thinker"}},
		},
	}
}

func (m *memStore) Rounds(_ context.Context, jobID string) ([]backend.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rounds[jobID]) == 0 {
		return nil, backend.ErrNotFound
	}
	return m.rounds[jobID], nil
}

func (m *memStore) Interviews(_ context.Context, _, _ string) ([]backend.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]backend.RawRecord, len(m.interviews))
	copy(out, m.interviews)
	return out, nil
}

func (m *memStore) Feedback(_ context.Context, interviewID string) ([]backend.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hr[interviewID], nil
}

func (m *memStore) ManagerFeedback(ctx context.Context, _ string) ([]backend.RawRecord, error) {
	if m.managerDelay > 0 {
		select {
		case <-time.After(m.managerDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.manager, nil
}

func (m *memStore) Candidate(_ context.Context, _ string) (backend.RawRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := backend.RawRecord{}
	for k, v := range m.candidate {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) CreateFeedback(_ context.Context, rec models.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw := backend.RawRecord{
		"id":           rec.ID,
		"interview_id": rec.InterviewID,
		"round_id":     rec.RoundID,
		"round_name":   rec.RoundName,
		"candidate_id": rec.CandidateID,
		"decision":     rec.RawDecision,
		"strengths":    rec.Strengths,
		"submitted_at": rec.SubmittedAt.Format(time.RFC3339),
	}
	if rec.OverallRating != nil {
		raw["rating"] = *rec.OverallRating
	}
	if rec.Source == models.SourceHR && rec.InterviewID != "" {
		m.hr[rec.InterviewID] = append(m.hr[rec.InterviewID], raw)
	} else {
		m.manager = append(m.manager, raw)
	}
	return nil
}

func (m *memStore) UpdateInterviewStatus(_ context.Context, id string, status models.InterviewStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iv := range m.interviews {
		if iv["id"] == id {
			iv["status"] = string(status)
			return nil
		}
	}
	return backend.ErrNotFound
}

func (m *memStore) SetCandidateOverallStatus(_ context.Context, _ string, status models.OverallStatus, decision models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidate["overall_status"] = string(status)
	m.candidate["final_decision"] = string(decision)
	return nil
}

func (m *memStore) ProvisionRounds(_ context.Context, jobID string, defs []models.RoundDefinition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rounds[jobID]) > 0 {
		return false, nil
	}
	for _, d := range defs {
		m.rounds[jobID] = append(m.rounds[jobID], backend.RawRecord{"id": d.ID, "round_order": d.Order, "name": d.Name})
	}
	return true, nil
}

type fakeBlobs struct {
	saved map[string]interface{}
}

func (f *fakeBlobs) Save(_ context.Context, id string, blob interface{}) error {
	if f.saved == nil {
		f.saved = map[string]interface{}{}
	}
	f.saved[id] = blob
	return nil
}

func (f *fakeBlobs) Lookup(_ context.Context, id string) (interface{}, error) {
	if blob, ok := f.saved[id]; ok {
		return blob, nil
	}
	return nil, backend.ErrNotFound
}

type fakePublisher struct {
	events []*models.CandidateView
	err    error
}

func (f *fakePublisher) PublishRejection(_ context.Context, _ models.CommandKind, view *models.CandidateView) error {
	f.events = append(f.events, view)
	return f.err
}

func newTestService(t *testing.T, store *memStore, opts ...Option) *Service {
	t.Helper()
	log := logger.NewTestLogger(t)

	v, err := validation.NewValidator()
	require.NoError(t, err)

	coord := mutation.NewCoordinator(store, v, config.PipelineConfig{DefaultRating: 3}, log)
	fetcher := feeds.NewFetcher(store, 100*time.Millisecond, log, feeds.WithRoundProvisioning(coord.Provision))
	return NewService(fetcher, merge.New(nil), coord, log, opts...)
}

// newDocumentService reads and stores candidate documents through blobs.
func newDocumentService(t *testing.T, store *memStore, blobs *fakeBlobs) *Service {
	t.Helper()
	log := logger.NewTestLogger(t)

	v, err := validation.NewValidator()
	require.NoError(t, err)

	coord := mutation.NewCoordinator(store, v, config.PipelineConfig{DefaultRating: 3}, log)
	fetcher := feeds.NewFetcher(store, 100*time.Millisecond, log,
		feeds.WithRoundProvisioning(coord.Provision),
		feeds.WithBlobSource(blobs),
	)
	return NewService(fetcher, merge.New(nil), coord, log, WithBlobSaver(blobs))
}

func TestGetCandidateView_RequiresReference(t *testing.T) {
	svc := newTestService(t, newMemStore())

	_, err := svc.GetCandidateView(context.Background(), models.ViewQuery{Blob: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidQuery))
}

func TestGetCandidateView_Merged(t *testing.T) {
	svc := newTestService(t, newMemStore())

	view, err := svc.GetCandidateView(context.Background(), models.ViewQuery{
		Candidate: models.CandidateRef{CandidateID: "c1"},
	})
	require.NoError(t, err)

	assert.Empty(t, view.Degraded)
	assert.Equal(t, "Alice Martin", view.Candidate.Name)
	assert.Equal(t, 2, view.TotalRounds)
	assert.Equal(t, 1, view.CompletedRounds)
	assert.Equal(t, models.OverallInProgress, view.OverallStatus)

	r1, ok := view.Round("r1")
	require.True(t, ok)
	assert.Equal(t, models.RoundCompleted, r1.Status)
	require.NotNil(t, r1.Decision)
	assert.Equal(t, models.DecisionHire, *r1.Decision)

	r2, ok := view.Round("r2")
	require.True(t, ok)
	assert.Equal(t, models.RoundScheduled, r2.Status)
}

func TestGetCandidateView_ByStorageID(t *testing.T) {
	store := newMemStore()
	store.candidate["storage_id"] = "s-77"
	svc := newTestService(t, store)

	view, err := svc.GetCandidateView(context.Background(), models.ViewQuery{
		Candidate: models.CandidateRef{StorageID: "s-77"},
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", view.Candidate.ID)
	assert.Equal(t, "s-77", view.Candidate.StorageID)
	assert.Empty(t, view.Excluded)
	assert.Equal(t, 2, view.TotalRounds)
	assert.Equal(t, 1, view.CompletedRounds)

	r1, ok := view.Round("r1")
	require.True(t, ok)
	require.NotNil(t, r1.Decision)
	assert.Equal(t, models.DecisionHire, *r1.Decision)
}

func TestGetCandidateView_DegradedWhenManagerTimesOut(t *testing.T) {
	store := newMemStore()
	store.managerDelay = time.Second

	start := time.Now()
	view, err := newTestService(t, store).GetCandidateView(context.Background(), models.ViewQuery{
		Candidate: models.CandidateRef{CandidateID: "c1"},
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.True(t, view.IsDegraded(feeds.SourceManagerFeedback))
	require.Len(t, view.Degraded, 1)
	assert.Equal(t, models.DegradedTimeout, view.Degraded[0].Kind)
	assert.True(t, view.Degraded[0].Retryable)
	assert.Equal(t, 2, view.TotalRounds)
	assert.Equal(t, 1, view.CompletedRounds)
}

func TestGetCandidateView_InlineDocumentIsStored(t *testing.T) {
	blobs := &fakeBlobs{}
	svc := newTestService(t, newMemStore(), WithBlobSaver(blobs))

	view, err := svc.GetCandidateView(context.Background(), models.ViewQuery{
		Blob: `{"candidate_id":"c9","name":"Bo Chen","rounds":[{"round_id":"x1","round_name":"HR","decision":"rejected"}]}`,
	})
	require.NoError(t, err)

	assert.True(t, view.FromEmbeddedBlob)
	assert.Equal(t, "c9", view.Candidate.ID)
	assert.True(t, view.RejectionEligible)
	assert.Contains(t, blobs.saved, "c9")
}

func TestApplyMutation_SubmitFeedbackRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	res, err := svc.ApplyMutation(context.Background(), models.Command{
		Kind:        models.CommandSubmitFeedback,
		Candidate:   models.CandidateRef{CandidateID: "c1"},
		InterviewID: "i2",
		Decision:    "hire",
		Rating:      ptr(4),
		Strengths:   "Solid systems design",
	})
	require.NoError(t, err)
	require.NotNil(t, res.View)

	r2, ok := res.View.Round("r2")
	require.True(t, ok)
	assert.Equal(t, models.RoundCompleted, r2.Status)
	require.NotNil(t, r2.Decision)
	assert.Equal(t, models.DecisionHire, *r2.Decision)
	assert.Equal(t, models.OverallCompleted, res.View.OverallStatus)
	assert.Equal(t, models.InterviewCompleted, r2.Interviews[0].Status)
	assert.Equal(t, "completed", store.interviews[1]["status"])
	assert.False(t, res.NotifyRejection)
}

func TestApplyMutation_FeedbackAfterStoredDocument(t *testing.T) {
	blobs := &fakeBlobs{}
	svc := newDocumentService(t, newMemStore(), blobs)
	ctx := context.Background()

	_, err := svc.GetCandidateView(ctx, models.ViewQuery{Blob: `{
		"candidate_id": "c1",
		"job_id": "job-1",
		"rounds": [
			{"round_id": "r1", "round_order": 1, "round_name": "HR Screening",
			 "interview": {"id": "i1", "status": "completed"},
			 "feedback": {"id": "d1", "decision": "hire", "strengths": "clear thinker"}},
			{"round_id": "r2", "round_order": 2, "round_name": "Technical Interview",
			 "interview": {"id": "i2", "status": "scheduled"}}
		]
	}`})
	require.NoError(t, err)
	require.Contains(t, blobs.saved, "c1")

	res, err := svc.ApplyMutation(ctx, models.Command{
		Kind:        models.CommandSubmitFeedback,
		Candidate:   models.CandidateRef{CandidateID: "c1"},
		InterviewID: "i2",
		RoundID:     "r2",
		Decision:    "reject",
	})
	require.NoError(t, err)
	assert.True(t, res.View.FromEmbeddedBlob)

	r2, ok := res.View.Round("r2")
	require.True(t, ok)
	assert.Equal(t, models.RoundCompleted, r2.Status)
	require.NotNil(t, r2.Decision)
	assert.Equal(t, models.DecisionReject, *r2.Decision)
	require.NotNil(t, r2.HRFeedback)
	assert.Equal(t, res.FeedbackID, r2.HRFeedback.ID)
	assert.True(t, res.View.RejectionEligible)

	again, err := svc.GetCandidateView(ctx, models.ViewQuery{Candidate: models.CandidateRef{CandidateID: "c1"}})
	require.NoError(t, err)
	r2, _ = again.Round("r2")
	require.NotNil(t, r2.Decision)
	assert.Equal(t, models.DecisionReject, *r2.Decision)
}

func TestApplyMutation_CompletedInterviewReflectedInItsRound(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	res, err := svc.ApplyMutation(context.Background(), models.Command{
		Kind:        models.CommandSubmitFeedback,
		Candidate:   models.CandidateRef{CandidateID: "c1"},
		InterviewID: "i2",
		RoundName:   "HR Screening",
		Decision:    "hire",
	})
	require.NoError(t, err)

	assert.Equal(t, "completed", store.interviews[1]["status"])
	r2, ok := res.View.Round("r2")
	require.True(t, ok)
	assert.Equal(t, models.RoundCompleted, r2.Status)
	require.NotNil(t, r2.Decision)
	assert.Equal(t, models.DecisionPendingFeedback, *r2.Decision)
}

func TestApplyMutation_OverallStatusByStorageID(t *testing.T) {
	store := newMemStore()
	store.candidate["storage_id"] = "s-77"
	svc := newTestService(t, store)

	res, err := svc.ApplyMutation(context.Background(), models.Command{
		Kind:      models.CommandSetOverallStatus,
		Candidate: models.CandidateRef{StorageID: "s-77"},
		Status:    "hired",
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", res.View.Candidate.ID)
	assert.Equal(t, models.OverallSelected, res.View.OverallStatus)
	assert.Equal(t, 1, res.View.CompletedRounds)
}

func TestApplyMutation_RejectionPublished(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, newMemStore(), WithRejectionPublisher(pub))

	res, err := svc.ApplyMutation(context.Background(), models.Command{
		Kind:      models.CommandSetOverallStatus,
		Candidate: models.CandidateRef{CandidateID: "c1"},
		Status:    "rejected",
	})
	require.NoError(t, err)

	assert.True(t, res.NotifyRejection)
	assert.Equal(t, models.OverallRejected, res.View.OverallStatus)
	require.NotNil(t, res.View.FinalDecision)
	assert.Equal(t, models.DecisionReject, *res.View.FinalDecision)
	assert.Len(t, pub.events, 1)
}

func TestApplyMutation_PublishFailureKeepsWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("sns throttled")}
	store := newMemStore()
	svc := newTestService(t, store, WithRejectionPublisher(pub))

	res, err := svc.ApplyMutation(context.Background(), models.Command{
		Kind:      models.CommandSetRoundDecision,
		Candidate: models.CandidateRef{CandidateID: "c1"},
		RoundID:   "r2",
		Decision:  "reject",
	})
	require.NoError(t, err)
	assert.True(t, res.NotifyRejection)
	assert.Len(t, store.manager, 1)
}

func TestApplyMutation_InvalidCommandNotPublished(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(t, newMemStore(), WithRejectionPublisher(pub))

	_, err := svc.ApplyMutation(context.Background(), models.Command{Kind: models.CommandSetOverallStatus})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidMutation))
	assert.Empty(t, pub.events)
}

func TestProvisionRounds_AlreadyExists(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store)

	res, err := svc.ProvisionRounds(context.Background(), "job-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)

	res, err = svc.ProvisionRounds(context.Background(), "job-2")
	require.NoError(t, err)
	assert.False(t, res.AlreadyExists)
	assert.Len(t, store.rounds["job-2"], len(config.DefaultRoundTemplates()))
}

func ptr(v float64) *float64 { return &v }
