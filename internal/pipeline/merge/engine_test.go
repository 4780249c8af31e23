package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/models"
)

var (
	t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	alice = models.Candidate{ID: "c1", StorageID: "42", Name: "Alice Martin", Email: "alice@example.com"}

	threeRounds = []models.RoundDefinition{
		{ID: "r3", Order: 3, Name: "Final Interview"},
		{ID: "r1", Order: 1, Name: "HR Screening"},
		{ID: "r2", Order: 2, Name: "Technical Interview"},
	}
)

func rating(v float64) *float64 { return &v }

func feedback(id string, src models.FeedbackSource, round string, d models.Decision, at time.Time) models.FeedbackRecord {
	return models.FeedbackRecord{
		ID:            id,
		Source:        src,
		RoundID:       round,
		CandidateID:   "c1",
		Decision:      d,
		OverallRating: rating(4),
		SubmittedAt:   at,
	}
}

func TestBuild_NoRoundsIsNotStarted(t *testing.T) {
	view := BuildCandidateView(Input{Candidate: alice})

	assert.Equal(t, models.OverallNotStarted, view.OverallStatus)
	assert.Equal(t, 0, view.TotalRounds)
	assert.Empty(t, view.Rounds)
	assert.Nil(t, view.FinalDecision)
}

func TestBuild_RoundsAreOrdered(t *testing.T) {
	view := BuildCandidateView(Input{Candidate: alice, Rounds: threeRounds})

	require.Len(t, view.Rounds, 3)
	assert.Equal(t, "r1", view.Rounds[0].Round.ID)
	assert.Equal(t, "r2", view.Rounds[1].Round.ID)
	assert.Equal(t, "r3", view.Rounds[2].Round.ID)
	assert.Equal(t, models.OverallInProgress, view.OverallStatus)
}

func TestBuild_RoundStatusPrecedence(t *testing.T) {
	tests := []struct {
		name         string
		interviews   []models.Interview
		feedback     []models.FeedbackRecord
		wantStatus   models.RoundStatus
		wantDecision *models.Decision
	}{
		{
			name:       "nothing linked",
			wantStatus: models.RoundPending,
		},
		{
			name:       "scheduled interview",
			interviews: []models.Interview{{ID: "i1", RoundID: "r1", Status: models.InterviewScheduled}},
			wantStatus: models.RoundScheduled,
		},
		{
			name:         "completed interview awaits feedback",
			interviews:   []models.Interview{{ID: "i1", RoundID: "r1", Status: models.InterviewCompleted}},
			wantStatus:   models.RoundCompleted,
			wantDecision: models.DecisionPendingFeedback.Ptr(),
		},
		{
			name:         "decisive feedback outranks scheduled interview",
			interviews:   []models.Interview{{ID: "i1", RoundID: "r1", Status: models.InterviewScheduled}},
			feedback:     []models.FeedbackRecord{feedback("f1", models.SourceHR, "r1", models.DecisionHire, t0)},
			wantStatus:   models.RoundCompleted,
			wantDecision: models.DecisionHire.Ptr(),
		},
		{
			name:       "pending feedback does not settle a round",
			interviews: []models.Interview{{ID: "i1", RoundID: "r1", Status: models.InterviewScheduled}},
			feedback:   []models.FeedbackRecord{feedback("f1", models.SourceHR, "r1", models.DecisionPendingFeedback, t0)},
			wantStatus: models.RoundScheduled,
		},
		{
			name:       "cancelled interview stays pending",
			interviews: []models.Interview{{ID: "i1", RoundID: "r1", Status: models.InterviewCancelled}},
			wantStatus: models.RoundPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := BuildCandidateView(Input{
				Candidate:  alice,
				Rounds:     threeRounds[1:2],
				Interviews: tt.interviews,
				Feedback:   tt.feedback,
			})
			round, ok := view.Round("r1")
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, round.Status)
			assert.Equal(t, tt.wantDecision, round.Decision)
		})
	}
}

func TestBuild_RatingComesFromDecidingRecord(t *testing.T) {
	fb := feedback("f1", models.SourceHR, "r1", models.DecisionReject, t0)
	fb.OverallRating = rating(2.5)

	view := BuildCandidateView(Input{Candidate: alice, Rounds: threeRounds, Feedback: []models.FeedbackRecord{fb}})

	round, _ := view.Round("r1")
	require.NotNil(t, round.Rating)
	assert.Equal(t, 2.5, *round.Rating)
	assert.Equal(t, models.SourceHR, round.DecidedBy)
	assert.True(t, view.RejectionEligible)
}

func TestBuild_ManagerDecisionOutranksHR(t *testing.T) {
	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Feedback: []models.FeedbackRecord{
			feedback("m1", models.SourceManager, "r2", models.DecisionHire, t0),
			feedback("h1", models.SourceHR, "r2", models.DecisionReject, t0.Add(time.Hour)),
		},
	})

	round, _ := view.Round("r2")
	assert.Equal(t, models.DecisionHire, *round.Decision)
	assert.Equal(t, models.SourceManager, round.DecidedBy)
	assert.False(t, view.RejectionEligible)
}

func TestBuild_ManagerLatestWins(t *testing.T) {
	older := feedback("m1", models.SourceManager, "r2", models.DecisionReject, t0)
	older.DetailedFeedback = "not ready"
	newer := feedback("m2", models.SourceManager, "r2", models.DecisionHire, t0.Add(24*time.Hour))
	newer.DetailedFeedback = "strong second pass"

	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Feedback:  []models.FeedbackRecord{newer, older},
	})

	round, _ := view.Round("r2")
	require.NotNil(t, round.ManagerFeedback)
	assert.Equal(t, "m2", round.ManagerFeedback.ID)
	assert.Equal(t, "strong second pass", round.ManagerFeedback.DetailedFeedback)
	assert.Equal(t, models.DecisionHire, *round.Decision)
	require.Len(t, round.ManagerHistory, 1)
	assert.Equal(t, "m1", round.ManagerHistory[0].ID)
}

func TestBuild_HRPrefersRicherRecord(t *testing.T) {
	rich := feedback("h1", models.SourceHR, "r1", models.DecisionHire, t0)
	rich.Strengths = "clear communicator"
	terse := feedback("h2", models.SourceHR, "r1", models.DecisionHire, t0.Add(time.Hour))

	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Feedback:  []models.FeedbackRecord{rich, terse},
	})

	round, _ := view.Round("r1")
	require.NotNil(t, round.HRFeedback)
	assert.Equal(t, "h1", round.HRFeedback.ID)
}

func TestBuild_AllRoundsCompleted(t *testing.T) {
	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Feedback: []models.FeedbackRecord{
			feedback("f1", models.SourceHR, "r1", models.DecisionHire, t0),
			feedback("f2", models.SourceManager, "r2", models.DecisionHire, t0),
			feedback("f3", models.SourceManager, "r3", models.DecisionHold, t0),
		},
	})

	assert.Equal(t, 3, view.CompletedRounds)
	assert.Equal(t, models.OverallCompleted, view.OverallStatus)
	assert.Nil(t, view.FinalDecision)
	assert.Len(t, view.Feedback, 3)
}

func TestBuild_RecordedOverrideIsPermanent(t *testing.T) {
	override := &models.OverallOverride{
		Status:        models.OverallRejected,
		FinalDecision: models.DecisionReject,
		Source:        models.OverrideFromMutation,
	}
	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Override:  override,
		Feedback: []models.FeedbackRecord{
			feedback("f1", models.SourceHR, "r1", models.DecisionHire, t0),
			feedback("f2", models.SourceManager, "r2", models.DecisionHire, t0),
			feedback("f3", models.SourceManager, "r3", models.DecisionHire, t0),
		},
	})

	assert.Equal(t, models.OverallRejected, view.OverallStatus)
	require.NotNil(t, view.FinalDecision)
	assert.Equal(t, models.DecisionReject, *view.FinalDecision)
	assert.True(t, view.RejectionEligible)
	assert.Equal(t, 3, view.CompletedRounds)
}

func TestEngine_ConfigOverrideWins(t *testing.T) {
	engine := New(map[string]string{"42": "rejected", "c9": "in_progress"})
	view := engine.Build(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Override:  &models.OverallOverride{Status: models.OverallSelected, FinalDecision: models.DecisionHire},
	})

	assert.Equal(t, models.OverallRejected, view.OverallStatus)
	require.NotNil(t, view.Override)
	assert.Equal(t, models.OverrideFromConfig, view.Override.Source)
	assert.Equal(t, models.DecisionReject, *view.FinalDecision)
}

func TestEngine_ConfigOverrideIgnoresCase(t *testing.T) {
	engine := New(map[string]string{"cand-abc": "on_hold"})
	view := engine.Build(Input{
		Candidate: models.Candidate{ID: "CAND-ABC", Name: "Alice Martin", Email: "a@example.com"},
		Rounds:    threeRounds,
	})
	assert.Equal(t, models.OverallOnHold, view.OverallStatus)
}

func TestEngine_NonTerminalConfigOverrideIgnored(t *testing.T) {
	engine := New(map[string]string{"c1": "in_progress"})
	view := engine.Build(Input{Candidate: alice, Rounds: threeRounds})
	assert.Equal(t, models.OverallInProgress, view.OverallStatus)
}

func TestBuild_ExcludesUnlinkedRecords(t *testing.T) {
	foreign := feedback("f-other", models.SourceHR, "r1", models.DecisionReject, t0)
	foreign.CandidateID = "c2"

	sameNameOtherEmail := models.FeedbackRecord{
		ID: "f-bleed", Source: models.SourceManager, RoundID: "r1",
		CandidateName: "Alice Martin", CandidateEmail: "b@example.com",
		Decision: models.DecisionReject, SubmittedAt: t0,
	}

	orphan := feedback("f-orphan", models.SourceHR, "", models.DecisionHire, t0)

	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    threeRounds,
		Interviews: []models.Interview{
			{ID: "i-lost", RoundName: "Lunch", Status: models.InterviewCompleted},
			{ID: "i-foreign", RoundID: "r1", CandidateID: "c2", Status: models.InterviewCompleted},
		},
		Feedback: []models.FeedbackRecord{foreign, sameNameOtherEmail, orphan},
	})

	ids := make([]string, 0, len(view.Excluded))
	for _, ex := range view.Excluded {
		ids = append(ids, ex.RecordID)
	}
	assert.ElementsMatch(t, []string{"i-lost", "i-foreign", "f-other", "f-bleed", "f-orphan"}, ids)

	round, _ := view.Round("r1")
	assert.Equal(t, models.RoundPending, round.Status)
	assert.Empty(t, view.Feedback)
	assert.False(t, view.RejectionEligible)
}

func TestBuild_AmbiguousFeedbackExcluded(t *testing.T) {
	rounds := []models.RoundDefinition{
		{ID: "a", Order: 1, Name: "Technical"},
		{ID: "b", Order: 2, Name: "technical"},
	}
	fb := feedback("f1", models.SourceHR, "", models.DecisionHire, t0)
	fb.RoundName = "Technical"

	view := BuildCandidateView(Input{Candidate: alice, Rounds: rounds, Feedback: []models.FeedbackRecord{fb}})

	require.Len(t, view.Excluded, 1)
	assert.Equal(t, "LINKAGE_AMBIGUOUS", view.Excluded[0].Reason)
	assert.Equal(t, 0, view.CompletedRounds)
}

func TestBuild_FeedbackLinkedThroughInterview(t *testing.T) {
	fb := feedback("f1", models.SourceHR, "", models.DecisionHold, t0)
	fb.InterviewID = "i7"

	view := BuildCandidateView(Input{
		Candidate:  alice,
		Rounds:     threeRounds,
		Interviews: []models.Interview{{ID: "i7", RoundOrder: 2, Status: models.InterviewCompleted}},
		Feedback:   []models.FeedbackRecord{fb},
	})

	round, _ := view.Round("r2")
	assert.Equal(t, models.RoundCompleted, round.Status)
	assert.Equal(t, models.DecisionHold, *round.Decision)
	require.Len(t, round.Interviews, 1)
	assert.Equal(t, "r2", round.Interviews[0].RoundID)
	assert.Equal(t, "r2", view.Feedback[0].RoundID)
}

func TestBuild_DuplicateRecordsCollapse(t *testing.T) {
	fb := feedback("f1", models.SourceHR, "r1", models.DecisionHire, t0)
	view := BuildCandidateView(Input{
		Candidate: alice,
		Rounds:    append(threeRounds, threeRounds[0]),
		Feedback:  []models.FeedbackRecord{fb, fb},
	})

	assert.Equal(t, 3, view.TotalRounds)
	assert.Len(t, view.Feedback, 1)
}

func TestBuild_CarriesDegradation(t *testing.T) {
	degraded := []models.Degradation{{Source: "manager_feedback", Kind: models.DegradedTimeout, Retryable: true}}
	view := BuildCandidateView(Input{Candidate: alice, Rounds: threeRounds, Degraded: degraded})

	assert.True(t, view.IsDegraded("manager_feedback"))
	assert.False(t, view.IsDegraded("hr_feedback"))
}
