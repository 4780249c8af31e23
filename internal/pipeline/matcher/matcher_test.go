package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"recruit-pipeline/internal/models"
)

var testRounds = []models.RoundDefinition{
	{ID: "r1", Order: 1, Name: "HR Screening"},
	{ID: "r2", Order: 2, Name: "Technical Interview"},
	{ID: "r3", Order: 3, Name: "Final Interview"},
}

func TestLinkInterviewToRound(t *testing.T) {
	tests := []struct {
		name   string
		iv     models.Interview
		want   string
		wantOK bool
	}{
		{"exact id", models.Interview{ID: "i1", RoundID: "r2"}, "r2", true},
		{"id wins over name", models.Interview{ID: "i1", RoundID: "r3", RoundName: "HR Screening"}, "r3", true},
		{"unknown id falls back to name", models.Interview{ID: "i1", RoundID: "zz", RoundName: "technical-interview"}, "r2", true},
		{"name case insensitive", models.Interview{ID: "i1", RoundName: "  hr screening "}, "r1", true},
		{"order as last resort", models.Interview{ID: "i1", RoundOrder: 3}, "r3", true},
		{"nothing to go on", models.Interview{ID: "i1"}, "", false},
		{"unknown name", models.Interview{ID: "i1", RoundName: "Lunch"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LinkInterviewToRound(tt.iv, testRounds)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveInterview_DuplicateNamesAreAmbiguous(t *testing.T) {
	rounds := []models.RoundDefinition{
		{ID: "a", Order: 1, Name: "Technical"},
		{ID: "b", Order: 2, Name: "technical"},
	}
	link := ResolveInterview(models.Interview{ID: "i", RoundName: "Technical"}, rounds)
	assert.Equal(t, Ambiguous, link.Outcome)
	assert.ElementsMatch(t, []string{"a", "b"}, link.Candidates)
}

func TestLinkFeedbackToCandidate(t *testing.T) {
	candidate := models.Candidate{ID: "c-display", StorageID: "c-storage", Name: "Alice", Email: "a@x.com"}

	tests := []struct {
		name string
		fb   models.FeedbackRecord
		want bool
	}{
		{"display id", models.FeedbackRecord{CandidateID: "c-display"}, true},
		{"storage id", models.FeedbackRecord{CandidateID: "c-storage"}, true},
		{"name and email", models.FeedbackRecord{CandidateName: "ALICE", CandidateEmail: "A@X.com"}, true},
		{"name matches but email differs", models.FeedbackRecord{CandidateName: "Alice", CandidateEmail: "b@x.com"}, false},
		{"email matches but name differs", models.FeedbackRecord{CandidateName: "Bob", CandidateEmail: "a@x.com"}, false},
		{"name only", models.FeedbackRecord{CandidateName: "Alice"}, false},
		{"email only", models.FeedbackRecord{CandidateEmail: "a@x.com"}, false},
		{"foreign id with matching name and email", models.FeedbackRecord{CandidateID: "other", CandidateName: "Alice", CandidateEmail: "a@x.com"}, true},
		{"foreign id alone", models.FeedbackRecord{CandidateID: "other"}, false},
		{"nothing", models.FeedbackRecord{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LinkFeedbackToCandidate(tt.fb, candidate))
		})
	}
}

func TestLinkFeedbackToCandidate_DiacriticsNormalized(t *testing.T) {
	candidate := models.Candidate{ID: "c1", Name: "José Núñez", Email: "jose@x.com"}
	fb := models.FeedbackRecord{CandidateName: "jose nunez", CandidateEmail: "JOSE@x.com"}
	assert.True(t, LinkFeedbackToCandidate(fb, candidate))
}

func TestLinkFeedbackToRound(t *testing.T) {
	round := testRounds[1]
	iv := models.Interview{ID: "i-2", RoundID: "r2"}

	assert.True(t, LinkFeedbackToRound(models.FeedbackRecord{RoundName: "Technical Interview"}, round))
	assert.True(t, LinkFeedbackToRound(models.FeedbackRecord{InterviewID: "i-2"}, round, iv))
	assert.True(t, LinkFeedbackToRound(models.FeedbackRecord{RoundID: "r2"}, round))
	assert.False(t, LinkFeedbackToRound(models.FeedbackRecord{InterviewID: "i-9"}, round, iv))
	assert.False(t, LinkFeedbackToRound(models.FeedbackRecord{}, round, iv))
}

func TestAssignFeedback(t *testing.T) {
	byRound := map[string][]models.Interview{
		"r1": {{ID: "i-1", RoundID: "r1"}},
		"r2": {{ID: "i-2", RoundID: "r2"}},
	}

	t.Run("round name outranks interview id", func(t *testing.T) {
		link := AssignFeedback(models.FeedbackRecord{RoundName: "Final Interview", InterviewID: "i-1"}, testRounds, byRound)
		assert.Equal(t, Linked, link.Outcome)
		assert.Equal(t, "r3", link.RoundID)
		assert.Equal(t, RuleRoundName, link.Rule)
	})

	t.Run("interview id outranks round id", func(t *testing.T) {
		link := AssignFeedback(models.FeedbackRecord{InterviewID: "i-2", RoundID: "r1"}, testRounds, byRound)
		assert.Equal(t, "r2", link.RoundID)
		assert.Equal(t, RuleInterviewID, link.Rule)
	})

	t.Run("round id", func(t *testing.T) {
		link := AssignFeedback(models.FeedbackRecord{RoundID: "r3"}, testRounds, byRound)
		assert.Equal(t, "r3", link.RoundID)
	})

	t.Run("unlinked", func(t *testing.T) {
		link := AssignFeedback(models.FeedbackRecord{InterviewID: "unknown"}, testRounds, byRound)
		assert.Equal(t, Unlinked, link.Outcome)
	})

	t.Run("shared interview across rounds is ambiguous", func(t *testing.T) {
		shared := map[string][]models.Interview{
			"r1": {{ID: "i-x"}},
			"r2": {{ID: "i-x"}},
		}
		link := AssignFeedback(models.FeedbackRecord{InterviewID: "i-x"}, testRounds, shared)
		assert.Equal(t, Ambiguous, link.Outcome)
		assert.ElementsMatch(t, []string{"r1", "r2"}, link.Candidates)
	})
}
