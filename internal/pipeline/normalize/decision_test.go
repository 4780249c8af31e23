package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"recruit-pipeline/internal/models"
)

func TestNormalizeDecision(t *testing.T) {
	tests := []struct {
		raw  interface{}
		want models.Decision
	}{
		{"strong_hire", models.DecisionHire},
		{"hire", models.DecisionHire},
		{"Selected", models.DecisionHire},
		{"Strong Hire", models.DecisionHire},
		{"strong-reject", models.DecisionReject},
		{"reject", models.DecisionReject},
		{"REJECTED", models.DecisionReject},
		{"maybe", models.DecisionHold},
		{"on hold", models.DecisionHold},
		{"on_hold", models.DecisionHold},
		{"pending_feedback", models.DecisionUnknown},
		{"", models.DecisionUnknown},
		{"yes please", models.DecisionUnknown},
		{nil, models.DecisionUnknown},
		{42, models.DecisionUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDecision(tt.raw), "raw=%v", tt.raw)
	}
}

func TestFeedbackDecision(t *testing.T) {
	assert.Equal(t, models.DecisionNone, FeedbackDecision(nil))
	assert.Equal(t, models.DecisionNone, FeedbackDecision("  "))
	assert.Equal(t, models.DecisionPendingFeedback, FeedbackDecision("pending_feedback"))
	assert.Equal(t, models.DecisionPendingFeedback, FeedbackDecision("Pending"))
	assert.Equal(t, models.DecisionHire, FeedbackDecision("hire"))
	assert.Equal(t, models.DecisionUnknown, FeedbackDecision("superb"))
	assert.False(t, FeedbackDecision("pending").IsDecisive())
	assert.True(t, FeedbackDecision("superb").IsDecisive())
}

func TestFinalDecisionForStatus(t *testing.T) {
	assert.Equal(t, models.DecisionHire, FinalDecisionForStatus("hired"))
	assert.Equal(t, models.DecisionHire, FinalDecisionForStatus("selected"))
	assert.Equal(t, models.DecisionReject, FinalDecisionForStatus("rejected"))
	assert.Equal(t, models.DecisionHold, FinalDecisionForStatus("completed"))
	assert.Equal(t, models.DecisionHold, FinalDecisionForStatus("whatever"))
}

func TestOverallStatusForDecision(t *testing.T) {
	assert.Equal(t, models.OverallSelected, OverallStatusForDecision(models.DecisionHire))
	assert.Equal(t, models.OverallRejected, OverallStatusForDecision(models.DecisionReject))
	assert.Equal(t, models.OverallOnHold, OverallStatusForDecision(models.DecisionHold))
}

func TestParseOverallStatus(t *testing.T) {
	s, ok := ParseOverallStatus("On Hold")
	assert.True(t, ok)
	assert.Equal(t, models.OverallOnHold, s)

	_, ok = ParseOverallStatus("limbo")
	assert.False(t, ok)
}

func TestIsKnownDecision(t *testing.T) {
	assert.True(t, IsKnownDecision("Strong Hire"))
	assert.False(t, IsKnownDecision("pending"))
}
