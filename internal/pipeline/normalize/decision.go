package normalize

import (
	"strings"

	"recruit-pipeline/internal/models"
)

var decisionVocabulary = map[string]models.Decision{
	"strong_hire":   models.DecisionHire,
	"hire":          models.DecisionHire,
	"selected":      models.DecisionHire,
	"strong_reject": models.DecisionReject,
	"reject":        models.DecisionReject,
	"rejected":      models.DecisionReject,
	"maybe":         models.DecisionHold,
	"on_hold":       models.DecisionHold,
}

func decisionKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// NormalizeDecision maps both decision vocabularies (hire/reject/maybe and
// selected/rejected/on_hold) onto the canonical enum. Anything unrecognized
// is UNKNOWN.
func NormalizeDecision(raw interface{}) models.Decision {
	s, ok := raw.(string)
	if !ok {
		return models.DecisionUnknown
	}
	if d, ok := decisionVocabulary[decisionKey(s)]; ok {
		return d
	}
	return models.DecisionUnknown
}

// IsKnownDecision reports whether raw is part of either vocabulary.
func IsKnownDecision(raw string) bool {
	_, ok := decisionVocabulary[decisionKey(raw)]
	return ok
}

// FeedbackDecision reads the decision field of a feedback record. An absent
// or empty value is no decision; pending values mean the reviewer has not
// decided yet.
func FeedbackDecision(raw interface{}) models.Decision {
	if raw == nil {
		return models.DecisionNone
	}
	s, ok := raw.(string)
	if !ok {
		return models.DecisionUnknown
	}
	switch decisionKey(s) {
	case "", "null", "none":
		return models.DecisionNone
	case "pending", "pending_feedback":
		return models.DecisionPendingFeedback
	}
	return NormalizeDecision(s)
}

// FinalDecisionForStatus is the fixed table used when an overall status is
// set explicitly.
func FinalDecisionForStatus(status string) models.Decision {
	switch decisionKey(status) {
	case "hired", "selected":
		return models.DecisionHire
	case "rejected":
		return models.DecisionReject
	case "completed":
		return models.DecisionHold
	default:
		return models.DecisionHold
	}
}

// OverallStatusForDecision is the terminal status recorded for a final
// decision.
func OverallStatusForDecision(d models.Decision) models.OverallStatus {
	switch d {
	case models.DecisionHire:
		return models.OverallSelected
	case models.DecisionReject:
		return models.OverallRejected
	default:
		return models.OverallOnHold
	}
}

// ParseOverallStatus reads a stored overall status. ok is false for values
// outside the known set.
func ParseOverallStatus(raw string) (models.OverallStatus, bool) {
	switch decisionKey(raw) {
	case "not_started":
		return models.OverallNotStarted, true
	case "in_progress":
		return models.OverallInProgress, true
	case "completed":
		return models.OverallCompleted, true
	case "selected", "hired":
		return models.OverallSelected, true
	case "rejected":
		return models.OverallRejected, true
	case "on_hold":
		return models.OverallOnHold, true
	default:
		return "", false
	}
}
