package models

import "time"

type OverallStatus string

const (
	OverallNotStarted OverallStatus = "not_started"
	OverallInProgress OverallStatus = "in_progress"
	OverallCompleted  OverallStatus = "completed"
	OverallSelected   OverallStatus = "selected"
	OverallRejected   OverallStatus = "rejected"
	OverallOnHold     OverallStatus = "on_hold"
)

// IsTerminal reports whether s is a human final call.
func (s OverallStatus) IsTerminal() bool {
	return s == OverallSelected || s == OverallRejected || s == OverallOnHold
}

type OverrideSource string

const (
	OverrideFromConfig   OverrideSource = "config"
	OverrideFromMutation OverrideSource = "mutation"
)

// OverallOverride is an explicit final call that supersedes round-derived
// status until replaced by another explicit call.
type OverallOverride struct {
	Status        OverallStatus  `json:"status"`
	FinalDecision Decision       `json:"finalDecision"`
	Source        OverrideSource `json:"source"`
	UpdatedAt     time.Time      `json:"updatedAt,omitempty"`
}

type DegradationKind string

const (
	DegradedTimeout     DegradationKind = "timeout"
	DegradedUnavailable DegradationKind = "unavailable"
	DegradedNotFound    DegradationKind = "not_found"
	DegradedMalformed   DegradationKind = "malformed"
)

// Degradation records a feed that contributed nothing, or less than usual,
// to a view.
type Degradation struct {
	Source    string          `json:"source"`
	Kind      DegradationKind `json:"kind"`
	Cause     string          `json:"cause,omitempty"`
	Retryable bool            `json:"retryable"`
}

// ExcludedRecord is a record the matcher refused to attach.
type ExcludedRecord struct {
	RecordID string `json:"recordId"`
	Kind     string `json:"kind"`
	Origin   string `json:"origin,omitempty"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// CandidateView is the derived snapshot of a candidate's pipeline. It is
// rebuilt on every read and never persisted.
type CandidateView struct {
	Candidate         Candidate        `json:"candidate"`
	Rounds            []RoundView      `json:"rounds"`
	OverallStatus     OverallStatus    `json:"overallStatus"`
	FinalDecision     *Decision        `json:"finalDecision"`
	Override          *OverallOverride `json:"override,omitempty"`
	CompletedRounds   int              `json:"completedRounds"`
	TotalRounds       int              `json:"totalRounds"`
	RejectionEligible bool             `json:"rejectionEligible"`
	Feedback          []FeedbackRecord `json:"feedback"`
	Excluded          []ExcludedRecord `json:"excluded,omitempty"`
	Degraded          []Degradation    `json:"degraded,omitempty"`
	FromEmbeddedBlob  bool             `json:"fromEmbeddedBlob"`
	GeneratedAt       time.Time        `json:"generatedAt"`
}

// IsDegraded reports whether source degraded while building the view.
func (v *CandidateView) IsDegraded(source string) bool {
	for _, d := range v.Degraded {
		if d.Source == source {
			return true
		}
	}
	return false
}

// Round returns the view of the round with the given id.
func (v *CandidateView) Round(roundID string) (*RoundView, bool) {
	for i := range v.Rounds {
		if v.Rounds[i].Round.ID == roundID {
			return &v.Rounds[i], true
		}
	}
	return nil, false
}

// ViewQuery asks for a candidate's view. Blob, when set, is a rich candidate
// document carrying inline rounds; it may also arrive as a JSON string.
type ViewQuery struct {
	Candidate CandidateRef `json:"candidate"`
	Blob      interface{}  `json:"blob,omitempty"`
}
