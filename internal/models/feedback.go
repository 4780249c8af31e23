package models

import "time"

// Decision is the canonical verdict every feed vocabulary is mapped onto.
// The zero value means no decision was recorded.
type Decision string

const (
	DecisionNone            Decision = ""
	DecisionHire            Decision = "HIRE"
	DecisionReject          Decision = "REJECT"
	DecisionHold            Decision = "HOLD"
	DecisionUnknown         Decision = "UNKNOWN"
	DecisionPendingFeedback Decision = "PENDING_FEEDBACK"
)

// IsDecisive reports whether d settles a round.
func (d Decision) IsDecisive() bool {
	return d != DecisionNone && d != DecisionPendingFeedback
}

func (d Decision) Ptr() *Decision {
	return &d
}

type FeedbackSource string

const (
	SourceHR      FeedbackSource = "hr"
	SourceManager FeedbackSource = "manager"
)

// FeedbackRecord is an immutable assessment. A later opinion is a new
// record, never an edit.
type FeedbackRecord struct {
	ID                  string         `json:"id"`
	Source              FeedbackSource `json:"source"`
	Origin              string         `json:"origin,omitempty"`
	InterviewID         string         `json:"interviewId,omitempty"`
	RoundID             string         `json:"roundId,omitempty"`
	RoundName           string         `json:"roundName,omitempty"`
	CandidateID         string         `json:"candidateId,omitempty"`
	CandidateName       string         `json:"candidateName,omitempty"`
	CandidateEmail      string         `json:"candidateEmail,omitempty"`
	OverallRating       *float64       `json:"overallRating"`
	Decision            Decision       `json:"decision,omitempty"`
	RawDecision         string         `json:"rawDecision,omitempty"`
	Strengths           string         `json:"strengths,omitempty"`
	AreasForImprovement string         `json:"areasForImprovement,omitempty"`
	DetailedFeedback    string         `json:"detailedFeedback,omitempty"`
	Recommendation      string         `json:"recommendation,omitempty"`
	TechnicalSkills     []string       `json:"technicalSkills,omitempty"`
	SubmittedBy         string         `json:"submittedBy,omitempty"`
	SubmittedAt         time.Time      `json:"submittedAt"`
}

func (f FeedbackRecord) HasDecision() bool {
	return f.Decision.IsDecisive()
}
