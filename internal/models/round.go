package models

// RoundDefinition is one stage of a job's interview sequence. Order is
// 1-based.
type RoundDefinition struct {
	ID              string `json:"roundId"`
	JobID           string `json:"jobId"`
	Order           int    `json:"order"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	InterviewType   string `json:"interviewType,omitempty"`
	DurationMinutes int    `json:"durationMinutes,omitempty"`
}

type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundScheduled RoundStatus = "scheduled"
	RoundCompleted RoundStatus = "completed"
)

// RoundView is the reconciled state of one round for one candidate.
type RoundView struct {
	Round           RoundDefinition  `json:"round"`
	Status          RoundStatus      `json:"status"`
	Decision        *Decision        `json:"decision"`
	Rating          *float64         `json:"rating"`
	DecidedBy       FeedbackSource   `json:"decidedBy,omitempty"`
	Interviews      []Interview      `json:"interviews"`
	HRFeedback      *FeedbackRecord  `json:"hrFeedback,omitempty"`
	ManagerFeedback *FeedbackRecord  `json:"managerFeedback,omitempty"`
	ManagerHistory  []FeedbackRecord `json:"managerHistory,omitempty"`
}
