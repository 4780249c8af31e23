package models

import "strings"

type InterviewStatus string

const (
	InterviewPending   InterviewStatus = "pending"
	InterviewScheduled InterviewStatus = "scheduled"
	InterviewCompleted InterviewStatus = "completed"
	InterviewCancelled InterviewStatus = "cancelled"
	InterviewNoShow    InterviewStatus = "no_show"
)

// ParseInterviewStatus maps loose feed values onto the known set. Unknown
// values become pending.
func ParseInterviewStatus(raw string) InterviewStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "scheduled", "confirmed", "booked":
		return InterviewScheduled
	case "completed", "done", "finished":
		return InterviewCompleted
	case "cancelled", "canceled":
		return InterviewCancelled
	case "no_show", "noshow", "missed":
		return InterviewNoShow
	default:
		return InterviewPending
	}
}

// CanTransitionTo enforces the one-directional lifecycle. From scheduled an
// interview may complete or be cancelled; terminal states never move.
func (s InterviewStatus) CanTransitionTo(next InterviewStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case InterviewPending:
		return next == InterviewScheduled || next == InterviewCompleted || next == InterviewCancelled
	case InterviewScheduled:
		return next == InterviewCompleted || next == InterviewCancelled || next == InterviewNoShow
	default:
		return false
	}
}

// Interview is one scheduled occurrence of a round for a candidate. RoundID
// is empty when the feed did not say which round it belongs to.
type Interview struct {
	ID            string          `json:"interviewId"`
	RoundID       string          `json:"roundId,omitempty"`
	RoundName     string          `json:"roundName,omitempty"`
	RoundOrder    int             `json:"roundOrder,omitempty"`
	CandidateID   string          `json:"candidateId,omitempty"`
	ScheduledDate string          `json:"scheduledDate,omitempty"`
	ScheduledTime string          `json:"scheduledTime,omitempty"`
	Status        InterviewStatus `json:"status"`
	Origin        string          `json:"origin,omitempty"`
}
