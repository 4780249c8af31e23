package models

type CommandKind string

const (
	CommandSubmitFeedback         CommandKind = "submit_feedback"
	CommandSetRoundDecision       CommandKind = "set_round_decision"
	CommandSetOverallStatus       CommandKind = "set_overall_status"
	CommandProvisionDefaultRounds CommandKind = "provision_default_rounds"
)

// Command is a write against a candidate's pipeline. Which fields matter
// depends on Kind.
type Command struct {
	Kind      CommandKind  `json:"kind"`
	Candidate CandidateRef `json:"candidate"`

	InterviewID string         `json:"interviewId,omitempty"`
	RoundID     string         `json:"roundId,omitempty"`
	RoundName   string         `json:"roundName,omitempty"`
	Source      FeedbackSource `json:"source,omitempty"`

	Rating              *float64 `json:"rating,omitempty"`
	Decision            string   `json:"decision,omitempty"`
	Strengths           string   `json:"strengths,omitempty"`
	AreasForImprovement string   `json:"areasForImprovement,omitempty"`
	DetailedFeedback    string   `json:"detailedFeedback,omitempty"`
	Recommendation      string   `json:"recommendation,omitempty"`
	TechnicalSkills     []string `json:"technicalSkills,omitempty"`
	SubmittedBy         string   `json:"submittedBy,omitempty"`

	// Status is the requested overall status for set_overall_status.
	Status string `json:"status,omitempty"`
}

// MutationResult is the refreshed view plus side-effect signals the caller
// is responsible for acting on.
type MutationResult struct {
	Kind            CommandKind       `json:"kind"`
	View            *CandidateView    `json:"view,omitempty"`
	FeedbackID      string            `json:"feedbackId,omitempty"`
	NotifyRejection bool              `json:"notifyRejection"`
	AlreadyExists   bool              `json:"alreadyExists,omitempty"`
	Rounds          []RoundDefinition `json:"rounds,omitempty"`
}
