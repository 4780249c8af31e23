package getcandidateview

import "recruit-pipeline/internal/models"

type Input struct {
	Candidate models.CandidateRef `json:"candidate"`
	Blob      interface{}         `json:"blob,omitempty"`
}

// Output flattens the fields process gateways branch on next to the full
// view.
type Output struct {
	CandidateView     *models.CandidateView `json:"candidateView"`
	OverallStatus     string                `json:"overallStatus"`
	CompletedRounds   int                   `json:"completedRounds"`
	TotalRounds       int                   `json:"totalRounds"`
	RejectionEligible bool                  `json:"rejectionEligible"`
	Degraded          bool                  `json:"degraded"`
}
