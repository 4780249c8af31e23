package applymutation

import "recruit-pipeline/internal/models"

// Input is the command carried in the job variables.
type Input = models.Command

type Output struct {
	MutationResult  *models.MutationResult `json:"mutationResult"`
	FeedbackID      string                 `json:"feedbackId,omitempty"`
	OverallStatus   string                 `json:"overallStatus,omitempty"`
	NotifyRejection bool                   `json:"notifyRejection"`
}
