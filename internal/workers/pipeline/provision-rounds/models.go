package provisionrounds

import "recruit-pipeline/internal/models"

type Input struct {
	JobID string `json:"jobId"`
}

type Output struct {
	JobID         string                   `json:"jobId"`
	AlreadyExists bool                     `json:"alreadyExists"`
	RoundCount    int                      `json:"roundCount"`
	Rounds        []models.RoundDefinition `json:"rounds,omitempty"`
}
