package applymutation

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/common/config"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/models"
)

type stubService struct {
	got    models.Command
	result *models.MutationResult
	err    error
}

func (s *stubService) ApplyMutation(_ context.Context, cmd models.Command) (*models.MutationResult, error) {
	s.got = cmd
	return s.result, s.err
}

func createTestHandler(t *testing.T, svc MutationService) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), svc, logger.NewTestLogger(t))
}

func TestHandler_Execute_DecodesJobVariables(t *testing.T) {
	vars := `{
		"kind": "submit_feedback",
		"candidate": {"candidateId": "c1"},
		"interviewId": "i1",
		"decision": "reject",
		"rating": 2
	}`
	var input Input
	require.NoError(t, json.Unmarshal([]byte(vars), &input))

	svc := &stubService{result: &models.MutationResult{
		Kind:            models.CommandSubmitFeedback,
		FeedbackID:      "fb-1",
		NotifyRejection: true,
		View:            &models.CandidateView{OverallStatus: models.OverallInProgress},
	}}
	out, err := createTestHandler(t, svc).Execute(context.Background(), &input)
	require.NoError(t, err)

	assert.Equal(t, models.CommandSubmitFeedback, svc.got.Kind)
	assert.Equal(t, "i1", svc.got.InterviewID)
	require.NotNil(t, svc.got.Rating)
	assert.Equal(t, 2.0, *svc.got.Rating)

	assert.Equal(t, "fb-1", out.FeedbackID)
	assert.True(t, out.NotifyRejection)
	assert.Equal(t, "in_progress", out.OverallStatus)
}

func TestHandler_Execute_ProvisionWithoutView(t *testing.T) {
	svc := &stubService{result: &models.MutationResult{Kind: models.CommandProvisionDefaultRounds, AlreadyExists: true}}

	out, err := createTestHandler(t, svc).Execute(context.Background(), &Input{
		Kind:      models.CommandProvisionDefaultRounds,
		Candidate: models.CandidateRef{JobID: "job-1"},
	})
	require.NoError(t, err)
	assert.Empty(t, out.OverallStatus)
	assert.True(t, out.MutationResult.AlreadyExists)
}

func TestHandler_Execute_PropagatesStandardErrors(t *testing.T) {
	svc := &stubService{err: apperrors.NewInvalidMutationError("submit_feedback", []string{"decision: decision is required"})}

	_, err := createTestHandler(t, svc).Execute(context.Background(), &Input{Kind: models.CommandSubmitFeedback})
	require.Error(t, err)

	bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
	assert.Equal(t, "PIPELINE_INVALID_MUTATION", bpmn.Code)
	assert.Zero(t, bpmn.Retries)
	assert.Equal(t, []string{"decision: decision is required"}, bpmn.ErrorVariables["invalidFields"])
}

func TestHandler_Execute_NilInput(t *testing.T) {
	_, err := createTestHandler(t, &stubService{}).Execute(context.Background(), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}
