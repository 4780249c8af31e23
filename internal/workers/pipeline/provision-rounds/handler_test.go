package provisionrounds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/common/config"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/models"
)

type stubService struct {
	calls []string
	err   error
}

// ProvisionRounds creates rounds on the first call per job only.
func (s *stubService) ProvisionRounds(_ context.Context, jobID string) (*models.MutationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, seen := range s.calls {
		if seen == jobID {
			s.calls = append(s.calls, jobID)
			return &models.MutationResult{Kind: models.CommandProvisionDefaultRounds, AlreadyExists: true}, nil
		}
	}
	s.calls = append(s.calls, jobID)
	return &models.MutationResult{
		Kind: models.CommandProvisionDefaultRounds,
		Rounds: []models.RoundDefinition{
			{ID: "r1", JobID: jobID, Order: 1, Name: "HR Screening"},
			{ID: "r2", JobID: jobID, Order: 2, Name: "Technical Interview"},
		},
	}, nil
}

func createTestHandler(t *testing.T, svc RoundService) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), svc, logger.NewTestLogger(t))
}

func TestHandler_Execute_Idempotent(t *testing.T) {
	svc := &stubService{}
	h := createTestHandler(t, svc)

	first, err := h.Execute(context.Background(), &Input{JobID: " job-1 "})
	require.NoError(t, err)
	assert.False(t, first.AlreadyExists)
	assert.Equal(t, 2, first.RoundCount)
	assert.Equal(t, "job-1", first.JobID)

	second, err := h.Execute(context.Background(), &Input{JobID: "job-1"})
	require.NoError(t, err)
	assert.True(t, second.AlreadyExists)
	assert.Zero(t, second.RoundCount)
	assert.Equal(t, []string{"job-1", "job-1"}, svc.calls)
}

func TestHandler_Execute_RequiresJobID(t *testing.T) {
	svc := &stubService{}
	_, err := createTestHandler(t, svc).Execute(context.Background(), &Input{JobID: "  "})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	assert.Empty(t, svc.calls)
}

func TestHandler_Execute_LockContentionIsRetryable(t *testing.T) {
	svc := &stubService{err: apperrors.NewProvisionInProgressError("job-1")}

	_, err := createTestHandler(t, svc).Execute(context.Background(), &Input{JobID: "job-1"})
	require.Error(t, err)

	bpmn := apperrors.ConvertToBPMNError(apperrors.Normalize(err))
	assert.Equal(t, 2, bpmn.Retries)
}
