// Package mutation applies writes against a candidate's pipeline and hands
// back the re-merged view. Every command is validated in full before the
// first write so callers see all of their mistakes at once.
package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"recruit-pipeline/internal/backend"
	"recruit-pipeline/internal/common/config"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/validation"
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/normalize"
)

// ViewBuilder rebuilds a candidate's view after a write.
type ViewBuilder interface {
	BuildView(ctx context.Context, ref models.CandidateRef) (*models.CandidateView, error)
}

type Coordinator struct {
	writer        backend.Writer
	validator     *validation.Validator
	templates     []config.RoundTemplate
	defaultRating float64
	newID         func() string
	now           func() time.Time
	logger        logger.Logger
}

func NewCoordinator(writer backend.Writer, validator *validation.Validator, cfg config.PipelineConfig, log logger.Logger) *Coordinator {
	templates := cfg.DefaultRounds
	if len(templates) == 0 {
		templates = config.DefaultRoundTemplates()
	}
	return &Coordinator{
		writer:        writer,
		validator:     validator,
		templates:     templates,
		defaultRating: cfg.DefaultRating,
		newID:         func() string { return uuid.New().String() },
		now:           time.Now,
		logger:        log.Named("pipeline.mutation"),
	}
}

// Apply validates cmd, performs its write and returns the refreshed view.
func (c *Coordinator) Apply(ctx context.Context, views ViewBuilder, cmd models.Command) (*models.MutationResult, error) {
	if err := c.validate(cmd); err != nil {
		return nil, err
	}

	log := c.logger.With(map[string]interface{}{
		"kind":        string(cmd.Kind),
		"candidateId": cmd.Candidate.PrimaryID(),
	})

	var (
		result *models.MutationResult
		err    error
	)
	switch cmd.Kind {
	case models.CommandSubmitFeedback:
		result, err = c.submitFeedback(ctx, views, cmd)
	case models.CommandSetRoundDecision:
		result, err = c.setRoundDecision(ctx, views, cmd)
	case models.CommandSetOverallStatus:
		result, err = c.setOverallStatus(ctx, views, cmd)
	case models.CommandProvisionDefaultRounds:
		result, err = c.provisionDefaultRounds(ctx, views, cmd)
	default:
		return nil, apperrors.NewUnsupportedOperationError(string(cmd.Kind))
	}
	if err != nil {
		log.WithError(err).Error("Mutation failed", nil)
		return nil, err
	}

	log.Info("Mutation applied", map[string]interface{}{
		"feedbackId":      result.FeedbackID,
		"notifyRejection": result.NotifyRejection,
		"alreadyExists":   result.AlreadyExists,
	})
	return result, nil
}

// validate runs the schema first, then the checks a schema cannot express.
func (c *Coordinator) validate(cmd models.Command) error {
	var problems []string

	res, err := c.validator.Validate(validation.SchemaMutation, cmd)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !res.Valid {
		problems = append(problems, res.GetErrorMessages()...)
	}

	switch cmd.Kind {
	case models.CommandSubmitFeedback, models.CommandSetRoundDecision, models.CommandSetOverallStatus:
		if cmd.Candidate.IsZero() {
			problems = append(problems, "candidate.candidateId: candidate id is required")
		}
	}

	switch cmd.Kind {
	case models.CommandSubmitFeedback:
		if cmd.InterviewID == "" && cmd.RoundID == "" && cmd.RoundName == "" {
			problems = append(problems, "interviewId: an interview or round reference is required")
		}
		problems = append(problems, decisionProblems(cmd.Decision)...)
	case models.CommandSetRoundDecision:
		if cmd.RoundID == "" && cmd.RoundName == "" {
			problems = append(problems, "roundId: a round reference is required")
		}
		problems = append(problems, decisionProblems(cmd.Decision)...)
	}

	if len(problems) > 0 {
		return apperrors.NewInvalidMutationError(string(cmd.Kind), dedupe(problems))
	}
	return nil
}

func decisionProblems(decision string) []string {
	if strings.TrimSpace(decision) == "" || normalize.IsKnownDecision(decision) {
		return nil
	}
	return []string{fmt.Sprintf("decision: unrecognized value %q", decision)}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (c *Coordinator) submitFeedback(ctx context.Context, views ViewBuilder, cmd models.Command) (*models.MutationResult, error) {
	rec := c.record(cmd, models.SourceHR)
	rec.OverallRating = cmd.Rating

	if err := c.writer.CreateFeedback(ctx, rec); err != nil {
		return nil, apperrors.NewBackendWriteFailedError("createFeedback", err)
	}

	view, err := views.BuildView(ctx, cmd.Candidate)
	if err != nil {
		return nil, err
	}
	if cmd.InterviewID != "" && c.completeInterview(ctx, view, cmd.InterviewID) {
		// Round status follows interview status, so merge again.
		if view, err = views.BuildView(ctx, cmd.Candidate); err != nil {
			return nil, err
		}
	}

	return &models.MutationResult{
		Kind:            cmd.Kind,
		View:            view,
		FeedbackID:      rec.ID,
		NotifyRejection: rec.Decision == models.DecisionReject,
	}, nil
}

// completeInterview marks the interview completed when its lifecycle allows
// it and reports whether it did. The feedback is already stored, so a
// failure here is only logged.
func (c *Coordinator) completeInterview(ctx context.Context, view *models.CandidateView, interviewID string) bool {
	for _, rv := range view.Rounds {
		for _, iv := range rv.Interviews {
			if iv.ID != interviewID {
				continue
			}
			if !iv.Status.CanTransitionTo(models.InterviewCompleted) {
				return false
			}
			if err := c.writer.UpdateInterviewStatus(ctx, interviewID, models.InterviewCompleted); err != nil {
				c.logger.WithError(err).Warn("Could not mark interview completed", map[string]interface{}{
					"interviewId": interviewID,
					"status":      string(iv.Status),
				})
				return false
			}
			return true
		}
	}
	return false
}

func (c *Coordinator) setRoundDecision(ctx context.Context, views ViewBuilder, cmd models.Command) (*models.MutationResult, error) {
	rec := c.record(cmd, models.SourceManager)
	rating := c.defaultRating
	if cmd.Rating != nil {
		rating = *cmd.Rating
	}
	rec.OverallRating = &rating

	if err := c.writer.CreateFeedback(ctx, rec); err != nil {
		return nil, apperrors.NewBackendWriteFailedError("createFeedback", err)
	}

	view, err := views.BuildView(ctx, cmd.Candidate)
	if err != nil {
		return nil, err
	}
	return &models.MutationResult{
		Kind:            cmd.Kind,
		View:            view,
		FeedbackID:      rec.ID,
		NotifyRejection: rec.Decision == models.DecisionReject,
	}, nil
}

func (c *Coordinator) setOverallStatus(ctx context.Context, views ViewBuilder, cmd models.Command) (*models.MutationResult, error) {
	decision := normalize.FinalDecisionForStatus(cmd.Status)
	status := normalize.OverallStatusForDecision(decision)

	if err := c.writer.SetCandidateOverallStatus(ctx, cmd.Candidate.PrimaryID(), status, decision); err != nil {
		return nil, apperrors.NewBackendWriteFailedError("setCandidateOverallStatus", err)
	}

	view, err := views.BuildView(ctx, cmd.Candidate)
	if err != nil {
		return nil, err
	}
	return &models.MutationResult{
		Kind:            cmd.Kind,
		View:            view,
		NotifyRejection: decision == models.DecisionReject,
	}, nil
}

func (c *Coordinator) provisionDefaultRounds(ctx context.Context, views ViewBuilder, cmd models.Command) (*models.MutationResult, error) {
	rounds, created, err := c.ProvisionRounds(ctx, cmd.Candidate.JobID)
	if err != nil {
		return nil, err
	}

	result := &models.MutationResult{Kind: cmd.Kind, AlreadyExists: !created}
	if created {
		result.Rounds = rounds
	}
	if !cmd.Candidate.IsZero() {
		if result.View, err = views.BuildView(ctx, cmd.Candidate); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ProvisionRounds creates the configured default rounds for jobID unless the
// job already has rounds. created is false in that case.
func (c *Coordinator) ProvisionRounds(ctx context.Context, jobID string) ([]models.RoundDefinition, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, false, apperrors.NewInvalidMutationError(string(models.CommandProvisionDefaultRounds),
			[]string{"candidate.jobId: job id is required"})
	}

	defs := make([]models.RoundDefinition, 0, len(c.templates))
	for i, tmpl := range c.templates {
		defs = append(defs, models.RoundDefinition{
			ID:              c.newID(),
			JobID:           jobID,
			Order:           i + 1,
			Name:            tmpl.Name,
			Description:     tmpl.Description,
			InterviewType:   tmpl.InterviewType,
			DurationMinutes: tmpl.DurationMinutes,
		})
	}

	created, err := c.writer.ProvisionRounds(ctx, jobID, defs)
	if err != nil {
		if _, ok := apperrors.AsStandardError(err); ok {
			return nil, false, err
		}
		return nil, false, apperrors.NewBackendWriteFailedError("provisionRounds", err)
	}

	c.logger.Info("Provisioned default rounds", map[string]interface{}{
		"jobId":   jobID,
		"created": created,
		"rounds":  len(defs),
	})
	return defs, created, nil
}

// Provision matches feeds.ProvisionFunc.
func (c *Coordinator) Provision(ctx context.Context, jobID string) error {
	_, _, err := c.ProvisionRounds(ctx, jobID)
	return err
}

// record builds the immutable feedback record a command appends.
func (c *Coordinator) record(cmd models.Command, defaultSource models.FeedbackSource) models.FeedbackRecord {
	source := cmd.Source
	if source == "" {
		source = defaultSource
	}
	ref := cmd.Candidate
	return models.FeedbackRecord{
		ID:                  c.newID(),
		Source:              source,
		Origin:              "mutation",
		InterviewID:         cmd.InterviewID,
		RoundID:             cmd.RoundID,
		RoundName:           cmd.RoundName,
		CandidateID:         ref.PrimaryID(),
		CandidateName:       ref.Name,
		CandidateEmail:      ref.Email,
		Decision:            normalize.NormalizeDecision(cmd.Decision),
		RawDecision:         cmd.Decision,
		Strengths:           cmd.Strengths,
		AreasForImprovement: cmd.AreasForImprovement,
		DetailedFeedback:    cmd.DetailedFeedback,
		Recommendation:      cmd.Recommendation,
		TechnicalSkills:     cmd.TechnicalSkills,
		SubmittedBy:         cmd.SubmittedBy,
		SubmittedAt:         c.now().UTC(),
	}
}
