// Package pipeline is the query and command surface of the reconciliation
// engine. Reads gather every feed, reconcile and merge; writes go through the
// mutation coordinator and come back as a freshly merged view.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/observability"
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/feeds"
	"recruit-pipeline/internal/pipeline/merge"
	"recruit-pipeline/internal/pipeline/mutation"
	"recruit-pipeline/internal/pipeline/normalize"
)

// Fetcher gathers the raw records for one candidate.
type Fetcher interface {
	Fetch(ctx context.Context, ref models.CandidateRef, blob interface{}) *feeds.Result
}

// BlobSaver stores candidate documents supplied inline so later reads
// without a document can find them.
type BlobSaver interface {
	Save(ctx context.Context, candidateID string, blob interface{}) error
}

// RejectionPublisher hands rejection signals to whatever delivers them.
type RejectionPublisher interface {
	PublishRejection(ctx context.Context, kind models.CommandKind, view *models.CandidateView) error
}

type Service struct {
	fetcher     Fetcher
	engine      *merge.Engine
	coordinator *mutation.Coordinator
	blobs       BlobSaver
	publisher   RejectionPublisher
	obs         *observability.Observability
	logger      logger.Logger
}

type Option func(*Service)

func WithBlobSaver(b BlobSaver) Option {
	return func(s *Service) { s.blobs = b }
}

func WithRejectionPublisher(p RejectionPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithObservability(o *observability.Observability) Option {
	return func(s *Service) { s.obs = o }
}

func NewService(fetcher Fetcher, engine *merge.Engine, coordinator *mutation.Coordinator, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		fetcher:     fetcher,
		engine:      engine,
		coordinator: coordinator,
		obs:         observability.NewNoop(),
		logger:      log.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCandidateView assembles the best view the feeds allow. It fails only
// when the query names no candidate and carries no document.
func (s *Service) GetCandidateView(ctx context.Context, q models.ViewQuery) (*models.CandidateView, error) {
	if q.Candidate.IsZero() && isEmptyBlob(q.Blob) {
		return nil, apperrors.NewInvalidQueryError("candidateId, storageId or blob is required")
	}

	ctx, span := s.obs.StartSpan(ctx, "pipeline.GetCandidateView",
		attribute.String("candidate.id", q.Candidate.PrimaryID()),
		attribute.Bool("blob.inline", !isEmptyBlob(q.Blob)),
	)
	defer span.End()

	start := time.Now()
	res := s.fetcher.Fetch(ctx, q.Candidate, q.Blob)
	view := s.engine.Build(merge.Input{
		Candidate:        res.Candidate,
		Rounds:           res.Rounds,
		Interviews:       res.Interviews,
		Feedback:         res.Feedback,
		Override:         res.Override,
		Excluded:         res.Excluded,
		Degraded:         res.Degraded,
		FromEmbeddedBlob: res.FromEmbeddedBlob,
	})
	elapsed := time.Since(start)

	s.obs.RecordView(ctx, elapsed, len(view.Degraded) > 0, view.FromEmbeddedBlob)
	for _, d := range view.Degraded {
		s.obs.RecordDegradation(ctx, d.Source, string(d.Kind))
	}
	for _, ex := range view.Excluded {
		s.obs.RecordExclusion(ctx, ex.Reason)
		s.logger.Debug("Record excluded", map[string]interface{}{
			"candidateId": view.Candidate.ID,
			"recordId":    ex.RecordID,
			"kind":        ex.Kind,
			"reason":      ex.Reason,
			"detail":      ex.Detail,
		})
	}

	span.SetAttributes(
		attribute.String("view.overall_status", string(view.OverallStatus)),
		attribute.Int("view.rounds", view.TotalRounds),
		attribute.Int("view.degraded", len(view.Degraded)),
	)

	if view.FromEmbeddedBlob && !isEmptyBlob(q.Blob) {
		s.saveBlob(ctx, view.Candidate, q.Blob)
	}

	fields := map[string]interface{}{
		"candidateId":   view.Candidate.ID,
		"overallStatus": string(view.OverallStatus),
		"rounds":        view.TotalRounds,
		"completed":     view.CompletedRounds,
		"excluded":      len(view.Excluded),
		"embedded":      view.FromEmbeddedBlob,
		"duration_ms":   elapsed.Milliseconds(),
	}
	if len(view.Degraded) > 0 {
		sources := make([]string, 0, len(view.Degraded))
		for _, d := range view.Degraded {
			sources = append(sources, d.Source+":"+string(d.Kind))
		}
		fields["degraded"] = strings.Join(sources, ",")
		s.logger.Warn("Candidate view degraded", fields)
	} else {
		s.logger.Info("Candidate view built", fields)
	}
	return view, nil
}

// BuildView rebuilds a view from the feeds alone. It lets the coordinator
// re-merge after a write.
func (s *Service) BuildView(ctx context.Context, ref models.CandidateRef) (*models.CandidateView, error) {
	return s.GetCandidateView(ctx, models.ViewQuery{Candidate: ref})
}

// ApplyMutation validates and applies cmd. A due rejection notification is
// published after the write succeeds; a publishing failure does not undo
// the write.
func (s *Service) ApplyMutation(ctx context.Context, cmd models.Command) (*models.MutationResult, error) {
	ctx, span := s.obs.StartSpan(ctx, "pipeline.ApplyMutation",
		attribute.String("mutation.kind", string(cmd.Kind)),
		attribute.String("candidate.id", cmd.Candidate.PrimaryID()),
	)
	defer span.End()

	result, err := s.coordinator.Apply(ctx, s, cmd)
	if err != nil {
		outcome := "error"
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			outcome = string(stdErr.Code)
		}
		s.obs.RecordMutation(ctx, string(cmd.Kind), outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.obs.RecordMutation(ctx, string(cmd.Kind), "applied")

	if result.NotifyRejection && s.publisher != nil && result.View != nil {
		if err := s.publisher.PublishRejection(ctx, cmd.Kind, result.View); err != nil {
			s.logger.WithError(err).Warn("Rejection notification not published", map[string]interface{}{
				"candidateId": cmd.Candidate.PrimaryID(),
				"kind":        string(cmd.Kind),
			})
		}
	}
	return result, nil
}

// ProvisionRounds creates the default rounds for jobID when it has none.
func (s *Service) ProvisionRounds(ctx context.Context, jobID string) (*models.MutationResult, error) {
	return s.ApplyMutation(ctx, models.Command{
		Kind:      models.CommandProvisionDefaultRounds,
		Candidate: models.CandidateRef{JobID: jobID},
	})
}

func (s *Service) saveBlob(ctx context.Context, c models.Candidate, blob interface{}) {
	if s.blobs == nil {
		return
	}
	id := c.ID
	if id == "" {
		id = c.StorageID
	}
	if id == "" {
		return
	}
	doc := normalize.ParseMaybeJSON(blob, nil)
	if doc == nil {
		return
	}
	if err := s.blobs.Save(ctx, id, doc); err != nil {
		s.logger.WithError(err).Warn("Candidate document not stored", map[string]interface{}{
			"candidateId": id,
		})
	}
}

func isEmptyBlob(blob interface{}) bool {
	switch b := blob.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(b) == ""
	case map[string]interface{}:
		return len(b) == 0
	default:
		return false
	}
}
