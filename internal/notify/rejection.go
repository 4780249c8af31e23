// Package notify publishes rejection events for downstream delivery. It does
// not send anything to candidates itself.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/metrics"
	"recruit-pipeline/internal/models"
)

const EventCandidateRejected = "candidate.rejected"

// Sender is satisfied by aws.SNSClient.
type Sender interface {
	PublishJSON(ctx context.Context, body string, attrs map[string]string) (string, error)
}

// RejectionEvent is the message body published for a rejected candidate.
type RejectionEvent struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Trigger       string          `json:"trigger"`
	CandidateID   string          `json:"candidateId"`
	StorageID     string          `json:"storageId,omitempty"`
	Name          string          `json:"name,omitempty"`
	Email         string          `json:"email,omitempty"`
	JobID         string          `json:"jobId,omitempty"`
	JobTitle      string          `json:"jobTitle,omitempty"`
	OverallStatus string          `json:"overallStatus"`
	RejectedIn    []RejectedRound `json:"rejectedIn,omitempty"`
	OccurredAt    string          `json:"occurredAt"`
}

type RejectedRound struct {
	RoundID   string `json:"roundId"`
	RoundName string `json:"roundName"`
	DecidedBy string `json:"decidedBy,omitempty"`
}

type Publisher struct {
	sender Sender
	logger logger.Logger
	now    func() time.Time
}

func NewPublisher(sender Sender, log logger.Logger) *Publisher {
	return &Publisher{
		sender: sender,
		logger: log.Named("notify"),
		now:    time.Now,
	}
}

// PublishRejection sends one candidate.rejected event built from view.
func (p *Publisher) PublishRejection(ctx context.Context, kind models.CommandKind, view *models.CandidateView) error {
	event := p.buildEvent(kind, view)

	body, err := json.Marshal(event)
	if err != nil {
		metrics.RejectionEventsPublished.WithLabelValues("error").Inc()
		return apperrors.NewNotificationFailedError(fmt.Errorf("encode event: %w", err))
	}

	messageID, err := p.sender.PublishJSON(ctx, string(body), map[string]string{
		"eventType": EventCandidateRejected,
		"jobId":     event.JobID,
	})
	if err != nil {
		metrics.RejectionEventsPublished.WithLabelValues("error").Inc()
		return apperrors.NewNotificationFailedError(err)
	}

	metrics.RejectionEventsPublished.WithLabelValues("published").Inc()
	p.logger.Info("Rejection event published", map[string]interface{}{
		"eventId":     event.EventID,
		"messageId":   messageID,
		"candidateId": event.CandidateID,
		"trigger":     event.Trigger,
	})
	return nil
}

func (p *Publisher) buildEvent(kind models.CommandKind, view *models.CandidateView) RejectionEvent {
	c := view.Candidate
	event := RejectionEvent{
		EventID:       uuid.New().String(),
		EventType:     EventCandidateRejected,
		Trigger:       string(kind),
		CandidateID:   c.ID,
		StorageID:     c.StorageID,
		Name:          c.Name,
		Email:         c.Email,
		JobID:         c.JobID,
		JobTitle:      c.JobTitle,
		OverallStatus: string(view.OverallStatus),
		OccurredAt:    p.now().UTC().Format(time.RFC3339),
	}
	for _, r := range view.Rounds {
		if r.Decision != nil && *r.Decision == models.DecisionReject {
			event.RejectedIn = append(event.RejectedIn, RejectedRound{
				RoundID:   r.Round.ID,
				RoundName: r.Round.Name,
				DecidedBy: string(r.DecidedBy),
			})
		}
	}
	return event
}
