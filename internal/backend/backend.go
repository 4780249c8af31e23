// Package backend defines the contract between the pipeline and the system
// of record for rounds, interviews, feedback and candidate status.
//
// Readers return raw records: each backend speaks its own field names and
// encodings, and the feed adapters normalize them.
package backend

import (
	"context"
	"errors"
	"fmt"

	"recruit-pipeline/internal/models"
)

// RawRecord is one record as the backend stored it.
type RawRecord = map[string]interface{}

var (
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTimeout means the backend did not answer within the deadline.
	ErrTimeout = errors.New("timeout")
	// ErrUnavailable means the backend could not be reached or failed.
	ErrUnavailable = errors.New("unavailable")
)

// Reader is the read side of the system of record.
type Reader interface {
	// Rounds returns the round definitions of a job, or ErrNotFound when the
	// job has none.
	Rounds(ctx context.Context, jobID string) ([]RawRecord, error)
	Interviews(ctx context.Context, candidateID, jobID string) ([]RawRecord, error)
	// Feedback returns the HR feedback filed against one interview.
	Feedback(ctx context.Context, interviewID string) ([]RawRecord, error)
	ManagerFeedback(ctx context.Context, candidateID string) ([]RawRecord, error)
	// Candidate returns the candidate profile with its recorded overall
	// status, or ErrNotFound.
	Candidate(ctx context.Context, candidateID string) (RawRecord, error)
}

// Writer is the write side of the system of record.
type Writer interface {
	CreateFeedback(ctx context.Context, fb models.FeedbackRecord) error
	UpdateInterviewStatus(ctx context.Context, interviewID string, status models.InterviewStatus) error
	SetCandidateOverallStatus(ctx context.Context, candidateID string, status models.OverallStatus, finalDecision models.Decision) error
	// ProvisionRounds stores rounds for a job unless the job already has
	// any. created is false when rounds already existed.
	ProvisionRounds(ctx context.Context, jobID string, rounds []models.RoundDefinition) (created bool, err error)
}

// Store is a full backend.
type Store interface {
	Reader
	Writer
}

// Classify wraps err with ErrTimeout or ErrUnavailable unless it already
// carries one of the sentinel errors.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
