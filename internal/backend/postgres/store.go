// Package postgres is the system-of-record backend on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"recruit-pipeline/internal/backend"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/models"
)

// Store implements backend.Store with database/sql on lib/pq.
type Store struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.Named("backend.postgres"),
		now:    time.Now,
	}
}

var _ backend.Store = (*Store)(nil)

const roundColumns = `id, job_id, round_order, name, description, interview_type, duration_minutes`

func (s *Store) Rounds(ctx context.Context, jobID string) ([]backend.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		WHERE job_id = $1
		ORDER BY round_order`, jobID)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("rounds for job %s: %w", jobID, backend.ErrNotFound)
	}
	return records, nil
}

func (s *Store) Interviews(ctx context.Context, candidateID, jobID string) ([]backend.RawRecord, error) {
	query := `
		SELECT i.id, i.round_id, COALESCE(i.round_name, r.name) AS round_name,
		       COALESCE(i.round_order, r.round_order) AS round_order,
		       i.candidate_id, i.job_id, i.scheduled_date, i.scheduled_time, i.status
		FROM interviews i
		LEFT JOIN rounds r ON r.id = i.round_id
		WHERE i.candidate_id = $1`
	args := []interface{}{candidateID}
	if jobID != "" {
		query += ` AND (i.job_id = $2 OR i.job_id IS NULL)`
		args = append(args, jobID)
	}
	query += ` ORDER BY i.updated_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	return records, nil
}

const feedbackColumns = `id, source, interview_id, round_id, round_name, candidate_id, candidate_name,
		       candidate_email, overall_rating, decision, strengths, areas_for_improvement,
		       detailed_feedback, recommendation, technical_skills, submitted_by, submitted_at`

func (s *Store) Feedback(ctx context.Context, interviewID string) ([]backend.RawRecord, error) {
	return s.queryFeedback(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
		WHERE source = 'hr' AND interview_id = $1
		ORDER BY submitted_at`, interviewID)
}

func (s *Store) ManagerFeedback(ctx context.Context, candidateID string) ([]backend.RawRecord, error) {
	return s.queryFeedback(ctx, `
		SELECT `+feedbackColumns+`
		FROM feedback
		WHERE source = 'manager' AND candidate_id = $1
		ORDER BY submitted_at`, candidateID)
}

func (s *Store) queryFeedback(ctx context.Context, query, arg string) ([]backend.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	return records, nil
}

func (s *Store) Candidate(ctx context.Context, candidateID string) (backend.RawRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, storage_id, name, email, job_id, job_title, overall_status, final_decision, status_updated_at
		FROM candidates
		WHERE id = $1 OR storage_id = $1
		LIMIT 1`, candidateID)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("candidate %s: %w", candidateID, backend.ErrNotFound)
	}
	return records[0], nil
}

// CreateFeedback stores fb under the candidate's display id when it was
// addressed by storage id.
func (s *Store) CreateFeedback(ctx context.Context, fb models.FeedbackRecord) error {
	skills, err := json.Marshal(fb.TechnicalSkills)
	if err != nil {
		return fmt.Errorf("encode technical skills: %w", err)
	}
	submittedAt := fb.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = s.now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			id, source, interview_id, round_id, round_name, candidate_id, candidate_name,
			candidate_email, overall_rating, decision, strengths, areas_for_improvement,
			detailed_feedback, recommendation, technical_skills, submitted_by, submitted_at
		) VALUES ($1, $2, $3, $4, $5,
			COALESCE((SELECT c.id FROM candidates c WHERE c.storage_id = $6), $6),
			$7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		fb.ID, string(fb.Source), nullString(fb.InterviewID), nullString(fb.RoundID), nullString(fb.RoundName),
		nullString(fb.CandidateID), nullString(fb.CandidateName), nullString(fb.CandidateEmail),
		nullFloat(fb.OverallRating), nullString(string(fb.Decision)), fb.Strengths, fb.AreasForImprovement,
		fb.DetailedFeedback, fb.Recommendation, string(skills), fb.SubmittedBy, submittedAt,
	)
	if err != nil {
		return backend.Classify(ctx, err)
	}
	return nil
}

func (s *Store) UpdateInterviewStatus(ctx context.Context, interviewID string, status models.InterviewStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE interviews SET status = $2, updated_at = $3 WHERE id = $1`,
		interviewID, string(status), s.now().UTC())
	if err != nil {
		return backend.Classify(ctx, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("interview %s: %w", interviewID, backend.ErrNotFound)
	}
	return nil
}

// SetCandidateOverallStatus updates the candidate matching either id and
// only creates a row when neither matches.
func (s *Store) SetCandidateOverallStatus(ctx context.Context, candidateID string, status models.OverallStatus, finalDecision models.Decision) error {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE candidates
		SET overall_status = $2, final_decision = $3, status_updated_at = $4
		WHERE id = $1 OR storage_id = $1`,
		candidateID, string(status), string(finalDecision), now)
	if err != nil {
		return backend.Classify(ctx, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidates (id, overall_status, final_decision, status_updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET overall_status = EXCLUDED.overall_status,
		    final_decision = EXCLUDED.final_decision,
		    status_updated_at = EXCLUDED.status_updated_at`,
		candidateID, string(status), string(finalDecision), now)
	if err != nil {
		return backend.Classify(ctx, err)
	}
	return nil
}

// ProvisionRounds inserts rounds inside one transaction guarded by an
// advisory lock on the job, so concurrent callers create one set at most.
func (s *Store) ProvisionRounds(ctx context.Context, jobID string, rounds []models.RoundDefinition) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, backend.Classify(ctx, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, jobID); err != nil {
		return false, backend.Classify(ctx, err)
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds WHERE job_id = $1`, jobID).Scan(&existing); err != nil {
		return false, backend.Classify(ctx, err)
	}
	if existing > 0 {
		s.logger.Info("rounds already provisioned", map[string]interface{}{
			"jobId":  jobID,
			"rounds": existing,
		})
		return false, nil
	}

	for _, r := range rounds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rounds (`+roundColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, jobID, r.Order, r.Name, r.Description, r.InterviewType, r.DurationMinutes,
		); err != nil {
			return false, backend.Classify(ctx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, backend.Classify(ctx, err)
	}
	return true, nil
}

// scanRecords reads every row into a column-name keyed map and closes rows.
func scanRecords(rows *sql.Rows) ([]backend.RawRecord, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []backend.RawRecord
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(backend.RawRecord, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				record[col] = string(v)
			case nil:
				// absent
			default:
				record[col] = v
			}
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
