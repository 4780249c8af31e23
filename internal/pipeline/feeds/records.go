package feeds

import (
	"fmt"
	"strconv"
	"strings"

	"recruit-pipeline/internal/backend"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/normalize"
)

// Source names, as reported in degradations and metrics.
const (
	SourceRoundCatalog    = "round_catalog"
	SourceInterviews      = "interview_schedule"
	SourceHRFeedback      = "hr_feedback"
	SourceManagerFeedback = "manager_feedback"
	SourceCandidate       = "candidate_status"
	SourceEmbeddedBlob    = "embedded_blob"
)

// field returns the first non-nil value stored under any of keys.
func field(rec backend.RawRecord, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func text(rec backend.RawRecord, keys ...string) string {
	return normalize.NormalizeText(field(rec, keys...))
}

func id(rec backend.RawRecord, keys ...string) string {
	return normalize.NormalizeID(field(rec, keys...))
}

func integer(rec backend.RawRecord, keys ...string) int {
	n, err := strconv.Atoi(normalize.NormalizeID(field(rec, keys...)))
	if err != nil {
		return 0
	}
	return n
}

// RoundFromRecord normalizes a round catalog entry. position is the
// 1-based index of the record in its feed and stands in for a missing
// order; a missing id is derived from the job and order.
func RoundFromRecord(rec backend.RawRecord, jobID string, position int) (models.RoundDefinition, error) {
	r := models.RoundDefinition{
		ID:              id(rec, "id", "round_id", "roundId"),
		JobID:           id(rec, "job_id", "jobId"),
		Order:           integer(rec, "round_order", "order", "roundOrder", "sequence"),
		Name:            text(rec, "name", "round_name", "roundName"),
		Description:     text(rec, "description", "round_description"),
		InterviewType:   text(rec, "interview_type", "interviewType", "type"),
		DurationMinutes: integer(rec, "duration_minutes", "durationMinutes", "duration"),
	}
	if r.JobID == "" {
		r.JobID = jobID
	}
	if r.Order <= 0 {
		r.Order = position
	}
	if r.ID == "" {
		if r.Name == "" {
			return r, apperrors.NewMalformedRecordError(SourceRoundCatalog, "round has neither id nor name")
		}
		r.ID = fmt.Sprintf("%s#%d", orDefault(r.JobID, "round"), r.Order)
	}
	return r, nil
}

// InterviewFromRecord normalizes an interview schedule entry.
func InterviewFromRecord(rec backend.RawRecord, origin string) models.Interview {
	return models.Interview{
		ID:            id(rec, "id", "interview_id", "interviewId"),
		RoundID:       id(rec, "round_id", "roundId"),
		RoundName:     text(rec, "round_name", "roundName", "round"),
		RoundOrder:    integer(rec, "round_order", "roundOrder"),
		CandidateID:   id(rec, "candidate_id", "candidateId"),
		ScheduledDate: text(rec, "scheduled_date", "scheduledDate", "date"),
		ScheduledTime: text(rec, "scheduled_time", "scheduledTime", "time"),
		Status:        models.ParseInterviewStatus(text(rec, "status", "interview_status", "interviewStatus")),
		Origin:        origin,
	}
}

// FeedbackFromRecord normalizes an HR or manager feedback entry, resolving
// the field aliases the feeds use.
func FeedbackFromRecord(rec backend.RawRecord, source models.FeedbackSource, origin string) models.FeedbackRecord {
	rawDecision := field(rec, "decision", "final_decision", "finalDecision")

	fb := models.FeedbackRecord{
		ID:                  id(rec, "id", "feedback_id", "feedbackId"),
		Source:              source,
		Origin:              origin,
		InterviewID:         id(rec, "interview_id", "interviewId"),
		RoundID:             id(rec, "round_id", "roundId"),
		RoundName:           text(rec, "round_name", "roundName"),
		CandidateID:         id(rec, "candidate_id", "candidateId"),
		CandidateName:       text(rec, "candidate_name", "candidateName"),
		CandidateEmail:      text(rec, "candidate_email", "candidateEmail"),
		OverallRating:       rating(rec),
		Decision:            normalize.FeedbackDecision(rawDecision),
		Strengths:           text(rec, "strengths", "recommendation_notes", "recommendationNotes"),
		AreasForImprovement: text(rec, "areas_for_improvement", "improvement_areas", "areasForImprovement"),
		DetailedFeedback:    text(rec, "detailed_feedback", "comments", "notes", "detailedFeedback"),
		Recommendation:      text(rec, "recommendation"),
		TechnicalSkills:     normalize.NormalizeSkills(field(rec, "technical_skills", "technicalSkills", "skills")),
		SubmittedBy:         text(rec, "submitted_by", "submittedBy", "reviewer", "interviewer"),
		SubmittedAt:         normalize.NormalizeTime(field(rec, "submitted_at", "submittedAt", "created_at", "createdAt")),
	}
	if s, ok := rawDecision.(string); ok {
		fb.RawDecision = s
	}
	return fb
}

func rating(rec backend.RawRecord) *float64 {
	if raw := field(rec, "overall_rating", "overallRating", "rating"); raw != nil {
		return normalize.NormalizeRating(raw, normalize.ScaleRating)
	}
	if raw := field(rec, "score"); raw != nil {
		r := normalize.RatingFromScore(normalize.NormalizeScore(raw))
		return &r
	}
	return nil
}

// OverrideFromRecord reads a recorded final call from the candidate record.
// A non-terminal stored status is only an override when a final decision
// was recorded alongside it.
func OverrideFromRecord(rec backend.RawRecord) *models.OverallOverride {
	rawStatus := text(rec, "overall_status", "overallStatus", "status")
	decision, hasDecision := finalDecision(text(rec, "final_decision", "finalDecision"))

	override := &models.OverallOverride{
		Source:    models.OverrideFromMutation,
		UpdatedAt: normalize.NormalizeTime(field(rec, "status_updated_at", "statusUpdatedAt", "updated_at")),
	}

	if status, ok := normalize.ParseOverallStatus(rawStatus); ok && status.IsTerminal() {
		override.Status = status
		override.FinalDecision = normalize.FinalDecisionForStatus(rawStatus)
		if hasDecision {
			override.FinalDecision = decision
		}
		return override
	}
	if hasDecision {
		override.Status = normalize.OverallStatusForDecision(decision)
		override.FinalDecision = decision
		return override
	}
	return nil
}

func finalDecision(raw string) (models.Decision, bool) {
	switch d := models.Decision(strings.ToUpper(strings.TrimSpace(raw))); d {
	case models.DecisionHire, models.DecisionReject, models.DecisionHold:
		return d, true
	}
	if normalize.IsKnownDecision(raw) {
		return normalize.NormalizeDecision(raw), true
	}
	return models.DecisionNone, false
}

// enrichCandidate fills identity fields the caller did not supply.
func enrichCandidate(c *models.Candidate, rec backend.RawRecord) {
	if c.ID == "" {
		c.ID = id(rec, "candidate_id", "candidateId", "id")
	}
	if c.StorageID == "" {
		c.StorageID = id(rec, "storage_id", "storageId")
	}
	if c.Name == "" {
		c.Name = text(rec, "name", "candidate_name", "candidateName", "full_name")
	}
	if c.Email == "" {
		c.Email = text(rec, "email", "candidate_email", "candidateEmail")
	}
	if c.JobTitle == "" {
		c.JobTitle = text(rec, "job_title", "jobTitle", "position")
	}
	if c.JobID == "" {
		c.JobID = id(rec, "job_id", "jobId")
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
