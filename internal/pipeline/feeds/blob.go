package feeds

import (
	"recruit-pipeline/internal/backend"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/normalize"
)

// Embedded is what a rich candidate document contributes to a view.
type Embedded struct {
	Profile         backend.RawRecord
	Rounds          []models.RoundDefinition
	Interviews      []models.Interview
	HRFeedback      []models.FeedbackRecord
	ManagerFeedback []models.FeedbackRecord
	Override        *models.OverallOverride
	Excluded        []models.ExcludedRecord
}

// ParseEmbedded reads a candidate document that may carry its rounds
// inline. The document and any nested field may be JSON-encoded strings.
// rich is false when there is no inline rounds array; the profile is still
// returned for identity enrichment. A document that is not an object
// yields an error.
func ParseEmbedded(raw interface{}) (emb *Embedded, rich bool, err error) {
	doc, ok := normalize.AsMap(raw)
	if !ok {
		return nil, false, apperrors.NewMalformedRecordError(SourceEmbeddedBlob, "candidate document is not an object")
	}

	emb = &Embedded{
		Profile:  doc,
		Override: OverrideFromRecord(doc),
	}

	rawRounds, has := doc["rounds"]
	if !has || rawRounds == nil {
		return emb, false, nil
	}
	if _, isList := normalize.ParseMaybeJSON(rawRounds, nil).([]interface{}); !isList {
		emb.Excluded = append(emb.Excluded, malformed("rounds", "inline rounds are not a list"))
		return emb, false, nil
	}

	jobID := id(doc, "job_id", "jobId")
	for i, item := range normalize.AsSlice(rawRounds) {
		entry, ok := normalize.AsMap(item)
		if !ok {
			emb.Excluded = append(emb.Excluded, malformed("", "inline round is not an object"))
			continue
		}
		round, err := RoundFromRecord(entry, jobID, i+1)
		if err != nil {
			emb.Excluded = append(emb.Excluded, malformed("", err.Error()))
			continue
		}
		emb.Rounds = append(emb.Rounds, round)
		emb.addRoundChildren(round, entry)
	}

	for _, item := range normalize.AsSlice(doc["interviews"]) {
		if entry, ok := normalize.AsMap(item); ok {
			emb.Interviews = append(emb.Interviews, InterviewFromRecord(entry, SourceEmbeddedBlob))
		}
	}
	return emb, true, nil
}

func (e *Embedded) addRoundChildren(round models.RoundDefinition, entry backend.RawRecord) {
	interviewID := ""
	if nested, ok := normalize.AsMap(entry["interview"]); ok {
		iv := InterviewFromRecord(nested, SourceEmbeddedBlob)
		if iv.RoundID == "" {
			iv.RoundID = round.ID
		}
		interviewID = iv.ID
		e.Interviews = append(e.Interviews, iv)
	} else if field(entry, "interview_id", "interviewId", "interview_status", "interviewStatus", "scheduled_date", "scheduledDate") != nil {
		iv := models.Interview{
			ID:            id(entry, "interview_id", "interviewId"),
			RoundID:       round.ID,
			ScheduledDate: text(entry, "scheduled_date", "scheduledDate"),
			ScheduledTime: text(entry, "scheduled_time", "scheduledTime"),
			Status:        models.ParseInterviewStatus(text(entry, "interview_status", "interviewStatus", "status")),
			Origin:        SourceEmbeddedBlob,
		}
		interviewID = iv.ID
		e.Interviews = append(e.Interviews, iv)
	}

	attach := func(fb models.FeedbackRecord) models.FeedbackRecord {
		if fb.RoundID == "" && fb.RoundName == "" {
			fb.RoundID = round.ID
		}
		if fb.InterviewID == "" {
			fb.InterviewID = interviewID
		}
		return fb
	}

	hrCount := len(e.HRFeedback)
	for _, rec := range records(field(entry, "hr_feedback", "hrFeedback", "feedback")) {
		e.HRFeedback = append(e.HRFeedback, attach(FeedbackFromRecord(rec, models.SourceHR, SourceEmbeddedBlob)))
	}
	for _, rec := range records(field(entry, "manager_feedback", "managerFeedback")) {
		e.ManagerFeedback = append(e.ManagerFeedback, attach(FeedbackFromRecord(rec, models.SourceManager, SourceEmbeddedBlob)))
	}

	// A round-level verdict with no feedback object stands for the HR record.
	if len(e.HRFeedback) == hrCount && field(entry, "decision") != nil {
		fb := FeedbackFromRecord(backend.RawRecord{
			"id":       "blob:" + round.ID,
			"decision": entry["decision"],
			"score":    entry["score"],
			"rating":   field(entry, "rating", "overall_rating"),
		}, models.SourceHR, SourceEmbeddedBlob)
		e.HRFeedback = append(e.HRFeedback, attach(fb))
	}
}

// records reads an object or a list of objects, either possibly encoded as
// JSON text.
func records(raw interface{}) []backend.RawRecord {
	if raw == nil {
		return nil
	}
	if m, ok := normalize.AsMap(raw); ok {
		return []backend.RawRecord{m}
	}
	var out []backend.RawRecord
	for _, item := range normalize.AsSlice(raw) {
		if m, ok := normalize.AsMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

func malformed(recordID, detail string) models.ExcludedRecord {
	return models.ExcludedRecord{
		RecordID: recordID,
		Kind:     "round",
		Origin:   SourceEmbeddedBlob,
		Reason:   string(apperrors.ErrCodeMalformedRecord),
		Detail:   detail,
	}
}
