// Package merge folds reconciled records into a CandidateView.
package merge

import (
	"sort"
	"strings"
	"time"

	"recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/models"
	"recruit-pipeline/internal/pipeline/matcher"
	"recruit-pipeline/internal/pipeline/normalize"
)

// Input is everything the feeds produced for one candidate.
type Input struct {
	Candidate  models.Candidate
	Rounds     []models.RoundDefinition
	Interviews []models.Interview
	Feedback   []models.FeedbackRecord
	// Override is the explicit overall decision recorded by a mutation.
	Override *models.OverallOverride
	// Excluded lists records rejected before merging, such as malformed
	// ones.
	Excluded         []models.ExcludedRecord
	Degraded         []models.Degradation
	FromEmbeddedBlob bool
}

// Engine applies configured overrides on top of the pure merge.
type Engine struct {
	overrides map[string]models.OverallStatus
	now       func() time.Time
}

// New builds an Engine. overrides maps a candidate id to a forced overall
// status; invalid statuses are ignored. Ids match case-insensitively since
// viper lowercases map keys.
func New(overrides map[string]string) *Engine {
	parsed := make(map[string]models.OverallStatus, len(overrides))
	for id, raw := range overrides {
		if status, ok := normalize.ParseOverallStatus(raw); ok && status.IsTerminal() {
			parsed[strings.ToLower(id)] = status
		}
	}
	return &Engine{overrides: parsed, now: time.Now}
}

// BuildCandidateView merges without configured overrides.
func BuildCandidateView(in Input) *models.CandidateView {
	return New(nil).Build(in)
}

// Build derives the view. It never fails; records it cannot place are listed
// in the view's Excluded set.
func (e *Engine) Build(in Input) *models.CandidateView {
	view := &models.CandidateView{
		Candidate:        in.Candidate,
		Rounds:           []models.RoundView{},
		Feedback:         []models.FeedbackRecord{},
		Excluded:         append([]models.ExcludedRecord(nil), in.Excluded...),
		Degraded:         in.Degraded,
		FromEmbeddedBlob: in.FromEmbeddedBlob,
		GeneratedAt:      e.now().UTC(),
	}

	rounds := orderedRounds(in.Rounds)
	interviewsByRound := e.linkInterviews(view, in.Candidate, rounds, in.Interviews)
	feedbackByRound := e.linkFeedback(view, in.Candidate, rounds, interviewsByRound, in.Feedback)

	for _, r := range rounds {
		rv := buildRound(r, interviewsByRound[r.ID], feedbackByRound[r.ID])
		view.Rounds = append(view.Rounds, rv)
		view.Feedback = append(view.Feedback, feedbackByRound[r.ID]...)

		if rv.Status == models.RoundCompleted {
			view.CompletedRounds++
		}
		if rv.Decision != nil && *rv.Decision == models.DecisionReject {
			view.RejectionEligible = true
		}
	}
	view.TotalRounds = len(rounds)

	e.applyOverallStatus(view, in.Override)
	if view.OverallStatus == models.OverallRejected {
		view.RejectionEligible = true
	}
	return view
}

func orderedRounds(in []models.RoundDefinition) []models.RoundDefinition {
	seen := make(map[string]bool, len(in))
	out := make([]models.RoundDefinition, 0, len(in))
	for _, r := range in {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) linkInterviews(view *models.CandidateView, c models.Candidate, rounds []models.RoundDefinition, interviews []models.Interview) map[string][]models.Interview {
	byRound := make(map[string][]models.Interview, len(rounds))
	seen := make(map[string]bool, len(interviews))

	for _, iv := range interviews {
		if iv.ID != "" {
			if seen[iv.ID] {
				continue
			}
			seen[iv.ID] = true
		}

		if iv.CandidateID != "" && !c.HasID(iv.CandidateID) {
			view.Excluded = append(view.Excluded, excluded("interview", iv.ID, iv.Origin,
				errors.ErrCodeLinkageUnresolved, "interview belongs to another candidate"))
			continue
		}

		link := matcher.ResolveInterview(iv, rounds)
		switch link.Outcome {
		case matcher.Linked:
			iv.RoundID = link.RoundID
			byRound[link.RoundID] = append(byRound[link.RoundID], iv)
		case matcher.Ambiguous:
			view.Excluded = append(view.Excluded, excluded("interview", iv.ID, iv.Origin,
				errors.ErrCodeLinkageAmbiguous, "matches rounds "+strings.Join(link.Candidates, ",")))
		default:
			view.Excluded = append(view.Excluded, excluded("interview", iv.ID, iv.Origin,
				errors.ErrCodeLinkageUnresolved, "no round matches"))
		}
	}
	return byRound
}

func (e *Engine) linkFeedback(view *models.CandidateView, c models.Candidate, rounds []models.RoundDefinition, interviewsByRound map[string][]models.Interview, feedback []models.FeedbackRecord) map[string][]models.FeedbackRecord {
	byRound := make(map[string][]models.FeedbackRecord, len(rounds))
	seen := make(map[string]bool, len(feedback))

	for _, fb := range feedback {
		if fb.ID != "" {
			key := string(fb.Source) + ":" + fb.ID
			if seen[key] {
				continue
			}
			seen[key] = true
		}

		if !matcher.LinkFeedbackToCandidate(fb, c) {
			view.Excluded = append(view.Excluded, excluded("feedback", fb.ID, fb.Origin,
				errors.ErrCodeLinkageUnresolved, "candidate identity does not match"))
			continue
		}

		link := matcher.AssignFeedback(fb, rounds, interviewsByRound)
		switch link.Outcome {
		case matcher.Linked:
			if fb.RoundID == "" {
				fb.RoundID = link.RoundID
			}
			byRound[link.RoundID] = append(byRound[link.RoundID], fb)
		case matcher.Ambiguous:
			view.Excluded = append(view.Excluded, excluded("feedback", fb.ID, fb.Origin,
				errors.ErrCodeLinkageAmbiguous, string(link.Rule)+" matches rounds "+strings.Join(link.Candidates, ",")))
		default:
			view.Excluded = append(view.Excluded, excluded("feedback", fb.ID, fb.Origin,
				errors.ErrCodeLinkageUnresolved, "no round matches"))
		}
	}

	for id := range byRound {
		sortBySubmitted(byRound[id])
	}
	return byRound
}

// buildRound applies the status precedence: decisive feedback, then a
// completed interview, then a scheduled interview, else pending.
func buildRound(r models.RoundDefinition, interviews []models.Interview, feedback []models.FeedbackRecord) models.RoundView {
	rv := models.RoundView{
		Round:      r,
		Status:     models.RoundPending,
		Interviews: interviews,
	}
	if rv.Interviews == nil {
		rv.Interviews = []models.Interview{}
	}

	var hr, manager []models.FeedbackRecord
	for _, fb := range feedback {
		if fb.Source == models.SourceManager {
			manager = append(manager, fb)
		} else {
			hr = append(hr, fb)
		}
	}
	rv.HRFeedback = pickHR(hr)
	rv.ManagerFeedback, rv.ManagerHistory = pickManager(manager)

	if deciding := decidingFeedback(rv.ManagerFeedback, rv.HRFeedback, feedback); deciding != nil {
		rv.Status = models.RoundCompleted
		rv.Decision = deciding.Decision.Ptr()
		rv.Rating = deciding.OverallRating
		rv.DecidedBy = deciding.Source
		return rv
	}

	if hasInterview(interviews, models.InterviewCompleted) {
		rv.Status = models.RoundCompleted
		rv.Decision = models.DecisionPendingFeedback.Ptr()
		return rv
	}
	if hasInterview(interviews, models.InterviewScheduled) {
		rv.Status = models.RoundScheduled
	}
	return rv
}

// decidingFeedback prefers the displayed manager record, then the displayed
// HR record, then the most recent decisive record of either source.
func decidingFeedback(manager, hr *models.FeedbackRecord, all []models.FeedbackRecord) *models.FeedbackRecord {
	if manager != nil && manager.HasDecision() {
		return manager
	}
	if hr != nil && hr.HasDecision() {
		return hr
	}
	var latest *models.FeedbackRecord
	for i := range all {
		if !all[i].HasDecision() {
			continue
		}
		if latest == nil || all[i].SubmittedAt.After(latest.SubmittedAt) {
			latest = &all[i]
		}
	}
	return latest
}

// pickHR prefers a record with strengths over a terser one even if older.
// Input is sorted oldest first.
func pickHR(records []models.FeedbackRecord) *models.FeedbackRecord {
	if len(records) == 0 {
		return nil
	}
	var best *models.FeedbackRecord
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Strengths != "" {
			best = &records[i]
			break
		}
	}
	if best == nil {
		best = &records[len(records)-1]
	}
	out := *best
	return &out
}

// pickManager surfaces only the latest record; the rest, newest first, are
// history. Input is sorted oldest first.
func pickManager(records []models.FeedbackRecord) (*models.FeedbackRecord, []models.FeedbackRecord) {
	if len(records) == 0 {
		return nil, nil
	}
	latest := records[len(records)-1]
	var history []models.FeedbackRecord
	for i := len(records) - 2; i >= 0; i-- {
		history = append(history, records[i])
	}
	return &latest, history
}

func hasInterview(interviews []models.Interview, status models.InterviewStatus) bool {
	for _, iv := range interviews {
		if iv.Status == status {
			return true
		}
	}
	return false
}

// applyOverallStatus resolves the candidate-level status. A configured
// override always wins. With no rounds the candidate has not started.
// Otherwise a recorded final decision is used verbatim, and only then is the
// status derived from round completion.
func (e *Engine) applyOverallStatus(view *models.CandidateView, recorded *models.OverallOverride) {
	if forced, ok := e.configOverride(view.Candidate); ok {
		view.Override = &models.OverallOverride{
			Status:        forced,
			FinalDecision: normalize.FinalDecisionForStatus(string(forced)),
			Source:        models.OverrideFromConfig,
		}
		view.OverallStatus = forced
		view.FinalDecision = view.Override.FinalDecision.Ptr()
		return
	}

	view.Override = recorded

	switch {
	case view.TotalRounds == 0:
		view.OverallStatus = models.OverallNotStarted
	case recorded != nil && recorded.Status.IsTerminal():
		view.OverallStatus = recorded.Status
		view.FinalDecision = recorded.FinalDecision.Ptr()
	case view.CompletedRounds == view.TotalRounds:
		view.OverallStatus = models.OverallCompleted
	default:
		view.OverallStatus = models.OverallInProgress
	}
}

func (e *Engine) configOverride(c models.Candidate) (models.OverallStatus, bool) {
	if len(e.overrides) == 0 {
		return "", false
	}
	if s, ok := e.overrides[strings.ToLower(c.ID)]; ok && c.ID != "" {
		return s, true
	}
	if s, ok := e.overrides[strings.ToLower(c.StorageID)]; ok && c.StorageID != "" {
		return s, true
	}
	return "", false
}

func sortBySubmitted(records []models.FeedbackRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SubmittedAt.Before(records[j].SubmittedAt)
	})
}

func excluded(kind, id, origin string, code errors.ErrorCode, detail string) models.ExcludedRecord {
	return models.ExcludedRecord{
		RecordID: id,
		Kind:     kind,
		Origin:   origin,
		Reason:   string(code),
		Detail:   detail,
	}
}
