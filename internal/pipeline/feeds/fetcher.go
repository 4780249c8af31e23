// Package feeds gathers a candidate's records from every source feed and
// normalizes them. A failing feed never fails the fetch; it is reported as
// a degradation and contributes nothing.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"recruit-pipeline/internal/backend"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/metrics"
	"recruit-pipeline/internal/models"
)

// BlobSource looks up stored candidate documents.
type BlobSource interface {
	Lookup(ctx context.Context, candidateID string) (interface{}, error)
}

// ProvisionFunc creates the default rounds for a job.
type ProvisionFunc func(ctx context.Context, jobID string) error

// Result is everything the feeds yielded for one candidate.
type Result struct {
	Candidate        models.Candidate
	Rounds           []models.RoundDefinition
	Interviews       []models.Interview
	Feedback         []models.FeedbackRecord
	Override         *models.OverallOverride
	Degraded         []models.Degradation
	Excluded         []models.ExcludedRecord
	FromEmbeddedBlob bool
}

type Fetcher struct {
	reader    backend.Reader
	blobs     BlobSource
	timeout   time.Duration
	provision ProvisionFunc
	logger    logger.Logger
}

type Option func(*Fetcher)

// WithBlobSource enables the stored-document lookup for reads that do not
// carry a document inline.
func WithBlobSource(b BlobSource) Option {
	return func(f *Fetcher) { f.blobs = b }
}

// WithRoundProvisioning provisions and retries once when a job has no
// rounds.
func WithRoundProvisioning(p ProvisionFunc) Option {
	return func(f *Fetcher) { f.provision = p }
}

func NewFetcher(reader backend.Reader, timeout time.Duration, log logger.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		reader:  reader,
		timeout: timeout,
		logger:  log.Named("feeds"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// collector accumulates feed output from concurrent fetches.
type collector struct {
	mu  sync.Mutex
	res *Result
}

func (c *collector) degrade(d models.Degradation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.res.Degraded {
		if existing.Source == d.Source && existing.Kind == d.Kind {
			return
		}
	}
	c.res.Degraded = append(c.res.Degraded, d)
}

func (c *collector) add(fn func(r *Result)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.res)
}

// Fetch gathers records for ref. blob, when non-nil, is a candidate
// document supplied by the caller; without one a stored document is looked
// up. A document carrying inline rounds replaces the round catalog and the
// interview schedule. Feedback is always read from the backend as well, so
// writes made after the document was stored still show up.
func (f *Fetcher) Fetch(ctx context.Context, ref models.CandidateRef, blob interface{}) *Result {
	res := &Result{Candidate: ref.Candidate()}
	col := &collector{res: res}

	emb := f.embedded(ctx, col, ref, blob)
	if emb != nil {
		enrichCandidate(&res.Candidate, emb.Profile)
		res.Excluded = append(res.Excluded, emb.Excluded...)
	}

	rich := emb != nil && len(emb.Rounds) > 0
	if rich {
		res.FromEmbeddedBlob = true
		res.Rounds = emb.Rounds
		res.Interviews = emb.Interviews
		res.Override = emb.Override
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	// The round catalog only needs the job, so it starts right away when
	// the caller named one.
	roundsStarted := false
	if !rich && res.Candidate.JobID != "" {
		roundsStarted = true
		spawn(func() { f.fetchRounds(ctx, col) })
	}

	lookupID := ref.PrimaryID()
	if lookupID == "" {
		lookupID = res.Candidate.ID
	}
	if lookupID == "" {
		if !rich && !roundsStarted {
			f.fetchRounds(ctx, col)
		}
		wg.Wait()
		return res
	}

	feedID := res.Candidate.ID
	if feedID == "" {
		// Only a storage id is known. The candidate record resolves the
		// display id the other feeds are keyed on.
		f.fetchCandidate(ctx, col, lookupID, !rich)
		col.add(func(r *Result) { feedID = r.Candidate.ID })
		if feedID == "" {
			feedID = lookupID
		}
		if !rich && !roundsStarted {
			spawn(func() { f.fetchRounds(ctx, col) })
		}
	} else {
		spawn(func() {
			f.fetchCandidate(ctx, col, lookupID, !rich)
			if !rich && !roundsStarted {
				f.fetchRounds(ctx, col)
			}
		})
	}

	backendFeedback := &collector{res: &Result{}}
	if rich {
		spawn(func() { f.fetchHRFeedback(ctx, col, backendFeedback, feedID, emb.Interviews) })
	} else {
		var jobID string
		col.add(func(r *Result) { jobID = r.Candidate.JobID })
		spawn(func() {
			interviews := f.fetchInterviews(ctx, col, feedID, jobID)
			f.fetchHRFeedback(ctx, col, backendFeedback, feedID, interviews)
		})
	}
	spawn(func() { f.fetchManagerFeedback(ctx, col, backendFeedback, feedID) })

	wg.Wait()

	res.Feedback = backendFeedback.res.Feedback
	if rich {
		res.Feedback = append(res.Feedback, f.documentFeedback(emb, backendFeedback.res.Feedback, feedID)...)
	}
	return res
}

// documentFeedback returns the document's feedback records that the backend
// did not also return. The backend copy is the current one.
func (f *Fetcher) documentFeedback(emb *Embedded, stored []models.FeedbackRecord, candidateID string) []models.FeedbackRecord {
	known := make(map[string]bool, len(stored))
	for _, fb := range stored {
		if fb.ID != "" {
			known[string(fb.Source)+":"+fb.ID] = true
		}
	}

	var out []models.FeedbackRecord
	for _, group := range [][]models.FeedbackRecord{emb.HRFeedback, emb.ManagerFeedback} {
		for _, fb := range group {
			if fb.ID != "" && known[string(fb.Source)+":"+fb.ID] {
				continue
			}
			out = append(out, f.withProvenance(fb, candidateID))
		}
	}
	return out
}

func (f *Fetcher) embedded(ctx context.Context, col *collector, ref models.CandidateRef, blob interface{}) *Embedded {
	origin := "inline"
	if blob == nil {
		if f.blobs == nil || ref.PrimaryID() == "" {
			return nil
		}
		found, err := call(ctx, f, SourceEmbeddedBlob, func(ctx context.Context) (interface{}, error) {
			return f.blobs.Lookup(ctx, ref.PrimaryID())
		})
		if err != nil {
			if !errors.Is(err, backend.ErrNotFound) {
				col.degrade(degradation(SourceEmbeddedBlob, err))
			}
			return nil
		}
		blob = found
		origin = "stored"
	}

	emb, rich, err := ParseEmbedded(blob)
	if err != nil {
		f.logger.Warn("candidate document ignored", map[string]interface{}{
			"origin": origin,
			"error":  err.Error(),
		})
		col.degrade(degradation(SourceEmbeddedBlob, err))
		return nil
	}
	f.logger.Debug("candidate document parsed", map[string]interface{}{
		"origin": origin,
		"rich":   rich,
		"rounds": len(emb.Rounds),
	})
	return emb
}

// fetchCandidate enriches the candidate identity and, when recordOverride
// is set, picks up the recorded final call.
func (f *Fetcher) fetchCandidate(ctx context.Context, col *collector, candidateID string, recordOverride bool) {
	rec, err := call(ctx, f, SourceCandidate, func(ctx context.Context) (backend.RawRecord, error) {
		return f.reader.Candidate(ctx, candidateID)
	})
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			col.degrade(degradation(SourceCandidate, err))
		}
		return
	}

	col.add(func(r *Result) {
		enrichCandidate(&r.Candidate, rec)
		if override := OverrideFromRecord(rec); override != nil {
			if recordOverride || r.Override == nil || override.UpdatedAt.After(r.Override.UpdatedAt) {
				r.Override = override
			}
		}
	})
}

func (f *Fetcher) fetchRounds(ctx context.Context, col *collector) {
	var jobID string
	col.add(func(r *Result) { jobID = r.Candidate.JobID })
	if jobID == "" {
		col.degrade(models.Degradation{Source: SourceRoundCatalog, Kind: models.DegradedNotFound, Cause: "no job id for candidate"})
		return
	}

	load := func() ([]backend.RawRecord, error) {
		return call(ctx, f, SourceRoundCatalog, func(ctx context.Context) ([]backend.RawRecord, error) {
			return f.reader.Rounds(ctx, jobID)
		})
	}

	raw, err := load()
	if errors.Is(err, backend.ErrNotFound) && f.provision != nil {
		f.logger.Info("job has no rounds, provisioning defaults", map[string]interface{}{"jobId": jobID})
		if perr := f.provision(ctx, jobID); perr != nil {
			f.logger.Warn("round provisioning failed", map[string]interface{}{
				"jobId": jobID,
				"error": perr.Error(),
			})
			col.degrade(models.Degradation{
				Source:    SourceRoundCatalog,
				Kind:      models.DegradedUnavailable,
				Cause:     "provisioning failed: " + perr.Error(),
				Retryable: true,
			})
			return
		}
		raw, err = load()
	}
	if err != nil {
		col.degrade(degradation(SourceRoundCatalog, err))
		return
	}

	var rounds []models.RoundDefinition
	var excluded []models.ExcludedRecord
	for i, rec := range raw {
		round, err := RoundFromRecord(rec, jobID, i+1)
		if err != nil {
			excluded = append(excluded, models.ExcludedRecord{
				Kind:   "round",
				Origin: SourceRoundCatalog,
				Reason: string(apperrors.ErrCodeMalformedRecord),
				Detail: err.Error(),
			})
			continue
		}
		rounds = append(rounds, round)
	}

	col.add(func(r *Result) {
		r.Rounds = append(r.Rounds, rounds...)
		r.Excluded = append(r.Excluded, excluded...)
	})
}

func (f *Fetcher) fetchInterviews(ctx context.Context, col *collector, candidateID, jobID string) []models.Interview {
	raw, err := call(ctx, f, SourceInterviews, func(ctx context.Context) ([]backend.RawRecord, error) {
		return f.reader.Interviews(ctx, candidateID, jobID)
	})
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			col.degrade(degradation(SourceInterviews, err))
		}
		return nil
	}

	interviews := make([]models.Interview, 0, len(raw))
	for _, rec := range raw {
		interviews = append(interviews, InterviewFromRecord(rec, SourceInterviews))
	}
	col.add(func(r *Result) { r.Interviews = append(r.Interviews, interviews...) })
	return interviews
}

// fetchHRFeedback reads the HR feed once per interview, concurrently.
func (f *Fetcher) fetchHRFeedback(ctx context.Context, col, out *collector, candidateID string, interviews []models.Interview) {
	var wg sync.WaitGroup
	for _, iv := range interviews {
		if iv.ID == "" {
			continue
		}
		wg.Add(1)
		go func(iv models.Interview) {
			defer wg.Done()
			raw, err := call(ctx, f, SourceHRFeedback, func(ctx context.Context) ([]backend.RawRecord, error) {
				return f.reader.Feedback(ctx, iv.ID)
			})
			if err != nil {
				if !errors.Is(err, backend.ErrNotFound) {
					col.degrade(degradation(SourceHRFeedback, err))
				}
				return
			}

			records := make([]models.FeedbackRecord, 0, len(raw))
			for _, rec := range raw {
				fb := FeedbackFromRecord(rec, models.SourceHR, SourceHRFeedback)
				if fb.InterviewID == "" {
					fb.InterviewID = iv.ID
				}
				records = append(records, f.withProvenance(fb, candidateID))
			}
			out.add(func(r *Result) { r.Feedback = append(r.Feedback, records...) })
		}(iv)
	}
	wg.Wait()
}

func (f *Fetcher) fetchManagerFeedback(ctx context.Context, col, out *collector, candidateID string) {
	raw, err := call(ctx, f, SourceManagerFeedback, func(ctx context.Context) ([]backend.RawRecord, error) {
		return f.reader.ManagerFeedback(ctx, candidateID)
	})
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			col.degrade(degradation(SourceManagerFeedback, err))
		}
		return
	}

	records := make([]models.FeedbackRecord, 0, len(raw))
	for _, rec := range raw {
		records = append(records, f.withProvenance(FeedbackFromRecord(rec, models.SourceManager, SourceManagerFeedback), candidateID))
	}
	out.add(func(r *Result) { r.Feedback = append(r.Feedback, records...) })
}

// withProvenance attributes a record that names no candidate at all to the
// candidate it was fetched for. Unknown decision vocabulary is logged.
func (f *Fetcher) withProvenance(fb models.FeedbackRecord, candidateID string) models.FeedbackRecord {
	if fb.CandidateID == "" && fb.CandidateName == "" && fb.CandidateEmail == "" {
		fb.CandidateID = candidateID
	}
	if fb.Decision == models.DecisionUnknown {
		f.logger.Warn("unrecognized decision value", map[string]interface{}{
			"feedbackId": fb.ID,
			"source":     string(fb.Source),
			"errorCode":  string(apperrors.ErrCodeConflictingVocabulary),
			"value":      fb.RawDecision,
		})
	}
	return fb
}

type outcome[T any] struct {
	val T
	err error
}

// call runs fn under the per-fetch timeout. A call that outlives its
// deadline is abandoned and reported as a timeout; a panic is reported as
// an unavailable feed.
func call[T any](ctx context.Context, f *Fetcher, source string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				f.logger.Error("feed panicked", map[string]interface{}{
					"source": source,
					"panic":  fmt.Sprint(p),
					"stack":  string(debug.Stack()),
				})
				var zero T
				done <- outcome[T]{val: zero, err: fmt.Errorf("%w: panic: %v", backend.ErrUnavailable, p)}
			}
		}()
		val, err := fn(fctx)
		done <- outcome[T]{val: val, err: err}
	}()

	var out outcome[T]
	select {
	case out = <-done:
		if out.err != nil && errors.Is(fctx.Err(), context.DeadlineExceeded) && !errors.Is(out.err, backend.ErrNotFound) {
			out.err = fmt.Errorf("%w: %v", backend.ErrTimeout, out.err)
		}
	case <-fctx.Done():
		out.err = fmt.Errorf("%w: %s after %s", backend.ErrTimeout, source, f.timeout)
		if !errors.Is(fctx.Err(), context.DeadlineExceeded) {
			out.err = fmt.Errorf("%w: %v", backend.ErrUnavailable, fctx.Err())
		}
	}

	result := "ok"
	switch {
	case out.err == nil:
	case errors.Is(out.err, backend.ErrNotFound):
		result = "not_found"
	case errors.Is(out.err, backend.ErrTimeout):
		result = "timeout"
	default:
		result = "error"
	}
	metrics.FeedFetchDuration.WithLabelValues(source, result).Observe(time.Since(start).Seconds())

	if out.err != nil && result != "not_found" {
		f.logger.Warn("feed degraded", map[string]interface{}{
			"source":   source,
			"outcome":  result,
			"error":    out.err.Error(),
			"duration": time.Since(start).String(),
		})
	}
	return out.val, out.err
}

// degradation maps a feed error onto the degradation reported to callers.
func degradation(source string, err error) models.Degradation {
	d := models.Degradation{Source: source, Cause: err.Error()}
	switch {
	case errors.Is(err, backend.ErrTimeout):
		d.Kind = models.DegradedTimeout
		d.Retryable = true
	case errors.Is(err, backend.ErrNotFound):
		d.Kind = models.DegradedNotFound
	case apperrors.HasCode(err, apperrors.ErrCodeMalformedRecord):
		d.Kind = models.DegradedMalformed
	default:
		d.Kind = models.DegradedUnavailable
		d.Retryable = true
	}
	return d
}
