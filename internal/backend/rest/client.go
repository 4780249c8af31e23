// Package rest is the backend for a system of record exposed over HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"recruit-pipeline/internal/backend"
	commonhttp "recruit-pipeline/internal/common/http"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/models"
)

// Client implements backend.Store against the collaborator REST API.
type Client struct {
	baseURL string
	http    *commonhttp.Client
	logger  logger.Logger
}

func NewClient(baseURL string, httpClient *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  log.Named("backend.rest"),
	}
}

var _ backend.Store = (*Client)(nil)

func (c *Client) Rounds(ctx context.Context, jobID string) ([]backend.RawRecord, error) {
	records, err := c.getList(ctx, "/jobs/"+url.PathEscape(jobID)+"/rounds", nil)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("rounds for job %s: %w", jobID, backend.ErrNotFound)
	}
	return records, nil
}

func (c *Client) Interviews(ctx context.Context, candidateID, jobID string) ([]backend.RawRecord, error) {
	query := url.Values{}
	if jobID != "" {
		query.Set("jobId", jobID)
	}
	return c.getList(ctx, "/candidates/"+url.PathEscape(candidateID)+"/interviews", query)
}

func (c *Client) Feedback(ctx context.Context, interviewID string) ([]backend.RawRecord, error) {
	records, err := c.getList(ctx, "/interviews/"+url.PathEscape(interviewID)+"/feedback", nil)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	return records, err
}

func (c *Client) ManagerFeedback(ctx context.Context, candidateID string) ([]backend.RawRecord, error) {
	records, err := c.getList(ctx, "/candidates/"+url.PathEscape(candidateID)+"/manager-feedback", nil)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, nil
	}
	return records, err
}

func (c *Client) Candidate(ctx context.Context, candidateID string) (backend.RawRecord, error) {
	var body interface{}
	if err := c.do(ctx, http.MethodGet, "/candidates/"+url.PathEscape(candidateID), nil, nil, &body); err != nil {
		return nil, err
	}
	record, ok := unwrapObject(body)
	if !ok {
		return nil, fmt.Errorf("%w: candidate response is not an object", backend.ErrUnavailable)
	}
	return record, nil
}

func (c *Client) CreateFeedback(ctx context.Context, fb models.FeedbackRecord) error {
	path := "/feedback"
	if fb.Source == models.SourceManager {
		path = "/manager-feedback"
	}
	return c.do(ctx, http.MethodPost, path, nil, feedbackPayload(fb), nil)
}

func (c *Client) UpdateInterviewStatus(ctx context.Context, interviewID string, status models.InterviewStatus) error {
	return c.do(ctx, http.MethodPut, "/interviews/"+url.PathEscape(interviewID)+"/status", nil,
		map[string]interface{}{"status": string(status)}, nil)
}

func (c *Client) SetCandidateOverallStatus(ctx context.Context, candidateID string, status models.OverallStatus, finalDecision models.Decision) error {
	return c.do(ctx, http.MethodPut, "/candidates/"+url.PathEscape(candidateID)+"/status", nil,
		map[string]interface{}{
			"overall_status": string(status),
			"final_decision": string(finalDecision),
		}, nil)
}

// ProvisionRounds posts the round set. The collaborator answers 201 when it
// created rounds and 200 or 409 when the job already had them.
func (c *Client) ProvisionRounds(ctx context.Context, jobID string, rounds []models.RoundDefinition) (bool, error) {
	payload := make([]map[string]interface{}, 0, len(rounds))
	for _, r := range rounds {
		payload = append(payload, map[string]interface{}{
			"id":               r.ID,
			"round_order":      r.Order,
			"name":             r.Name,
			"description":      r.Description,
			"interview_type":   r.InterviewType,
			"duration_minutes": r.DurationMinutes,
		})
	}

	status, err := c.send(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/rounds/provision", nil,
		map[string]interface{}{"rounds": payload}, nil)
	if err != nil {
		if status == http.StatusConflict {
			return false, nil
		}
		return false, err
	}
	return status == http.StatusCreated, nil
}

func (c *Client) getList(ctx context.Context, path string, query url.Values) ([]backend.RawRecord, error) {
	var body interface{}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &body); err != nil {
		return nil, err
	}
	return unwrapList(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	_, err := c.send(ctx, method, path, query, payload, out)
	return err
}

// send performs one request and maps failures onto the backend sentinels.
// The status code is returned even on error.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload, out interface{}) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, backend.Classify(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, backend.ErrNotFound)
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, backend.ErrTimeout)
	case resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("backend request failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		})
		return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d: %s",
			backend.ErrUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return resp.StatusCode, fmt.Errorf("%w: decode %s: %v", backend.ErrUnavailable, path, err)
	}
	return resp.StatusCode, nil
}

// unwrapList accepts a bare array or an envelope {"data": [...]}.
func unwrapList(body interface{}) []backend.RawRecord {
	if obj, ok := body.(map[string]interface{}); ok {
		for _, key := range []string{"data", "items", "results"} {
			if inner, exists := obj[key]; exists {
				return unwrapList(inner)
			}
		}
		return []backend.RawRecord{obj}
	}

	items, ok := body.([]interface{})
	if !ok {
		return nil
	}
	records := make([]backend.RawRecord, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]interface{}); ok {
			records = append(records, rec)
		}
	}
	return records
}

func unwrapObject(body interface{}) (backend.RawRecord, bool) {
	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, false
	}
	if inner, ok := obj["data"].(map[string]interface{}); ok {
		return inner, true
	}
	return obj, true
}

func feedbackPayload(fb models.FeedbackRecord) map[string]interface{} {
	payload := map[string]interface{}{
		"id":                    fb.ID,
		"source":                string(fb.Source),
		"candidate_id":          fb.CandidateID,
		"candidate_name":        fb.CandidateName,
		"candidate_email":       fb.CandidateEmail,
		"decision":              string(fb.Decision),
		"strengths":             fb.Strengths,
		"areas_for_improvement": fb.AreasForImprovement,
		"detailed_feedback":     fb.DetailedFeedback,
		"recommendation":        fb.Recommendation,
		"technical_skills":      fb.TechnicalSkills,
		"submitted_by":          fb.SubmittedBy,
	}
	if fb.InterviewID != "" {
		payload["interview_id"] = fb.InterviewID
	} else {
		payload["interview_id"] = 0
	}
	if fb.RoundID != "" {
		payload["round_id"] = fb.RoundID
	}
	if fb.RoundName != "" {
		payload["round_name"] = fb.RoundName
	}
	if fb.OverallRating != nil {
		payload["overall_rating"] = *fb.OverallRating
	}
	if !fb.SubmittedAt.IsZero() {
		payload["submitted_at"] = fb.SubmittedAt.UTC()
	}
	return payload
}
