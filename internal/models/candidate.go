package models

import "strings"

// Candidate is the identity the view is assembled for. Feeds disagree on
// which id they carry, so both the display id and the storage id are kept.
type Candidate struct {
	ID        string `json:"candidateId"`
	StorageID string `json:"storageId,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	JobTitle  string `json:"jobTitle,omitempty"`
	JobID     string `json:"jobId,omitempty"`
}

// HasID reports whether id equals either known id of the candidate.
func (c Candidate) HasID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	return id == c.ID || (c.StorageID != "" && id == c.StorageID)
}

// CandidateRef is how callers point at a candidate. Any subset may be set.
type CandidateRef struct {
	CandidateID string `json:"candidateId,omitempty"`
	StorageID   string `json:"storageId,omitempty"`
	JobID       string `json:"jobId,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// PrimaryID returns the id feeds should be queried with.
func (r CandidateRef) PrimaryID() string {
	if r.CandidateID != "" {
		return r.CandidateID
	}
	return r.StorageID
}

func (r CandidateRef) IsZero() bool {
	return r.CandidateID == "" && r.StorageID == ""
}

// Candidate seeds the identity from the reference. A bare storage id leaves
// ID empty so the candidate record can fill in the display id.
func (r CandidateRef) Candidate() Candidate {
	return Candidate{
		ID:        r.CandidateID,
		StorageID: r.StorageID,
		Name:      r.Name,
		Email:     r.Email,
		JobID:     r.JobID,
	}
}
