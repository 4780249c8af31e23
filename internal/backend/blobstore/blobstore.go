// Package blobstore keeps rich candidate documents in Elasticsearch so a
// read without an inline blob can still take the embedded path.
package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"recruit-pipeline/internal/backend"
	"recruit-pipeline/internal/common/logger"
)

type Store struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Store {
	return &Store{
		client: client,
		index:  index,
		logger: log.Named("backend.blobstore"),
	}
}

// Lookup returns the stored document for a candidate, or
// backend.ErrNotFound.
func (s *Store) Lookup(ctx context.Context, candidateID string) (interface{}, error) {
	res, err := s.client.Get(s.index, candidateID, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, backend.Classify(ctx, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("blob %s: %w", candidateID, backend.ErrNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: blob lookup: %s", backend.ErrUnavailable, res.Status())
	}

	var doc struct {
		Found  bool            `json:"found"`
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode blob: %v", backend.ErrUnavailable, err)
	}
	if !doc.Found || len(doc.Source) == 0 {
		return nil, fmt.Errorf("blob %s: %w", candidateID, backend.ErrNotFound)
	}

	var blob interface{}
	dec := json.NewDecoder(bytes.NewReader(doc.Source))
	dec.UseNumber()
	if err := dec.Decode(&blob); err != nil {
		return nil, fmt.Errorf("%w: decode blob source: %v", backend.ErrUnavailable, err)
	}
	return blob, nil
}

// Save stores blob under the candidate id, replacing any earlier document.
func (s *Store) Save(ctx context.Context, candidateID string, blob interface{}) error {
	body, err := json.Marshal(blob)
	if err != nil {
		return fmt.Errorf("encode blob: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: candidateID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return backend.Classify(ctx, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		s.logger.Warn("blob index failed", map[string]interface{}{
			"candidateId": candidateID,
			"status":      res.StatusCode,
		})
		return fmt.Errorf("%w: index blob: %s %s", backend.ErrUnavailable, res.Status(), msg)
	}
	return nil
}
