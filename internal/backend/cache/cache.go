// Package cache decorates a backend with a Redis read-through cache for
// round catalogs and a Redis lock around round provisioning.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"recruit-pipeline/internal/backend"
	apperrors "recruit-pipeline/internal/common/errors"
	"recruit-pipeline/internal/common/logger"
	"recruit-pipeline/internal/common/metrics"
	"recruit-pipeline/internal/models"
)

const (
	roundsKeyPrefix    = "pipeline:rounds:"
	provisionKeyPrefix = "pipeline:provision:"
)

// Store wraps a backend.Store. Only Rounds is cached; every other read
// goes straight to the backend.
type Store struct {
	backend.Store

	redis   *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	logger  logger.Logger
}

func New(next backend.Store, rdb *redis.Client, ttl, lockTTL time.Duration, log logger.Logger) *Store {
	return &Store{
		Store:   next,
		redis:   rdb,
		ttl:     ttl,
		lockTTL: lockTTL,
		logger:  log.Named("backend.cache"),
	}
}

func RoundsKey(jobID string) string {
	return roundsKeyPrefix + jobID
}

func ProvisionKey(jobID string) string {
	return provisionKeyPrefix + jobID
}

// Rounds serves the job's rounds from Redis when present. Cache failures
// fall through to the backend; not-found answers are never cached.
func (s *Store) Rounds(ctx context.Context, jobID string) ([]backend.RawRecord, error) {
	key := RoundsKey(jobID)

	if val, err := s.redis.Get(ctx, key).Result(); err == nil {
		var records []backend.RawRecord
		if err := json.Unmarshal([]byte(val), &records); err == nil && len(records) > 0 {
			metrics.RoundCacheLookups.WithLabelValues("hit").Inc()
			return records, nil
		}
		metrics.RoundCacheLookups.WithLabelValues("corrupt").Inc()
	} else if !errors.Is(err, redis.Nil) {
		metrics.RoundCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("round cache read failed", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
	} else {
		metrics.RoundCacheLookups.WithLabelValues("miss").Inc()
	}

	records, err := s.Store.Rounds(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		s.redis.Set(ctx, key, data, s.ttl)
	}
	return records, nil
}

// ProvisionRounds takes a short Redis lock so that only one caller
// provisions a job at a time, then drops the cached catalog.
func (s *Store) ProvisionRounds(ctx context.Context, jobID string, rounds []models.RoundDefinition) (bool, error) {
	lockKey := ProvisionKey(jobID)

	acquired, err := s.redis.SetNX(ctx, lockKey, "1", s.lockTTL).Result()
	if err != nil {
		s.logger.Warn("provision lock unavailable, continuing without it", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
	} else if !acquired {
		return false, apperrors.NewProvisionInProgressError(jobID)
	} else {
		defer s.redis.Del(context.WithoutCancel(ctx), lockKey)
	}

	created, err := s.Store.ProvisionRounds(ctx, jobID, rounds)
	if err != nil {
		return false, err
	}

	if err := s.redis.Del(ctx, RoundsKey(jobID)).Err(); err != nil {
		s.logger.Warn("round cache invalidation failed", map[string]interface{}{
			"jobId": jobID,
			"error": fmt.Sprint(err),
		})
	}
	return created, nil
}
