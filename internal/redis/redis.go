// Package redis caches completed audit payloads so result reads skip
// the job_results query for hot jobs. The store stays authoritative; a
// cache miss is never an error.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Service struct {
	client *redis.Client
}

func New(redisURL string) (*Service, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Service{client: client}, nil
}

func (s *Service) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client
func (s *Service) Client() *redis.Client {
	return s.client
}

func auditKey(jobID string) string {
	return fmt.Sprintf("mix_audit:%s", jobID)
}

// StoreAudit caches a completed job's audit payload for ttl.
func (s *Service) StoreAudit(ctx context.Context, jobID string, audit []byte, ttl time.Duration) error {
	return s.client.Set(ctx, auditKey(jobID), audit, ttl).Err()
}

// GetAudit returns the cached audit, or (nil, nil) on a miss.
func (s *Service) GetAudit(ctx context.Context, jobID string) ([]byte, error) {
	data, err := s.client.Get(ctx, auditKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached audit: %w", err)
	}
	return data, nil
}

// InvalidateAudit drops a cached audit.
func (s *Service) InvalidateAudit(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, auditKey(jobID)).Err()
}
