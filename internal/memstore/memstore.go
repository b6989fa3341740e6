// Package memstore is an in-memory job store with the same
// compare-and-swap semantics as the Postgres repository. Used by tests
// and STORE_MODE=memory development runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/infiniteaudio/mixintel/internal/common"
	"github.com/infiniteaudio/mixintel/internal/job"
	"github.com/infiniteaudio/mixintel/internal/store"
)

type MemStore struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*job.Job
	results map[uuid.UUID][]*job.Result
}

func New() *MemStore {
	return &MemStore{
		jobs:    make(map[uuid.UUID]*job.Job),
		results: make(map[uuid.UUID][]*job.Result),
	}
}

func (s *MemStore) Insert(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return common.ErrConflict
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *MemStore) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, common.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemStore) NextQueued(ctx context.Context) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var queued []*job.Job
	for _, j := range s.jobs {
		if j.Status == job.StatusQueued {
			queued = append(queued, j)
		}
	}
	if len(queued) == 0 {
		return nil, nil
	}
	sort.Slice(queued, func(i, k int) bool {
		if queued[i].Priority != queued[k].Priority {
			return queued[i].Priority > queued[k].Priority
		}
		return queued[i].CreatedAt.Before(queued[k].CreatedAt)
	})
	cp := *queued[0]
	return &cp, nil
}

func (s *MemStore) ConditionalUpdate(ctx context.Context, j *job.Job, expected job.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[j.ID]
	if !ok || cur.Status != expected {
		return store.ErrNoMatch
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *MemStore) Update(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return common.ErrJobNotFound
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (s *MemStore) SaveResult(ctx context.Context, r *job.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.results[cp.JobID] = append(s.results[cp.JobID], &cp)
	r.ID = cp.ID
	r.CreatedAt = cp.CreatedAt
	return nil
}

func (s *MemStore) LatestResult(ctx context.Context, jobID uuid.UUID) (*job.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.results[jobID]
	if len(rows) == 0 {
		return nil, nil
	}
	cp := *rows[len(rows)-1]
	return &cp, nil
}

func (s *MemStore) CountStale(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for _, j := range s.jobs {
		if j.Status == job.StatusProcessing && j.StartedAt != nil && j.StartedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}
