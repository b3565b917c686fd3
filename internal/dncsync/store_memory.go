package dncsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// InMemoryStore keeps sync jobs in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (s *InMemoryStore) Create(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, jobID uuid.UUID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("sync job %s: %w", jobID, sentinel.ErrNotFound)
	}
	clone := *job
	return &clone, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, jobID uuid.UUID, to JobStatus, stats JobStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("sync job %s: %w", jobID, sentinel.ErrNotFound)
	}
	if !CanTransition(job.Status, to) {
		return fmt.Errorf("sync job transition %s -> %s: %w", job.Status, to, sentinel.ErrInvalidState)
	}
	now := requestcontext.Now(ctx)
	job.Status = to
	job.Processed = stats.Processed
	job.Added = stats.Added
	job.Removed = stats.Removed
	job.Errors = stats.Errors
	job.Error = stats.Error
	switch to {
	case JobInProgress:
		job.StartedAt = &now
	case JobCompleted, JobFailed:
		job.CompletedAt = &now
	}
	return nil
}

func (s *InMemoryStore) LastCompleted(_ context.Context, tenant string, source dnc.Source) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Job
	for _, job := range s.jobs {
		if job.Tenant != tenant || job.Source != source || job.Status != JobCompleted {
			continue
		}
		if latest == nil || job.CompletedAt.After(*latest.CompletedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (s *InMemoryStore) Tenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var tenants []string
	for _, job := range s.jobs {
		if _, ok := seen[job.Tenant]; !ok {
			seen[job.Tenant] = struct{}{}
			tenants = append(tenants, job.Tenant)
		}
	}
	return tenants, nil
}

func (s *InMemoryStore) Sources(_ context.Context, tenant string) ([]dnc.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[dnc.Source]struct{})
	var sources []dnc.Source
	for _, job := range s.jobs {
		if job.Tenant != tenant {
			continue
		}
		if _, ok := seen[job.Source]; !ok {
			seen[job.Source] = struct{}{}
			sources = append(sources, job.Source)
		}
	}
	return sources, nil
}
