package store

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	mu  sync.RWMutex
	job Job
}

// MemoryStore is a volatile JobStore. Each record carries its own lock, so
// writers of one job never block readers or writers of another.
type MemoryStore struct {
	jobs sync.Map // id -> *entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	e := &entry{job: *job.Clone()}
	if _, loaded := s.jobs.LoadOrStore(job.ID, e); loaded {
		return ErrAlreadyExists
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	e := v.(*entry)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.job.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Job)) error {
	v, ok := s.jobs.Load(id)
	if !ok {
		// Reclaimed by the sweeper while still in flight.
		return nil
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.job)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.jobs.Delete(id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Job, error) {
	var jobs []Job
	s.jobs.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.RLock()
		jobs = append(jobs, *e.job.Clone())
		e.mu.RUnlock()
		return true
	})

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}
