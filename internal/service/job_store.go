package service

import (
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
)

// jobStore keeps async generation state in memory; entries expire ttl after their last update.
type jobStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]dto.GenerationJob
	now   func() time.Time
}

func newJobStore(ttl time.Duration) *jobStore {
	return &jobStore{
		ttl:   ttl,
		items: make(map[string]dto.GenerationJob),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *jobStore) Save(job dto.GenerationJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.items[job.ID] = job
}

func (s *jobStore) Get(id string) (dto.GenerationJob, bool) {
	s.mu.RLock()
	job, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.GenerationJob{}, false
	}
	if s.now().Sub(job.UpdatedAt) > s.ttl {
		s.Delete(id)
		return dto.GenerationJob{}, false
	}
	return job, true
}

func (s *jobStore) Update(id string, fn func(*dto.GenerationJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.items[id]
	if !ok {
		return false
	}
	fn(&job)
	job.UpdatedAt = s.now()
	s.items[id] = job
	return true
}

func (s *jobStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *jobStore) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, job := range s.items {
		if job.UpdatedAt.Before(cutoff) {
			delete(s.items, id)
		}
	}
}
