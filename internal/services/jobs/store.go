// -----------------------------------------------------------------------
// Job Store - in-memory registry of tracked jobs
// -----------------------------------------------------------------------

package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/vellumdocs/vellum/internal/models"
)

// Store holds the live job set. Reads hand out deep copies; writes are
// funneled through Mutate so the lock is held for every mutation and a
// consistent snapshot is produced atomically with the change.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*models.Job
	order []string // insertion order, oldest first
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*models.Job),
	}
}

// Put registers a new job. Existing entries with the same ID are replaced
// without disturbing their position in the listing order.
func (s *Store) Put(job *models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = job
}

// Get returns a deep-copied snapshot of the job.
func (s *Store) Get(jobID string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.Job{}, false
	}
	return job.Clone(), true
}

// List returns snapshots of all jobs, newest start time first. A retried
// job gets a fresh start time, so insertion order alone is not enough;
// ties keep reverse-insertion order.
func (s *Store) List() []models.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if job, ok := s.jobs[s.order[i]]; ok {
			out = append(out, job.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Mutate applies fn to the live job under the write lock and returns the
// post-mutation snapshot. Returns false when the job is unknown.
func (s *Store) Mutate(jobID string, fn func(*models.Job)) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.Job{}, false
	}
	fn(job)
	return job.Clone(), true
}

// Remove deletes a job from the store. Returns true if it was present.
func (s *Store) Remove(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(jobID)
}

func (s *Store) removeLocked(jobID string) bool {
	if _, ok := s.jobs[jobID]; !ok {
		return false
	}
	delete(s.jobs, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveTerminal deletes every terminal job for which keep returns false
// and returns the removed job IDs. Non-terminal jobs are never touched.
func (s *Store) RemoveTerminal(keep func(models.Job) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, id := range append([]string(nil), s.order...) {
		job := s.jobs[id]
		if job == nil || !job.IsTerminal() {
			continue
		}
		if keep != nil && keep(job.Clone()) {
			continue
		}
		s.removeLocked(id)
		removed = append(removed, id)
	}
	return removed
}

// PurgeExpired removes terminal jobs that finished before the cutoff,
// then enforces maxJobs by dropping the oldest terminal jobs beyond the
// cap. Returns the number removed.
func (s *Store) PurgeExpired(cutoff time.Time, maxJobs int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	terminal := 0
	for _, id := range append([]string(nil), s.order...) {
		job := s.jobs[id]
		if job == nil || !job.IsTerminal() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			s.removeLocked(id)
			removed++
			continue
		}
		terminal++
	}

	if maxJobs <= 0 || terminal <= maxJobs {
		return removed
	}

	// Oldest terminal jobs go first until under the cap.
	excess := terminal - maxJobs
	for _, id := range append([]string(nil), s.order...) {
		if excess == 0 {
			break
		}
		job := s.jobs[id]
		if job == nil || !job.IsTerminal() {
			continue
		}
		s.removeLocked(id)
		removed++
		excess--
	}
	return removed
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
