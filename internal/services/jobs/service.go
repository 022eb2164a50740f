// -----------------------------------------------------------------------
// Job Service - orchestrates document-processing jobs end to end
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/common"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
	"github.com/vellumdocs/vellum/internal/pipeline"
)

// retained holds the upload payload for a job so a retry can fully
// resubmit without asking the user to upload again.
type retained struct {
	artifact interfaces.Artifact
	opts     models.ProcessingOptions
}

type subscription struct {
	id int
	fn interfaces.JobSubscriber
}

// pollHandle identifies one tracking goroutine. A tracker only ever
// releases its own registration, so a retry that registers a fresh
// tracker is never unregistered by its predecessor winding down.
type pollHandle struct {
	cancel context.CancelFunc
}

// Options collects the dependencies for a job service. Processor and
// Mapper are required; the rest are optional.
type Options struct {
	Processor interfaces.DocumentProcessor
	Mapper    *pipeline.StageMapper
	Inspector interfaces.ArtifactInspector
	Archive   interfaces.JobArchive
	Events    interfaces.EventService
	Policy    BackoffPolicy
	Clock     Clock
}

// Service implements interfaces.JobService. One goroutine per in-flight
// job owns that job's mutations; all reads go through deep-copied
// snapshots from the store.
type Service struct {
	store     *Store
	processor interfaces.DocumentProcessor
	mapper    *pipeline.StageMapper
	inspector interfaces.ArtifactInspector
	archive   interfaces.JobArchive
	events    interfaces.EventService
	policy    BackoffPolicy
	clock     Clock
	logger    arbor.ILogger

	mu          sync.Mutex
	subscribers []subscription
	nextSubID   int
	pollers     map[string]*pollHandle
	artifacts   map[string]retained
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ interfaces.JobService = (*Service)(nil)

// NewService creates a job service with explicit dependencies.
func NewService(opts Options, logger arbor.ILogger) *Service {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Mapper == nil {
		opts.Mapper = pipeline.NewStageMapper()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     NewStore(),
		processor: opts.Processor,
		mapper:    opts.Mapper,
		inspector: opts.Inspector,
		archive:   opts.Archive,
		events:    opts.Events,
		policy:    opts.Policy,
		clock:     opts.Clock,
		logger:    logger,
		pollers:   make(map[string]*pollHandle),
		artifacts: make(map[string]retained),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// StartProcessing registers a new job for the artifact and launches its
// tracking goroutine. The job is observable through GetJob/ListJobs and
// subscriber snapshots before the remote upload begins.
func (s *Service) StartProcessing(ctx context.Context, artifact interfaces.Artifact, opts models.ProcessingOptions) (string, error) {
	if len(artifact.Data) == 0 {
		return "", fmt.Errorf("artifact %q is empty", artifact.Filename)
	}
	opts.Normalize()
	if err := opts.Validate(); err != nil {
		return "", err
	}

	jobID := common.NewJobID()
	job := models.NewJob(jobID, artifact.Filename, s.clock.Now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", fmt.Errorf("job service is shut down")
	}
	s.artifacts[jobID] = retained{artifact: artifact, opts: opts}
	s.mu.Unlock()

	s.store.Put(job)
	s.publish(job.Clone(), interfaces.EventJobCreated)

	s.logger.Info().
		Str("job_id", jobID).
		Str("filename", artifact.Filename).
		Int("size", len(artifact.Data)).
		Msg("Job created")

	if err := s.startTracking(jobID); err != nil {
		return "", err
	}
	return jobID, nil
}

// GetJob returns a snapshot of the job, if known.
func (s *Service) GetJob(jobID string) (models.Job, bool) {
	return s.store.Get(jobID)
}

// ListJobs returns snapshots of all known jobs, newest first.
func (s *Service) ListJobs() []models.Job {
	return s.store.List()
}

// RetryJob resets a terminal job to a clean pipeline and resubmits the
// retained artifact from scratch.
func (s *Service) RetryJob(ctx context.Context, jobID string) error {
	job, ok := s.store.Get(jobID)
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	if !job.IsTerminal() {
		return fmt.Errorf("job %s is still in progress", jobID)
	}

	s.mu.Lock()
	_, hasArtifact := s.artifacts[jobID]
	s.mu.Unlock()
	if !hasArtifact {
		return fmt.Errorf("job %s has no retained artifact to resubmit", jobID)
	}

	now := s.clock.Now()
	snapshot, _ := s.store.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusPending
		j.Steps = models.NewPipelineRun()
		j.CurrentStepIndex = 0
		j.Progress = 0
		j.StartedAt = now
		j.CompletedAt = nil
		j.Result = models.ResultMetadata{}
		j.RemoteJobID = ""
		j.RemoteDocumentID = ""
		j.Error = ""
		j.ErrorCode = ""
	})
	s.publish(snapshot, interfaces.EventJobRetried)

	s.logger.Info().Str("job_id", jobID).Msg("Job retried, resubmitting artifact")

	return s.startTracking(jobID)
}

// CancelJob stops tracking the job and marks it failed if it has not
// already finished. Safe to call repeatedly.
func (s *Service) CancelJob(jobID string) error {
	if _, ok := s.store.Get(jobID); !ok {
		return fmt.Errorf("job %s not found", jobID)
	}

	s.mu.Lock()
	if handle, ok := s.pollers[jobID]; ok {
		handle.cancel()
		delete(s.pollers, jobID)
	}
	s.mu.Unlock()

	now := s.clock.Now()
	applied := false
	snapshot, _ := s.store.Mutate(jobID, func(j *models.Job) {
		if j.IsTerminal() {
			return
		}
		j.MarkFailed(now, "Cancelled by user", "cancelled")
		applied = true
	})
	if applied {
		s.publish(snapshot, interfaces.EventJobFailed)
		s.archiveTerminal(snapshot)
		s.logger.Info().Str("job_id", jobID).Msg("Job cancelled")
	}
	return nil
}

// ClearCompletedJobs removes all terminal jobs and returns the count.
// Terminal jobs take no further mutations, so removal is always safe
// even while a tracking goroutine is still winding down.
func (s *Service) ClearCompletedJobs() int {
	removed := s.store.RemoveTerminal(nil)

	s.mu.Lock()
	for _, id := range removed {
		delete(s.artifacts, id)
		if handle, ok := s.pollers[id]; ok {
			handle.cancel()
			delete(s.pollers, id)
		}
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.publishEvent(interfaces.EventJobsCleared, len(removed))
		s.logger.Info().Int("count", len(removed)).Msg("Cleared completed jobs")
	}
	return len(removed)
}

// PurgeExpiredJobs evicts terminal jobs past the retention window and
// enforces the in-memory cap. Called by the retention scheduler.
func (s *Service) PurgeExpiredJobs(retention common.RetentionConfig) int {
	cutoff := s.clock.Now().Add(-retention.MaxAge)
	removed := s.store.PurgeExpired(cutoff, retention.MaxJobs)
	if removed > 0 {
		s.pruneArtifacts()
		s.logger.Info().Int("count", removed).Msg("Purged expired jobs")
	}
	return removed
}

// Subscribe registers a snapshot callback. Callbacks run synchronously in
// registration order after every job mutation. The returned function
// unsubscribes and may be called more than once.
func (s *Service) Subscribe(fn interfaces.JobSubscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Close cancels every tracking goroutine and waits for them to exit.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Job service stopped")
}

// startTracking launches the submit-and-poll goroutine for a job. Any
// previous tracker for the same job is cancelled and superseded.
func (s *Service) startTracking(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("job service is shut down")
	}
	if prev, ok := s.pollers[jobID]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(s.ctx)
	handle := &pollHandle{cancel: cancel}
	s.pollers[jobID] = handle
	s.wg.Add(1)
	go s.track(ctx, jobID, handle)
	return nil
}

func (s *Service) releasePoller(jobID string, handle *pollHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle.cancel()
	if s.pollers[jobID] == handle {
		delete(s.pollers, jobID)
	}
}

func (s *Service) retainedFor(jobID string) (retained, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.artifacts[jobID]
	return r, ok
}

// pruneArtifacts drops retained payloads whose job is gone.
func (s *Service) pruneArtifacts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.artifacts {
		if _, ok := s.store.Get(id); !ok {
			delete(s.artifacts, id)
		}
	}
}

// mutateAndPublish applies fn to the job and fans the resulting snapshot
// out to subscribers and the event bus. Terminal jobs are left untouched
// and publish nothing: a status reply that was already in flight when a
// cancel landed must not mutate or re-announce a finished job.
func (s *Service) mutateAndPublish(jobID string, eventType interfaces.EventType, fn func(*models.Job)) (models.Job, bool) {
	applied := false
	snapshot, ok := s.store.Mutate(jobID, func(j *models.Job) {
		if j.IsTerminal() {
			return
		}
		fn(j)
		applied = true
	})
	if !ok || !applied {
		return models.Job{}, false
	}
	s.publish(snapshot, eventType)
	return snapshot, true
}

// publish delivers the snapshot to all subscribers in registration order,
// then to the event bus. A panicking subscriber is isolated so the rest
// still receive the snapshot.
func (s *Service) publish(snapshot models.Job, eventType interfaces.EventType) {
	s.mu.Lock()
	subs := make([]subscription, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(sub, snapshot)
	}

	s.publishEvent(eventType, snapshot)
}

func (s *Service) deliver(sub subscription, snapshot models.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().
				Str("job_id", snapshot.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Job subscriber panicked")
		}
	}()
	sub.fn(snapshot)
}

func (s *Service) publishEvent(eventType interfaces.EventType, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish job event")
	}
}

// archiveTerminal persists a terminal snapshot to the durable archive.
func (s *Service) archiveTerminal(snapshot models.Job) {
	if s.archive == nil || !snapshot.IsTerminal() {
		return
	}
	if err := s.archive.ArchiveJob(context.Background(), &snapshot); err != nil {
		s.logger.Warn().Err(err).Str("job_id", snapshot.ID).Msg("Failed to archive job")
	}
}

// isPDFArtifact reports whether the artifact claims to be a PDF, by
// content type or extension.
func isPDFArtifact(a interfaces.Artifact) bool {
	if strings.Contains(strings.ToLower(a.ContentType), "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(a.Filename), ".pdf")
}
