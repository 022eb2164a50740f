// -----------------------------------------------------------------------
// Job Poller - per-job submit-and-poll loop
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"

	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
	"github.com/vellumdocs/vellum/internal/processor"
)

// track owns all mutations for one job: pre-flight inspection, upload,
// and the status-poll loop until a terminal state. Exactly one tracking
// goroutine exists per in-flight job.
func (s *Service) track(ctx context.Context, jobID string, handle *pollHandle) {
	defer s.wg.Done()
	defer s.releasePoller(jobID, handle)

	r, ok := s.retainedFor(jobID)
	if !ok {
		s.failJob(jobID, "internal: artifact payload missing", "internal")
		return
	}

	if !s.inspect(ctx, jobID, r.artifact) {
		return
	}

	now := s.clock.Now()
	s.mutateAndPublish(jobID, interfaces.EventJobProgress, func(j *models.Job) {
		j.MarkRunning(now)
		j.AddDetail(now, models.DetailInfo, fmt.Sprintf("Uploading %s", r.artifact.Filename))
	})

	result, err := s.processor.Submit(ctx, r.artifact, r.opts)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Submission failures are fatal regardless of kind; there is no
		// remote job to poll and retrying uploads is the user's call.
		s.failJob(jobID, fmt.Sprintf("Upload failed: %s", err.Error()), string(processor.KindOf(err)))
		return
	}

	now = s.clock.Now()
	snapshot, _ := s.mutateAndPublish(jobID, interfaces.EventJobProgress, func(j *models.Job) {
		j.RemoteJobID = result.RemoteJobID
		j.RemoteDocumentID = result.RemoteDocumentID
		j.AddDetail(now, models.DetailSuccess, "Upload complete")
		j.AdvanceToStep(models.StepIndex(models.StepExtract), now)
	})

	s.logger.Info().
		Str("job_id", jobID).
		Str("remote_job_id", result.RemoteJobID).
		Msg("Artifact submitted")

	if result.Completed && result.Final != nil {
		// Small documents come back already processed.
		s.applyRemoteStatus(jobID, result.Final, snapshot.Progress)
		return
	}

	s.poll(ctx, jobID, result.RemoteJobID)
}

// inspect runs the local pre-flight check. Returns false when the job was
// failed and tracking must stop.
func (s *Service) inspect(ctx context.Context, jobID string, artifact interfaces.Artifact) bool {
	if s.inspector == nil || !isPDFArtifact(artifact) {
		return true
	}

	info, err := s.inspector.Inspect(ctx, artifact.Data)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("Unreadable document: %s", err.Error()), string(processor.KindRejected))
		return false
	}
	if info.Encrypted {
		s.failJob(jobID, "Document is encrypted and cannot be processed", string(processor.KindRejected))
		return false
	}

	now := s.clock.Now()
	s.mutateAndPublish(jobID, interfaces.EventJobProgress, func(j *models.Job) {
		j.AddDetail(now, models.DetailInfo, fmt.Sprintf("Document checked: %d pages", info.PageCount))
	})
	return true
}

// poll queries the remote status at a fixed cadence until the job reaches
// a terminal state, the attempt budget runs out, or the context is
// cancelled. Transient errors consume budget but do not fail the job;
// only the budget running out produces the single timeout failure.
func (s *Service) poll(ctx context.Context, jobID, remoteJobID string) {
	attempts := 0
	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.policy.Delay(attempts)):
		}
		attempts++

		status, err := s.processor.Status(ctx, remoteJobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !processor.IsTransient(err) {
				s.failJob(jobID, fmt.Sprintf("Status check failed: %s", err.Error()), string(processor.KindOf(err)))
				return
			}

			consecutiveFailures++
			s.logger.Warn().
				Str("job_id", jobID).
				Int("attempt", attempts).
				Int("consecutive_failures", consecutiveFailures).
				Err(err).
				Msg("Transient status-poll failure")

			if s.policy.Exhausted(attempts) || s.policy.Exhausted(consecutiveFailures) {
				s.failJob(jobID, s.timeoutMessage(attempts), "timeout")
				return
			}
			continue
		}
		consecutiveFailures = 0

		if s.applyRemoteStatus(jobID, status, s.estimateProgress(attempts)) {
			return
		}

		if s.policy.Exhausted(attempts) {
			s.failJob(jobID, s.timeoutMessage(attempts), "timeout")
			return
		}
	}
}

// applyRemoteStatus folds one remote status report into the job. Returns
// true when the job reached a terminal state.
func (s *Service) applyRemoteStatus(jobID string, status *interfaces.RemoteStatus, fallbackProgress int) bool {
	now := s.clock.Now()

	switch status.Status {
	case interfaces.RemoteStatusCompleted:
		snapshot, ok := s.mutateAndPublish(jobID, interfaces.EventJobCompleted, func(j *models.Job) {
			j.Result.Merge(status.Metadata)
			if j.RemoteDocumentID == "" {
				j.RemoteDocumentID = status.Metadata.DocumentID
			}
			j.AddDetail(now, models.DetailSuccess, "Processing complete")
			j.MarkCompleted(now)
		})
		if !ok {
			return true
		}
		s.archiveTerminal(snapshot)
		s.logger.Info().
			Str("job_id", jobID).
			Int("chunks", snapshot.Result.ChunksCreated).
			Msg("Job completed")
		return true

	case interfaces.RemoteStatusFailed, interfaces.RemoteStatusError:
		message := status.Error
		if message == "" {
			message = "Remote processing failed without detail"
		}
		s.failJob(jobID, message, "remote_failure")
		return true

	default:
		s.mutateAndPublish(jobID, interfaces.EventJobProgress, func(j *models.Job) {
			if status.Stage != "" {
				s.mapper.Apply(j, status.Stage, now)
			}
			j.Result.Merge(status.Metadata)

			// Prefer the backend's own percentage; otherwise estimate
			// from the elapsed share of the attempt budget.
			if status.ProgressPercentage != nil {
				j.SetProgress(*status.ProgressPercentage)
			} else {
				j.SetProgress(fallbackProgress)
			}
		})
		return false
	}
}

// failJob forces the job to failed, publishes the snapshot, and archives
// it. Safe against already-terminal jobs.
func (s *Service) failJob(jobID, message, code string) {
	now := s.clock.Now()
	snapshot, ok := s.mutateAndPublish(jobID, interfaces.EventJobFailed, func(j *models.Job) {
		j.AddDetail(now, models.DetailError, message)
		j.MarkFailed(now, message, code)
	})
	if !ok {
		return
	}
	s.archiveTerminal(snapshot)
	s.logger.Warn().
		Str("job_id", jobID).
		Str("code", code).
		Str("error", message).
		Msg("Job failed")
}

// estimateProgress derives a coarse percentage from consumed attempt
// budget, capped below completion so the bar never reads done early.
func (s *Service) estimateProgress(attempts int) int {
	if s.policy.MaxAttempts <= 0 {
		return 0
	}
	p := attempts * 100 / s.policy.MaxAttempts
	if p > 95 {
		p = 95
	}
	return p
}

func (s *Service) timeoutMessage(attempts int) string {
	return fmt.Sprintf(
		"Processing timed out after %d status checks; the remote job may still be running in the background",
		attempts)
}
