// -----------------------------------------------------------------------
// Processing Job - tracked state for one document submitted to the
// remote extraction backend
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobStatus represents the state of a processing job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// StepStatus represents the state of a single pipeline step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// DetailLevel tags a step detail line for UI rendering
type DetailLevel string

const (
	DetailInfo    DetailLevel = "info"
	DetailSuccess DetailLevel = "success"
	DetailError   DetailLevel = "error"
)

// StepDetail is one append-only, timestamped status line on a step.
// Entries are never mutated or removed once appended.
type StepDetail struct {
	Timestamp time.Time   `json:"timestamp"`
	Level     DetailLevel `json:"level"`
	Message   string      `json:"message"`
}

// Step is one named stage within a job's fixed processing pipeline.
// A step belongs to exactly one job and is never revisited once completed.
type Step struct {
	ID          string                 `json:"id"`   // stage key, matches a PipelineSteps entry
	Name        string                 `json:"name"` // human-readable label
	Status      StepStatus             `json:"status"`
	Progress    int                    `json:"progress"` // 0-100, local to the step
	Details     []StepDetail           `json:"details,omitempty"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Duration    time.Duration          `json:"duration,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"` // opaque step-scoped result payload
}

// ResultMetadata carries the typed facts the orchestrator actually reasons
// about, plus an open bag for pass-through fields supplied by the remote
// processor that we do not interpret.
type ResultMetadata struct {
	ChunksCreated   int                    `json:"chunks_created,omitempty"`
	ImagesExtracted int                    `json:"images_extracted,omitempty"`
	TextLength      int                    `json:"text_length,omitempty"`
	KBEntriesSaved  int                    `json:"kb_entries_saved,omitempty"`
	DocumentID      string                 `json:"document_id,omitempty"`
	Extra           map[string]interface{} `json:"extra,omitempty"`
}

// Merge folds non-zero fields from other into m. Extra keys from other
// overwrite existing keys of the same name.
func (m *ResultMetadata) Merge(other ResultMetadata) {
	if other.ChunksCreated != 0 {
		m.ChunksCreated = other.ChunksCreated
	}
	if other.ImagesExtracted != 0 {
		m.ImagesExtracted = other.ImagesExtracted
	}
	if other.TextLength != 0 {
		m.TextLength = other.TextLength
	}
	if other.KBEntriesSaved != 0 {
		m.KBEntriesSaved = other.KBEntriesSaved
	}
	if other.DocumentID != "" {
		m.DocumentID = other.DocumentID
	}
	if len(other.Extra) > 0 {
		if m.Extra == nil {
			m.Extra = make(map[string]interface{}, len(other.Extra))
		}
		for k, v := range other.Extra {
			m.Extra[k] = v
		}
	}
}

// Job is one end-to-end tracked invocation of the external processing
// pipeline for one artifact. All mutations are funneled through the
// owning poller goroutine (or the submitter at creation time); every
// other component only ever sees deep-copied snapshots.
//
// Lifecycle:
//  1. Created at submission (pending, all steps pending)
//  2. Promoted to running when the submit call returns a remote handle
//  3. Mutated exclusively by the poller until a terminal remote status
//  4. Frozen after reaching completed/failed, eventually evictable
type Job struct {
	ID               string         `json:"id"`
	Filename         string         `json:"filename"`
	Status           JobStatus      `json:"status"`
	Steps            []Step         `json:"steps"`
	CurrentStepIndex int            `json:"current_step_index"`
	Progress         int            `json:"progress"` // 0-100, monotonic while running
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	Result           ResultMetadata `json:"result"`
	RemoteJobID      string         `json:"remote_job_id,omitempty"`
	RemoteDocumentID string         `json:"remote_document_id,omitempty"`
	// Error contains a concise, user-facing description of why the job
	// failed. Only populated when Status is failed.
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewJob creates a job in the pending state with a fresh copy of the
// pipeline step catalog.
func NewJob(id, filename string, now time.Time) *Job {
	return &Job{
		ID:        id,
		Filename:  filename,
		Status:    JobStatusPending,
		Steps:     NewPipelineRun(),
		StartedAt: now,
	}
}

// IsTerminal returns true once the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkRunning promotes a pending job to running and starts its first step.
func (j *Job) MarkRunning(now time.Time) {
	if j.Status != JobStatusPending {
		return
	}
	j.Status = JobStatusRunning
	if len(j.Steps) > 0 {
		j.Steps[0].markRunning(now)
	}
}

// MarkCompleted transitions the job to its terminal completed state,
// flushing every remaining step to completed. No-op if already terminal.
func (j *Job) MarkCompleted(now time.Time) {
	if j.IsTerminal() {
		return
	}
	for i := range j.Steps {
		j.Steps[i].markCompleted(now)
	}
	if len(j.Steps) > 0 {
		j.CurrentStepIndex = len(j.Steps) - 1
	}
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.CompletedAt = &now
}

// MarkFailed transitions the job to its terminal failed state. The
// in-flight step is marked failed; untouched steps are marked skipped.
// No-op if already terminal.
func (j *Job) MarkFailed(now time.Time, message, code string) {
	if j.IsTerminal() {
		return
	}
	for i := range j.Steps {
		switch j.Steps[i].Status {
		case StepStatusRunning:
			j.Steps[i].markFailed(now, message)
		case StepStatusPending:
			j.Steps[i].Status = StepStatusSkipped
		}
	}
	j.Status = JobStatusFailed
	j.Error = message
	j.ErrorCode = code
	j.CompletedAt = &now
}

// AdvanceToStep moves the current step index forward to idx, marking every
// step in [CurrentStepIndex, idx) completed and step idx running. Backward
// or out-of-range targets are ignored so duplicate or out-of-order remote
// reports never rewind progress. Returns true if anything changed.
func (j *Job) AdvanceToStep(idx int, now time.Time) bool {
	if j.IsTerminal() || idx <= j.CurrentStepIndex || idx >= len(j.Steps) {
		return false
	}
	for i := j.CurrentStepIndex; i < idx; i++ {
		j.Steps[i].markCompleted(now)
	}
	j.Steps[idx].markRunning(now)
	j.CurrentStepIndex = idx
	return true
}

// SetProgress updates overall progress while running. Progress is
// monotonic: lower values than the current one are ignored.
func (j *Job) SetProgress(p int) {
	if j.Status != JobStatusRunning {
		return
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// CurrentStep returns the step at CurrentStepIndex, or nil when the job
// has no steps.
func (j *Job) CurrentStep() *Step {
	if j.CurrentStepIndex < 0 || j.CurrentStepIndex >= len(j.Steps) {
		return nil
	}
	return &j.Steps[j.CurrentStepIndex]
}

// AddDetail appends a timestamped detail line to the current step.
// Detail lines may be appended even after the job is terminal so failed
// jobs keep a full causal trail.
func (j *Job) AddDetail(now time.Time, level DetailLevel, message string) {
	step := j.CurrentStep()
	if step == nil {
		return
	}
	step.Details = append(step.Details, StepDetail{
		Timestamp: now,
		Level:     level,
		Message:   message,
	})
}

// Clone returns a deep copy suitable for handing to subscribers and
// HTTP handlers without exposing the live job to concurrent mutation.
func (j *Job) Clone() Job {
	clone := *j
	clone.Steps = make([]Step, len(j.Steps))
	for i, s := range j.Steps {
		cs := s
		cs.Details = append([]StepDetail(nil), s.Details...)
		if s.Metadata != nil {
			cs.Metadata = make(map[string]interface{}, len(s.Metadata))
			for k, v := range s.Metadata {
				cs.Metadata[k] = v
			}
		}
		clone.Steps[i] = cs
	}
	if j.Result.Extra != nil {
		clone.Result.Extra = make(map[string]interface{}, len(j.Result.Extra))
		for k, v := range j.Result.Extra {
			clone.Result.Extra[k] = v
		}
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		clone.CompletedAt = &t
	}
	return clone
}

func (s *Step) markRunning(now time.Time) {
	if s.Status != StepStatusPending {
		return
	}
	s.Status = StepStatusRunning
	t := now
	s.StartedAt = &t
}

func (s *Step) markCompleted(now time.Time) {
	if s.Status == StepStatusCompleted || s.Status == StepStatusFailed {
		return
	}
	if s.StartedAt == nil {
		t := now
		s.StartedAt = &t
	}
	s.Status = StepStatusCompleted
	s.Progress = 100
	t := now
	s.CompletedAt = &t
	s.Duration = s.CompletedAt.Sub(*s.StartedAt)
}

func (s *Step) markFailed(now time.Time, message string) {
	if s.Status == StepStatusCompleted || s.Status == StepStatusFailed {
		return
	}
	s.Status = StepStatusFailed
	t := now
	s.CompletedAt = &t
	if s.StartedAt != nil {
		s.Duration = s.CompletedAt.Sub(*s.StartedAt)
	}
	s.Details = append(s.Details, StepDetail{
		Timestamp: now,
		Level:     DetailError,
		Message:   message,
	})
}
