package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/interfaces"
)

// taskEntry represents a registered maintenance task with run metadata
type taskEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	cronID      cron.EntryID
	running     bool
	lastRun     *time.Time
	lastError   string
}

// Service implements SchedulerService interface. Tasks run one at a
// time; a task whose previous run is still going is skipped, not queued.
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	tasks   map[string]*taskEntry
	running bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		tasks:  make(map[string]*taskEntry),
	}
}

// RegisterJob registers a maintenance task under a cron schedule.
// Standard five-field expressions and descriptors like "@every 10m"
// are both accepted.
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}

	entry := &taskEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.execute(name)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}

	entry.cronID = cronID
	s.tasks[name] = entry

	s.logger.Info().
		Str("task", name).
		Str("schedule", schedule).
		Msg("Maintenance task registered")

	return nil
}

// Start begins running registered tasks on their schedules.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for in-flight tasks to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// execute wraps a task run with overlap protection, panic recovery,
// and status tracking.
func (s *Service) execute(name string) {
	s.mu.Lock()
	entry, exists := s.tasks[name]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	handler := entry.handler
	s.mu.Unlock()

	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("task", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in maintenance task")
			s.finish(name, started, fmt.Errorf("panic: %v", r))
		}
	}()

	s.finish(name, started, handler())
}

func (s *Service) finish(name string, started time.Time, err error) {
	completed := time.Now()

	s.mu.Lock()
	if entry, exists := s.tasks[name]; exists {
		entry.running = false
		entry.lastRun = &completed
		if err != nil {
			entry.lastError = err.Error()
		} else {
			entry.lastError = ""
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("task", name).
			Err(err).
			Dur("duration", completed.Sub(started)).
			Msg("Maintenance task failed")
		return
	}
	s.logger.Debug().
		Str("task", name).
		Dur("duration", completed.Sub(started)).
		Msg("Maintenance task completed")
}
