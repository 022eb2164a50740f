package interfaces

// SchedulerService runs named background jobs on cron schedules.
type SchedulerService interface {
	// RegisterJob registers a handler under a cron schedule expression.
	RegisterJob(name, schedule, description string, handler func() error) error

	// Start begins executing registered schedules.
	Start() error

	// Stop halts the scheduler and waits for running handlers to finish.
	Stop() error
}
