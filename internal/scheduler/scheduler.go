// Package scheduler runs the crawl pipeline on a cron schedule, one pass at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

// ErrAlreadyRunning is returned by RunNow while a pass is in progress.
var ErrAlreadyRunning = errors.New("a pipeline pass is already running")

// Job is one pipeline pass.
type Job func(ctx context.Context) error

// Status describes the scheduler for the status endpoint.
type Status struct {
	Spec       string    `json:"spec"`
	Running    bool      `json:"running"`
	Runs       int       `json:"runs"`
	Skipped    int       `json:"skipped"`
	LastStart  time.Time `json:"last_start,omitzero"`
	LastFinish time.Time `json:"last_finish,omitzero"`
	LastError  string    `json:"last_error,omitempty"`
	NextRun    time.Time `json:"next_run,omitzero"`
}

// Scheduler wraps a cron instance with a single-flight guard.
type Scheduler struct {
	spec    string
	job     Job
	log     logger.Logger
	cron    *cron.Cron
	entry   cron.EntryID
	running sync.Mutex

	mu     sync.Mutex
	status Status
	now    func() time.Time
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec reports whether spec is a usable schedule.
func ValidateSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// New creates a Scheduler. Nothing runs until Start.
func New(spec string, job Job, log logger.Logger) (*Scheduler, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	log = log.With(logger.Component("scheduler"))
	cl := cronLogger{log: log}

	return &Scheduler{
		spec: spec,
		job:  job,
		log:  log,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		status: Status{Spec: spec},
		now:    time.Now,
	}, nil
}

// Start schedules the job and blocks until ctx is done, then waits for a running
// pass to return.
func (s *Scheduler) Start(ctx context.Context) error {
	entry, err := s.cron.AddFunc(s.spec, func() {
		if runErr := s.RunNow(ctx); errors.Is(runErr, ErrAlreadyRunning) {
			s.log.Info("Skipping scheduled pass, previous pass still running")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entry = entry

	s.cron.Start()
	s.log.Info("Scheduler started",
		logger.String("spec", s.spec),
		logger.Time("next_run", s.cron.Entry(entry).Next),
	)

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("Scheduler stopped")
	return nil
}

// RunNow runs one pass immediately unless one is already running.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.running.TryLock() {
		s.mu.Lock()
		s.status.Skipped++
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	defer s.running.Unlock()

	s.mu.Lock()
	s.status.Running = true
	s.status.LastStart = s.now()
	s.mu.Unlock()

	err := s.job(ctx)

	s.mu.Lock()
	s.status.Running = false
	s.status.Runs++
	s.status.LastFinish = s.now()
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Pipeline pass failed", logger.Error(err))
	}
	return err
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	if s.entry != 0 {
		st.NextRun = s.cron.Entry(s.entry).Next
	}
	return st
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
