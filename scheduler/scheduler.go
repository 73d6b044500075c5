package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/linj121/convo/im"
)

// jobTimer is the recurring-timer handle a Job wraps: either a cron
// schedule or a one-shot timer for an absolute instant.
type jobTimer interface {
	Start()
	Stop()
}

// Job pairs a task with its live timer. Jobs exist for disabled tasks
// too; they are just never started.
type Job struct {
	name     string
	enabled  bool
	location *time.Location
	timer    jobTimer

	inFlight atomic.Bool
	run      func()
}

// Name returns the owning task's name.
func (j *Job) Name() string { return j.name }

// tick guards a single firing against overlap with the previous one:
// a tick that arrives while the job is still running is skipped, not
// queued.
func (j *Job) tick(logger *slog.Logger) {
	if !j.inFlight.CompareAndSwap(false, true) {
		logger.Warn("skipping tick, previous tick still running", "task", j.name)
		return
	}
	defer j.inFlight.Store(false)
	j.run()
}

// Options configures a Scheduler. Tasks must already be validated.
type Options struct {
	Session   im.Session
	Tasks     []Task
	Templates *TemplateSet
	// DefaultTimeZone applies to tasks without their own timezone.
	// Empty falls back to the host-local timezone.
	DefaultTimeZone string
	Logger          *slog.Logger
}

// Scheduler owns one Job per task and runs them on independent timers.
// A failing task never affects other jobs or the scheduler itself.
type Scheduler struct {
	resolver  *Resolver
	templates *TemplateSet
	logger    *slog.Logger

	mu      sync.Mutex
	jobs    []*Job
	started bool
}

func New(opts Options) (*Scheduler, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	templates := opts.Templates
	if templates == nil {
		templates = NewTemplateSet(TemplateSetOptions{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver, err := NewResolver(opts.Session)
	if err != nil {
		return nil, err
	}

	defaultLocation := time.Local
	if opts.DefaultTimeZone != "" {
		defaultLocation, err = time.LoadLocation(opts.DefaultTimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid default timezone %q: %w", opts.DefaultTimeZone, err)
		}
	}

	s := &Scheduler{
		resolver:  resolver,
		templates: templates,
		logger:    logger,
	}

	for _, task := range opts.Tasks {
		job, err := s.buildJob(task, defaultLocation)
		if err != nil {
			return nil, fmt.Errorf("build job for task %q: %w", task.Name, err)
		}
		s.jobs = append(s.jobs, job)
	}
	return s, nil
}

func (s *Scheduler) buildJob(task Task, defaultLocation *time.Location) (*Job, error) {
	producer, err := s.templates.Producer(task.Action.Template)
	if err != nil {
		return nil, err
	}

	location := defaultLocation
	if task.TimeZone != "" {
		location, err = time.LoadLocation(task.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", task.TimeZone, err)
		}
	}

	job := &Job{
		name:     task.Name,
		enabled:  task.IsEnabled(),
		location: location,
	}
	job.run = func() {
		s.runTask(task, producer)
	}
	tick := func() { job.tick(s.logger) }

	if at, ok := task.fireAt(); ok {
		job.timer = &onceTimer{at: at, fn: tick, logger: s.logger, name: task.Name}
		return job, nil
	}

	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(location))
	if _, err := c.AddFunc(task.CronTime, tick); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", task.CronTime, err)
	}
	job.timer = &cronTimer{c: c}
	return job, nil
}

// runTask is one unit of work: resolve the target, produce the
// payload, send it. Every failure is logged with the task's name and
// contained here; the job stays scheduled for its next tick.
func (s *Scheduler) runTask(task Task, producer Producer) {
	ctx := context.Background()
	// One ID per firing so retried or overlapping-adjacent runs can be
	// told apart in the logs.
	logger := s.logger.With("task", task.Name, "run_id", uuid.NewString())

	target, err := s.resolver.Resolve(ctx, task.Target)
	if err != nil {
		logger.Error("task failed to resolve target", "error", err)
		return
	}
	payload, err := producer(ctx, task.Action)
	if err != nil {
		logger.Error("task failed to produce message", "error", err)
		return
	}
	if err := target.Say(ctx, payload); err != nil {
		logger.Error("task failed to send message", "error", err)
		return
	}
	logger.Debug("task fired")
}

// StartAllJobs starts the timer of every enabled job. Disabled jobs
// are never started.
func (s *Scheduler) StartAllJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	for _, job := range s.jobs {
		if job.enabled {
			job.timer.Start()
		}
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// StopAllJobs stops every job's timer unconditionally. Future ticks
// stop immediately; a tick already executing is allowed to finish.
func (s *Scheduler) StopAllJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	for _, job := range s.jobs {
		job.timer.Stop()
	}
	s.logger.Info("scheduler stopped")
}

// Jobs returns the scheduler's jobs in task order.
func (s *Scheduler) Jobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

type cronTimer struct {
	c *cron.Cron
}

func (t *cronTimer) Start() { t.c.Start() }
func (t *cronTimer) Stop()  { t.c.Stop() }

// onceTimer fires once at an absolute instant. An instant already in
// the past when the job starts is logged and never fired.
type onceTimer struct {
	at     time.Time
	fn     func()
	logger *slog.Logger
	name   string

	mu    sync.Mutex
	timer *time.Timer
}

func (t *onceTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		return
	}
	delay := time.Until(t.at)
	if delay < 0 {
		t.logger.Warn("one-shot fire time already passed, not scheduling", "task", t.name, "at", t.at)
		return
	}
	t.timer = time.AfterFunc(delay, t.fn)
}

func (t *onceTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
