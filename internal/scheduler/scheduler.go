package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// WeeklySpec fires every Friday at 10:30 in the scheduler's location.
const WeeklySpec = "30 10 * * 5"

// Job is a unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

// Run calls f.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Entry describes one registered job.
type Entry struct {
	ID   string    `json:"id"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

// Scheduler runs registered jobs on cron schedules in a fixed location.
// A trigger that fires while the previous run of the same id is still going
// is skipped, not queued, even if the id was re-registered in between.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	log  *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]registered
	running map[string]*atomic.Bool
}

type registered struct {
	id   cron.EntryID
	spec string
}

// New creates a scheduler evaluating schedules in loc.
func New(loc *time.Location, log *logger.Logger) *Scheduler {
	log = log.WithComponent("scheduler")
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		loc:     loc,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]registered),
		running: make(map[string]*atomic.Bool),
	}
}

// Register adds job under id, replacing any job already registered with
// that id. The job is not run at registration time.
func (s *Scheduler) Register(id, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// one guard per id, shared with any entry this one replaces
	running, ok := s.running[id]
	if !ok {
		running = new(atomic.Bool)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		if !running.CompareAndSwap(false, true) {
			s.log.Info().Str("job_id", id).Msg("previous run still in progress, skipping")
			return
		}
		defer running.Store(false)

		s.log.Debug().Str("job_id", id).Msg("trigger fired")
		if err := job.Run(s.ctx); err != nil {
			s.log.Debug().Err(err).Str("job_id", id).Msg("scheduled run returned an error")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, id, err)
	}

	if prev, ok := s.entries[id]; ok {
		s.cron.Remove(prev.id)
		s.log.Info().Str("job_id", id).Msg("replaced existing job")
	}
	s.entries[id] = registered{id: entryID, spec: spec}
	s.running[id] = running

	s.log.Info().
		Str("job_id", id).
		Str("spec", spec).
		Str("location", s.loc.String()).
		Msg("job registered")
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.Entries() {
		s.log.Info().Str("job_id", e.ID).Time("next_run", e.Next).Msg("next run scheduled")
	}
}

// Stop stops scheduling and waits for running jobs until ctx is done. Jobs
// still running when ctx expires are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Entries returns the registered jobs.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for id, r := range s.entries {
		ce := s.cron.Entry(r.id)
		out = append(out, Entry{
			ID:   id,
			Spec: r.spec,
			Next: s.next(ce),
			Prev: ce.Prev,
		})
	}
	return out
}

// Next returns the next fire time of job id.
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return s.next(s.cron.Entry(r.id)), true
}

// next is zero until the cron loop starts, so compute it from the schedule.
func (s *Scheduler) next(e cron.Entry) time.Time {
	if !e.Next.IsZero() {
		return e.Next
	}
	if e.Schedule == nil {
		return time.Time{}
	}
	return e.Schedule.Next(time.Now().In(s.loc))
}

// cronLogger routes cron's logs through zerolog.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

var _ cron.Logger = cronLogger{}
