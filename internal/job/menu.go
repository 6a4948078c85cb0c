package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weeklymenu/weeklymenu/internal/database"
	"github.com/weeklymenu/weeklymenu/internal/email"
	"github.com/weeklymenu/weeklymenu/internal/logger"
	"github.com/weeklymenu/weeklymenu/internal/model"
)

// ID identifies the weekly menu job in the scheduler and in logs.
const ID = "weekly_menu_email"

// ErrRunInProgress is returned when another run holds the job lock.
var ErrRunInProgress = errors.New("weekly menu run already in progress")

// Generator produces a menu.
type Generator interface {
	Generate(ctx context.Context) (*model.Menu, error)
}

// Mailer delivers a composed email and returns its message ID.
type Mailer interface {
	Send(ctx context.Context, subject, text, html string) (string, error)
}

// Status is the outcome of the most recent run.
type Status struct {
	RunID      string    `json:"run_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Runs       int       `json:"runs"`
	Failures   int       `json:"failures"`
}

// MenuJob runs generate, compose and send once per invocation.
type MenuJob struct {
	generator Generator
	mailer    Mailer
	locker    database.Locker
	lockTTL   time.Duration
	log       *logger.Logger

	mu     sync.RWMutex
	status Status
}

// Option configures a MenuJob.
type Option func(*MenuJob)

// WithLocker guards runs with l, holding the lock for at most ttl. A zero
// ttl keeps the default.
func WithLocker(l database.Locker, ttl time.Duration) Option {
	return func(j *MenuJob) {
		j.locker = l
		if ttl > 0 {
			j.lockTTL = ttl
		}
	}
}

// NewMenuJob creates a new MenuJob.
func NewMenuJob(generator Generator, mailer Mailer, log *logger.Logger, opts ...Option) *MenuJob {
	j := &MenuJob{
		generator: generator,
		mailer:    mailer,
		log:       log.WithComponent("job"),
		lockTTL:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes one end-to-end run. Any stage error is returned unchanged and
// no email is sent when generation fails.
func (j *MenuJob) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := j.log.WithRunID(runID)
	start := time.Now()

	if j.locker != nil {
		token, ok, err := j.locker.TryLock(ctx, LockKey, j.lockTTL)
		if err != nil {
			log.Error().Err(err).Msg("failed to acquire run lock")
			return err
		}
		if !ok {
			log.Warn().Msg("another run holds the lock, skipping")
			return ErrRunInProgress
		}
		defer func() {
			// release even when ctx was cancelled mid-run
			if err := j.locker.Unlock(context.WithoutCancel(ctx), LockKey, token); err != nil {
				log.Warn().Err(err).Msg("failed to release run lock")
			}
		}()
	}

	log.Info().Str("job_id", ID).Msg("weekly menu run started")

	id, err := j.run(ctx)
	j.record(runID, start, id, err)
	if id != "" {
		log = &logger.Logger{Logger: log.With().Str("message_id", id).Logger()}
	}
	log.JobFinished(ID, time.Since(start), err)
	return err
}

// LockKey is the key runs hold while they execute.
const LockKey = "weeklymenu:lock:" + ID

func (j *MenuJob) run(ctx context.Context) (string, error) {
	menu, err := j.generator.Generate(ctx)
	if err != nil {
		return "", err
	}
	menu.Truncate()

	subject := email.MenuSubject(menu.Dishes)
	text := email.MenuEmailText(menu.Dishes)
	html := email.MenuEmailHTML(menu.Dishes)

	return j.mailer.Send(ctx, subject, text, html)
}

func (j *MenuJob) record(runID string, start time.Time, messageID string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status.RunID = runID
	j.status.StartedAt = start
	j.status.FinishedAt = time.Now()
	j.status.MessageID = messageID
	j.status.Error = ""
	j.status.Runs++
	if err != nil {
		j.status.Error = err.Error()
		j.status.Failures++
	}
}

// Status returns the outcome of the last completed run.
func (j *MenuJob) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}
