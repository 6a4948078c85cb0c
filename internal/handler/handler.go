package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/weeklymenu/weeklymenu/internal/job"
	"github.com/weeklymenu/weeklymenu/internal/logger"
)

// Checker is a dependency that can report its health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// JobStatus reports the outcome of the last run.
type JobStatus interface {
	Status() job.Status
}

// Schedule reports when a job runs next and whether scheduling has started.
type Schedule interface {
	Next(id string) (time.Time, bool)
}

// Handler holds all HTTP handlers
type Handler struct {
	log      *logger.Logger
	version  string
	jobID    string
	job      JobStatus
	schedule Schedule
	checks   map[string]Checker
	ready    func() bool
}

// Config wires the handler to the running daemon.
type Config struct {
	Version  string
	JobID    string
	Job      JobStatus
	Schedule Schedule
	// Checks are optional dependencies reported under "services"
	Checks map[string]Checker
	// Ready reports whether the scheduler has started
	Ready func() bool
}

// New creates a new Handler instance
func New(log *logger.Logger, cfg Config) *Handler {
	ready := cfg.Ready
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{
		log:      log.WithComponent("handler"),
		version:  cfg.Version,
		jobID:    cfg.JobID,
		job:      cfg.Job,
		schedule: cfg.Schedule,
		checks:   cfg.Checks,
		ready:    ready,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
