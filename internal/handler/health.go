package handler

import (
	"net/http"
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Job      JobReport         `json:"job"`
	Services map[string]string `json:"services,omitempty"`
}

// JobReport describes the scheduled job
type JobReport struct {
	ID         string     `json:"id"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastResult string     `json:"last_result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	MessageID  string     `json:"message_id,omitempty"`
	Runs       int        `json:"runs"`
	Failures   int        `json:"failures"`
}

// Health returns the health status of the service. A failed last run is
// reported but does not make the service unhealthy; an unreachable
// dependency does.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	services := make(map[string]string, len(h.checks))
	status := "healthy"
	for name, c := range h.checks {
		if err := c.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("service", name).Msg("health check failed")
			services[name] = "unhealthy"
			status = "degraded"
			continue
		}
		services[name] = "healthy"
	}

	report := JobReport{ID: h.jobID}
	if h.schedule != nil {
		if next, ok := h.schedule.Next(h.jobID); ok && !next.IsZero() {
			report.NextRun = &next
		}
	}
	if h.job != nil {
		st := h.job.Status()
		report.Runs = st.Runs
		report.Failures = st.Failures
		if st.Runs > 0 {
			finished := st.FinishedAt
			report.LastRun = &finished
			report.MessageID = st.MessageID
			report.LastError = st.Error
			report.LastResult = "success"
			if st.Error != "" {
				report.LastResult = "failure"
			}
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthResponse{
		Status:   status,
		Version:  h.version,
		Job:      report,
		Services: services,
	})
}

// Ready returns 200 once the scheduler is running and dependencies answer
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready() {
		http.Error(w, "scheduler not started", http.StatusServiceUnavailable)
		return
	}

	for name, c := range h.checks {
		if err := c.HealthCheck(r.Context()); err != nil {
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
