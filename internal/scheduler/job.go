package scheduler

import (
	"context"
	"time"
)

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 0 6 * * *" (every day at 6 AM)
	//           "@every 10m", "@hourly"
	Schedule() string
}

// JobResult outcome of one run, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory results kept per job
const maxHistory = 100

// JobHistory recent results of one job (guarded by the scheduler's lock).
// LastSuccess/LastFailure survive trimming of Results.
type JobHistory struct {
	Results     []JobResult `json:"results"`
	LastSuccess *time.Time  `json:"last_success,omitempty"`
	LastFailure *time.Time  `json:"last_failure,omitempty"`
}

// AddResult appends a result, dropping the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if n := len(h.Results); n > maxHistory {
		h.Results = h.Results[n-maxHistory:]
	}

	started := result.StartTime
	if result.Success {
		h.LastSuccess = &started
	} else {
		h.LastFailure = &started
	}
}

// Latest returns up to n most recent results, oldest first
func (h *JobHistory) Latest(n int) []JobResult {
	n = min(n, len(h.Results))
	if n <= 0 {
		return nil
	}
	return h.Results[len(h.Results)-n:]
}

// Failures counts failed runs in the retained window
func (h *JobHistory) Failures() int {
	failed := 0
	for _, r := range h.Results {
		if !r.Success {
			failed++
		}
	}
	return failed
}

// SuccessRate over the retained window (0.0 - 1.0)
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0
	}
	return float64(len(h.Results)-h.Failures()) / float64(len(h.Results))
}

// snapshot deep-copies the history for callers outside the lock
func (h *JobHistory) snapshot() *JobHistory {
	cp := &JobHistory{Results: append([]JobResult(nil), h.Results...)}
	if h.LastSuccess != nil {
		t := *h.LastSuccess
		cp.LastSuccess = &t
	}
	if h.LastFailure != nil {
		t := *h.LastFailure
		cp.LastFailure = &t
	}
	return cp
}
