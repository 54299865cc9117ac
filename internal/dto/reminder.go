package dto

import (
	"time"

	"github.com/noah-isme/booking-reminders/internal/models"
)

// ReminderScheduleInfo echoes the effective sweep configuration.
type ReminderScheduleInfo struct {
	Offset          string `json:"offset"`
	WindowHalfWidth string `json:"windowHalfWidth"`
	Interval        string `json:"interval"`
	Concurrency     int    `json:"concurrency"`
	DefaultTimezone string `json:"defaultTimezone"`
}

// ReminderStatusResponse is returned by GET /internal/reminders/status.
type ReminderStatusResponse struct {
	Enabled   bool                           `json:"enabled"`
	Running   bool                           `json:"running"`
	Schedule  ReminderScheduleInfo           `json:"schedule"`
	LastSweep *models.SweepResult            `json:"lastSweep,omitempty"`
	Metrics   models.ReminderMetricsSnapshot `json:"metrics"`
}

// SweepTriggerResponse is returned by POST /internal/reminders/sweep.
type SweepTriggerResponse struct {
	Sweep      *models.SweepResult       `json:"sweep"`
	Outcomes   []models.CandidateOutcome `json:"outcomes"`
	DurationMs int64                     `json:"durationMs"`
}

// NewSweepTriggerResponse flattens a sweep result for the trigger endpoint.
func NewSweepTriggerResponse(result *models.SweepResult) SweepTriggerResponse {
	resp := SweepTriggerResponse{Sweep: result, Outcomes: []models.CandidateOutcome{}}
	if result == nil {
		return resp
	}
	if len(result.Outcomes) > 0 {
		resp.Outcomes = result.Outcomes
	}
	resp.DurationMs = result.Duration().Milliseconds()
	return resp
}

// HealthResponse is returned by the liveness and readiness probes.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	CheckedAt time.Time         `json:"checkedAt"`
}
