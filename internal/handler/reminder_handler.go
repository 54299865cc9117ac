package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/booking-reminders/internal/dto"
	"github.com/noah-isme/booking-reminders/internal/middleware"
	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/pkg/config"
	appErrors "github.com/noah-isme/booking-reminders/pkg/errors"
	"github.com/noah-isme/booking-reminders/pkg/response"
)

// ReminderSweeper defines the subset of the reminder service used by the handler.
type ReminderSweeper interface {
	RunSweep(ctx context.Context) (*models.SweepResult, error)
	Enabled() bool
	Running() bool
	LastResult() *models.SweepResult
}

// MetricsSnapshotter provides aggregated counters for the status payload.
type MetricsSnapshotter interface {
	Snapshot() models.ReminderMetricsSnapshot
}

// ReminderHandler exposes operator endpoints for the reminder sweep.
type ReminderHandler struct {
	sweeper ReminderSweeper
	metrics MetricsSnapshotter
	cfg     config.RemindersConfig
	logger  *zap.Logger
}

// NewReminderHandler constructs a ReminderHandler.
func NewReminderHandler(sweeper ReminderSweeper, metrics MetricsSnapshotter, cfg config.RemindersConfig, logger *zap.Logger) *ReminderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{sweeper: sweeper, metrics: metrics, cfg: cfg, logger: logger}
}

// Status godoc
// @Summary Reminder sweep status
// @Description Reports whether the sweep is enabled or running, the last sweep result and lifetime counters
// @Tags Reminders
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /internal/reminders/status [get]
func (h *ReminderHandler) Status(c *gin.Context) {
	resp := dto.ReminderStatusResponse{
		Enabled: h.sweeper.Enabled(),
		Running: h.sweeper.Running(),
		Schedule: dto.ReminderScheduleInfo{
			Offset:          h.cfg.Offset.String(),
			WindowHalfWidth: h.cfg.HalfWidth.String(),
			Interval:        h.cfg.Interval.String(),
			Concurrency:     h.cfg.Concurrency,
			DefaultTimezone: h.cfg.DefaultTimezone,
		},
		LastSweep: h.sweeper.LastResult(),
	}
	if h.metrics != nil {
		resp.Metrics = h.metrics.Snapshot()
	}
	response.JSON(c, http.StatusOK, resp)
}

// Trigger godoc
// @Summary Run a reminder sweep now
// @Description Runs one sweep synchronously and returns per-booking outcomes
// @Tags Reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /internal/reminders/sweep [post]
func (h *ReminderHandler) Trigger(c *gin.Context) {
	if !h.sweeper.Enabled() {
		response.Error(c, appErrors.ErrRemindersStopped)
		return
	}

	actor := ""
	if claims := middleware.ClaimsFromContext(c); claims != nil {
		actor = claims.UserID
	}

	// The sweep persists flags after dispatching, so it must outlive a dropped client.
	result, err := h.sweeper.RunSweep(context.WithoutCancel(c.Request.Context()))
	if err != nil && result == nil {
		response.Error(c, err)
		return
	}
	if err != nil {
		h.logger.Sugar().Warnw("manual reminder sweep failed", "actor", actor, "error", err)
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "reminder sweep failed"))
		return
	}

	h.logger.Sugar().Infow("manual reminder sweep", "actor", actor, "dispatched", result.Dispatched, "failed", result.Failed)
	response.JSON(c, http.StatusOK, dto.NewSweepTriggerResponse(result))
}
