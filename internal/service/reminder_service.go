package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/booking-reminders/internal/models"
	"github.com/noah-isme/booking-reminders/internal/repository"
	"github.com/noah-isme/booking-reminders/pkg/config"
	appErrors "github.com/noah-isme/booking-reminders/pkg/errors"
	"github.com/noah-isme/booking-reminders/pkg/logger"
	"github.com/noah-isme/booking-reminders/pkg/timezone"
)

const sweepJobName = "booking-reminder-sweep"

type reminderStore interface {
	FetchCandidateBookings(ctx context.Context, now time.Time) ([]models.BookingWithHost, error)
	MarkReminderSent(ctx context.Context, bookingID string, clientSent, hostSent bool) error
}

// ReminderDispatcher sends the four reminder kinds. Each call is independent and may fail on its own.
type ReminderDispatcher interface {
	SendClientReminderEmail(ctx context.Context, item models.BookingWithHost) error
	SendHostReminderEmail(ctx context.Context, item models.BookingWithHost) error
	SendClientReminderSms(ctx context.Context, item models.BookingWithHost) error
	SendHostReminderSms(ctx context.Context, item models.BookingWithHost) error
}

type sweepLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type reminderEventPublisher interface {
	PublishReminderSent(ctx context.Context, event models.ReminderSentEvent) error
}

type dispatchFunc func(context.Context, models.BookingWithHost) error

// ReminderOption customises a ReminderService.
type ReminderOption func(*ReminderService)

// WithClock overrides the time source used to position the window.
func WithClock(now func() time.Time) ReminderOption {
	return func(s *ReminderService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocker enables the cross-replica sweep lock.
func WithLocker(locker sweepLocker) ReminderOption {
	return func(s *ReminderService) { s.locker = locker }
}

// WithEvents publishes an event after each booking's flags are persisted.
func WithEvents(events reminderEventPublisher) ReminderOption {
	return func(s *ReminderService) { s.events = events }
}

// WithMetrics records sweep and dispatch metrics.
func WithMetrics(metrics *MetricsService) ReminderOption {
	return func(s *ReminderService) { s.metrics = metrics }
}

// ReminderService runs the periodic reminder sweep.
type ReminderService struct {
	store      reminderStore
	dispatcher ReminderDispatcher
	logger     *zap.Logger
	cfg        config.RemindersConfig
	now        func() time.Time
	tracer     trace.Tracer

	locker  sweepLocker
	events  reminderEventPublisher
	metrics *MetricsService

	running atomic.Bool

	mu        sync.Mutex
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
	last      *models.SweepResult
}

// NewReminderService constructs the sweep engine.
func NewReminderService(store reminderStore, dispatcher ReminderDispatcher, logger *zap.Logger, cfg config.RemindersConfig, opts ...ReminderOption) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = timezone.DefaultZone
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}

	s := &ReminderService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		tracer:     otel.Tracer("github.com/noah-isme/booking-reminders/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep every Interval with one immediate run. It is a no-op when
// reminders are disabled or the scheduler already runs.
func (s *ReminderService) Start(ctx context.Context) error {
	if s.cfg.Disabled {
		s.logger.Info("reminder sweep disabled, not scheduling")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return nil
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLogger(logger.NewSchedulerLogger(s.logger)))
	if err != nil {
		return fmt.Errorf("create reminder scheduler: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	_, err = scheduler.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() { s.tick(runCtx) }),
		gocron.WithName(sweepJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule reminder sweep: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.cancel = cancel
	s.logger.Sugar().Infow("reminder sweep scheduled",
		"interval", s.cfg.Interval,
		"offset", s.cfg.Offset,
		"half_width", s.cfg.HalfWidth,
		"concurrency", s.cfg.Concurrency,
	)
	return nil
}

// Stop cancels in-flight sweeps and shuts the scheduler down, waiting at most until ctx ends.
func (s *ReminderService) Stop(ctx context.Context) error {
	s.mu.Lock()
	scheduler, cancel := s.scheduler, s.cancel
	s.scheduler, s.cancel = nil, nil
	s.mu.Unlock()

	if scheduler == nil {
		return nil
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- scheduler.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("shutdown reminder scheduler: %w", err)
		}
		s.logger.Info("reminder sweep stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown reminder scheduler: %w", ctx.Err())
	}
}

// Enabled reports whether sweeps are allowed by configuration.
func (s *ReminderService) Enabled() bool {
	return !s.cfg.Disabled
}

// Running reports whether a sweep is executing right now.
func (s *ReminderService) Running() bool {
	return s.running.Load()
}

// LastResult returns a copy of the most recent sweep result, or nil before the first sweep.
func (s *ReminderService) LastResult() *models.SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	clone := *s.last
	return &clone
}

func (s *ReminderService) tick(ctx context.Context) {
	if _, err := s.RunSweep(ctx); err != nil {
		if errors.Is(err, appErrors.ErrSweepInProgress) {
			s.logger.Debug("reminder sweep still running, skipping tick")
			return
		}
		s.logger.Sugar().Warnw("reminder sweep failed", "error", err)
	}
}

// RunSweep executes one tick. A concurrent call returns ErrSweepInProgress without
// touching the store or the dispatchers.
func (s *ReminderService) RunSweep(ctx context.Context) (*models.SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, appErrors.ErrSweepInProgress
	}
	defer s.running.Store(false)

	now := s.now().UTC()
	result := &models.SweepResult{
		StartedAt: now,
		Window:    models.NewReminderWindow(now, s.cfg.Offset, s.cfg.HalfWidth),
	}

	ctx, span := s.tracer.Start(ctx, "reminders.sweep", trace.WithAttributes(
		attribute.String("reminders.window_start", result.Window.Start.Format(time.RFC3339)),
		attribute.String("reminders.window_end", result.Window.End.Format(time.RFC3339)),
	))
	defer span.End()
	defer s.finish(result)

	if s.locker != nil {
		token, ok, err := s.locker.Acquire(ctx, repository.SweepLockKey, s.cfg.LockTTL)
		if err != nil {
			result.SkippedReason = models.ReasonLockUnavailable
			result.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, "sweep lock unavailable")
			return result, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			result.SkippedReason = models.ReasonLockHeld
			return result, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), repository.SweepLockKey, token); err != nil {
				s.logger.Sugar().Warnw("release sweep lock failed", "error", err)
			}
		}()
	}

	candidates, err := s.store.FetchCandidateBookings(ctx, now)
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch candidates failed")
		return result, fmt.Errorf("%s: %w", models.ReasonFetchFailed, err)
	}
	result.Candidates = len(candidates)
	span.SetAttributes(attribute.Int("reminders.candidates", len(candidates)))

	outcomes := make([]models.CandidateOutcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range candidates {
		g.Go(func() error {
			outcomes[i] = s.processCandidate(gctx, result.Window, candidates[i])
			return nil
		})
	}
	_ = g.Wait()

	result.Outcomes = outcomes
	return result, nil
}

func (s *ReminderService) finish(result *models.SweepResult) {
	result.FinishedAt = s.now().UTC()
	result.Tally()

	sugar := s.logger.Sugar()
	switch {
	case result.SkippedReason != "":
		sugar.Infow("reminder sweep skipped", "reason", result.SkippedReason, "error", result.Error)
	case result.Error != "":
		sugar.Warnw("reminder sweep aborted", "error", result.Error, "duration", result.Duration())
	default:
		sugar.Infow("reminder sweep completed",
			"candidates", result.Candidates,
			"dispatched", result.Dispatched,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"skip_reasons", result.SkipReasons,
			"duration", result.Duration(),
		)
	}

	s.metrics.ObserveSweep(result)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

func (s *ReminderService) processCandidate(ctx context.Context, window models.ReminderWindow, item models.BookingWithHost) models.CandidateOutcome {
	booking := item.Booking
	outcome := models.CandidateOutcome{BookingID: booking.ID}

	zone := timezone.ResolveTimezone(item.Host.Timezone, s.cfg.DefaultTimezone)
	startsAt, err := timezone.LocalToUTC(booking.Date, booking.StartTime, zone)
	if err != nil {
		s.logger.Sugar().Warnw("skipping booking with invalid start",
			"booking_id", booking.ID, "date", booking.Date, "start_time", booking.StartTime, "timezone", zone, "error", err)
		return skipped(outcome, models.ReasonInvalidStart)
	}
	outcome.StartsAt = &startsAt

	if !window.Contains(startsAt) {
		return skipped(outcome, models.ReasonOutsideWindow)
	}
	if booking.ClientReminderSent && booking.HostReminderSent {
		return skipped(outcome, models.ReasonAlreadySent)
	}

	clientDue := !booking.ClientReminderSent && models.HasValue(booking.ClientEmail)
	hostDue := !booking.HostReminderSent && models.HasValue(item.Host.Email)
	if !clientDue && !hostDue {
		return skipped(outcome, models.ReasonNoRecipient)
	}

	if clientDue {
		if err := s.dispatch(ctx, item, models.RecipientClient, models.ChannelEmail, s.dispatcher.SendClientReminderEmail); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		} else {
			outcome.ClientEmailSent = true
		}
	}
	if hostDue {
		if err := s.dispatch(ctx, item, models.RecipientHost, models.ChannelEmail, s.dispatcher.SendHostReminderEmail); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		} else {
			outcome.HostEmailSent = true
		}
	}

	if outcome.ClientEmailSent && models.HasValue(booking.ClientPhone) {
		outcome.ClientSMSSent = s.dispatchSMS(ctx, item, models.RecipientClient, s.dispatcher.SendClientReminderSms)
	}
	if outcome.HostEmailSent && models.HasValue(item.Host.SMSPhone) {
		outcome.HostSMSSent = s.dispatchSMS(ctx, item, models.RecipientHost, s.dispatcher.SendHostReminderSms)
	}

	if !outcome.ClientEmailSent && !outcome.HostEmailSent {
		outcome.Status = models.CandidateFailed
		outcome.Reason = models.ReasonDispatchFailed
		return outcome
	}

	clientSent := booking.ClientReminderSent || outcome.ClientEmailSent
	hostSent := booking.HostReminderSent || outcome.HostEmailSent
	if err := s.store.MarkReminderSent(ctx, booking.ID, clientSent, hostSent); err != nil {
		s.logger.Sugar().Errorw("persist reminder flags failed", "booking_id", booking.ID, "error", err)
		outcome.Status = models.CandidateFailed
		outcome.Reason = models.ReasonPersistFailed
		outcome.Errors = append(outcome.Errors, err.Error())
		return outcome
	}

	outcome.Status = models.CandidateDispatched
	s.publish(ctx, item, startsAt, outcome)
	return outcome
}

// dispatch runs one dispatcher call bounded by DispatchTimeout. A dispatcher that
// ignores its context is abandoned once the deadline passes.
func (s *ReminderService) dispatch(ctx context.Context, item models.BookingWithHost, recipient models.ReminderRecipient, channel models.ReminderChannel, send dispatchFunc) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	callCtx, span := s.tracer.Start(callCtx, "reminders.dispatch", trace.WithAttributes(
		attribute.String("booking.id", item.Booking.ID),
		attribute.String("reminders.recipient", string(recipient)),
		attribute.String("reminders.channel", string(channel)),
	))
	defer span.End()

	done := make(chan error, 1)
	go func() { done <- send(callCtx, item) }()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = callCtx.Err()
	}

	if errors.Is(err, ErrSMSNotEligible) {
		return err
	}
	s.metrics.ObserveDispatch(recipient, channel, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		s.logger.Sugar().Warnw("reminder dispatch failed",
			"booking_id", item.Booking.ID, "recipient", recipient, "channel", channel, "error", err)
		return fmt.Errorf("%s %s: %w", recipient, channel, err)
	}
	return nil
}

func (s *ReminderService) dispatchSMS(ctx context.Context, item models.BookingWithHost, recipient models.ReminderRecipient, send dispatchFunc) bool {
	err := s.dispatch(ctx, item, recipient, models.ChannelSMS, send)
	if errors.Is(err, ErrSMSNotEligible) {
		s.logger.Sugar().Debugw("sms reminder not eligible", "booking_id", item.Booking.ID, "recipient", recipient)
		return false
	}
	return err == nil
}

func (s *ReminderService) publish(ctx context.Context, item models.BookingWithHost, startsAt time.Time, outcome models.CandidateOutcome) {
	if s.events == nil {
		return
	}
	event := models.ReminderSentEvent{
		BookingID: item.Booking.ID,
		HostID:    item.Host.ID,
		StartsAt:  startsAt,
		SentAt:    s.now().UTC(),
	}
	if outcome.ClientEmailSent {
		event.Recipients = append(event.Recipients, string(models.RecipientClient))
	}
	if outcome.HostEmailSent {
		event.Recipients = append(event.Recipients, string(models.RecipientHost))
	}
	event.Channels = append(event.Channels, string(models.ChannelEmail))
	if outcome.ClientSMSSent || outcome.HostSMSSent {
		event.Channels = append(event.Channels, string(models.ChannelSMS))
	}

	if err := s.events.PublishReminderSent(ctx, event); err != nil {
		s.logger.Sugar().Warnw("reminder event not published", "booking_id", item.Booking.ID, "error", err)
	}
}

func skipped(outcome models.CandidateOutcome, reason string) models.CandidateOutcome {
	outcome.Status = models.CandidateSkipped
	outcome.Reason = reason
	return outcome
}
