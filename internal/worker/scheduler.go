// Package worker schedules the recurring password-expiry sweep.
package worker

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/notify"
)

// Scheduler runs the expiry sweep once a day at a fixed local time, and on
// demand via Trigger.
type Scheduler struct {
	engine  *notify.Engine
	hour    int
	minute  int
	log     *zap.Logger
	trigger chan struct{}
}

// NewScheduler builds a scheduler firing daily at hour:minute.
func NewScheduler(engine *notify.Engine, hour, minute int, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		engine:  engine,
		hour:    hour,
		minute:  minute,
		log:     log.Named("worker"),
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate sweep. Non-blocking; a pending request is
// coalesced with any already queued.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, firing the sweep at each scheduled
// time and on each Trigger call.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Int("hour", s.hour), zap.Int("minute", s.minute))
	for {
		next := s.nextRun(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("scheduler stopped")
			return
		case <-timer.C:
			s.sweep(ctx, "scheduled")
		case <-s.trigger:
			timer.Stop()
			s.sweep(ctx, "on-demand")
		}
	}
}

// nextRun returns the next hour:minute occurrence strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// sweep runs one sweep, recovering from panics so a bad sweep cannot take
// the scheduler down.
func (s *Scheduler) sweep(ctx context.Context, reason string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sweep panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	s.log.Info("starting expiry sweep", zap.String("reason", reason))
	result, err := s.engine.Run(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return
	}
	s.log.Info("expiry sweep finished",
		zap.String("reason", reason),
		zap.Int("scanned", result.UsersScanned),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))
}
