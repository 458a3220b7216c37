package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/isometry/admanager/internal/directory"
	"github.com/isometry/admanager/internal/store"
)

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	UsersScanned int
	Matched      int
	Sent         int
	Failed       int
	Skipped      int
}

// Engine runs the password-expiry warning sweep. A user is warned when
// the whole number of days until their password expires equals one of the
// configured thresholds exactly; a user who was offline on a threshold day
// is not warned late, the next smaller threshold catches them.
type Engine struct {
	users         *directory.Users
	policy        *directory.Policy
	notifications *store.NotificationStore
	mailer        *Mailer
	log           *zap.Logger
	now           func() time.Time
}

// NewEngine wires the sweep.
func NewEngine(users *directory.Users, policy *directory.Policy, notifications *store.NotificationStore, mailer *Mailer, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		users:         users,
		policy:        policy,
		notifications: notifications,
		mailer:        mailer,
		log:           log.Named("notify"),
		now:           time.Now,
	}
}

// Run executes one sweep. Delivery failures are recorded per user and the
// sweep continues; only errors that prevent the sweep itself (config,
// directory, policy lookups) are returned.
func (e *Engine) Run(ctx context.Context) (*SweepResult, error) {
	cfg, err := e.notifications.Config(ctx)
	if err != nil {
		return nil, err
	}
	result := &SweepResult{}
	if !cfg.Enabled {
		e.log.Info("expiry notifications disabled, skipping sweep")
		return result, nil
	}
	thresholds := cfg.Thresholds()
	if len(thresholds) == 0 {
		e.log.Warn("no warning thresholds configured, skipping sweep")
		return result, nil
	}

	pwdPolicy, err := e.policy.MaxPasswordAge(ctx)
	if err != nil {
		// The policy service already fell back to its default; log and
		// keep sweeping rather than silently warning nobody.
		e.log.Warn("using fallback max password age", zap.Error(err))
	}
	maxAge := time.Duration(pwdPolicy.MaxPasswordAgeDays) * 24 * time.Hour

	users, err := e.users.List(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, user := range users {
		result.UsersScanned++
		days, ok := e.daysRemaining(user, maxAge, now)
		if !ok {
			continue
		}
		threshold, ok := matchThreshold(days, thresholds)
		if !ok {
			continue
		}
		result.Matched++
		e.warn(ctx, user, threshold, maxAge, result)
	}

	e.log.Info("expiry sweep complete",
		zap.Int("scanned", result.UsersScanned),
		zap.Int("matched", result.Matched),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// daysRemaining computes whole days until the user's password expires.
// Users whose password never expires, is unset, or has already expired
// are not candidates.
func (e *Engine) daysRemaining(user *directory.User, maxAge time.Duration, now time.Time) (int, bool) {
	if !user.Enabled || user.PasswordNeverExpires || user.PasswordLastSet.IsZero() {
		return 0, false
	}
	expiresAt := user.PasswordLastSet.Add(maxAge)
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0, false
	}
	return int(remaining.Hours() / 24), true
}

// matchThreshold returns the threshold equal to days, if any. The match is
// exact: 31 days out triggers nothing even when 30 is configured.
func matchThreshold(days int, thresholds []int) (int, bool) {
	for _, t := range thresholds {
		if days == t {
			return t, true
		}
	}
	return 0, false
}

func (e *Engine) warn(ctx context.Context, user *directory.User, threshold int, maxAge time.Duration, result *SweepResult) {
	if user.Mail == "" {
		result.Skipped++
		e.log.Warn("user has no mail address, skipping expiry warning",
			zap.String("dn", user.DN), zap.Int("threshold_days", threshold))
		return
	}

	// Sweeps may run more than once a day; the delivery log keeps a
	// threshold from firing twice for the same user on the same day.
	already, err := e.notifications.SentToday(ctx, user.DN, store.TemplatePasswordExpiry, threshold)
	if err != nil {
		e.log.Error("delivery log lookup failed", zap.String("dn", user.DN), zap.Error(err))
		result.Failed++
		return
	}
	if already {
		result.Skipped++
		return
	}

	expiresAt := user.PasswordLastSet.Add(maxAge)
	sendErr := e.mailer.SendTemplate(ctx, store.TemplatePasswordExpiry, user.Mail, TemplateData{
		Username:      user.SAMAccountName,
		DisplayName:   user.DisplayName,
		DaysRemaining: threshold,
		ExpiresAt:     FormatExpiry(expiresAt),
	})

	record := &store.SentNotification{
		UserDN:        user.DN,
		Email:         user.Mail,
		Template:      store.TemplatePasswordExpiry,
		ThresholdDays: threshold,
		Success:       sendErr == nil,
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
		result.Failed++
		e.log.Error("expiry warning delivery failed",
			zap.String("dn", user.DN),
			zap.String("email", user.Mail),
			zap.Int("threshold_days", threshold),
			zap.Error(sendErr))
	} else {
		result.Sent++
	}
	if err := e.notifications.RecordSent(ctx, record); err != nil {
		e.log.Error("recording delivery attempt failed", zap.String("dn", user.DN), zap.Error(err))
	}
}
