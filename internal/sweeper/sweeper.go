// Package sweeper reconciles lapsed subscriptions on a fixed interval.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/subgate/subgate/internal/store"
)

const expiredText = "🔔 Your subscription has expired. Renew to regain access to the channel."

// Evictor removes a principal from the group (ban then unban).
type Evictor interface {
	EvictPrincipal(ctx context.Context, principalID int64) error
}

// Notifier sends outbound text to a principal.
type Notifier interface {
	SendText(ctx context.Context, principalID int64, text string) error
}

type Sweeper struct {
	store    *store.Store
	group    Evictor
	notifier Notifier
	interval time.Duration
}

func New(st *store.Store, group Evictor, notifier Notifier, interval time.Duration) *Sweeper {
	return &Sweeper{store: st, group: group, notifier: notifier, interval: interval}
}

// Run sweeps immediately, then on the configured interval until the context
// is cancelled. The startup sweep catches subscriptions that lapsed while the
// process was down. A sweep that fails partway leaves remaining rows for the
// next interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx, time.Now().UTC())
		case <-ctx.Done():
			return
		}
	}
}

// Sweep expires every active subscription whose end time is before now. The
// status transition is written before the eviction side effect, so a crash
// mid-sweep never leaves a subscription logically active past its end time.
// Eviction and notification failures are logged and swallowed, not retried:
// the next run finds the row already expired.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	subs, err := s.store.OverdueSubscriptions(now)
	if err != nil {
		slog.Error("sweep query failed", "action", "sweep", "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]

		expired, err := s.store.ExpireSubscription(sub.ID)
		if err != nil {
			slog.Error("subscription expiry write failed", "subscription_id", sub.ID, "action", "expire", "error", err)
			continue
		}
		if !expired {
			// Another writer already transitioned the row.
			continue
		}
		slog.Info("subscription expired", "subscription_id", sub.ID, "principal_id", sub.User.PrincipalID)

		if err := s.group.EvictPrincipal(ctx, sub.User.PrincipalID); err != nil {
			slog.Error("expiry eviction failed", "principal_id", sub.User.PrincipalID, "action", "evict", "error", err)
			sentry.CaptureException(err)
		}
		if err := s.notifier.SendText(ctx, sub.User.PrincipalID, expiredText); err != nil {
			slog.Error("expiry notification failed", "principal_id", sub.User.PrincipalID, "action", "notify", "error", err)
			sentry.CaptureException(err)
		}
	}
}
