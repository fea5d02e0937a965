// Package gate decides admit-or-evict for every principal joining the watched
// group. The group backend only guarantees that one successful join consumes
// a single-use link; the gatekeeper independently verifies that the joiner is
// the principal the link was issued to.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/subgate/subgate/internal/models"
	"github.com/subgate/subgate/internal/store"
)

const welcomeText = "🎉 Access granted! Welcome to the channel."

// Evictor removes a principal from the group (ban immediately followed by
// unban, leaving them free to rejoin with a valid invite later).
type Evictor interface {
	EvictPrincipal(ctx context.Context, principalID int64) error
}

// Notifier sends outbound text to a principal.
type Notifier interface {
	SendText(ctx context.Context, principalID int64, text string) error
}

type Gatekeeper struct {
	store    *store.Store
	group    Evictor
	notifier Notifier
	groupID  int64
}

func New(st *store.Store, group Evictor, notifier Notifier, groupID int64) *Gatekeeper {
	return &Gatekeeper{store: st, group: group, notifier: notifier, groupID: groupID}
}

// HandleChatMember processes one membership-change event. Events arrive
// sequentially from the worker loop in backend delivery order; whichever join
// is processed first for a pending invite decides the owner check. The method
// never returns an error: failures are logged and swallowed so one bad event
// cannot stall the loop.
//
// inviteLink is the token the backend reports for the join, empty when the
// backend omitted it.
func (g *Gatekeeper) HandleChatMember(ctx context.Context, groupID, principalID int64, inviteLink, newStatus string) {
	if groupID != g.groupID || newStatus != "member" {
		return
	}

	user, err := g.store.UserByPrincipal(principalID)
	if err != nil {
		// Fail closed: without a readable record there is no proof of a
		// pending invite.
		slog.Error("gatekeeper user lookup failed", "principal_id", principalID, "action", "join", "error", err)
		g.evict(ctx, principalID)
		return
	}
	if user == nil {
		slog.Warn("join without user record", "principal_id", principalID)
		g.evict(ctx, principalID)
		return
	}

	inv, owner := g.resolveInvite(user, inviteLink)
	if inv == nil {
		// Covers joins with no invite at all and joins against an
		// already-used or expired token.
		slog.Warn("join without pending invite", "principal_id", principalID)
		g.evict(ctx, principalID)
		return
	}

	if owner.PrincipalID != principalID {
		// The link belongs to someone else: an observed hijack attempt. The
		// invite stays pending and unused so the rightful owner can still
		// redeem it before it expires.
		slog.Warn("join by non-owner of invite", "principal_id", principalID, "owner", owner.PrincipalID)
		g.evict(ctx, principalID)
		return
	}

	redeemed, err := g.store.RedeemInvite(inv.ID, principalID)
	if err != nil {
		slog.Error("invite redemption failed", "principal_id", principalID, "action", "redeem", "error", err)
		g.evict(ctx, principalID)
		return
	}
	if !redeemed {
		// Resolved by an earlier event; treat as a fresh unexpected join.
		slog.Warn("join against already-used invite", "principal_id", principalID)
		g.evict(ctx, principalID)
		return
	}

	if err := g.notifier.SendText(ctx, principalID, welcomeText); err != nil {
		slog.Error("welcome notification failed", "principal_id", principalID, "action", "notify", "error", err)
		sentry.CaptureException(err)
	}
	slog.Info("invite redeemed", "principal_id", principalID, "invite_id", inv.ID)
}

// resolveInvite finds the pending invite governing this join and its owner.
// When the event carries the link token the invite is resolved by token;
// otherwise it falls back to the joiner's own pending invite. Lookup errors
// and dangling user references both resolve to nil (fail closed).
func (g *Gatekeeper) resolveInvite(joiner *models.User, inviteLink string) (*models.Invite, *models.User) {
	now := time.Now().UTC()

	if inviteLink != "" {
		inv, err := g.store.PendingInviteByLink(inviteLink, now)
		if err != nil {
			slog.Error("gatekeeper invite lookup failed", "action", "join", "error", err)
			return nil, nil
		}
		if inv == nil {
			return nil, nil
		}
		if inv.User.ID == uuid.Nil {
			slog.Error("invite references missing user", "invite_id", inv.ID, "action", "join")
			return nil, nil
		}
		owner := inv.User
		return inv, &owner
	}

	inv, err := g.store.PendingInvite(joiner.ID, now)
	if err != nil {
		slog.Error("gatekeeper invite lookup failed", "principal_id", joiner.PrincipalID, "action", "join", "error", err)
		return nil, nil
	}
	if inv == nil {
		return nil, nil
	}
	return inv, joiner
}

// evict is best effort: a backend failure is logged and captured, never
// propagated, so the event loop keeps processing subsequent events.
func (g *Gatekeeper) evict(ctx context.Context, principalID int64) {
	if err := g.group.EvictPrincipal(ctx, principalID); err != nil {
		slog.Error("eviction failed", "principal_id", principalID, "action", "evict", "error", err)
		sentry.CaptureException(err)
		return
	}
	slog.Info("principal evicted", "principal_id", principalID)
}
