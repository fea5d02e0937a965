// Package bot maps inbound commands onto the subscription and invite
// services. Commands and membership events are handled by a single worker,
// in delivery order.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/subgate/subgate/internal/models"
	"github.com/subgate/subgate/internal/services"
	"github.com/subgate/subgate/internal/store"
)

const (
	usageText = "👋 Welcome!\n" +
		"This bot manages subscription access to the premium channel.\n\n" +
		"Commands:\n" +
		"• /status – check your subscription\n" +
		"• /enter – get a single-use invite (temporary)"

	statusNoneText = "ℹ️ You don't have an active subscription yet.\nUse /enter to request access."

	statusExpiredText = "⚠️ Your subscription is *expired*.\nUse /enter after renewing."

	issueFailedText = "⚠️ Could not create your invite right now. Please try again in a few minutes."

	inviteTextFmt = "🔐 Your invite (single use, expires in %d min):\n%s\n\n" +
		"⚠️ Do not share it. If someone else uses it before you, they will be removed."
)

// Notifier sends outbound text to a principal.
type Notifier interface {
	SendText(ctx context.Context, principalID int64, text string) error
}

type Bot struct {
	store          *store.Store
	subscriptions  *services.SubscriptionService
	invites        *services.InviteService
	notifier       Notifier
	inviteValidity time.Duration
	grantDays      int
}

func New(st *store.Store, subs *services.SubscriptionService, invites *services.InviteService, notifier Notifier, inviteValidity time.Duration, grantDays int) *Bot {
	return &Bot{
		store:          st,
		subscriptions:  subs,
		invites:        invites,
		notifier:       notifier,
		inviteValidity: inviteValidity,
		grantDays:      grantDays,
	}
}

// HandleCommand routes one inbound command. Unknown commands are ignored.
// Failures are logged and swallowed so the worker loop keeps going.
func (b *Bot) HandleCommand(ctx context.Context, principalID int64, displayName, command string) {
	switch command {
	case "start":
		b.handleStart(ctx, principalID, displayName)
	case "status":
		b.handleStatus(ctx, principalID)
	case "enter", "join":
		b.handleEnter(ctx, principalID, displayName)
	}
}

func (b *Bot) handleStart(ctx context.Context, principalID int64, displayName string) {
	if _, err := b.store.EnsureUser(principalID, displayName); err != nil {
		slog.Error("user creation failed", "principal_id", principalID, "action", "start", "error", err)
		return
	}
	b.send(ctx, principalID, usageText)
}

func (b *Bot) handleStatus(ctx context.Context, principalID int64) {
	user, err := b.store.UserByPrincipal(principalID)
	if err != nil {
		slog.Error("user lookup failed", "principal_id", principalID, "action", "status", "error", err)
		return
	}
	if user == nil {
		b.send(ctx, principalID, statusNoneText)
		return
	}

	active, err := b.subscriptions.Active(user)
	if err != nil {
		slog.Error("subscription lookup failed", "principal_id", principalID, "action", "status", "error", err)
		return
	}
	if active != nil {
		text := fmt.Sprintf("✅ Subscription *active*\nExpires: %s", active.EndAt.UTC().Format("02/01/2006 15:04"))
		b.send(ctx, principalID, text)
		return
	}

	latest, err := b.store.LatestSubscription(user.ID)
	if err != nil {
		slog.Error("subscription lookup failed", "principal_id", principalID, "action", "status", "error", err)
		return
	}
	if latest != nil {
		b.send(ctx, principalID, statusExpiredText)
		return
	}
	b.send(ctx, principalID, statusNoneText)
}

// handleEnter runs the access-request flow: reuse a pending invite verbatim,
// otherwise make sure a subscription is active and mint a fresh single-use
// link. Activation is currently an unconditional short grant; a
// payment-confirmed path replaces only this policy.
func (b *Bot) handleEnter(ctx context.Context, principalID int64, displayName string) {
	user, err := b.store.EnsureUser(principalID, displayName)
	if err != nil {
		slog.Error("user creation failed", "principal_id", principalID, "action", "enter", "error", err)
		return
	}

	pending, err := b.invites.Pending(user)
	if err != nil {
		slog.Error("pending invite lookup failed", "principal_id", principalID, "action", "enter", "error", err)
		return
	}
	if pending != nil {
		// Idempotent retry: repeating the command must not mint a fresh
		// link, and therefore a fresh seat.
		b.send(ctx, principalID, b.inviteText(pending))
		return
	}

	active, err := b.subscriptions.Active(user)
	if err != nil {
		slog.Error("subscription lookup failed", "principal_id", principalID, "action", "enter", "error", err)
		return
	}
	if active == nil {
		if _, err := b.subscriptions.Activate(user, b.grantDays); err != nil {
			slog.Error("activation failed", "principal_id", principalID, "action", "enter", "error", err)
			b.send(ctx, principalID, issueFailedText)
			return
		}
	}

	inv, err := b.invites.Issue(ctx, user, b.inviteValidity)
	if err != nil {
		slog.Error("invite issuance failed", "principal_id", principalID, "action", "enter", "error", err)
		b.send(ctx, principalID, issueFailedText)
		return
	}
	b.send(ctx, principalID, b.inviteText(inv))
}

func (b *Bot) inviteText(inv *models.Invite) string {
	minutes := int(time.Until(inv.ExpiresAt).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf(inviteTextFmt, minutes, inv.Link)
}

func (b *Bot) send(ctx context.Context, principalID int64, text string) {
	if err := b.notifier.SendText(ctx, principalID, text); err != nil {
		slog.Error("message send failed", "principal_id", principalID, "action", "notify", "error", err)
	}
}
