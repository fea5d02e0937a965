// Package telegram adapts the Telegram Bot API to the group-backend and
// transport contracts the core components consume.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Handler receives inbound updates, one at a time, in delivery order.
type Handler interface {
	HandleCommand(ctx context.Context, principalID int64, displayName, command string)
	HandleChatMember(ctx context.Context, groupID, principalID int64, inviteLink, newStatus string)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	groupID int64
}

func New(token string, groupID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &Bot{api: api, groupID: groupID}, nil
}

// CreateSingleUseInvite mints a chat invite link constrained to exactly one
// redemption and an absolute expiry.
func (b *Bot) CreateSingleUseInvite(_ context.Context, label string, expiresAt time.Time) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: b.groupID},
		Name:        label,
		ExpireDate:  int(expiresAt.Unix()),
		MemberLimit: 1,
	}
	resp, err := b.api.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create invite link: %w", err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("failed to decode invite link: %w", err)
	}
	return link.InviteLink, nil
}

// EvictPrincipal bans and immediately unbans, removing current membership
// while leaving the principal free to rejoin with a future invite.
func (b *Bot) EvictPrincipal(_ context.Context, principalID int64) error {
	ban := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: b.groupID, UserID: principalID},
	}
	if _, err := b.api.Request(ban); err != nil {
		return fmt.Errorf("ban failed: %w", err)
	}

	unban := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: b.groupID, UserID: principalID},
		OnlyIfBanned:     true,
	}
	if _, err := b.api.Request(unban); err != nil {
		return fmt.Errorf("unban failed: %w", err)
	}
	return nil
}

func (b *Bot) SendText(_ context.Context, principalID int64, text string) error {
	msg := tgbotapi.NewMessage(principalID, text)
	_, err := b.api.Send(msg)
	return err
}

// Poll discards the backlog of undelivered updates and then feeds updates to
// the handler sequentially until the context is cancelled.
func (b *Bot) Poll(ctx context.Context, handler Handler) {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		slog.Warn("failed to drop pending updates", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "chat_member"}
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, handler, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handler Handler, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		from := update.Message.From
		if from == nil {
			return
		}
		handler.HandleCommand(ctx, from.ID, displayName(from), update.Message.Command())
	case update.ChatMember != nil:
		ev := update.ChatMember
		member := ev.NewChatMember.User
		if member == nil {
			return
		}
		link := ""
		if ev.InviteLink != nil {
			link = ev.InviteLink.InviteLink
		}
		handler.HandleChatMember(ctx, ev.Chat.ID, member.ID, link, ev.NewChatMember.Status)
	}
}

func displayName(u *tgbotapi.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.UserName
}
