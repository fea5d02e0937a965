package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/subgate/subgate/internal/models"
	"github.com/subgate/subgate/internal/store"
)

// ErrIssueInvite wraps group backend rejections (rate limit, permissions).
// When it is returned, no invite row was persisted.
var ErrIssueInvite = errors.New("invite issuance failed")

// LinkCreator mints single-use invite links against the group backend.
type LinkCreator interface {
	CreateSingleUseInvite(ctx context.Context, label string, expiresAt time.Time) (string, error)
}

// InviteService issues single-use invite links bound to one expected
// redeemer. The invite row is persisted only after the backend confirms the
// link, so a backend failure leaves no partial state behind.
type InviteService struct {
	store   *store.Store
	backend LinkCreator
}

func NewInviteService(st *store.Store, backend LinkCreator) *InviteService {
	return &InviteService{store: st, backend: backend}
}

// Issue mints a link valid for the given window and records it as pending for
// the user. Callers are responsible for checking Pending first; Issue always
// creates a fresh link.
func (s *InviteService) Issue(ctx context.Context, user *models.User, validity time.Duration) (*models.Invite, error) {
	expiresAt := time.Now().UTC().Add(validity)
	label := fmt.Sprintf("sub:%d", user.PrincipalID)

	link, err := s.backend.CreateSingleUseInvite(ctx, label, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIssueInvite, err)
	}

	inv := models.Invite{
		ID:        uuid.New(),
		UserID:    user.ID,
		Link:      link,
		ExpiresAt: expiresAt,
		Used:      false,
	}
	if err := s.store.CreateInvite(&inv); err != nil {
		return nil, fmt.Errorf("failed to persist invite: %w", err)
	}
	return &inv, nil
}

// Pending returns the user's unused, unexpired invite, or nil.
func (s *InviteService) Pending(user *models.User) (*models.Invite, error) {
	return s.store.PendingInvite(user.ID, time.Now().UTC())
}
