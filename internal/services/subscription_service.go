package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/subgate/subgate/internal/models"
	"github.com/subgate/subgate/internal/store"
)

// SubscriptionService owns the subscription lifecycle. It is the only writer
// of new subscription rows; the sweeper performs the active→expired
// transition through the store.
type SubscriptionService struct {
	store *store.Store
}

func NewSubscriptionService(st *store.Store) *SubscriptionService {
	return &SubscriptionService{store: st}
}

// Active returns the user's current subscription, or nil when none is active.
func (s *SubscriptionService) Active(user *models.User) (*models.Subscription, error) {
	return s.store.ActiveSubscription(user.ID, time.Now().UTC())
}

// Activate creates a new active subscription running for the given number of
// days. It deliberately does not check for an existing active subscription:
// the caller decides the activation policy, so the payment-confirmed path can
// replace the current stub without touching this method.
func (s *SubscriptionService) Activate(user *models.User, days int) (*models.Subscription, error) {
	now := time.Now().UTC()
	sub := models.Subscription{
		ID:      uuid.New(),
		UserID:  user.ID,
		Status:  models.SubscriptionActive,
		StartAt: now,
		EndAt:   now.AddDate(0, 0, days),
	}
	if err := s.store.CreateSubscription(&sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return &sub, nil
}
