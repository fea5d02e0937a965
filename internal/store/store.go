// Package store owns all persisted state: users, subscriptions and invites.
// Mutations are expressed as row-level conditional updates so the sweeper and
// the command/event worker can touch the same rows concurrently without
// producing dual-active subscriptions or double-redeemed invites.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/subgate/subgate/internal/models"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureUser returns the user for the given principal, creating the record on
// first interaction. An already known user only has its display name
// refreshed.
func (s *Store) EnsureUser(principalID int64, displayName string) (*models.User, error) {
	var user models.User
	err := s.db.Where("principal_id = ?", principalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{
			ID:          uuid.New(),
			PrincipalID: principalID,
			DisplayName: displayName,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	if displayName != "" && displayName != user.DisplayName {
		if err := s.db.Model(&user).Update("display_name", displayName).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// UserByPrincipal returns nil without error when the principal is unknown.
func (s *Store) UserByPrincipal(principalID int64) (*models.User, error) {
	var user models.User
	err := s.db.Where("principal_id = ?", principalID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateSubscription(sub *models.Subscription) error {
	return s.db.Create(sub).Error
}

// ActiveSubscription returns the most-recently-ending subscription that is
// active and ends strictly after now, or nil.
func (s *Store) ActiveSubscription(userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.
		Where("user_id = ? AND status = ? AND end_at > ?", userID, models.SubscriptionActive, now).
		Order("end_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LatestSubscription returns the user's most-recently-ending subscription
// regardless of status, or nil. Used to distinguish "expired" from "never
// subscribed" when reporting status.
func (s *Store) LatestSubscription(userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.
		Where("user_id = ?", userID).
		Order("end_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// OverdueSubscriptions returns active subscriptions whose end time has
// passed, with the owning user preloaded for eviction.
func (s *Store) OverdueSubscriptions(now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.
		Preload("User").
		Where("status = ? AND end_at < ?", models.SubscriptionActive, now).
		Find(&subs).Error
	return subs, err
}

// ExpireSubscription transitions a subscription active→expired. The
// conditional update makes repeated calls no-ops: only the call that finds
// the row still active reports the transition.
func (s *Store) ExpireSubscription(id uuid.UUID) (bool, error) {
	result := s.db.Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, models.SubscriptionActive).
		Update("status", models.SubscriptionExpired)
	return result.RowsAffected > 0, result.Error
}

func (s *Store) CreateInvite(inv *models.Invite) error {
	return s.db.Create(inv).Error
}

// PendingInvite returns the user's unused, unexpired invite, or nil.
func (s *Store) PendingInvite(userID uuid.UUID, now time.Time) (*models.Invite, error) {
	var inv models.Invite
	err := s.db.
		Where("user_id = ? AND used = ? AND expires_at > ?", userID, false, now).
		Order("expires_at DESC").
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// PendingInviteByLink resolves a link token to its unused, unexpired invite
// with the owning user preloaded, or nil. A dangling user reference leaves
// the User field zero-valued; callers treat that as no pending invite.
func (s *Store) PendingInviteByLink(link string, now time.Time) (*models.Invite, error) {
	var inv models.Invite
	err := s.db.
		Preload("User").
		Where("link = ? AND used = ? AND expires_at > ?", link, false, now).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// RedeemInvite marks an invite used by the given principal. Used flips
// false→true at most once; a second redemption attempt reports false.
func (s *Store) RedeemInvite(id uuid.UUID, usedBy int64) (bool, error) {
	result := s.db.Model(&models.Invite{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]interface{}{"used": true, "used_by": usedBy})
	return result.RowsAffected > 0, result.Error
}
