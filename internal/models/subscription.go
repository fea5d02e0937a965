package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// Subscription rows are never deleted; expiry is a status transition so the
// table doubles as an audit trail.
type Subscription struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Status    string    `gorm:"not null;default:'active';size:20;index" json:"status"`
	StartAt   time.Time `gorm:"not null" json:"start_at"`
	EndAt     time.Time `gorm:"not null;index" json:"end_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}
