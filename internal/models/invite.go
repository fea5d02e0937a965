package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite binds a single-use group invite link to the user expected to redeem
// it. Used flips false→true exactly once, at the first join event observed
// for the link; UsedBy records who actually joined and may differ from the
// owner when a hijack attempt was seen first.
type Invite struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Link      string    `gorm:"not null;uniqueIndex;size:512" json:"link"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false;index" json:"used"`
	UsedBy    *int64    `json:"used_by"`
	CreatedAt time.Time `json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}
