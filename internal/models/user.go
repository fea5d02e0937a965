package models

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors an external principal from the messaging platform.
// Created on first interaction; only the display name changes afterwards.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PrincipalID int64     `gorm:"not null;uniqueIndex" json:"principal_id"`
	DisplayName string    `gorm:"size:255" json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
