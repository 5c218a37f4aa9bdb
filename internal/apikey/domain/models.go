package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey stores hashed bearer credentials scoped to an account. The raw secret
// is never persisted; only its SHA-256 digest and a short display prefix are.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     string       `gorm:"column:user_id;type:text;not null;index"`
	KeyHash    string       `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	KeyPrefix  string       `gorm:"column:key_prefix;type:text;not null"`
	Name       string       `gorm:"type:text;not null"`
	IsActive   bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }
