// Package domain contains the persisted billing state derived from payment
// provider events, one record per account.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status values mirror the provider's subscription status strings. The record
// starts at "free", and cancellation settles it back there via "canceled".
const (
	StatusFree     = "free"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Subscription captures an account's current billing state. Exactly one row
// per account, enforced by the unique index on user_id and converged by upsert.
type Subscription struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	UserID               string       `gorm:"column:user_id;type:text;not null;uniqueIndex"`
	StripeCustomerID     *string      `gorm:"column:stripe_customer_id;type:text;index"`
	StripeSubscriptionID *string      `gorm:"column:stripe_subscription_id;type:text;index"`
	PlanID               string       `gorm:"column:plan_id;type:text;not null;default:free"`
	Status               string       `gorm:"type:text;not null;default:free"`
	CurrentPeriodStart   *time.Time   `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time   `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool         `gorm:"column:cancel_at_period_end;not null;default:false"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
