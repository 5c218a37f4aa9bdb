package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Profile mirrors the account record owned by the identity provider, extended
// with the payment-provider customer link.
type Profile struct {
	ID               string    `gorm:"primaryKey;type:text"`
	Email            string    `gorm:"type:text;not null"`
	FullName         *string   `gorm:"column:full_name;type:text"`
	CompanyName      *string   `gorm:"column:company_name;type:text"`
	StripeCustomerID *string   `gorm:"column:stripe_customer_id;type:text;index"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Profile) TableName() string { return "profiles" }

type Repository interface {
	UpsertCustomerLink(ctx context.Context, db *gorm.DB, userID, email, customerID string) error
	FindStripeCustomerID(ctx context.Context, db *gorm.DB, userID string) (string, error)
}
