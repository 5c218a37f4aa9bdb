package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// Upsert converges the singleton record keyed on user_id.
	Upsert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error)
	FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*Subscription, error)
	// UpdateState mutates status, period bounds and cancel flag keyed by the
	// provider subscription id. Returns the number of rows matched.
	UpdateState(ctx context.Context, db *gorm.DB, subscriptionID, status, planID string, periodStart, periodEnd *time.Time, cancelAtPeriodEnd bool) (int64, error)
}
