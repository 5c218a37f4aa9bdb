package repository

import (
	"context"
	"time"

	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, sub *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"stripe_customer_id":     sub.StripeCustomerID,
			"stripe_subscription_id": sub.StripeSubscriptionID,
			"plan_id":                sub.PlanID,
			"status":                 sub.Status,
			"current_period_start":   sub.CurrentPeriodStart,
			"current_period_end":     sub.CurrentPeriodEnd,
			"cancel_at_period_end":   sub.CancelAtPeriodEnd,
			"updated_at":             sub.UpdatedAt,
		}),
	}).Create(sub).Error
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db, "user_id = ?", userID)
}

func (r *repo) FindByCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, db, "stripe_customer_id = ?", customerID)
}

func (r *repo) UpdateState(
	ctx context.Context,
	db *gorm.DB,
	subscriptionID, status, planID string,
	periodStart, periodEnd *time.Time,
	cancelAtPeriodEnd bool,
) (int64, error) {
	updates := map[string]interface{}{
		"status":               status,
		"plan_id":              planID,
		"cancel_at_period_end": cancelAtPeriodEnd,
		"updated_at":           time.Now().UTC(),
	}
	if periodStart != nil {
		updates["current_period_start"] = periodStart
	}
	if periodEnd != nil {
		updates["current_period_end"] = periodEnd
	}

	result := db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg interface{}) (*subscriptiondomain.Subscription, error) {
	var sub subscriptiondomain.Subscription
	err := db.WithContext(ctx).Where(query, arg).Limit(1).Find(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}
