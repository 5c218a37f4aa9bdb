package repository

import (
	"context"
	"time"

	profiledomain "github.com/bolla-network/turion/internal/profile/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() profiledomain.Repository {
	return &repo{}
}

// UpsertCustomerLink creates or refreshes the profile row with the payment
// provider customer id. Replays leave the row unchanged apart from updated_at.
func (r *repo) UpsertCustomerLink(ctx context.Context, db *gorm.DB, userID, email, customerID string) error {
	now := time.Now().UTC()
	row := profiledomain.Profile{
		ID:               userID,
		Email:            email,
		StripeCustomerID: &customerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"email":              email,
			"stripe_customer_id": customerID,
			"updated_at":         now,
		}),
	}).Create(&row).Error
}

func (r *repo) FindStripeCustomerID(ctx context.Context, db *gorm.DB, userID string) (string, error) {
	var customerID *string
	err := db.WithContext(ctx).Raw(
		`SELECT stripe_customer_id FROM profiles WHERE id = ?`,
		userID,
	).Scan(&customerID).Error
	if err != nil {
		return "", err
	}
	if customerID == nil {
		return "", nil
	}
	return *customerID, nil
}
