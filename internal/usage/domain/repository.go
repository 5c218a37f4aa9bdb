package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// WithTx returns a repository bound to the given transaction handle.
	WithTx(tx *gorm.DB) Repository
	InsertLog(ctx context.Context, log *UsageLog) error
	IncrementMonthly(ctx context.Context, row *MonthlyUsage) error
	FindMonthly(ctx context.Context, userID, yearMonth string) (*MonthlyUsage, error)
}
