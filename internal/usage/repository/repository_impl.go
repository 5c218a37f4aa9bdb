package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bolla-network/turion/internal/usage/domain"
)

type repo struct {
	db *gorm.DB
}

// Provide returns the gorm-backed usage repository.
func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{db: tx}
}

func (r *repo) InsertLog(ctx context.Context, log *domain.UsageLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// IncrementMonthly converges the per-month counters with a single upsert so
// concurrent writers never lose increments.
func (r *repo) IncrementMonthly(ctx context.Context, row *domain.MonthlyUsage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "year_month"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"request_count":           gorm.Expr("request_count + ?", row.RequestCount),
				"success_count":           gorm.Expr("success_count + ?", row.SuccessCount),
				"failed_count":            gorm.Expr("failed_count + ?", row.FailedCount),
				"total_execution_time_ms": gorm.Expr("total_execution_time_ms + ?", row.TotalExecutionTimeMs),
			}),
		}).
		Create(row).Error
}

func (r *repo) FindMonthly(ctx context.Context, userID, yearMonth string) (*domain.MonthlyUsage, error) {
	var row domain.MonthlyUsage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}
