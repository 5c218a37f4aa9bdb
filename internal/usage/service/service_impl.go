package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bolla-network/turion/internal/usage/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type usageService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

// New creates the usage service.
func New(p Params) domain.Service {
	return &usageService{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// yearMonthOf formats the billing period key, e.g. "2026-08".
func yearMonthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (s *usageService) Record(ctx context.Context, entry domain.Entry) error {
	if strings.TrimSpace(entry.UserID) == "" {
		return domain.ErrInvalidUser
	}
	if strings.TrimSpace(entry.RequestType) == "" {
		return domain.ErrInvalidRequest
	}

	now := time.Now().UTC()
	log := domain.UsageLog{
		ID:              s.genID.Generate(),
		UserID:          entry.UserID,
		APIKeyID:        entry.APIKeyID,
		RequestType:     entry.RequestType,
		URL:             entry.URL,
		StatusCode:      entry.StatusCode,
		ExecutionTimeMs: entry.ExecutionTimeMs,
		CreatedAt:       now,
	}

	monthly := domain.MonthlyUsage{
		ID:           s.genID.Generate(),
		UserID:       entry.UserID,
		YearMonth:    yearMonthOf(now),
		RequestCount: 1,
	}
	if entry.StatusCode != nil && *entry.StatusCode < 400 {
		monthly.SuccessCount = 1
	} else {
		monthly.FailedCount = 1
	}
	if entry.ExecutionTimeMs != nil {
		monthly.TotalExecutionTimeMs = *entry.ExecutionTimeMs
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.InsertLog(ctx, &log); err != nil {
			return err
		}
		return txRepo.IncrementMonthly(ctx, &monthly)
	})
	if err != nil {
		s.log.Error("failed to record usage",
			zap.String("user_id", entry.UserID),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *usageService) Summary(ctx context.Context, userID string, now time.Time) (domain.SummaryResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.SummaryResponse{}, domain.ErrInvalidUser
	}

	yearMonth := yearMonthOf(now)
	row, err := s.repo.FindMonthly(ctx, userID, yearMonth)
	if err != nil {
		s.log.Error("failed to load monthly usage",
			zap.String("user_id", userID),
			zap.Error(err))
		return domain.SummaryResponse{}, err
	}
	if row == nil {
		return domain.SummaryResponse{YearMonth: yearMonth}, nil
	}
	return domain.SummaryResponse{
		YearMonth:            row.YearMonth,
		RequestCount:         row.RequestCount,
		SuccessCount:         row.SuccessCount,
		FailedCount:          row.FailedCount,
		TotalExecutionTimeMs: row.TotalExecutionTimeMs,
	}, nil
}
