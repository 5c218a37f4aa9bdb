package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageLog records one API request served by the data plane.
type UsageLog struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	UserID          string        `gorm:"column:user_id;type:text;not null;index"`
	APIKeyID        *snowflake.ID `gorm:"column:api_key_id;index"`
	RequestType     string        `gorm:"column:request_type;type:text;not null"`
	URL             string        `gorm:"type:text;not null"`
	StatusCode      *int          `gorm:"column:status_code"`
	ExecutionTimeMs *int64        `gorm:"column:execution_time_ms"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageLog) TableName() string { return "usage_logs" }

// MonthlyUsage aggregates request counters per account and calendar month.
// One row per (user_id, year_month), converged by upsert-increment.
type MonthlyUsage struct {
	ID                   snowflake.ID `gorm:"primaryKey"`
	UserID               string       `gorm:"column:user_id;type:text;not null;uniqueIndex:ux_monthly_usage_user_month,priority:1"`
	YearMonth            string       `gorm:"column:year_month;type:text;not null;uniqueIndex:ux_monthly_usage_user_month,priority:2"`
	RequestCount         int64        `gorm:"column:request_count;not null;default:0"`
	SuccessCount         int64        `gorm:"column:success_count;not null;default:0"`
	FailedCount          int64        `gorm:"column:failed_count;not null;default:0"`
	TotalExecutionTimeMs int64        `gorm:"column:total_execution_time_ms;not null;default:0"`
}

// TableName sets the database table name.
func (MonthlyUsage) TableName() string { return "monthly_usage" }

type Service interface {
	Record(ctx context.Context, entry Entry) error
	Summary(ctx context.Context, userID string, now time.Time) (SummaryResponse, error)
}

// Entry is one request observation submitted by the data plane.
type Entry struct {
	UserID          string        `json:"user_id"`
	APIKeyID        *snowflake.ID `json:"api_key_id"`
	RequestType     string        `json:"request_type"`
	URL             string        `json:"url"`
	StatusCode      *int          `json:"status_code"`
	ExecutionTimeMs *int64        `json:"execution_time_ms"`
}

type SummaryResponse struct {
	YearMonth            string `json:"year_month"`
	RequestCount         int64  `json:"request_count"`
	SuccessCount         int64  `json:"success_count"`
	FailedCount          int64  `json:"failed_count"`
	TotalExecutionTimeMs int64  `json:"total_execution_time_ms"`
}

var (
	ErrInvalidUser    = errors.New("invalid_user")
	ErrInvalidRequest = errors.New("invalid_usage_request")
)
