package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	CountByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]APIKey, error)
	DeleteByUserAndID(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (int64, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
