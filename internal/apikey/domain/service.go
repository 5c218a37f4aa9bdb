package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MaxKeysPerUser caps simultaneously-existing credentials per account.
// Revoked keys are deleted outright, so revocation frees a slot.
const MaxKeysPerUser = 5

type Service interface {
	Issue(ctx context.Context, userID, name string) (*SecretResponse, error)
	List(ctx context.Context, userID string) ([]Response, error)
	Revoke(ctx context.Context, userID, keyID string) error
	Authenticate(ctx context.Context, presented string) (*Identity, error)
}

// Response is the credential metadata exposed to the owner. The digest and the
// raw secret never appear here.
type Response struct {
	KeyID      string     `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// SecretResponse carries the raw secret exactly once, at creation.
type SecretResponse struct {
	KeyID  string `json:"id"`
	APIKey string `json:"key"`
}

// Identity is the resolved owner of an authenticated credential.
type Identity struct {
	KeyID  snowflake.ID
	UserID string
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidKeyID  = errors.New("invalid_key_id")
	ErrQuotaExceeded = errors.New("quota_exceeded")
	ErrUnauthorized  = errors.New("unauthorized_key")
)
