package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	apikeydomain "github.com/bolla-network/turion/internal/apikey/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix      = "tr_"
	apiKeySecretBytes = 24
	displayPrefixLen  = 11
	defaultKeyName    = "Default Key"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  apikeydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Issue(ctx context.Context, userID, name string) (*apikeydomain.SecretResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apikeydomain.ErrInvalidUser
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultKeyName
	}

	count, err := s.repo.CountByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if count >= apikeydomain.MaxKeysPerUser {
		return nil, apikeydomain.ErrQuotaExceeded
	}

	plain, hash, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.APIKey{
		ID:        s.genID.Generate(),
		UserID:    userID,
		KeyHash:   hash,
		KeyPrefix: plain[:displayPrefixLen],
		Name:      name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.log.Info("api key issued",
		zap.String("user_id", userID),
		zap.String("key_id", key.ID.String()),
	)

	return &apikeydomain.SecretResponse{KeyID: key.ID.String(), APIKey: plain}, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]apikeydomain.Response, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apikeydomain.ErrInvalidUser
	}

	items, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// Revoke deletes a credential scoped to its owner. A key id belonging to a
// different account matches zero rows and the call still succeeds, so the
// existence of other accounts' keys is never revealed.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apikeydomain.ErrInvalidUser
	}

	id, err := snowflake.ParseString(strings.TrimSpace(keyID))
	if err != nil || id == 0 {
		return apikeydomain.ErrInvalidKeyID
	}

	affected, err := s.repo.DeleteByUserAndID(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.log.Info("revoke matched no rows",
			zap.String("user_id", userID),
			zap.String("key_id", id.String()),
		)
	}
	return nil
}

func (s *Service) Authenticate(ctx context.Context, presented string) (*apikeydomain.Identity, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" || !strings.HasPrefix(presented, apiKeyPrefix) {
		return nil, apikeydomain.ErrUnauthorized
	}

	hash := apikeydomain.HashAPIKey(presented)
	key, err := s.repo.FindActiveByHash(ctx, s.db, hash)
	if err != nil {
		return nil, err
	}
	if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, apikeydomain.ErrUnauthorized
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID); err != nil {
		s.log.Warn("touch last_used_at failed",
			zap.String("key_id", key.ID.String()),
			zap.Error(err),
		)
	}

	return &apikeydomain.Identity{KeyID: key.ID, UserID: key.UserID}, nil
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		KeyID:      key.ID.String(),
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
	}
}

func generateAPIKey() (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	plain := apiKeyPrefix + hex.EncodeToString(secret)
	return plain, apikeydomain.HashAPIKey(plain), nil
}
