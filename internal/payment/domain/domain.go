package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Service interface {
	// IngestWebhook authenticates the raw payload, narrows it into a typed
	// event and applies it. Verification happens before any parsing or write.
	IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

// EventRecord is the durable log of every accepted webhook delivery. The
// unique provider event id makes replay detection explicit: a redelivered
// event that was already processed is acknowledged without side effects.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	ProviderEventID string         `gorm:"column:provider_event_id;type:text;not null;uniqueIndex"`
	EventType       string         `gorm:"column:event_type;type:text;not null"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt      time.Time      `gorm:"column:received_at;not null"`
	ProcessedAt     *time.Time     `gorm:"column:processed_at"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "webhook_events" }

var (
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
