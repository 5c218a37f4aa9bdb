package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bolla-network/turion/internal/config"
	paymentdomain "github.com/bolla-network/turion/internal/payment/domain"
	"github.com/bolla-network/turion/internal/payment/stripe"
	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
	"github.com/bolla-network/turion/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Cfg    config.Config
	SubSvc subscriptiondomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	subSvc        subscriptiondomain.Service
	webhookSecret string
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.webhook"),
		genID:         p.GenID,
		subSvc:        p.SubSvc,
		webhookSecret: p.Cfg.StripeWebhookSecret,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	// Authenticate the raw bytes before touching the body. A bad signature
	// produces zero side effects.
	if err := stripe.VerifySignature(
		payload,
		headers.Get("Stripe-Signature"),
		s.webhookSecret,
		stripe.DefaultSignatureTolerance,
		time.Now().UTC(),
	); err != nil {
		return err
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	parsed, err := stripe.Decode(payload)
	if err != nil {
		return err
	}

	record := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		ProviderEventID: parsed.EventID(),
		EventType:       parsed.EventType(),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      time.Now().UTC(),
	}

	inserted, err := s.insertEvent(ctx, &record)
	if err != nil {
		return err
	}
	stored := &record
	if !inserted {
		stored, err = s.loadEvent(ctx, parsed.EventID())
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.dispatch(ctx, parsed); err != nil {
		return err
	}

	return s.markProcessed(ctx, stored.ID)
}

func (s *Service) dispatch(ctx context.Context, parsed stripe.Parsed) error {
	switch ev := parsed.(type) {
	case stripe.CheckoutSessionCompleted:
		return s.subSvc.ApplyCheckoutCompleted(ctx, subscriptiondomain.CheckoutCompletedEvent{
			UserID:         ev.UserID(),
			Email:          ev.CustomerEmail,
			CustomerID:     ev.CustomerID,
			SubscriptionID: ev.SubscriptionID,
			PlanID:         ev.PlanID(),
		})

	case stripe.SubscriptionUpdated:
		return s.subSvc.ApplySubscriptionUpdated(ctx, subscriptiondomain.SubscriptionStateEvent{
			SubscriptionID:     ev.SubscriptionID,
			CustomerID:         ev.CustomerID,
			Status:             ev.Status,
			CurrentPeriodStart: time.Unix(ev.CurrentPeriodStart, 0).UTC(),
			CurrentPeriodEnd:   time.Unix(ev.CurrentPeriodEnd, 0).UTC(),
			CancelAtPeriodEnd:  ev.CancelAtPeriodEnd,
			PriceID:            ev.PriceID,
		})

	case stripe.SubscriptionDeleted:
		return s.subSvc.ApplySubscriptionDeleted(ctx, ev.SubscriptionID)

	case stripe.InvoicePaid:
		s.log.Info("invoice paid",
			zap.String("invoice_id", ev.InvoiceID),
			zap.Int64("amount_paid", ev.AmountPaid),
			zap.String("currency", ev.Currency),
		)
		return nil

	case stripe.InvoicePaymentFailed:
		s.log.Warn("invoice payment failed",
			zap.String("invoice_id", ev.InvoiceID),
			zap.Int("attempt_count", ev.AttemptCount),
		)
		return nil

	default:
		s.log.Info("unhandled webhook event acknowledged",
			zap.String("event_type", parsed.EventType()),
			zap.String("event_id", parsed.EventID()),
		)
		return nil
	}
}

func (s *Service) insertEvent(ctx context.Context, record *paymentdomain.EventRecord) (bool, error) {
	err := s.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return true, nil
	}
	if db.IsDuplicateKeyErr(err) {
		return false, nil
	}
	return false, err
}

func (s *Service) loadEvent(ctx context.Context, providerEventID string) (*paymentdomain.EventRecord, error) {
	var record paymentdomain.EventRecord
	err := s.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		Limit(1).
		Find(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (s *Service) markProcessed(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).
		Model(&paymentdomain.EventRecord{}).
		Where("id = ?", id).
		Update("processed_at", time.Now().UTC()).Error
}
