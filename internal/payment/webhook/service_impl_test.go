package webhook

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bolla-network/turion/internal/config"
	paymentdomain "github.com/bolla-network/turion/internal/payment/domain"
	"github.com/bolla-network/turion/internal/payment/stripe"
	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
)

const testWebhookSecret = "whsec_test"

type fakeSubscriptionService struct {
	checkoutEvents []subscriptiondomain.CheckoutCompletedEvent
	updatedEvents  []subscriptiondomain.SubscriptionStateEvent
	deletedIDs     []string
	applyErr       error
}

func (f *fakeSubscriptionService) Checkout(ctx context.Context, userID, email, planID string) (*subscriptiondomain.CheckoutResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSubscriptionService) Portal(ctx context.Context, userID string) (*subscriptiondomain.PortalResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSubscriptionService) Get(ctx context.Context, userID string) (subscriptiondomain.Response, error) {
	return subscriptiondomain.Response{}, errors.New("not implemented")
}

func (f *fakeSubscriptionService) ApplyCheckoutCompleted(ctx context.Context, ev subscriptiondomain.CheckoutCompletedEvent) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.checkoutEvents = append(f.checkoutEvents, ev)
	return nil
}

func (f *fakeSubscriptionService) ApplySubscriptionUpdated(ctx context.Context, ev subscriptiondomain.SubscriptionStateEvent) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.updatedEvents = append(f.updatedEvents, ev)
	return nil
}

func (f *fakeSubscriptionService) ApplySubscriptionDeleted(ctx context.Context, providerSubscriptionID string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.deletedIDs = append(f.deletedIDs, providerSubscriptionID)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&paymentdomain.EventRecord{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	db.Exec("DELETE FROM webhook_events")
	return db
}

func newTestService(t *testing.T, db *gorm.DB, subs *fakeSubscriptionService) paymentdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Cfg:    config.Config{StripeWebhookSecret: testWebhookSecret},
		SubSvc: subs,
	})
}

func signedHeaders(payload []byte) http.Header {
	headers := http.Header{}
	headers.Set("Stripe-Signature", stripe.SignPayload(payload, testWebhookSecret, time.Now().UTC()))
	return headers
}

func eventRows(t *testing.T, db *gorm.DB) []paymentdomain.EventRecord {
	t.Helper()
	var rows []paymentdomain.EventRecord
	if err := db.Find(&rows).Error; err != nil {
		t.Fatalf("failed to load event rows: %v", err)
	}
	return rows
}

func TestIngestCheckoutCompleted(t *testing.T) {
	db := setupTestDB(t)
	subs := &fakeSubscriptionService{}
	svc := newTestService(t, db, subs)

	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"customer": "cus_1",
			"subscription": "sub_1",
			"client_reference_id": "user-1",
			"customer_details": {"email": "dev@example.com"},
			"metadata": {"plan_id": "starter"}
		}}
	}`)

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(payload)); err != nil {
		t.Fatalf("IngestWebhook() error = %v", err)
	}

	if len(subs.checkoutEvents) != 1 {
		t.Fatalf("expected 1 checkout event, got %d", len(subs.checkoutEvents))
	}
	ev := subs.checkoutEvents[0]
	if ev.UserID != "user-1" || ev.CustomerID != "cus_1" || ev.SubscriptionID != "sub_1" || ev.PlanID != "starter" {
		t.Fatalf("unexpected checkout event %+v", ev)
	}

	rows := eventRows(t, db)
	if len(rows) != 1 {
		t.Fatalf("expected 1 event row, got %d", len(rows))
	}
	if rows[0].ProviderEventID != "evt_1" || rows[0].ProcessedAt == nil {
		t.Fatalf("expected processed record for evt_1, got %+v", rows[0])
	}
}

func TestIngestReplayIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	subs := &fakeSubscriptionService{}
	svc := newTestService(t, db, subs)

	payload := []byte(`{
		"id": "evt_replay",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1"}}
	}`)

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(payload)); err != nil {
		t.Fatalf("first delivery error = %v", err)
	}
	err := svc.IngestWebhook(context.Background(), payload, signedHeaders(payload))
	if !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}

	if len(subs.deletedIDs) != 1 {
		t.Fatalf("expected 1 apply, got %d", len(subs.deletedIDs))
	}
	if rows := eventRows(t, db); len(rows) != 1 {
		t.Fatalf("expected 1 event row after replay, got %d", len(rows))
	}
}

func TestIngestInvalidSignatureHasNoSideEffects(t *testing.T) {
	db := setupTestDB(t)
	subs := &fakeSubscriptionService{}
	svc := newTestService(t, db, subs)

	payload := []byte(`{"id": "evt_bad", "type": "invoice.paid", "data": {"object": {}}}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", stripe.SignPayload(payload, "whsec_wrong", time.Now().UTC()))

	err := svc.IngestWebhook(context.Background(), payload, headers)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if rows := eventRows(t, db); len(rows) != 0 {
		t.Fatalf("expected no event rows, got %d", len(rows))
	}
}

func TestIngestUnknownEventAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	subs := &fakeSubscriptionService{}
	svc := newTestService(t, db, subs)

	payload := []byte(`{"id": "evt_unknown", "type": "charge.refunded", "data": {"object": {}}}`)
	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(payload)); err != nil {
		t.Fatalf("IngestWebhook() error = %v", err)
	}

	rows := eventRows(t, db)
	if len(rows) != 1 || rows[0].ProcessedAt == nil {
		t.Fatalf("expected processed record for unknown event, got %+v", rows)
	}
	if len(subs.checkoutEvents)+len(subs.updatedEvents)+len(subs.deletedIDs) != 0 {
		t.Fatalf("unknown event must not dispatch")
	}
}

func TestIngestRetriesAfterDispatchFailure(t *testing.T) {
	db := setupTestDB(t)
	subs := &fakeSubscriptionService{applyErr: errors.New("provider unavailable")}
	svc := newTestService(t, db, subs)

	payload := []byte(`{
		"id": "evt_retry",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"current_period_start": 1700000000,
			"current_period_end": 1702592000
		}}
	}`)

	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(payload)); err == nil {
		t.Fatal("expected dispatch error")
	}

	rows := eventRows(t, db)
	if len(rows) != 1 || rows[0].ProcessedAt != nil {
		t.Fatalf("expected unprocessed record after failure, got %+v", rows)
	}

	// Redelivery succeeds once the downstream recovers.
	subs.applyErr = nil
	if err := svc.IngestWebhook(context.Background(), payload, signedHeaders(payload)); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if len(subs.updatedEvents) != 1 {
		t.Fatalf("expected 1 applied update, got %d", len(subs.updatedEvents))
	}
	rows = eventRows(t, db)
	if len(rows) != 1 || rows[0].ProcessedAt == nil {
		t.Fatalf("expected processed record after redelivery, got %+v", rows)
	}
}
