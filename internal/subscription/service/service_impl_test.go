package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bolla-network/turion/internal/config"
	"github.com/bolla-network/turion/internal/plan"
	profiledomain "github.com/bolla-network/turion/internal/profile/domain"
	profilerepository "github.com/bolla-network/turion/internal/profile/repository"
	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
	"github.com/bolla-network/turion/internal/subscription/repository"
)

type fakeProviderClient struct {
	customerCalls int
	checkoutCalls int
	portalCalls   int

	lastCheckout subscriptiondomain.CheckoutSessionRequest

	subscription    subscriptiondomain.ProviderSubscription
	subscriptionErr error
}

func (f *fakeProviderClient) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	f.customerCalls++
	return "cus_test", nil
}

func (f *fakeProviderClient) CreateCheckoutSession(ctx context.Context, req subscriptiondomain.CheckoutSessionRequest) (subscriptiondomain.CheckoutSession, error) {
	f.checkoutCalls++
	f.lastCheckout = req
	return subscriptiondomain.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.com/cs_test"}, nil
}

func (f *fakeProviderClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	f.portalCalls++
	return "https://billing.stripe.com/session", nil
}

func (f *fakeProviderClient) RetrieveSubscription(ctx context.Context, subscriptionID string) (*subscriptiondomain.ProviderSubscription, error) {
	if f.subscriptionErr != nil {
		return nil, f.subscriptionErr
	}
	sub := f.subscription
	if sub.ID == "" {
		sub.ID = subscriptionID
	}
	return &sub, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&subscriptiondomain.Subscription{}, &profiledomain.Profile{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	db.Exec("DELETE FROM subscriptions")
	db.Exec("DELETE FROM profiles")
	return db
}

func newTestService(t *testing.T, db *gorm.DB, provider *fakeProviderClient) subscriptiondomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Cfg:         config.Config{PublicURL: "https://app.example.com"},
		Repo:        repository.Provide(),
		ProfileRepo: profilerepository.Provide(),
		Provider:    provider,
	})
}

func TestCheckoutRejectsFreeAndUnknownPlans(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProviderClient{}
	svc := newTestService(t, db, provider)
	ctx := context.Background()

	for _, planID := range []string{plan.Free, "enterprise", ""} {
		if _, err := svc.Checkout(ctx, "user-1", "dev@example.com", planID); !errors.Is(err, subscriptiondomain.ErrInvalidPlan) {
			t.Fatalf("plan %q: expected ErrInvalidPlan, got %v", planID, err)
		}
	}
	if provider.customerCalls != 0 || provider.checkoutCalls != 0 {
		t.Fatalf("rejected plans must not reach the provider")
	}
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProviderClient{}
	svc := newTestService(t, db, provider)
	ctx := context.Background()

	resp, err := svc.Checkout(ctx, "user-1", "dev@example.com", plan.Growth)
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if resp.URL == "" {
		t.Fatal("expected checkout url")
	}
	if provider.customerCalls != 1 {
		t.Fatalf("expected 1 customer creation, got %d", provider.customerCalls)
	}
	if provider.lastCheckout.UnitAmountPence != 2500 || provider.lastCheckout.Currency != "gbp" {
		t.Fatalf("unexpected checkout pricing %+v", provider.lastCheckout)
	}

	// Second checkout reuses the persisted customer mapping.
	if _, err := svc.Checkout(ctx, "user-1", "dev@example.com", plan.Scale); err != nil {
		t.Fatalf("second Checkout() error = %v", err)
	}
	if provider.customerCalls != 1 {
		t.Fatalf("expected customer reuse, got %d creations", provider.customerCalls)
	}
	if provider.lastCheckout.CustomerID != "cus_test" {
		t.Fatalf("expected cus_test, got %q", provider.lastCheckout.CustomerID)
	}
}

func TestPortalRequiresExistingCustomer(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProviderClient{}
	svc := newTestService(t, db, provider)

	if _, err := svc.Portal(context.Background(), "user-without-billing"); !errors.Is(err, subscriptiondomain.ErrNoSubscription) {
		t.Fatalf("expected ErrNoSubscription, got %v", err)
	}
	if provider.portalCalls != 0 {
		t.Fatal("portal session must not be created without a customer")
	}
}

func TestGetSynthesizesFreeTier(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProviderClient{})

	resp, err := svc.Get(context.Background(), "user-new")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.PlanID != plan.Free || resp.Status != subscriptiondomain.StatusFree {
		t.Fatalf("expected free tier, got %+v", resp)
	}
}

func TestApplyCheckoutCompleted(t *testing.T) {
	db := setupTestDB(t)
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)
	provider := &fakeProviderClient{
		subscription: subscriptiondomain.ProviderSubscription{
			ID:                 "sub_1",
			CustomerID:         "cus_1",
			Status:             subscriptiondomain.StatusActive,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodEnd,
		},
	}
	svc := newTestService(t, db, provider)
	ctx := context.Background()

	ev := subscriptiondomain.CheckoutCompletedEvent{
		UserID:         "user-1",
		Email:          "dev@example.com",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PlanID:         plan.Growth,
	}
	if err := svc.ApplyCheckoutCompleted(ctx, ev); err != nil {
		t.Fatalf("ApplyCheckoutCompleted() error = %v", err)
	}

	resp, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if resp.PlanID != plan.Growth || resp.Status != subscriptiondomain.StatusActive {
		t.Fatalf("unexpected state %+v", resp)
	}

	// Replay converges to the same record instead of inserting another row.
	if err := svc.ApplyCheckoutCompleted(ctx, ev); err != nil {
		t.Fatalf("replay error = %v", err)
	}
	var count int64
	db.Model(&subscriptiondomain.Subscription{}).Where("user_id = ?", "user-1").Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 subscription row, got %d", count)
	}
}

func TestApplyCheckoutCompletedFallsBackToStarter(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProviderClient{
		subscription: subscriptiondomain.ProviderSubscription{Status: subscriptiondomain.StatusActive},
	}
	svc := newTestService(t, db, provider)
	ctx := context.Background()

	err := svc.ApplyCheckoutCompleted(ctx, subscriptiondomain.CheckoutCompletedEvent{
		UserID:         "user-1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PlanID:         "not-a-plan",
	})
	if err != nil {
		t.Fatalf("ApplyCheckoutCompleted() error = %v", err)
	}

	resp, _ := svc.Get(ctx, "user-1")
	if resp.PlanID != plan.Starter {
		t.Fatalf("expected starter fallback, got %q", resp.PlanID)
	}
}

func TestApplyCheckoutCompletedPropagatesRetrieveFailure(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProviderClient{subscriptionErr: errors.New("stripe down")}
	svc := newTestService(t, db, provider)

	err := svc.ApplyCheckoutCompleted(context.Background(), subscriptiondomain.CheckoutCompletedEvent{
		UserID:         "user-1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
	})
	if err == nil {
		t.Fatal("expected error so the delivery is retried")
	}

	var count int64
	db.Model(&subscriptiondomain.Subscription{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no rows after failed retrieve, got %d", count)
	}
}

func TestApplySubscriptionUpdatedPreservesPlan(t *testing.T) {
	db := setupTestDB(t)
	periodStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	provider := &fakeProviderClient{
		subscription: subscriptiondomain.ProviderSubscription{
			Status:             subscriptiondomain.StatusActive,
			CurrentPeriodStart: periodStart,
			CurrentPeriodEnd:   periodStart.AddDate(0, 1, 0),
		},
	}
	svc := newTestService(t, db, provider)
	ctx := context.Background()

	if err := svc.ApplyCheckoutCompleted(ctx, subscriptiondomain.CheckoutCompletedEvent{
		UserID:         "user-1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PlanID:         plan.Scale,
	}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	err := svc.ApplySubscriptionUpdated(ctx, subscriptiondomain.SubscriptionStateEvent{
		SubscriptionID:     "sub_1",
		CustomerID:         "cus_1",
		Status:             subscriptiondomain.StatusPastDue,
		CurrentPeriodStart: periodStart.AddDate(0, 1, 0),
		CurrentPeriodEnd:   periodStart.AddDate(0, 2, 0),
		CancelAtPeriodEnd:  true,
		PriceID:            "price_xyz",
	})
	if err != nil {
		t.Fatalf("ApplySubscriptionUpdated() error = %v", err)
	}

	resp, _ := svc.Get(ctx, "user-1")
	if resp.Status != subscriptiondomain.StatusPastDue || !resp.CancelAtPeriodEnd {
		t.Fatalf("unexpected state %+v", resp)
	}
	if resp.PlanID != plan.Scale {
		t.Fatalf("plan must be preserved across updates, got %q", resp.PlanID)
	}
}

func TestApplySubscriptionUpdatedUnknownCustomerIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, &fakeProviderClient{})

	err := svc.ApplySubscriptionUpdated(context.Background(), subscriptiondomain.SubscriptionStateEvent{
		SubscriptionID: "sub_ghost",
		CustomerID:     "cus_ghost",
		Status:         subscriptiondomain.StatusActive,
	})
	if err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestApplySubscriptionDeletedRevertsToFree(t *testing.T) {
	db := setupTestDB(t)
	provider := &fakeProviderClient{
		subscription: subscriptiondomain.ProviderSubscription{Status: subscriptiondomain.StatusActive},
	}
	svc := newTestService(t, db, provider)
	ctx := context.Background()

	if err := svc.ApplyCheckoutCompleted(ctx, subscriptiondomain.CheckoutCompletedEvent{
		UserID:         "user-1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PlanID:         plan.Growth,
	}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	if err := svc.ApplySubscriptionDeleted(ctx, "sub_1"); err != nil {
		t.Fatalf("ApplySubscriptionDeleted() error = %v", err)
	}

	resp, _ := svc.Get(ctx, "user-1")
	if resp.PlanID != plan.Free || resp.Status != subscriptiondomain.StatusCanceled {
		t.Fatalf("expected canceled free tier, got %+v", resp)
	}
	if resp.CancelAtPeriodEnd {
		t.Fatal("cancel_at_period_end must be cleared")
	}

	// Deleting an unknown subscription id is acknowledged without error.
	if err := svc.ApplySubscriptionDeleted(ctx, "sub_ghost"); err != nil {
		t.Fatalf("unknown id should be a no-op, got %v", err)
	}
}
