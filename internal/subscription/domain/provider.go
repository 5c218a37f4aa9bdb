package domain

import (
	"context"
	"time"
)

// ProviderClient is the outbound payment-provider surface the service needs.
// The production implementation lives in internal/payment/stripe.
type ProviderClient interface {
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)
}

// CheckoutSessionRequest describes a subscription-mode checkout whose price is
// computed from the plan catalog rather than a pre-registered provider price.
type CheckoutSessionRequest struct {
	CustomerID      string
	UserID          string
	PlanID          string
	PlanName        string
	UnitAmountPence int64
	Currency        string
	SuccessURL      string
	CancelURL       string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// ProviderSubscription is the subscription detail fetched back from the
// provider when reconciling a completed checkout.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	PriceID            string
}
