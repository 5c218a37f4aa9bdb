package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Checkout validates the requested plan and creates a provider checkout
	// session. Free or unknown plans are rejected before any provider call.
	Checkout(ctx context.Context, userID, email, planID string) (*CheckoutResponse, error)
	// Portal creates a billing-portal session for the account's existing
	// provider customer.
	Portal(ctx context.Context, userID string) (*PortalResponse, error)
	// Get returns the account's billing state, synthesizing the free tier when
	// no record exists yet.
	Get(ctx context.Context, userID string) (Response, error)

	// Reconciler entry points, driven by verified webhook events.
	ApplyCheckoutCompleted(ctx context.Context, ev CheckoutCompletedEvent) error
	ApplySubscriptionUpdated(ctx context.Context, ev SubscriptionStateEvent) error
	ApplySubscriptionDeleted(ctx context.Context, providerSubscriptionID string) error
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type PortalResponse struct {
	URL string `json:"url"`
}

type Response struct {
	PlanID             string     `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
}

// CheckoutCompletedEvent carries the fields the reconciler reads from a
// completed checkout session.
type CheckoutCompletedEvent struct {
	UserID         string
	Email          string
	CustomerID     string
	SubscriptionID string
	PlanID         string
}

// SubscriptionStateEvent carries the provider-side subscription state from an
// update event.
type SubscriptionStateEvent struct {
	SubscriptionID     string
	CustomerID         string
	Status             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	PriceID            string
}

var (
	ErrInvalidPlan    = errors.New("invalid_plan")
	ErrNoSubscription = errors.New("no_subscription")
	ErrNotFound       = errors.New("not_found")
)
