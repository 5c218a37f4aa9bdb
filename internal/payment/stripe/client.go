package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bolla-network/turion/internal/config"
	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
)

const apiBaseURL = "https://api.stripe.com"

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type customerResponse struct {
	ID string `json:"id"`
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type portalSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the Stripe REST API with form-encoded requests. It is
// constructed once at process start and injected wherever provider calls are
// needed.
type Client struct {
	apiKey string
	client *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		apiKey: strings.TrimSpace(cfg.StripeSecretKey),
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

// Provide exposes the client under the interface the subscription service
// consumes.
func Provide(cfg config.Config) subscriptiondomain.ProviderClient {
	return NewClient(cfg)
}

func (c *Client) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	values := url.Values{}
	values.Set("email", email)
	values.Set("metadata[user_id]", userID)

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/customers", values, "customer:"+userID)
	if err != nil {
		return "", err
	}

	var customer customerResponse
	if err := json.Unmarshal(body, &customer); err != nil {
		return "", err
	}
	if customer.ID == "" {
		return "", errors.New("stripe_response_invalid")
	}
	return customer.ID, nil
}

// CreateCheckoutSession builds a subscription-mode session with inline
// price_data so plan price changes take effect without touching the Stripe
// dashboard. The account and plan ride along as metadata on both the session
// and the subscription it creates; the webhook reconciler reads them back.
func (c *Client) CreateCheckoutSession(ctx context.Context, req subscriptiondomain.CheckoutSessionRequest) (subscriptiondomain.CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "subscription")
	values.Set("customer", req.CustomerID)
	values.Set("client_reference_id", req.UserID)
	values.Set("success_url", req.SuccessURL)
	values.Set("cancel_url", req.CancelURL)
	values.Set("payment_method_types[0]", "card")
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.UnitAmountPence, 10))
	values.Set("line_items[0][price_data][recurring][interval]", "month")
	values.Set("line_items[0][price_data][product_data][name]", fmt.Sprintf("Turion %s", req.PlanName))
	values.Set("metadata[user_id]", req.UserID)
	values.Set("metadata[plan_id]", req.PlanID)
	values.Set("subscription_data[metadata][user_id]", req.UserID)
	values.Set("subscription_data[metadata][plan_id]", req.PlanID)

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, "")
	if err != nil {
		return subscriptiondomain.CheckoutSession{}, err
	}

	var session checkoutSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return subscriptiondomain.CheckoutSession{}, err
	}
	if session.ID == "" || session.URL == "" {
		return subscriptiondomain.CheckoutSession{}, errors.New("stripe_response_invalid")
	}
	return subscriptiondomain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	values := url.Values{}
	values.Set("customer", customerID)
	values.Set("return_url", returnURL)

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/billing_portal/sessions", values, "")
	if err != nil {
		return "", err
	}

	var session portalSessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", err
	}
	if session.URL == "" {
		return "", errors.New("stripe_response_invalid")
	}
	return session.URL, nil
}

func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*subscriptiondomain.ProviderSubscription, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, "")
	if err != nil {
		return nil, err
	}

	var sub subscriptionObject
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, errors.New("stripe_response_invalid")
	}

	var priceID string
	if len(sub.Items.Data) > 0 {
		priceID = sub.Items.Data[0].Price.ID
	}

	return &subscriptiondomain.ProviderSubscription{
		ID:                 sub.ID,
		CustomerID:         sub.Customer,
		Status:             sub.Status,
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		PriceID:            priceID,
	}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New("stripe_api_key_missing")
	}

	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, apiBaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.Unmarshal(body, &stripeErr); err != nil {
			return nil, errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return nil, errors.New(message)
	}

	return body, nil
}
