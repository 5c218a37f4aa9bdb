package stripe

import (
	"encoding/json"
	"strings"

	paymentdomain "github.com/bolla-network/turion/internal/payment/domain"
)

// Parsed is the narrowed form of a webhook delivery. Each handled event type
// decodes into its own variant; everything else becomes UnknownEvent so new
// provider events are acknowledged without state changes.
type Parsed interface {
	EventID() string
	EventType() string
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	Items              struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID            string `json:"id"`
	AmountPaid    int64  `json:"amount_paid"`
	AmountDue     int64  `json:"amount_due"`
	Currency      string `json:"currency"`
	CustomerEmail string `json:"customer_email"`
	AttemptCount  int    `json:"attempt_count"`
}

type baseEvent struct {
	id        string
	eventType string
}

func (b baseEvent) EventID() string   { return b.id }
func (b baseEvent) EventType() string { return b.eventType }

type CheckoutSessionCompleted struct {
	baseEvent
	SessionID         string
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
	CustomerEmail     string
	Metadata          map[string]string
}

// UserID resolves the account reference from the session, preferring the
// client reference over metadata.
func (e CheckoutSessionCompleted) UserID() string {
	if e.ClientReferenceID != "" {
		return e.ClientReferenceID
	}
	return e.Metadata["user_id"]
}

// PlanID returns the plan metadata attached at checkout, empty when absent.
func (e CheckoutSessionCompleted) PlanID() string {
	return e.Metadata["plan_id"]
}

type SubscriptionUpdated struct {
	baseEvent
	SubscriptionID     string
	CustomerID         string
	Status             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	PriceID            string
}

type SubscriptionDeleted struct {
	baseEvent
	SubscriptionID string
}

type InvoicePaid struct {
	baseEvent
	InvoiceID     string
	AmountPaid    int64
	Currency      string
	CustomerEmail string
}

type InvoicePaymentFailed struct {
	baseEvent
	InvoiceID     string
	AmountDue     int64
	CustomerEmail string
	AttemptCount  int
}

type UnknownEvent struct {
	baseEvent
}

// Decode narrows a verified payload into a typed event. It fails on malformed
// JSON or a missing event id, never on an unrecognized type.
func Decode(payload []byte) (Parsed, error) {
	var ev envelope
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(ev.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	base := baseEvent{id: ev.ID, eventType: strings.TrimSpace(ev.Type)}

	switch base.eventType {
	case "checkout.session.completed":
		var session checkoutSessionObject
		if err := json.Unmarshal(ev.Data.Object, &session); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		email := session.CustomerEmail
		if email == "" {
			email = session.CustomerDetails.Email
		}
		return CheckoutSessionCompleted{
			baseEvent:         base,
			SessionID:         session.ID,
			CustomerID:        session.Customer,
			SubscriptionID:    session.Subscription,
			ClientReferenceID: session.ClientReferenceID,
			CustomerEmail:     email,
			Metadata:          session.Metadata,
		}, nil

	case "customer.subscription.updated":
		sub, err := decodeSubscription(ev.Data.Object)
		if err != nil {
			return nil, err
		}
		var priceID string
		if len(sub.Items.Data) > 0 {
			priceID = sub.Items.Data[0].Price.ID
		}
		return SubscriptionUpdated{
			baseEvent:          base,
			SubscriptionID:     sub.ID,
			CustomerID:         sub.Customer,
			Status:             sub.Status,
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
			CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
			PriceID:            priceID,
		}, nil

	case "customer.subscription.deleted":
		sub, err := decodeSubscription(ev.Data.Object)
		if err != nil {
			return nil, err
		}
		return SubscriptionDeleted{
			baseEvent:      base,
			SubscriptionID: sub.ID,
		}, nil

	case "invoice.paid":
		inv, err := decodeInvoice(ev.Data.Object)
		if err != nil {
			return nil, err
		}
		return InvoicePaid{
			baseEvent:     base,
			InvoiceID:     inv.ID,
			AmountPaid:    inv.AmountPaid,
			Currency:      inv.Currency,
			CustomerEmail: inv.CustomerEmail,
		}, nil

	case "invoice.payment_failed":
		inv, err := decodeInvoice(ev.Data.Object)
		if err != nil {
			return nil, err
		}
		return InvoicePaymentFailed{
			baseEvent:     base,
			InvoiceID:     inv.ID,
			AmountDue:     inv.AmountDue,
			CustomerEmail: inv.CustomerEmail,
			AttemptCount:  inv.AttemptCount,
		}, nil

	default:
		return UnknownEvent{baseEvent: base}, nil
	}
}

func decodeSubscription(raw json.RawMessage) (subscriptionObject, error) {
	var sub subscriptionObject
	if err := json.Unmarshal(raw, &sub); err != nil {
		return subscriptionObject{}, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return subscriptionObject{}, paymentdomain.ErrInvalidEvent
	}
	return sub, nil
}

func decodeInvoice(raw json.RawMessage) (invoiceObject, error) {
	var inv invoiceObject
	if err := json.Unmarshal(raw, &inv); err != nil {
		return invoiceObject{}, paymentdomain.ErrInvalidPayload
	}
	return inv, nil
}
