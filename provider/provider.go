// Package provider defines the external payment provider boundary. The
// engine only sees checkouts, lookups and verified webhook events; the
// Stripe adapter lives in provider/stripe.
package provider

import (
	"context"
	"errors"
	"strconv"

	"github.com/xraph/mockprep/types"
)

var (
	// ErrUnavailable marks transport failures and timeouts. Callers may retry.
	ErrUnavailable = errors.New("provider: unavailable")

	// ErrInvalidSignature is returned by ParseWebhook for forged or stale payloads.
	ErrInvalidSignature = errors.New("provider: invalid webhook signature")

	// ErrNotFound is returned by Lookup for unknown external ids.
	ErrNotFound = errors.New("provider: object not found")
)

// Metadata keys attached to every checkout.
const (
	MetaUserID   = "user_id"
	MetaPlanID   = "plan_id"
	MetaCredits  = "credits"
	MetaPlanName = "plan_name"
)

// EventType is the subset of provider events the engine acts on.
type EventType string

const (
	EventCheckoutCompleted      EventType = "checkout.session.completed"
	EventCheckoutExpired        EventType = "checkout.session.expired"
	EventPaymentIntentSucceeded EventType = "payment_intent.succeeded"
	EventPaymentIntentFailed    EventType = "payment_intent.payment_failed"
	EventPaymentIntentCanceled  EventType = "payment_intent.canceled"
)

// Outcome is how an external payment ended without being paid. The zero
// value means it is still open.
type Outcome string

const (
	OutcomeOpen      Outcome = ""
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// CheckoutRequest describes a one-off credit-pack purchase. Payment
// intents use the same request and ignore the redirect URLs.
type CheckoutRequest struct {
	UserID     string
	Email      string
	PlanID     string
	PlanName   string
	Credits    int64
	Amount     types.Money
	SuccessURL string
	CancelURL  string
}

// Metadata returns the key/value pairs attached to the checkout.
func (r CheckoutRequest) Metadata() map[string]string {
	return map[string]string{
		MetaUserID:   r.UserID,
		MetaPlanID:   r.PlanID,
		MetaCredits:  strconv.FormatInt(r.Credits, 10),
		MetaPlanName: r.PlanName,
	}
}

// Checkout is the provider's answer to CreateCheckout.
type Checkout struct {
	ExternalID string
	URL        string
}

// Intent is the provider's answer to CreatePaymentIntent. ClientSecret is
// handed to the browser to confirm the payment.
type Intent struct {
	ExternalID   string
	ClientSecret string
}

// Status is the provider's view of an external payment.
type Status struct {
	ExternalID string
	Paid       bool
	Outcome    Outcome
	State      string
	Amount     int64
	Metadata   map[string]string
}

// Event is a verified webhook event.
type Event struct {
	ID         string
	Type       EventType
	ExternalID string
	Paid       bool
	Outcome    Outcome
	Metadata   map[string]string
}

// Provider is implemented by payment backends.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	CreatePaymentIntent(ctx context.Context, req CheckoutRequest) (*Intent, error)
	Lookup(ctx context.Context, externalID string) (*Status, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
