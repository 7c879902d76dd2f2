// Package providertest provides an in-memory payment provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/xraph/mockprep/provider"
)

// Fake records checkouts and lets tests flip them to paid.
type Fake struct {
	mu        sync.Mutex
	seq       atomic.Int64
	checkouts map[string]*provider.Status
	requests  []provider.CheckoutRequest

	// Secret is the expected webhook signature. Empty accepts anything.
	Secret string
	// Err, when set, is returned from every network-style call.
	Err error
	// Lookups counts Lookup calls.
	Lookups atomic.Int64
}

var _ provider.Provider = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{checkouts: make(map[string]*provider.Status)}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) CreateCheckout(_ context.Context, req provider.CheckoutRequest) (*provider.Checkout, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	ext := fmt.Sprintf("cs_test_%d", f.seq.Add(1))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.checkouts[ext] = &provider.Status{
		ExternalID: ext,
		State:      "unpaid",
		Amount:     req.Amount.Amount,
		Metadata:   req.Metadata(),
	}
	return &provider.Checkout{ExternalID: ext, URL: "https://checkout.test/" + ext}, nil
}

func (f *Fake) CreatePaymentIntent(_ context.Context, req provider.CheckoutRequest) (*provider.Intent, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	ext := fmt.Sprintf("pi_test_%d", f.seq.Add(1))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.checkouts[ext] = &provider.Status{
		ExternalID: ext,
		State:      "requires_payment_method",
		Amount:     req.Amount.Amount,
		Metadata:   req.Metadata(),
	}
	return &provider.Intent{ExternalID: ext, ClientSecret: ext + "_secret"}, nil
}

func (f *Fake) Lookup(_ context.Context, externalID string) (*provider.Status, error) {
	f.Lookups.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.checkouts[externalID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// ParseWebhook accepts the JSON form of provider.Event.
func (f *Fake) ParseWebhook(payload []byte, signature string) (*provider.Event, error) {
	if f.Secret != "" && signature != f.Secret {
		return nil, provider.ErrInvalidSignature
	}
	var ev provider.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("providertest: decode event: %w", err)
	}
	return &ev, nil
}

// MarkPaid flips a checkout to paid. A failed intent can still be paid
// on retry, so any earlier outcome is cleared.
func (f *Fake) MarkPaid(externalID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.checkouts[externalID]; ok {
		st.Paid = true
		st.State = "paid"
		st.Outcome = provider.OutcomeOpen
	}
}

// Expire closes an unpaid checkout or intent as cancelled.
func (f *Fake) Expire(externalID string) {
	f.close(externalID, provider.OutcomeCancelled, "expired")
}

// Fail closes an unpaid intent as failed.
func (f *Fake) Fail(externalID string) {
	f.close(externalID, provider.OutcomeFailed, "requires_payment_method")
}

func (f *Fake) close(externalID string, outcome provider.Outcome, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.checkouts[externalID]; ok && !st.Paid {
		st.Outcome = outcome
		st.State = state
	}
}

// Requests returns every checkout request seen so far.
func (f *Fake) Requests() []provider.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]provider.CheckoutRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// CompletedEvent builds a paid checkout webhook payload for externalID.
func CompletedEvent(externalID string) []byte {
	return Event(provider.EventCheckoutCompleted, externalID, true, provider.OutcomeOpen)
}

// ExpiredEvent builds an expired checkout webhook payload for externalID.
func ExpiredEvent(externalID string) []byte {
	return Event(provider.EventCheckoutExpired, externalID, false, provider.OutcomeCancelled)
}

// Event builds a webhook payload of any type.
func Event(typ provider.EventType, externalID string, paid bool, outcome provider.Outcome) []byte {
	b, _ := json.Marshal(provider.Event{ //nolint:errcheck // static shape
		ID:         "evt_" + string(typ) + "_" + externalID,
		Type:       typ,
		ExternalID: externalID,
		Paid:       paid,
		Outcome:    outcome,
	})
	return b
}
