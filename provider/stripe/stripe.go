// Package stripe adapts Stripe Checkout to provider.Provider.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/xraph/mockprep/provider"
)

// Config configures the Stripe adapter.
type Config struct {
	SecretKey     string
	WebhookSecret string

	// APIURL overrides the Stripe API base URL.
	APIURL     string
	HTTPClient *http.Client
	MaxRetries int64

	// Tolerance bounds the age of a signed webhook. Zero uses the library default.
	Tolerance time.Duration
	Logger    *slog.Logger
}

// Provider talks to Stripe through a per-instance client; no global key is set.
type Provider struct {
	client        *stripe.Client
	webhookSecret string
	tolerance     time.Duration
}

var _ provider.Provider = (*Provider)(nil)

// New builds a Provider from cfg.
func New(cfg Config) (*Provider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backend := &stripe.BackendConfig{
		HTTPClient:        cfg.HTTPClient,
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     slogLogger{logger.With("component", "stripe")},
	}
	if cfg.APIURL != "" {
		backend.URL = stripe.String(cfg.APIURL)
	}

	return &Provider{
		client:        stripe.NewClient(cfg.SecretKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backend))),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     cfg.Tolerance,
	}, nil
}

func (p *Provider) Name() string { return "stripe" }

// CreateCheckout opens a one-time payment Checkout Session for the credit pack.
func (p *Provider) CreateCheckout(ctx context.Context, req provider.CheckoutRequest) (*provider.Checkout, error) {
	meta := req.Metadata()
	params := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(stripe.CheckoutSessionModePayment),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(req.Amount.Currency),
				UnitAmount: stripe.Int64(req.Amount.Amount),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name:        stripe.String(fmt.Sprintf("%s Plan - %d Credits", req.PlanName, req.Credits)),
					Description: stripe.String(fmt.Sprintf("%d interview credits", req.Credits)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		Metadata:          meta,
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: meta,
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	sess, err := p.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, classify("create checkout", err)
	}
	return &provider.Checkout{ExternalID: sess.ID, URL: sess.URL}, nil
}

// CreatePaymentIntent opens a PaymentIntent for the credit pack, carrying
// the same metadata as a checkout.
func (p *Provider) CreatePaymentIntent(ctx context.Context, req provider.CheckoutRequest) (*provider.Intent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:      stripe.Int64(req.Amount.Amount),
		Currency:    stripe.String(req.Amount.Currency),
		Description: stripe.String(fmt.Sprintf("%s Plan - %d Credits", req.PlanName, req.Credits)),
		Metadata:    req.Metadata(),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}

	pi, err := p.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}
	return &provider.Intent{ExternalID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Lookup retrieves a Checkout Session ("cs_") or a PaymentIntent ("pi_").
func (p *Provider) Lookup(ctx context.Context, externalID string) (*provider.Status, error) {
	if strings.HasPrefix(externalID, "pi_") {
		pi, err := p.client.V1PaymentIntents.Retrieve(ctx, externalID, nil)
		if err != nil {
			return nil, classify("retrieve payment intent", err)
		}
		return paymentIntentStatus(pi), nil
	}

	sess, err := p.client.V1CheckoutSessions.Retrieve(ctx, externalID, nil)
	if err != nil {
		return nil, classify("retrieve checkout session", err)
	}
	return sessionStatus(sess), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the events
// the engine acts on. Other event types come back with only ID and Type set.
func (p *Provider) ParseWebhook(payload []byte, signature string) (*provider.Event, error) {
	if p.webhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", provider.ErrInvalidSignature)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %w", provider.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("stripe: decode event: %w", err)
	}

	out := &provider.Event{ID: ev.ID, Type: provider.EventType(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	var st *provider.Status
	switch out.Type {
	case provider.EventCheckoutCompleted, provider.EventCheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
		}
		st = sessionStatus(&sess)
	case provider.EventPaymentIntentSucceeded, provider.EventPaymentIntentFailed, provider.EventPaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: decode payment intent: %w", err)
		}
		st = paymentIntentStatus(&pi)
		if out.Type == provider.EventPaymentIntentFailed && !st.Paid {
			st.Outcome = provider.OutcomeFailed
		}
	default:
		return out, nil
	}
	out.ExternalID, out.Paid, out.Outcome, out.Metadata = st.ExternalID, st.Paid, st.Outcome, st.Metadata
	return out, nil
}

func sessionStatus(sess *stripe.CheckoutSession) *provider.Status {
	st := &provider.Status{
		ExternalID: sess.ID,
		Paid:       sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		State:      string(sess.PaymentStatus),
		Amount:     sess.AmountTotal,
		Metadata:   sess.Metadata,
	}
	if !st.Paid && sess.Status == stripe.CheckoutSessionStatusExpired {
		st.Outcome = provider.OutcomeCancelled
		st.State = string(sess.Status)
	}
	return st
}

func paymentIntentStatus(pi *stripe.PaymentIntent) *provider.Status {
	st := &provider.Status{
		ExternalID: pi.ID,
		Paid:       pi.Status == stripe.PaymentIntentStatusSucceeded,
		State:      string(pi.Status),
		Amount:     pi.Amount,
		Metadata:   pi.Metadata,
	}
	if pi.Status == stripe.PaymentIntentStatusCanceled {
		st.Outcome = provider.OutcomeCancelled
	}
	return st
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// classify maps Stripe errors onto provider sentinels.
func classify(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.Code == stripe.ErrorCodeResourceMissing || serr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %s", provider.ErrNotFound, op, serr.Msg)
		}
		return fmt.Errorf("%w: %s: %s (status %d)", provider.ErrUnavailable, op, serr.Msg, serr.HTTPStatusCode)
	}
	return fmt.Errorf("%w: %s: %w", provider.ErrUnavailable, op, err)
}

// slogLogger routes stripe-go's leveled logging into slog.
type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debugf(format string, v ...any) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s slogLogger) Infof(format string, v ...any)  { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s slogLogger) Warnf(format string, v ...any)  { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s slogLogger) Errorf(format string, v ...any) { s.l.Error(fmt.Sprintf(format, v...)) }
