package mockprep

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/plan"
	"github.com/xraph/mockprep/provider"
	"github.com/xraph/mockprep/types"
	"github.com/xraph/mockprep/user"
)

// Settlement sources passed to OnPaymentSettled.
const (
	SourceWebhook  = "webhook"
	SourceConfirm  = "confirm"
	SourceRecovery = "recovery"
)

// ──────────────────────────────────────────────────
// Checkout
// ──────────────────────────────────────────────────

// CheckoutResult is a pending payment plus the provider redirect URL.
type CheckoutResult struct {
	Payment *payment.Payment `json:"payment"`
	URL     string           `json:"url"`
}

// CreateCheckout resolves planID from the catalog, opens a provider
// checkout and stores the pending payment. origin is the client origin
// used for the success and cancel redirects.
func (e *Engine) CreateCheckout(ctx context.Context, userID id.UserID, planID, origin string) (*CheckoutResult, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	p, ok := plan.Lookup(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		origin = e.defaultOrigin
	}
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		return nil, Invalid("origin", "an absolute http(s) origin is required")
	}

	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	req := purchaseRequest(u, p)
	req.SuccessURL = origin + e.successPath + "?session_id={CHECKOUT_SESSION_ID}&plan_id=" + p.ID
	req.CancelURL = origin + e.cancelPath

	pctx, cancel := context.WithTimeout(ctx, e.providerTimeout)
	defer cancel()
	co, err := e.provider.CreateCheckout(pctx, req)
	if err != nil {
		return nil, e.providerError("create checkout", err)
	}

	pay, err := e.recordPending(ctx, u, p, co.ExternalID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("checkout created",
		"payment_id", pay.ID.String(),
		"user_id", u.ID.String(),
		"plan_id", p.ID,
		"external_id", co.ExternalID,
	)
	e.plugins.EmitCheckoutCreated(ctx, pay, co.URL)
	return &CheckoutResult{Payment: pay, URL: co.URL}, nil
}

// IntentResult is a pending payment plus the client secret an embedded
// payment form confirms against.
type IntentResult struct {
	Payment      *payment.Payment `json:"payment"`
	ClientSecret string           `json:"client_secret"`
}

// CreatePaymentIntent is the embedded-form alternative to CreateCheckout.
// The pending payment is keyed by the intent ID and settles through the
// same webhook, confirm and recovery paths as a checkout session.
func (e *Engine) CreatePaymentIntent(ctx context.Context, userID id.UserID, planID string) (*IntentResult, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	p, ok := plan.Lookup(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, e.providerTimeout)
	defer cancel()
	in, err := e.provider.CreatePaymentIntent(pctx, purchaseRequest(u, p))
	if err != nil {
		return nil, e.providerError("create payment intent", err)
	}

	pay, err := e.recordPending(ctx, u, p, in.ExternalID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("payment intent created",
		"payment_id", pay.ID.String(),
		"user_id", u.ID.String(),
		"plan_id", p.ID,
		"external_id", in.ExternalID,
	)
	e.plugins.EmitCheckoutCreated(ctx, pay, "")
	return &IntentResult{Payment: pay, ClientSecret: in.ClientSecret}, nil
}

func purchaseRequest(u *user.User, p plan.Plan) provider.CheckoutRequest {
	return provider.CheckoutRequest{
		UserID:   u.ID.String(),
		Email:    u.Email,
		PlanID:   p.ID,
		PlanName: p.Name,
		Credits:  p.Credits,
		Amount:   p.Price,
	}
}

func (e *Engine) recordPending(ctx context.Context, u *user.User, p plan.Plan, externalID string) (*payment.Payment, error) {
	pay := &payment.Payment{
		Entity:     types.NewEntity(),
		ID:         id.NewPaymentID(),
		UserID:     u.ID,
		ExternalID: externalID,
		PlanID:     p.ID,
		PlanName:   p.Name,
		Amount:     p.Price,
		Credits:    p.Credits,
		Status:     payment.StatusPending,
	}
	if err := e.store.CreatePayment(ctx, pay); err != nil {
		return nil, err
	}
	return pay, nil
}

// Payments returns the user's payments newest first.
func (e *Engine) Payments(ctx context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Payment, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultTransactionsLimit
	}
	return e.store.ListPayments(ctx, userID, opts)
}

// ──────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────

// settle performs the single-shot pending → completed transition together
// with the purchase credit. It reports settled=false, with a nil error,
// when another path already settled the payment.
func (e *Engine) settle(ctx context.Context, p *payment.Payment, source string) (*payment.Payment, bool, error) {
	tx := credit.NewCredit(credit.Entry{
		UserID:      p.UserID,
		Amount:      p.Credits,
		Type:        credit.TypePurchase,
		Description: fmt.Sprintf("Purchased %s plan (%d credits)", p.PlanName, p.Credits),
		PaymentID:   p.ID,
	})

	settled, err := e.store.SettlePayment(ctx, p.ID, tx)
	if errors.Is(err, ErrPaymentAlreadySettled) {
		e.logger.Debug("payment already settled",
			"payment_id", p.ID.String(),
			"source", source,
		)
		current, gerr := e.store.GetPayment(ctx, p.ID)
		if gerr != nil {
			return p, false, nil
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	e.logger.Info("payment settled",
		"payment_id", settled.ID.String(),
		"user_id", settled.UserID.String(),
		"credits", settled.Credits,
		"source", source,
	)
	e.plugins.EmitCreditsGranted(ctx, tx)
	e.plugins.EmitPaymentSettled(ctx, settled, source)
	return settled, true, nil
}

// closePayment records a provider-side expiry or failure. A payment that
// already completed is left alone, so a late close never undoes a settle.
func (e *Engine) closePayment(ctx context.Context, p *payment.Payment, outcome provider.Outcome, source string) (bool, error) {
	status := payment.StatusCancelled
	if outcome == provider.OutcomeFailed {
		status = payment.StatusFailed
	}
	if p.Status == status {
		return false, nil
	}

	err := e.store.MarkPayment(ctx, p.ID, status)
	if errors.Is(err, ErrPaymentAlreadySettled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	p.Status = status

	e.logger.Info("payment closed",
		"payment_id", p.ID.String(),
		"user_id", p.UserID.String(),
		"status", string(status),
		"source", source,
	)
	return true, nil
}

// WebhookResult describes how a verified webhook was handled.
type WebhookResult struct {
	EventID   string             `json:"event_id"`
	EventType provider.EventType `json:"event_type"`
	Handled   bool               `json:"handled"`
	Settled   bool               `json:"settled"`
	Closed    bool               `json:"closed"`
	PaymentID id.PaymentID       `json:"payment_id,omitempty"`
}

// HandleWebhook verifies and applies a provider webhook. Payments the
// store does not know are logged and acknowledged.
func (e *Engine) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}

	ev, err := e.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidSignature) {
			return nil, fmt.Errorf("%w: %w", ErrWebhookSignature, err)
		}
		return nil, fmt.Errorf("%w: webhook payload: %w", ErrInvalidInput, err)
	}
	e.plugins.EmitWebhookReceived(ctx, e.provider.Name(), string(ev.Type), payload)

	res := &WebhookResult{EventID: ev.ID, EventType: ev.Type}
	switch ev.Type {
	case provider.EventCheckoutCompleted, provider.EventPaymentIntentSucceeded,
		provider.EventCheckoutExpired, provider.EventPaymentIntentFailed, provider.EventPaymentIntentCanceled:
	default:
		e.logger.Debug("webhook ignored", "event_id", ev.ID, "type", ev.Type)
		return res, nil
	}
	res.Handled = true

	if !ev.Paid && ev.Outcome == provider.OutcomeOpen {
		e.logger.Info("webhook for unpaid checkout", "event_id", ev.ID, "external_id", ev.ExternalID)
		return res, nil
	}

	p, err := e.store.GetPaymentByExternalID(ctx, ev.ExternalID)
	if errors.Is(err, ErrPaymentNotFound) {
		e.logger.Warn("webhook for unknown payment",
			"event_id", ev.ID,
			"external_id", ev.ExternalID,
			"user_id", ev.Metadata[provider.MetaUserID],
		)
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res.PaymentID = p.ID

	if !ev.Paid {
		closed, err := e.closePayment(ctx, p, ev.Outcome, SourceWebhook)
		if err != nil {
			return nil, err
		}
		res.Closed = closed
		return res, nil
	}

	settled, ok, err := e.settle(ctx, p, SourceWebhook)
	if err != nil {
		return nil, err
	}
	res.Settled = ok
	res.PaymentID = settled.ID
	return res, nil
}

// Confirmation is the result of a client-confirmed checkout.
type Confirmation struct {
	Payment        *payment.Payment `json:"payment"`
	Settled        bool             `json:"settled"`
	AlreadySettled bool             `json:"already_settled"`
	Balance        int64            `json:"balance"`
}

// ConfirmCheckout re-queries the provider for sessionID and settles the
// payment only when the provider reports it paid. A session the provider
// reports expired or failed is closed before ErrPaymentNotPaid is returned.
func (e *Engine) ConfirmCheckout(ctx context.Context, userID id.UserID, sessionID string) (*Confirmation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, Invalid("session_id", "required")
	}
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}

	p, err := e.store.GetPaymentByExternalID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrPaymentNotFound
	}

	if p.Status == payment.StatusCancelled {
		return nil, fmt.Errorf("%w: payment is cancelled", ErrPaymentNotPaid)
	}

	out := &Confirmation{Payment: p}
	if p.CanSettle() {
		st, err := e.lookup(ctx, p.ExternalID)
		if err != nil {
			return nil, err
		}
		if !st.Paid {
			if st.Outcome != provider.OutcomeOpen {
				if _, err := e.closePayment(ctx, p, st.Outcome, SourceConfirm); err != nil {
					return nil, err
				}
			}
			return nil, fmt.Errorf("%w: provider reports %q", ErrPaymentNotPaid, st.State)
		}
		settled, ok, err := e.settle(ctx, p, SourceConfirm)
		if err != nil {
			return nil, err
		}
		out.Payment, out.Settled = settled, ok
	}
	out.AlreadySettled = !out.Settled

	bal, err := e.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.Balance = bal
	return out, nil
}

// Recovery reports the outcome of a manual recovery sweep.
type Recovery struct {
	Recovered    bool               `json:"recovered"`
	Payment      *payment.Payment   `json:"payment,omitempty"`
	CreditsAdded int64              `json:"credits_added"`
	Checked      int                `json:"checked"`
	Closed       int                `json:"closed"`
	Recent       []*payment.Payment `json:"recent,omitempty"`
	Message      string             `json:"message"`
}

// RecoverPayments re-checks the user's newest pending payments with the
// provider and settles the first one that turns out to be paid. Pending
// payments the provider reports expired are closed along the way.
func (e *Engine) RecoverPayments(ctx context.Context, userID id.UserID) (*Recovery, error) {
	if e.provider == nil {
		return nil, ErrProviderNotConfigured
	}

	pending, err := e.store.ListPayments(ctx, userID, payment.ListOpts{
		Status: payment.StatusPending,
		Limit:  e.recoveryLimit,
	})
	if err != nil {
		return nil, err
	}

	if len(pending) == 0 {
		recent, err := e.store.ListPayments(ctx, userID, payment.ListOpts{
			Since: time.Now().UTC().Add(-e.recentWindow),
			Limit: e.recoveryLimit,
		})
		if err != nil {
			return nil, err
		}
		msg := "No pending payments found"
		if len(recent) > 0 {
			msg = fmt.Sprintf("Found %d recent payments but none are pending", len(recent))
		}
		return &Recovery{Recent: recent, Message: msg}, nil
	}

	rec := &Recovery{}
	var lastErr error
	for _, p := range pending {
		rec.Checked++
		st, err := e.lookup(ctx, p.ExternalID)
		if err != nil {
			e.logger.Warn("recovery lookup failed",
				"payment_id", p.ID.String(),
				"external_id", p.ExternalID,
				"error", err,
			)
			lastErr = err
			continue
		}
		if !st.Paid {
			if st.Outcome != provider.OutcomeOpen {
				closed, err := e.closePayment(ctx, p, st.Outcome, SourceRecovery)
				if err != nil {
					return nil, err
				}
				if closed {
					rec.Closed++
				}
			}
			continue
		}

		settled, ok, err := e.settle(ctx, p, SourceRecovery)
		if err != nil {
			return nil, err
		}
		rec.Payment = settled
		rec.Recovered = ok
		if ok {
			rec.CreditsAdded = settled.Credits
			rec.Message = fmt.Sprintf("Recovered %d credits from %s plan", settled.Credits, settled.PlanName)
		} else {
			rec.Message = "Payment was already credited"
		}
		return rec, nil
	}

	if lastErr != nil && rec.Checked == len(pending) && errors.Is(lastErr, ErrProviderUnavailable) {
		return nil, lastErr
	}
	rec.Message = fmt.Sprintf("Checked %d pending payments; none are paid yet", rec.Checked)
	if rec.Closed > 0 {
		rec.Message += fmt.Sprintf(" (%d expired)", rec.Closed)
	}
	return rec, nil
}

func (e *Engine) lookup(ctx context.Context, externalID string) (*provider.Status, error) {
	pctx, cancel := context.WithTimeout(ctx, e.providerTimeout)
	defer cancel()

	st, err := e.provider.Lookup(pctx, externalID)
	if err != nil {
		return nil, e.providerError("lookup", err)
	}
	return st, nil
}

// providerError maps provider failures onto engine sentinels.
func (e *Engine) providerError(op string, err error) error {
	switch {
	case errors.Is(err, provider.ErrInvalidSignature):
		return fmt.Errorf("%w: %w", ErrWebhookSignature, err)
	case errors.Is(err, provider.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrPaymentNotFound, err)
	default:
		e.logger.Warn("payment provider call failed", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, op, err)
	}
}
