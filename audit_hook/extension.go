// Package audithook bridges mockprep lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/plugin"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/user"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnUserRegistered        = (*Extension)(nil)
	_ plugin.OnReferralCredited      = (*Extension)(nil)
	_ plugin.OnCreditsGranted        = (*Extension)(nil)
	_ plugin.OnCreditsDebited        = (*Extension)(nil)
	_ plugin.OnInsufficientCredits   = (*Extension)(nil)
	_ plugin.OnConversationStarted   = (*Extension)(nil)
	_ plugin.OnConversationCompleted = (*Extension)(nil)
	_ plugin.OnConversationCancelled = (*Extension)(nil)
	_ plugin.OnCheckoutCreated       = (*Extension)(nil)
	_ plugin.OnPaymentSettled        = (*Extension)(nil)
	_ plugin.OnWebhookReceived       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges mockprep lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserRegistered implements plugin.OnUserRegistered.
func (e *Extension) OnUserRegistered(ctx context.Context, u *user.User) error {
	return e.record(ctx, ActionUserRegistered, SeverityInfo, OutcomeSuccess,
		ResourceUser, u.ID.String(), CategoryAccount, nil,
		"role", string(u.Role),
		"referred", !u.ReferredBy.IsNil(),
		"credits", u.Credits,
	)
}

// OnReferralCredited implements plugin.OnReferralCredited.
func (e *Extension) OnReferralCredited(ctx context.Context, r *referral.Referral) error {
	return e.record(ctx, ActionReferralCredited, SeverityInfo, OutcomeSuccess,
		ResourceReferral, r.ID.String(), CategoryAccount, nil,
		"referrer_id", r.ReferrerID.String(),
		"referred_id", r.ReferredID.String(),
		"bonus_credits", r.BonusCredits,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (e *Extension) OnCreditsGranted(ctx context.Context, tx *credit.Transaction) error {
	return e.record(ctx, ActionCreditsGranted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryLedger, nil,
		transactionMeta(tx)...,
	)
}

// OnCreditsDebited implements plugin.OnCreditsDebited.
func (e *Extension) OnCreditsDebited(ctx context.Context, tx *credit.Transaction) error {
	return e.record(ctx, ActionCreditsDebited, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.String(), CategoryLedger, nil,
		transactionMeta(tx)...,
	)
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (e *Extension) OnInsufficientCredits(ctx context.Context, userID string, requested int64) error {
	return e.record(ctx, ActionInsufficientCredits, SeverityWarning, OutcomeFailure,
		ResourceUser, userID, CategoryLedger, nil,
		"requested", requested,
	)
}

func transactionMeta(tx *credit.Transaction) []any {
	kv := []any{
		"user_id", tx.UserID.String(),
		"amount", tx.Amount,
		"type", string(tx.Type),
		"balance_after", tx.BalanceAfter,
	}
	if !tx.ConversationID.IsNil() {
		kv = append(kv, "conversation_id", tx.ConversationID.String())
	}
	if !tx.PaymentID.IsNil() {
		kv = append(kv, "payment_id", tx.PaymentID.String())
	}
	return kv
}

// ──────────────────────────────────────────────────
// Conversation hooks
// ──────────────────────────────────────────────────

// OnConversationStarted implements plugin.OnConversationStarted.
func (e *Extension) OnConversationStarted(ctx context.Context, c *conversation.Conversation) error {
	return e.record(ctx, ActionConversationStarted, SeverityInfo, OutcomeSuccess,
		ResourceConversation, c.ID.String(), CategoryUsage, nil,
		"user_id", c.UserID.String(),
		"type", c.Type,
	)
}

// OnConversationCompleted implements plugin.OnConversationCompleted.
func (e *Extension) OnConversationCompleted(ctx context.Context, c *conversation.Conversation) error {
	kv := []any{
		"user_id", c.UserID.String(),
		"duration_minutes", c.DurationMinutes,
		"credits_used", c.CreditsUsed,
	}
	if c.Analysis != nil {
		kv = append(kv, "overall_score", c.Analysis.OverallScore)
	}
	return e.record(ctx, ActionConversationCompleted, SeverityInfo, OutcomeSuccess,
		ResourceConversation, c.ID.String(), CategoryUsage, nil,
		kv...,
	)
}

// OnConversationCancelled implements plugin.OnConversationCancelled.
func (e *Extension) OnConversationCancelled(ctx context.Context, c *conversation.Conversation) error {
	return e.record(ctx, ActionConversationCancelled, SeverityInfo, OutcomeSuccess,
		ResourceConversation, c.ID.String(), CategoryUsage, nil,
		"user_id", c.UserID.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnCheckoutCreated implements plugin.OnCheckoutCreated.
func (e *Extension) OnCheckoutCreated(ctx context.Context, p *payment.Payment, _ string) error {
	return e.record(ctx, ActionCheckoutCreated, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		paymentMeta(p)...,
	)
}

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (e *Extension) OnPaymentSettled(ctx context.Context, p *payment.Payment, source string) error {
	return e.record(ctx, ActionPaymentSettled, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		append(paymentMeta(p), "source", source)...,
	)
}

// OnWebhookReceived implements plugin.OnWebhookReceived. The payload is
// not recorded.
func (e *Extension) OnWebhookReceived(ctx context.Context, provider, eventType string, payload []byte) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, "", CategoryIntegration, nil,
		"provider", provider,
		"event_type", eventType,
		"payload_bytes", len(payload),
	)
}

func paymentMeta(p *payment.Payment) []any {
	return []any{
		"user_id", p.UserID.String(),
		"external_id", p.ExternalID,
		"plan_id", p.PlanID,
		"credits", p.Credits,
		"amount", p.Amount.String(),
	}
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
