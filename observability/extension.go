// Package observability provides a metrics extension for mockprep that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	gometrics "github.com/xraph/go-utils/metrics"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/plugin"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/user"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnUserRegistered        = (*MetricsExtension)(nil)
	_ plugin.OnReferralCredited      = (*MetricsExtension)(nil)
	_ plugin.OnCreditsGranted        = (*MetricsExtension)(nil)
	_ plugin.OnCreditsDebited        = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientCredits   = (*MetricsExtension)(nil)
	_ plugin.OnConversationStarted   = (*MetricsExtension)(nil)
	_ plugin.OnConversationCompleted = (*MetricsExtension)(nil)
	_ plugin.OnConversationCancelled = (*MetricsExtension)(nil)
	_ plugin.OnCheckoutCreated       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSettled        = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// FromGoUtils adapts a go-utils metric factory, such as a forge app's
// Metrics() or metrics.NewMetricsCollector, to MetricFactory.
func FromGoUtils(f gometrics.MetricFactory) MetricFactory {
	return goUtilsFactory{f: f}
}

type goUtilsFactory struct {
	f gometrics.MetricFactory
}

func (g goUtilsFactory) Counter(name string) Counter     { return g.f.Counter(name) }
func (g goUtilsFactory) Histogram(name string) Histogram { return g.f.Histogram(name) }

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a mockprep plugin to track account, ledger and payment metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	UsersRegistered   Counter
	ReferralsCredited Counter

	// Ledger metrics
	CreditsGranted       Counter
	CreditsDebited       Counter
	InsufficientCredits  Counter
	GrantAmount          Histogram
	PurchaseCreditsTotal Counter

	// Conversation metrics
	ConversationsStarted   Counter
	ConversationsCompleted Counter
	ConversationsCancelled Counter
	ConversationMinutes    Histogram
	ConversationScore      Histogram

	// Payment metrics
	CheckoutsCreated  Counter
	PaymentsSettled   Counter
	SettledByWebhook  Counter
	SettledByConfirm  Counter
	SettledByRecovery Counter
	RevenueCents      Counter
	WebhookReceived   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use FromGoUtils(app.Metrics()) in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		UsersRegistered:   factory.Counter("mockprep.users.registered"),
		ReferralsCredited: factory.Counter("mockprep.referrals.credited"),

		CreditsGranted:       factory.Counter("mockprep.credits.granted"),
		CreditsDebited:       factory.Counter("mockprep.credits.debited"),
		InsufficientCredits:  factory.Counter("mockprep.credits.insufficient"),
		GrantAmount:          factory.Histogram("mockprep.credits.grant_amount"),
		PurchaseCreditsTotal: factory.Counter("mockprep.credits.purchased"),

		ConversationsStarted:   factory.Counter("mockprep.conversations.started"),
		ConversationsCompleted: factory.Counter("mockprep.conversations.completed"),
		ConversationsCancelled: factory.Counter("mockprep.conversations.cancelled"),
		ConversationMinutes:    factory.Histogram("mockprep.conversations.duration_minutes"),
		ConversationScore:      factory.Histogram("mockprep.conversations.overall_score"),

		CheckoutsCreated:  factory.Counter("mockprep.checkouts.created"),
		PaymentsSettled:   factory.Counter("mockprep.payments.settled"),
		SettledByWebhook:  factory.Counter("mockprep.payments.settled.webhook"),
		SettledByConfirm:  factory.Counter("mockprep.payments.settled.confirm"),
		SettledByRecovery: factory.Counter("mockprep.payments.settled.recovery"),
		RevenueCents:      factory.Counter("mockprep.payments.revenue_cents"),
		WebhookReceived:   factory.Counter("mockprep.webhooks.received"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserRegistered implements plugin.OnUserRegistered.
func (m *MetricsExtension) OnUserRegistered(_ context.Context, _ *user.User) error {
	m.UsersRegistered.Inc()
	return nil
}

// OnReferralCredited implements plugin.OnReferralCredited.
func (m *MetricsExtension) OnReferralCredited(_ context.Context, _ *referral.Referral) error {
	m.ReferralsCredited.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsGranted implements plugin.OnCreditsGranted.
func (m *MetricsExtension) OnCreditsGranted(_ context.Context, tx *credit.Transaction) error {
	m.CreditsGranted.Add(float64(tx.Amount))
	m.GrantAmount.Observe(float64(tx.Amount))
	if tx.Type == credit.TypePurchase {
		m.PurchaseCreditsTotal.Add(float64(tx.Amount))
	}
	return nil
}

// OnCreditsDebited implements plugin.OnCreditsDebited.
func (m *MetricsExtension) OnCreditsDebited(_ context.Context, tx *credit.Transaction) error {
	m.CreditsDebited.Add(float64(-tx.Amount))
	return nil
}

// OnInsufficientCredits implements plugin.OnInsufficientCredits.
func (m *MetricsExtension) OnInsufficientCredits(_ context.Context, _ string, _ int64) error {
	m.InsufficientCredits.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Conversation hooks
// ──────────────────────────────────────────────────

// OnConversationStarted implements plugin.OnConversationStarted.
func (m *MetricsExtension) OnConversationStarted(_ context.Context, _ *conversation.Conversation) error {
	m.ConversationsStarted.Inc()
	return nil
}

// OnConversationCompleted implements plugin.OnConversationCompleted.
func (m *MetricsExtension) OnConversationCompleted(_ context.Context, c *conversation.Conversation) error {
	m.ConversationsCompleted.Inc()
	m.ConversationMinutes.Observe(float64(c.DurationMinutes))
	if c.Analysis != nil {
		m.ConversationScore.Observe(c.Analysis.OverallScore)
	}
	return nil
}

// OnConversationCancelled implements plugin.OnConversationCancelled.
func (m *MetricsExtension) OnConversationCancelled(_ context.Context, _ *conversation.Conversation) error {
	m.ConversationsCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnCheckoutCreated implements plugin.OnCheckoutCreated.
func (m *MetricsExtension) OnCheckoutCreated(_ context.Context, _ *payment.Payment, _ string) error {
	m.CheckoutsCreated.Inc()
	return nil
}

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (m *MetricsExtension) OnPaymentSettled(_ context.Context, p *payment.Payment, source string) error {
	m.PaymentsSettled.Inc()
	m.RevenueCents.Add(float64(p.Amount.Amount))
	switch source {
	case mockprep.SourceWebhook:
		m.SettledByWebhook.Inc()
	case mockprep.SourceConfirm:
		m.SettledByConfirm.Inc()
	case mockprep.SourceRecovery:
		m.SettledByRecovery.Inc()
	}
	return nil
}

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _, _ string, _ []byte) error {
	m.WebhookReceived.Inc()
	return nil
}
