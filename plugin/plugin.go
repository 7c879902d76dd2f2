// Package plugin provides an extensible plugin system for the mockprep engine.
// Plugins hook into account, ledger, conversation and payment events.
package plugin

import (
	"context"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/user"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *mockprep.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserRegistered is called after a user and their signup bonus are stored.
type OnUserRegistered interface {
	Plugin
	OnUserRegistered(ctx context.Context, u *user.User) error
}

// OnReferralCredited is called after both referral bonuses were applied.
type OnReferralCredited interface {
	Plugin
	OnReferralCredited(ctx context.Context, r *referral.Referral) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCreditsGranted is called for every positive ledger transaction.
type OnCreditsGranted interface {
	Plugin
	OnCreditsGranted(ctx context.Context, tx *credit.Transaction) error
}

// OnCreditsDebited is called for every negative ledger transaction.
type OnCreditsDebited interface {
	Plugin
	OnCreditsDebited(ctx context.Context, tx *credit.Transaction) error
}

// OnInsufficientCredits is called when a debit is rejected.
type OnInsufficientCredits interface {
	Plugin
	OnInsufficientCredits(ctx context.Context, userID string, requested int64) error
}

// ──────────────────────────────────────────────────
// Conversation hooks
// ──────────────────────────────────────────────────

// OnConversationStarted is called when a session is created.
type OnConversationStarted interface {
	Plugin
	OnConversationStarted(ctx context.Context, c *conversation.Conversation) error
}

// OnConversationCompleted is called once per session on completion.
type OnConversationCompleted interface {
	Plugin
	OnConversationCompleted(ctx context.Context, c *conversation.Conversation) error
}

// OnConversationCancelled is called once per session on cancellation.
type OnConversationCancelled interface {
	Plugin
	OnConversationCancelled(ctx context.Context, c *conversation.Conversation) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnCheckoutCreated is called after a pending payment is stored.
type OnCheckoutCreated interface {
	Plugin
	OnCheckoutCreated(ctx context.Context, p *payment.Payment, checkoutURL string) error
}

// OnPaymentSettled is called exactly once per payment, by whichever
// reconciliation path won. source is "webhook", "confirm" or "recovery".
type OnPaymentSettled interface {
	Plugin
	OnPaymentSettled(ctx context.Context, p *payment.Payment, source string) error
}

// OnWebhookReceived is called for every verified provider webhook.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, provider, eventType string, payload []byte) error
}
