package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/user"
)

// DefaultHookTimeout bounds every plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery so emitting never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                  []OnInit
	onShutdown              []OnShutdown
	onUserRegistered        []OnUserRegistered
	onReferralCredited      []OnReferralCredited
	onCreditsGranted        []OnCreditsGranted
	onCreditsDebited        []OnCreditsDebited
	onInsufficientCredits   []OnInsufficientCredits
	onConversationStarted   []OnConversationStarted
	onConversationCompleted []OnConversationCompleted
	onConversationCancelled []OnConversationCancelled
	onCheckoutCreated       []OnCheckoutCreated
	onPaymentSettled        []OnPaymentSettled
	onWebhookReceived       []OnWebhookReceived
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnUserRegistered); ok {
		r.onUserRegistered = append(r.onUserRegistered, v)
	}
	if v, ok := p.(OnReferralCredited); ok {
		r.onReferralCredited = append(r.onReferralCredited, v)
	}
	if v, ok := p.(OnCreditsGranted); ok {
		r.onCreditsGranted = append(r.onCreditsGranted, v)
	}
	if v, ok := p.(OnCreditsDebited); ok {
		r.onCreditsDebited = append(r.onCreditsDebited, v)
	}
	if v, ok := p.(OnInsufficientCredits); ok {
		r.onInsufficientCredits = append(r.onInsufficientCredits, v)
	}
	if v, ok := p.(OnConversationStarted); ok {
		r.onConversationStarted = append(r.onConversationStarted, v)
	}
	if v, ok := p.(OnConversationCompleted); ok {
		r.onConversationCompleted = append(r.onConversationCompleted, v)
	}
	if v, ok := p.(OnConversationCancelled); ok {
		r.onConversationCancelled = append(r.onConversationCancelled, v)
	}
	if v, ok := p.(OnCheckoutCreated); ok {
		r.onCheckoutCreated = append(r.onCheckoutCreated, v)
	}
	if v, ok := p.(OnPaymentSettled); ok {
		r.onPaymentSettled = append(r.onPaymentSettled, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnUserRegistered", reflect.TypeFor[OnUserRegistered]()},
	{"OnReferralCredited", reflect.TypeFor[OnReferralCredited]()},
	{"OnCreditsGranted", reflect.TypeFor[OnCreditsGranted]()},
	{"OnCreditsDebited", reflect.TypeFor[OnCreditsDebited]()},
	{"OnInsufficientCredits", reflect.TypeFor[OnInsufficientCredits]()},
	{"OnConversationStarted", reflect.TypeFor[OnConversationStarted]()},
	{"OnConversationCompleted", reflect.TypeFor[OnConversationCompleted]()},
	{"OnConversationCancelled", reflect.TypeFor[OnConversationCancelled]()},
	{"OnCheckoutCreated", reflect.TypeFor[OnCheckoutCreated]()},
	{"OnPaymentSettled", reflect.TypeFor[OnPaymentSettled]()},
	{"OnWebhookReceived", reflect.TypeFor[OnWebhookReceived]()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	v := reflect.TypeOf(p)
	var names []string
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit runs call for every plugin in hooks, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list []T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitUserRegistered emits a user registered event.
func (r *Registry) EmitUserRegistered(ctx context.Context, u *user.User) {
	emit(ctx, r, "OnUserRegistered", snapshot(r, r.onUserRegistered), func(p OnUserRegistered) error {
		return p.OnUserRegistered(ctx, u)
	})
}

// EmitReferralCredited emits a referral credited event.
func (r *Registry) EmitReferralCredited(ctx context.Context, ref *referral.Referral) {
	emit(ctx, r, "OnReferralCredited", snapshot(r, r.onReferralCredited), func(p OnReferralCredited) error {
		return p.OnReferralCredited(ctx, ref)
	})
}

// EmitCreditsGranted emits a positive ledger movement.
func (r *Registry) EmitCreditsGranted(ctx context.Context, tx *credit.Transaction) {
	emit(ctx, r, "OnCreditsGranted", snapshot(r, r.onCreditsGranted), func(p OnCreditsGranted) error {
		return p.OnCreditsGranted(ctx, tx)
	})
}

// EmitCreditsDebited emits a negative ledger movement.
func (r *Registry) EmitCreditsDebited(ctx context.Context, tx *credit.Transaction) {
	emit(ctx, r, "OnCreditsDebited", snapshot(r, r.onCreditsDebited), func(p OnCreditsDebited) error {
		return p.OnCreditsDebited(ctx, tx)
	})
}

// EmitInsufficientCredits emits a rejected debit.
func (r *Registry) EmitInsufficientCredits(ctx context.Context, userID string, requested int64) {
	emit(ctx, r, "OnInsufficientCredits", snapshot(r, r.onInsufficientCredits), func(p OnInsufficientCredits) error {
		return p.OnInsufficientCredits(ctx, userID, requested)
	})
}

// EmitConversationStarted emits a conversation started event.
func (r *Registry) EmitConversationStarted(ctx context.Context, c *conversation.Conversation) {
	emit(ctx, r, "OnConversationStarted", snapshot(r, r.onConversationStarted), func(p OnConversationStarted) error {
		return p.OnConversationStarted(ctx, c)
	})
}

// EmitConversationCompleted emits a conversation completed event.
func (r *Registry) EmitConversationCompleted(ctx context.Context, c *conversation.Conversation) {
	emit(ctx, r, "OnConversationCompleted", snapshot(r, r.onConversationCompleted), func(p OnConversationCompleted) error {
		return p.OnConversationCompleted(ctx, c)
	})
}

// EmitConversationCancelled emits a conversation cancelled event.
func (r *Registry) EmitConversationCancelled(ctx context.Context, c *conversation.Conversation) {
	emit(ctx, r, "OnConversationCancelled", snapshot(r, r.onConversationCancelled), func(p OnConversationCancelled) error {
		return p.OnConversationCancelled(ctx, c)
	})
}

// EmitCheckoutCreated emits a checkout created event.
func (r *Registry) EmitCheckoutCreated(ctx context.Context, pay *payment.Payment, checkoutURL string) {
	emit(ctx, r, "OnCheckoutCreated", snapshot(r, r.onCheckoutCreated), func(p OnCheckoutCreated) error {
		return p.OnCheckoutCreated(ctx, pay, checkoutURL)
	})
}

// EmitPaymentSettled emits a payment settled event.
func (r *Registry) EmitPaymentSettled(ctx context.Context, pay *payment.Payment, source string) {
	emit(ctx, r, "OnPaymentSettled", snapshot(r, r.onPaymentSettled), func(p OnPaymentSettled) error {
		return p.OnPaymentSettled(ctx, pay, source)
	})
}

// EmitWebhookReceived emits a verified webhook event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, provider, eventType string, payload []byte) {
	emit(ctx, r, "OnWebhookReceived", snapshot(r, r.onWebhookReceived), func(p OnWebhookReceived) error {
		return p.OnWebhookReceived(ctx, provider, eventType, payload)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the request path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
