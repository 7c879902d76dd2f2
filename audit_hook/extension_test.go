package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/mockprep"
	audithook "github.com/xraph/mockprep/audit_hook"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/store/memory"
	"github.com/xraph/mockprep/types"
)

type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (r *memRecorder) Record(_ context.Context, ev *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Action
	}
	return out
}

func TestRegistrationIsAudited(t *testing.T) {
	rec := &memRecorder{}
	eng := mockprep.New(memory.New(),
		mockprep.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		mockprep.WithPlugin(audithook.New(rec)),
	)
	ctx := context.Background()

	u, err := eng.Register(ctx, mockprep.RegisterInput{Email: "a@example.com", Name: "A", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got := rec.actions()
	want := []string{audithook.ActionCreditsGranted, audithook.ActionUserRegistered}
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if rec.events[1].ResourceID != u.ID.String() {
		t.Errorf("resource id = %q", rec.events[1].ResourceID)
	}
	if rec.events[0].Metadata["type"] != string(credit.TypeSignupBonus) {
		t.Errorf("grant metadata = %v", rec.events[0].Metadata)
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &memRecorder{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionPaymentSettled))
	ctx := context.Background()

	_ = ext.OnInsufficientCredits(ctx, "user_x", 3)
	_ = ext.OnPaymentSettled(ctx, &payment.Payment{
		ID:      id.NewPaymentID(),
		UserID:  id.NewUserID(),
		Credits: 60,
		Amount:  types.USD(1000),
	}, "webhook")

	if got := rec.actions(); len(got) != 1 || got[0] != audithook.ActionPaymentSettled {
		t.Fatalf("actions = %v", got)
	}
	if rec.events[0].Metadata["source"] != "webhook" {
		t.Errorf("metadata = %v", rec.events[0].Metadata)
	}
}

func TestDisabledActions(t *testing.T) {
	rec := &memRecorder{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionWebhookReceived))
	ctx := context.Background()

	_ = ext.OnWebhookReceived(ctx, "stripe", "checkout.session.completed", []byte("{}"))
	_ = ext.OnInsufficientCredits(ctx, "user_x", 1)

	if got := rec.actions(); len(got) != 1 || got[0] != audithook.ActionInsufficientCredits {
		t.Fatalf("actions = %v", got)
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := ext.OnInsufficientCredits(context.Background(), "user_x", 1); err != nil {
		t.Fatalf("hook returned %v", err)
	}
}
