package receipt_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/plan"
	"github.com/xraph/mockprep/provider/providertest"
	"github.com/xraph/mockprep/receipt"
	"github.com/xraph/mockprep/store/memory"
	"github.com/xraph/mockprep/types"
	"github.com/xraph/mockprep/user"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*mail.SGMailV3
	err  error
}

func (f *fakeMailer) Send(_ context.Context, m *mail.SGMailV3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMailer) messages() []*mail.SGMailV3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*mail.SGMailV3(nil), f.sent...)
}

type staticUsers map[id.UserID]*user.User

func (s staticUsers) GetUser(_ context.Context, userID id.UserID) (*user.User, error) {
	if u, ok := s[userID]; ok {
		return u, nil
	}
	return nil, mockprep.ErrUserNotFound
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestReceiptSentOnSettle(t *testing.T) {
	mailer := &fakeMailer{}
	ext := receipt.New(mailer, "billing@mockprep.test", "MockPrep",
		receipt.WithLogger(discard()),
		receipt.WithAppURL("https://app.test/"),
	)
	fake := providertest.New()
	eng := mockprep.New(memory.New(),
		mockprep.WithLogger(discard()),
		mockprep.WithProvider(fake),
		mockprep.WithCheckoutURLs("https://app.test", "", ""),
		mockprep.WithPlugin(ext),
	)
	ctx := context.Background()
	require.NoError(t, eng.Start(ctx))
	t.Cleanup(func() { _ = eng.Stop() })

	u, err := eng.Register(ctx, mockprep.RegisterInput{Email: "buyer@example.com", Name: "Buyer", PasswordHash: "h"})
	require.NoError(t, err)

	co, err := eng.CreateCheckout(ctx, u.ID, plan.Pro, "")
	require.NoError(t, err)
	fake.MarkPaid(co.Payment.ExternalID)

	conf, err := eng.ConfirmCheckout(ctx, u.ID, co.Payment.ExternalID)
	require.NoError(t, err)
	require.True(t, conf.Settled)

	sent := mailer.messages()
	require.Len(t, sent, 1)
	m := sent[0]
	assert.Equal(t, "billing@mockprep.test", m.From.Address)
	assert.Equal(t, "Your Pro purchase: 300 interview credits", m.Subject)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "buyer@example.com", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Contains(t, m.Content[0].Value, "Amount: $45.00")
	assert.Contains(t, m.Content[0].Value, "https://app.test/dashboard")

	// A second confirm is a no-op and must not mail again.
	_, err = eng.ConfirmCheckout(ctx, u.ID, co.Payment.ExternalID)
	require.NoError(t, err)
	assert.Len(t, mailer.messages(), 1)
}

func TestReceiptErrors(t *testing.T) {
	ctx := context.Background()
	buyer := &user.User{ID: id.NewUserID(), Email: "b@example.com"}
	p := &payment.Payment{ID: id.NewPaymentID(), UserID: buyer.ID, PlanName: "Starter", Credits: 60, Amount: types.USD(1000)}

	ext := receipt.New(&fakeMailer{}, "x@mockprep.test", "X", receipt.WithLogger(discard()))
	require.ErrorIs(t, ext.OnPaymentSettled(ctx, p, mockprep.SourceWebhook), receipt.ErrNoUsers)

	// OnInit ignores engines that cannot look users up.
	require.NoError(t, ext.OnInit(ctx, struct{}{}))
	require.ErrorIs(t, ext.OnPaymentSettled(ctx, p, mockprep.SourceWebhook), receipt.ErrNoUsers)

	ext = receipt.New(&fakeMailer{}, "x@mockprep.test", "X",
		receipt.WithLogger(discard()),
		receipt.WithUsers(staticUsers{}),
	)
	require.ErrorIs(t, ext.OnPaymentSettled(ctx, p, mockprep.SourceWebhook), mockprep.ErrUserNotFound)

	boom := errors.New("smtp down")
	ext = receipt.New(&fakeMailer{err: boom}, "x@mockprep.test", "X",
		receipt.WithLogger(discard()),
		receipt.WithUsers(staticUsers{buyer.ID: buyer}),
	)
	require.ErrorIs(t, ext.OnPaymentSettled(ctx, p, mockprep.SourceRecovery), boom)
}

func TestMessageFallsBackToEmail(t *testing.T) {
	done := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	ext := receipt.New(&fakeMailer{}, "x@mockprep.test", "X")
	m := ext.Message(
		&user.User{Email: "anon@example.com"},
		&payment.Payment{PlanName: "Starter", Credits: 60, Amount: types.USD(1000), ExternalID: "cs_1", CompletedAt: &done},
	)
	plain := m.Content[0].Value
	assert.True(t, strings.HasPrefix(plain, "Hi anon@example.com,"))
	assert.Contains(t, plain, "Date: 2026-03-01 12:30 UTC")
	assert.NotContains(t, plain, "dashboard")
	assert.Contains(t, m.Content[1].Value, "<br>")
}

func TestSendGridMailer(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	from := mail.NewEmail("MockPrep", "billing@mockprep.test")
	to := mail.NewEmail("Buyer", "buyer@example.com")
	m := mail.NewSingleEmail(from, "hello", to, "plain", "<p>html</p>")

	require.NoError(t, receipt.NewSendGrid("SG.key", srv.URL).Send(context.Background(), m))
	assert.Equal(t, "/v3/mail/send", gotPath)
	assert.Equal(t, "Bearer SG.key", gotAuth)
	assert.Equal(t, "hello", gotBody["subject"])
}

func TestSendGridMailerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	m := mail.NewSingleEmail(mail.NewEmail("", "a@b.test"), "s", mail.NewEmail("", "c@d.test"), "p", "h")
	err := receipt.NewSendGrid("bad", srv.URL).Send(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "bad key")
}
