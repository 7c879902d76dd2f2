// Package receipt emails a purchase receipt through SendGrid whenever a
// payment settles.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/plugin"
	"github.com/xraph/mockprep/user"
)

var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnInit           = (*Extension)(nil)
	_ plugin.OnPaymentSettled = (*Extension)(nil)
)

const sendEndpoint = "/v3/mail/send"

// ErrNoUsers is returned when a payment settles before the extension has
// been given a way to resolve its buyer.
var ErrNoUsers = errors.New("receipt: no user lookup configured")

// UserLookup resolves the buyer of a payment. *mockprep.Engine satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, userID id.UserID) (*user.User, error)
}

// Mailer delivers one message.
type Mailer interface {
	Send(ctx context.Context, m *mail.SGMailV3) error
}

// SendGrid is a Mailer backed by the SendGrid v3 mail API.
type SendGrid struct {
	key  string
	host string
}

// NewSendGrid returns a SendGrid mailer. An empty host targets the public API.
func NewSendGrid(apiKey, host string) *SendGrid {
	return &SendGrid{key: apiKey, host: host}
}

// Send implements Mailer.
func (s *SendGrid) Send(ctx context.Context, m *mail.SGMailV3) error {
	req := sendgrid.GetRequest(s.key, sendEndpoint, s.host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m)

	resp, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("receipt: send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("receipt: send: sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}

// Extension is a mockprep plugin that mails receipts.
type Extension struct {
	mailer Mailer
	users  UserLookup
	from   *mail.Email
	logger *slog.Logger
	appURL string
}

// Option configures an Extension.
type Option func(*Extension)

// WithUsers sets the user lookup. Without it the engine passed to OnInit
// is used.
func WithUsers(u UserLookup) Option {
	return func(e *Extension) { e.users = u }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithAppURL adds a dashboard link to every receipt.
func WithAppURL(u string) Option {
	return func(e *Extension) { e.appURL = strings.TrimRight(u, "/") }
}

// New returns an Extension sending from fromName <fromAddress>.
func New(mailer Mailer, fromAddress, fromName string, opts ...Option) *Extension {
	e := &Extension{
		mailer: mailer,
		from:   mail.NewEmail(fromName, fromAddress),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "receipt" }

// OnInit implements plugin.OnInit.
func (e *Extension) OnInit(_ context.Context, engine any) error {
	if e.users != nil {
		return nil
	}
	if u, ok := engine.(UserLookup); ok {
		e.users = u
	}
	return nil
}

// OnPaymentSettled implements plugin.OnPaymentSettled.
func (e *Extension) OnPaymentSettled(ctx context.Context, p *payment.Payment, source string) error {
	if e.users == nil {
		return ErrNoUsers
	}
	u, err := e.users.GetUser(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("receipt: resolve buyer %s: %w", p.UserID, err)
	}

	if err := e.mailer.Send(ctx, e.Message(u, p)); err != nil {
		e.logger.Error("receipt delivery failed",
			"payment_id", p.ID.String(),
			"user_id", u.ID.String(),
			"source", source,
			"error", err,
		)
		return err
	}
	e.logger.Info("receipt sent",
		"payment_id", p.ID.String(),
		"user_id", u.ID.String(),
		"source", source,
	)
	return nil
}

// Message builds the receipt for p addressed to u.
func (e *Extension) Message(u *user.User, p *payment.Payment) *mail.SGMailV3 {
	subject := fmt.Sprintf("Your %s purchase: %d interview credits", p.PlanName, p.Credits)

	var plain strings.Builder
	fmt.Fprintf(&plain, "Hi %s,\n\n", displayName(u))
	fmt.Fprintf(&plain, "Thanks for your purchase. %d credits have been added to your account.\n\n", p.Credits)
	fmt.Fprintf(&plain, "Plan: %s\n", p.PlanName)
	fmt.Fprintf(&plain, "Amount: %s\n", p.Amount.String())
	fmt.Fprintf(&plain, "Reference: %s\n", p.ExternalID)
	if p.CompletedAt != nil {
		fmt.Fprintf(&plain, "Date: %s\n", p.CompletedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if e.appURL != "" {
		fmt.Fprintf(&plain, "\nStart practising: %s/dashboard\n", e.appURL)
	}

	html := "<p>" + strings.ReplaceAll(escape(plain.String()), "\n", "<br>") + "</p>"
	to := mail.NewEmail(u.Name, u.Email)
	return mail.NewSingleEmail(e.from, subject, to, plain.String(), html)
}

func displayName(u *user.User) string {
	if n := strings.TrimSpace(u.Name); n != "" {
		return n
	}
	return u.Email
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")

func escape(s string) string { return htmlEscaper.Replace(s) }
