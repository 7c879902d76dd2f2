// Package payment defines purchase attempts reconciled against the
// external payment provider.
package payment

import (
	"strings"
	"time"

	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Payment records one checkout. Credits is fixed at checkout time from the
// plan catalog and is what settlement credits.
type Payment struct {
	types.Entity
	ID          id.PaymentID `json:"id"`
	UserID      id.UserID    `json:"user_id"`
	ExternalID  string       `json:"external_id"`
	PlanID      string       `json:"plan_id"`
	PlanName    string       `json:"plan_name"`
	Amount      types.Money  `json:"amount"`
	Credits     int64        `json:"credits"`
	Status      Status       `json:"status"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// IsPending reports whether the payment is awaiting its first outcome.
func (p *Payment) IsPending() bool { return p.Status == StatusPending }

// CanSettle reports whether settlement can still apply. A failed attempt
// stays open because the buyer may retry the same intent.
func (p *Payment) CanSettle() bool {
	return p.Status == StatusPending || p.Status == StatusFailed
}

// SettleableStatuses lists the statuses CanSettle accepts, for store guards.
func SettleableStatuses() []Status { return []Status{StatusPending, StatusFailed} }

// IsCheckoutSession reports whether ExternalID names a checkout session
// rather than a payment intent.
func (p *Payment) IsCheckoutSession() bool {
	return strings.HasPrefix(p.ExternalID, "cs_")
}

// ListOpts filters ListPayments. A zero Limit returns every row.
type ListOpts struct {
	Status Status
	Since  time.Time
	Limit  int
	Offset int
}
