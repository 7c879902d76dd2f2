package payment

import (
	"context"

	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
)

type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	GetPaymentByExternalID(ctx context.Context, externalID string) (*Payment, error)

	// ListPayments returns the user's payments newest first.
	ListPayments(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Payment, error)

	// SettlePayment flips a settleable payment to completed and applies the
	// purchase credit tx as one unit. It returns the already-settled error
	// without side effects when the payment can no longer settle.
	SettlePayment(ctx context.Context, paymentID id.PaymentID, tx *credit.Transaction) (*Payment, error)

	// MarkPayment records an unpaid outcome (failed or cancelled) on a
	// settleable payment, with the same already-settled error otherwise.
	MarkPayment(ctx context.Context, paymentID id.PaymentID, status Status) error
}
