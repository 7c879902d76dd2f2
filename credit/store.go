package credit

import (
	"context"

	"github.com/xraph/mockprep/id"
)

// Store persists balances and the transaction log together. Implementations
// must apply the balance change and the row insert as one unit.
type Store interface {
	// ApplyCredit adds tx.Amount to the user's balance and appends tx.
	// Purchase credits also raise total_credits_purchased.
	ApplyCredit(ctx context.Context, tx *Transaction) error

	// ApplyDebit subtracts -tx.Amount only if the balance covers it, then
	// appends tx. It fails with the store's insufficient-credits error and
	// no mutation otherwise. A debit tagged with a ConversationID is refused
	// unless that conversation belongs to tx.UserID and is still active.
	ApplyDebit(ctx context.Context, tx *Transaction) error

	ListTransactions(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Transaction, error)
	SumTransactions(ctx context.Context, userID id.UserID) (int64, error)
}

// ListOpts filters ListTransactions. A zero Limit returns every row.
type ListOpts struct {
	Type           Type
	ConversationID id.ConversationID
	Limit          int
	Offset         int
}
