package mockprep

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
)

// ──────────────────────────────────────────────────
// Credit Ledger
// ──────────────────────────────────────────────────

// Credit adds e.Amount to the user's balance and appends the matching
// positive transaction in one store unit.
func (e *Engine) Credit(ctx context.Context, entry credit.Entry) (*credit.Transaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	tx := credit.NewCredit(entry)
	if err := e.store.ApplyCredit(ctx, tx); err != nil {
		return nil, err
	}

	e.logger.Debug("credits granted",
		"user_id", tx.UserID.String(),
		"amount", tx.Amount,
		"type", tx.Type,
		"balance", tx.BalanceAfter,
	)
	e.plugins.EmitCreditsGranted(ctx, tx)
	return tx, nil
}

// Debit removes e.Amount from the user's balance only if the balance
// covers it. Otherwise nothing changes and ErrInsufficientCredits is
// returned.
func (e *Engine) Debit(ctx context.Context, entry credit.Entry) (*credit.Transaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	tx := credit.NewDebit(entry)
	if err := e.store.ApplyDebit(ctx, tx); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			e.logger.Info("debit rejected",
				"user_id", entry.UserID.String(),
				"amount", entry.Amount,
			)
			e.plugins.EmitInsufficientCredits(ctx, entry.UserID.String(), entry.Amount)
		}
		return nil, err
	}

	e.plugins.EmitCreditsDebited(ctx, tx)
	return tx, nil
}

// validateEntry maps credit.Entry validation onto the engine's error kinds.
func validateEntry(entry credit.Entry) error {
	err := entry.Validate()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, credit.ErrNonPositiveAmount):
		return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	case errors.Is(err, credit.ErrMissingUser):
		return Invalid("user_id", "required")
	default:
		return Invalid("type", err.Error())
	}
}

// Balance returns the user's current credits.
func (e *Engine) Balance(ctx context.Context, userID id.UserID) (int64, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.Credits, nil
}

// Transactions returns the user's ledger rows newest first.
func (e *Engine) Transactions(ctx context.Context, userID id.UserID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultTransactionsLimit
	}
	if opts.Type != "" && !opts.Type.Valid() {
		return nil, Invalid("type", fmt.Sprintf("unknown transaction type %q", opts.Type))
	}
	return e.store.ListTransactions(ctx, userID, opts)
}

// Reconciliation compares a stored balance with its transaction log.
type Reconciliation struct {
	UserID     id.UserID `json:"user_id"`
	Balance    int64     `json:"balance"`
	LedgerSum  int64     `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

// Reconcile checks that the user's balance equals the sum of their ledger.
func (e *Engine) Reconcile(ctx context.Context, userID id.UserID) (*Reconciliation, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum, err := e.store.SumTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	r := &Reconciliation{
		UserID:     userID,
		Balance:    u.Credits,
		LedgerSum:  sum,
		Consistent: u.Credits == sum,
	}
	if !r.Consistent {
		e.logger.Error("ledger drift detected",
			"user_id", userID.String(),
			"balance", u.Credits,
			"ledger_sum", sum,
		)
	}
	return r, nil
}

// GrantCredits is the manual/admin credit path. Amount must be within
// 1..max grant.
func (e *Engine) GrantCredits(ctx context.Context, userID id.UserID, amount int64, description string) (*credit.Transaction, error) {
	if amount < 1 || amount > e.maxGrant {
		return nil, fmt.Errorf("%w: grant must be between 1 and %d, got %d", ErrInvalidAmount, e.maxGrant, amount)
	}
	if description == "" {
		description = fmt.Sprintf("Manual credit grant of %d credits", amount)
	}
	return e.Credit(ctx, credit.Entry{
		UserID:      userID,
		Amount:      amount,
		Type:        credit.TypeManual,
		Description: description,
	})
}
