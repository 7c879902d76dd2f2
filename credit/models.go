// Package credit defines the immutable credit transaction log.
package credit

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/mockprep/id"
)

// Type is the closed set of reasons a balance can change.
type Type string

const (
	TypeSignupBonus  Type = "signup_bonus"
	TypeReferral     Type = "referral"
	TypePurchase     Type = "purchase"
	TypeConversation Type = "conversation"
	TypeManual       Type = "manual"
)

// Types lists every valid Type.
func Types() []Type {
	return []Type{TypeSignupBonus, TypeReferral, TypePurchase, TypeConversation, TypeManual}
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeSignupBonus, TypeReferral, TypePurchase, TypeConversation, TypeManual:
		return true
	}
	return false
}

// ParseType converts a stored or user-supplied string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("credit: unknown transaction type %q", s)
	}
	return t, nil
}

// Transaction is one append-only ledger row. Amount is signed: positive for
// credits, negative for debits. BalanceAfter is the user's balance right
// after this row was applied.
type Transaction struct {
	ID             id.TransactionID  `json:"id"`
	UserID         id.UserID         `json:"user_id"`
	Amount         int64             `json:"amount"`
	Type           Type              `json:"type"`
	Description    string            `json:"description"`
	ConversationID id.ConversationID `json:"conversation_id,omitempty"`
	PaymentID      id.PaymentID      `json:"payment_id,omitempty"`
	BalanceAfter   int64             `json:"balance_after"`
	CreatedAt      time.Time         `json:"created_at"`
}

// IsCredit reports whether the row increased the balance.
func (t *Transaction) IsCredit() bool { return t.Amount > 0 }

// Entry is a request to move credits. Amount is always a positive
// magnitude; the ledger decides the sign.
type Entry struct {
	UserID         id.UserID
	Amount         int64
	Type           Type
	Description    string
	ConversationID id.ConversationID
	PaymentID      id.PaymentID
}

// Entry validation failures.
var (
	ErrNonPositiveAmount = errors.New("credit: amount must be positive")
	ErrMissingUser       = errors.New("credit: missing user")
	ErrUnknownType       = errors.New("credit: unknown transaction type")
)

// Validate checks the entry before it reaches a store.
func (e Entry) Validate() error {
	if e.Amount <= 0 {
		return fmt.Errorf("%w, got %d", ErrNonPositiveAmount, e.Amount)
	}
	if e.UserID.IsNil() {
		return ErrMissingUser
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownType, e.Type)
	}
	return nil
}

// NewCredit builds the positive transaction row for e.
func NewCredit(e Entry) *Transaction {
	return newTransaction(e, e.Amount)
}

// NewDebit builds the negative transaction row for e.
func NewDebit(e Entry) *Transaction {
	return newTransaction(e, -e.Amount)
}

func newTransaction(e Entry, amount int64) *Transaction {
	return &Transaction{
		ID:             id.NewTransactionID(),
		UserID:         e.UserID,
		Amount:         amount,
		Type:           e.Type,
		Description:    e.Description,
		ConversationID: e.ConversationID,
		PaymentID:      e.PaymentID,
		CreatedAt:      time.Now().UTC(),
	}
}

// Sum adds up the signed amounts of txns.
func Sum(txns []*Transaction) int64 {
	var total int64
	for _, t := range txns {
		total += t.Amount
	}
	return total
}
