// Package id defines TypeID-based identity types for all mockprep entities.
//
// Every entity uses a single ID struct with a prefix that identifies the
// entity type. IDs are K-sortable (UUIDv7-based), globally unique and
// URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all entity types.
const (
	PrefixUser         Prefix = "user" // Account
	PrefixTransaction  Prefix = "ctxn" // Credit transaction
	PrefixConversation Prefix = "conv" // Interview session
	PrefixPayment      Prefix = "pay"  // Purchase attempt
	PrefixReferral     Prefix = "ref"  // Referral record
)

// ID wraps a TypeID providing a prefix-qualified, globally unique,
// sortable identifier.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "user_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// UserID identifies an account (prefix: "user").
type UserID = ID

// TransactionID identifies a credit transaction (prefix: "ctxn").
type TransactionID = ID

// ConversationID identifies an interview session (prefix: "conv").
type ConversationID = ID

// PaymentID identifies a purchase attempt (prefix: "pay").
type PaymentID = ID

// ReferralID identifies a referral record (prefix: "ref").
type ReferralID = ID

// NewUserID generates a new user ID.
func NewUserID() ID { return New(PrefixUser) }

// NewTransactionID generates a new credit transaction ID.
func NewTransactionID() ID { return New(PrefixTransaction) }

// NewConversationID generates a new conversation ID.
func NewConversationID() ID { return New(PrefixConversation) }

// NewPaymentID generates a new payment ID.
func NewPaymentID() ID { return New(PrefixPayment) }

// NewReferralID generates a new referral ID.
func NewReferralID() ID { return New(PrefixReferral) }

// ParseUserID parses s and validates the "user" prefix.
func ParseUserID(s string) (ID, error) { return ParseWithPrefix(s, PrefixUser) }

// ParseTransactionID parses s and validates the "ctxn" prefix.
func ParseTransactionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTransaction) }

// ParseConversationID parses s and validates the "conv" prefix.
func ParseConversationID(s string) (ID, error) { return ParseWithPrefix(s, PrefixConversation) }

// ParsePaymentID parses s and validates the "pay" prefix.
func ParsePaymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayment) }

// ParseReferralID parses s and validates the "ref" prefix.
func ParseReferralID(s string) (ID, error) { return ParseWithPrefix(s, PrefixReferral) }

// String returns the "prefix_suffix" form, or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL so optional
// references (conversation_id, payment_id) stay empty.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// FromString parses s when non-empty and returns Nil otherwise. Stores use it
// for nullable reference columns.
func FromString(s string) (ID, error) {
	if s == "" {
		return Nil, nil
	}
	return Parse(s)
}
