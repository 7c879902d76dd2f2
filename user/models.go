// Package user defines accounts and their credit balances.
package user

import (
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/types"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account. Credits is the live balance and is only changed by the
// ledger; TotalCreditsPurchased grows with purchase credits only.
type User struct {
	types.Entity
	ID                    id.UserID `json:"id"`
	Email                 string    `json:"email"`
	Name                  string    `json:"name"`
	PasswordHash          string    `json:"-"`
	Role                  Role      `json:"role"`
	IsActive              bool      `json:"is_active"`
	Credits               int64     `json:"credits"`
	TotalCreditsPurchased int64     `json:"total_credits_purchased"`
	ReferralCode          string    `json:"referral_code"`
	ReferredBy            id.UserID `json:"referred_by,omitempty"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// NewReferralCode returns an 8 character upper-case code taken from a
// random UUID.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeReferralCode trims and upper-cases a user-supplied code.
func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
