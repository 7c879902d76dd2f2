// Package store defines the unified persistence interface used by the engine.
package store

import (
	"context"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/user"
)

// Store is the unified storage interface for all mockprep entities.
// Implementations return the root package sentinels (ErrUserNotFound,
// ErrInsufficientCredits, ErrPaymentAlreadySettled, ...) so the engine
// can classify failures without knowing the backend.
type Store interface {
	user.Store
	credit.Store
	conversation.Store
	payment.Store
	referral.Store

	// CreateUserWithCredit inserts u and applies grant to it in one unit,
	// so a signup never leaves a user without its bonus. A nil grant
	// behaves like CreateUser.
	CreateUserWithCredit(ctx context.Context, u *user.User, grant *credit.Transaction) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
