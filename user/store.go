package user

import (
	"context"

	"github.com/xraph/mockprep/id"
)

type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
}
