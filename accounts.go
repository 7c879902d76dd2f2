package mockprep

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/types"
	"github.com/xraph/mockprep/user"
)

// referralCodeAttempts bounds retries on the (unlikely) code collision.
const referralCodeAttempts = 3

// RegisterInput is a validated signup request. Password hashing happens
// at the boundary; the engine never sees plaintext.
type RegisterInput struct {
	Email        string
	Name         string
	PasswordHash string
	ReferralCode string
	Role         user.Role
}

func (in RegisterInput) validate() error {
	email := user.NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Invalid("email", "a valid email address is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return Invalid("name", "required")
	}
	if in.PasswordHash == "" {
		return Invalid("password", "required")
	}
	return nil
}

// Register creates a user, grants the signup bonus and, when the referral
// code resolves to an existing user, credits both sides once.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	email := user.NormalizeEmail(in.Email)
	if _, err := e.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	var referrer *user.User
	if code := user.NormalizeReferralCode(in.ReferralCode); code != "" {
		r, err := e.store.GetUserByReferralCode(ctx, code)
		switch {
		case err == nil:
			referrer = r
		case errors.Is(err, ErrUserNotFound):
			e.logger.Debug("referral code did not resolve", "code", code)
		default:
			return nil, err
		}
	}

	role := in.Role
	if role == "" {
		role = user.RoleUser
	}
	u := &user.User{
		Entity:       types.NewEntity(),
		ID:           id.NewUserID(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: in.PasswordHash,
		Role:         role,
		IsActive:     true,
	}
	if referrer != nil {
		u.ReferredBy = referrer.ID
	}
	return e.createAccount(ctx, u, referrer)
}

// createAccount stores u together with its signup bonus, then credits the
// referral when referrer is set.
func (e *Engine) createAccount(ctx context.Context, u *user.User, referrer *user.User) (*user.User, error) {
	var grant *credit.Transaction
	if e.signupBonus > 0 {
		grant = credit.NewCredit(credit.Entry{
			UserID:      u.ID,
			Amount:      e.signupBonus,
			Type:        credit.TypeSignupBonus,
			Description: "Welcome bonus",
		})
	}

	if err := e.createWithReferralCode(ctx, u, grant); err != nil {
		return nil, err
	}
	if grant != nil {
		e.plugins.EmitCreditsGranted(ctx, grant)
	}

	if referrer != nil && e.referralBonus > 0 {
		if err := e.creditReferral(ctx, referrer, u); err != nil {
			e.logger.Error("referral bonus failed",
				"referrer_id", referrer.ID.String(),
				"referred_id", u.ID.String(),
				"error", err,
			)
		}
	}

	fresh, err := e.store.GetUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	e.logger.Info("user registered",
		"user_id", fresh.ID.String(),
		"referred", referrer != nil,
		"credits", fresh.Credits,
	)
	e.plugins.EmitUserRegistered(ctx, fresh)
	return fresh, nil
}

func (e *Engine) createWithReferralCode(ctx context.Context, u *user.User, grant *credit.Transaction) error {
	var err error
	for range referralCodeAttempts {
		u.ReferralCode = user.NewReferralCode()
		err = e.store.CreateUserWithCredit(ctx, u, grant)
		if !errors.Is(err, ErrAlreadyExists) {
			return err
		}
	}
	return err
}

// ExternalIdentity is an account asserted by a trusted identity provider
// whose token the caller has already verified.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// SignInExternal returns the user registered under ident.Email, creating
// one with no password when none exists. The bool reports a new account;
// new accounts get the signup bonus like Register.
func (e *Engine) SignInExternal(ctx context.Context, ident ExternalIdentity) (*user.User, bool, error) {
	email := user.NormalizeEmail(ident.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, false, Invalid("email", "identity has no usable email")
	}

	existing, err := e.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsActive {
			return nil, false, ErrUserInactive
		}
		return existing, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	name := strings.TrimSpace(ident.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	fresh, err := e.createAccount(ctx, &user.User{
		Entity:   types.NewEntity(),
		ID:       id.NewUserID(),
		Email:    email,
		Name:     name,
		Role:     user.RoleUser,
		IsActive: true,
	}, nil)
	if errors.Is(err, ErrEmailTaken) {
		// Lost a race with a concurrent first sign-in for the same email.
		existing, err = e.store.GetUserByEmail(ctx, email)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	e.logger.Info("external account created",
		"user_id", fresh.ID.String(),
		"provider", ident.Provider,
	)
	return fresh, true, nil
}

// ProfileUpdate carries the user-editable fields. Nil fields are left as
// they are.
type ProfileUpdate struct {
	Name         *string
	PasswordHash *string
}

// UpdateProfile applies upd to the user. Balances and referral data are
// never touched.
func (e *Engine) UpdateProfile(ctx context.Context, userID id.UserID, upd ProfileUpdate) (*user.User, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, Invalid("name", "required")
		}
		u.Name = name
	}
	if upd.PasswordHash != nil {
		if *upd.PasswordHash == "" {
			return nil, Invalid("password", "required")
		}
		u.PasswordHash = *upd.PasswordHash
	}

	if err := e.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	e.logger.Info("profile updated",
		"user_id", u.ID.String(),
		"password_changed", upd.PasswordHash != nil,
	)
	return e.store.GetUser(ctx, userID)
}

// creditReferral credits both parties and then records the referral, so
// a stored Referral is always a credited one.
func (e *Engine) creditReferral(ctx context.Context, referrer, referred *user.User) error {
	if referrer.ID == referred.ID {
		return nil
	}
	if _, err := e.store.GetReferralByReferred(ctx, referred.ID); err == nil {
		return ErrReferralExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if _, err := e.Credit(ctx, credit.Entry{
		UserID:      referrer.ID,
		Amount:      e.referralBonus,
		Type:        credit.TypeReferral,
		Description: fmt.Sprintf("Referral bonus for inviting %s", referred.Email),
	}); err != nil {
		return err
	}
	if _, err := e.Credit(ctx, credit.Entry{
		UserID:      referred.ID,
		Amount:      e.referralBonus,
		Type:        credit.TypeReferral,
		Description: "Referral signup bonus",
	}); err != nil {
		return err
	}

	ref := referral.New(referrer.ID, referred.ID, e.referralBonus)
	if err := e.store.CreateReferral(ctx, ref); err != nil {
		return err
	}
	e.plugins.EmitReferralCredited(ctx, ref)
	return nil
}

// GetUser returns a user by id.
func (e *Engine) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	return e.store.GetUser(ctx, userID)
}

// UserByEmail returns the user registered under email.
func (e *Engine) UserByEmail(ctx context.Context, email string) (*user.User, error) {
	return e.store.GetUserByEmail(ctx, user.NormalizeEmail(email))
}

// ReferralStats reports the user's code, referral count and credits earned.
func (e *Engine) ReferralStats(ctx context.Context, userID id.UserID) (*referral.Stats, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	refs, err := e.store.ListReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &referral.Stats{
		ReferralCode:   u.ReferralCode,
		TotalReferrals: len(refs),
	}
	for _, r := range refs {
		stats.CreditsEarned += r.BonusCredits
	}
	return stats, nil
}
