// Package referral records one-time signup referral bonuses.
package referral

import (
	"context"
	"time"

	"github.com/xraph/mockprep/id"
)

// Referral links a referred user to the referrer. Records are only written
// after both bonuses were credited, so BonusCredited is always true.
type Referral struct {
	ID            id.ReferralID `json:"id"`
	ReferrerID    id.UserID     `json:"referrer_id"`
	ReferredID    id.UserID     `json:"referred_id"`
	BonusCredits  int64         `json:"bonus_credits"`
	BonusCredited bool          `json:"bonus_credited"`
	CreatedAt     time.Time     `json:"created_at"`
}

// New builds a credited referral record.
func New(referrer, referred id.UserID, bonus int64) *Referral {
	return &Referral{
		ID:            id.NewReferralID(),
		ReferrerID:    referrer,
		ReferredID:    referred,
		BonusCredits:  bonus,
		BonusCredited: true,
		CreatedAt:     time.Now().UTC(),
	}
}

// Stats summarizes a user's referral activity.
type Stats struct {
	ReferralCode   string `json:"referral_code"`
	TotalReferrals int    `json:"total_referrals"`
	CreditsEarned  int64  `json:"credits_earned"`
}

type Store interface {
	// CreateReferral fails with the store's conflict error when the
	// referred user already has a referral.
	CreateReferral(ctx context.Context, r *Referral) error
	ListReferrals(ctx context.Context, referrerID id.UserID) ([]*Referral, error)
	GetReferralByReferred(ctx context.Context, referredID id.UserID) (*Referral, error)
}
