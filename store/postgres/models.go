package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/types"
	"github.com/xraph/mockprep/user"
)

// ==================== User models ====================

type userModel struct {
	grove.BaseModel `grove:"table:mockprep_users"`

	ID                    string    `grove:"id,pk"`
	Email                 string    `grove:"email"`
	Name                  string    `grove:"name"`
	PasswordHash          string    `grove:"password_hash"`
	Role                  string    `grove:"role"`
	IsActive              bool      `grove:"is_active"`
	Credits               int64     `grove:"credits"`
	TotalCreditsPurchased int64     `grove:"total_credits_purchased"`
	ReferralCode          string    `grove:"referral_code"`
	ReferredBy            string    `grove:"referred_by"`
	CreatedAt             time.Time `grove:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"`
}

func toUserModel(u *user.User) *userModel {
	return &userModel{
		ID:                    u.ID.String(),
		Email:                 u.Email,
		Name:                  u.Name,
		PasswordHash:          u.PasswordHash,
		Role:                  string(u.Role),
		IsActive:              u.IsActive,
		Credits:               u.Credits,
		TotalCreditsPurchased: u.TotalCreditsPurchased,
		ReferralCode:          u.ReferralCode,
		ReferredBy:            u.ReferredBy.String(),
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) (*user.User, error) {
	userID, err := id.ParseUserID(m.ID)
	if err != nil {
		return nil, err
	}
	referredBy, err := id.FromString(m.ReferredBy)
	if err != nil {
		return nil, err
	}
	return &user.User{
		Entity:                types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                    userID,
		Email:                 m.Email,
		Name:                  m.Name,
		PasswordHash:          m.PasswordHash,
		Role:                  user.Role(m.Role),
		IsActive:              m.IsActive,
		Credits:               m.Credits,
		TotalCreditsPurchased: m.TotalCreditsPurchased,
		ReferralCode:          m.ReferralCode,
		ReferredBy:            referredBy,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:mockprep_credit_transactions"`

	ID             string    `grove:"id,pk"`
	UserID         string    `grove:"user_id"`
	Amount         int64     `grove:"amount"`
	Type           string    `grove:"type"`
	Description    string    `grove:"description"`
	ConversationID string    `grove:"conversation_id"`
	PaymentID      string    `grove:"payment_id"`
	BalanceAfter   int64     `grove:"balance_after"`
	CreatedAt      time.Time `grove:"created_at"`
}

func toTransactionModel(t *credit.Transaction) *transactionModel {
	return &transactionModel{
		ID:             t.ID.String(),
		UserID:         t.UserID.String(),
		Amount:         t.Amount,
		Type:           string(t.Type),
		Description:    t.Description,
		ConversationID: t.ConversationID.String(),
		PaymentID:      t.PaymentID.String(),
		BalanceAfter:   t.BalanceAfter,
		CreatedAt:      t.CreatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*credit.Transaction, error) {
	txID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	typ, err := credit.ParseType(m.Type)
	if err != nil {
		return nil, err
	}
	convID, err := id.FromString(m.ConversationID)
	if err != nil {
		return nil, err
	}
	payID, err := id.FromString(m.PaymentID)
	if err != nil {
		return nil, err
	}
	return &credit.Transaction{
		ID:             txID,
		UserID:         userID,
		Amount:         m.Amount,
		Type:           typ,
		Description:    m.Description,
		ConversationID: convID,
		PaymentID:      payID,
		BalanceAfter:   m.BalanceAfter,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// ==================== Conversation models ====================

type conversationModel struct {
	grove.BaseModel `grove:"table:mockprep_conversations"`

	ID              string          `grove:"id,pk"`
	UserID          string          `grove:"user_id"`
	Type            string          `grove:"type"`
	Title           string          `grove:"title"`
	JobTitle        string          `grove:"job_title"`
	Company         string          `grove:"company"`
	JobDescription  string          `grove:"job_description"`
	ResumeSummary   string          `grove:"resume_summary"`
	VapiCallID      string          `grove:"vapi_call_id"`
	Status          string          `grove:"status"`
	DurationMinutes int             `grove:"duration_minutes"`
	CreditsUsed     int64           `grove:"credits_used"`
	Transcript      string          `grove:"transcript"`
	Summary         string          `grove:"summary"`
	Analysis        json.RawMessage `grove:"analysis,type:jsonb"`
	CompletedAt     *time.Time      `grove:"completed_at"`
	CancelledAt     *time.Time      `grove:"cancelled_at"`
	CreatedAt       time.Time       `grove:"created_at"`
	UpdatedAt       time.Time       `grove:"updated_at"`
}

func toConversationModel(c *conversation.Conversation) *conversationModel {
	var analysis json.RawMessage
	if c.Analysis != nil {
		analysis, _ = json.Marshal(c.Analysis) //nolint:errcheck // plain struct
	}
	return &conversationModel{
		ID:              c.ID.String(),
		UserID:          c.UserID.String(),
		Type:            c.Type,
		Title:           c.Title,
		JobTitle:        c.JobTitle,
		Company:         c.Company,
		JobDescription:  c.JobDescription,
		ResumeSummary:   c.ResumeSummary,
		VapiCallID:      c.VapiCallID,
		Status:          string(c.Status),
		DurationMinutes: c.DurationMinutes,
		CreditsUsed:     c.CreditsUsed,
		Transcript:      c.Transcript,
		Summary:         c.Summary,
		Analysis:        analysis,
		CompletedAt:     c.CompletedAt,
		CancelledAt:     c.CancelledAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func fromConversationModel(m *conversationModel) (*conversation.Conversation, error) {
	convID, err := id.ParseConversationID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	var analysis *conversation.Analysis
	if len(m.Analysis) > 0 && string(m.Analysis) != "null" {
		analysis = new(conversation.Analysis)
		if err := json.Unmarshal(m.Analysis, analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	return &conversation.Conversation{
		Entity:          types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:              convID,
		UserID:          userID,
		Type:            m.Type,
		Title:           m.Title,
		JobTitle:        m.JobTitle,
		Company:         m.Company,
		JobDescription:  m.JobDescription,
		ResumeSummary:   m.ResumeSummary,
		VapiCallID:      m.VapiCallID,
		Status:          conversation.Status(m.Status),
		DurationMinutes: m.DurationMinutes,
		CreditsUsed:     m.CreditsUsed,
		Transcript:      m.Transcript,
		Summary:         m.Summary,
		Analysis:        analysis,
		CompletedAt:     m.CompletedAt,
		CancelledAt:     m.CancelledAt,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:mockprep_payments"`

	ID          string     `grove:"id,pk"`
	UserID      string     `grove:"user_id"`
	ExternalID  string     `grove:"external_id"`
	PlanID      string     `grove:"plan_id"`
	PlanName    string     `grove:"plan_name"`
	Amount      int64      `grove:"amount"`
	Currency    string     `grove:"currency"`
	Credits     int64      `grove:"credits"`
	Status      string     `grove:"status"`
	CompletedAt *time.Time `grove:"completed_at"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		ExternalID:  p.ExternalID,
		PlanID:      p.PlanID,
		PlanName:    p.PlanName,
		Amount:      p.Amount.Amount,
		Currency:    p.Amount.Currency,
		Credits:     p.Credits,
		Status:      string(p.Status),
		CompletedAt: p.CompletedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, err
	}
	return &payment.Payment{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          payID,
		UserID:      userID,
		ExternalID:  m.ExternalID,
		PlanID:      m.PlanID,
		PlanName:    m.PlanName,
		Amount:      types.Money{Amount: m.Amount, Currency: m.Currency},
		Credits:     m.Credits,
		Status:      payment.Status(m.Status),
		CompletedAt: m.CompletedAt,
	}, nil
}

// ==================== Referral models ====================

type referralModel struct {
	grove.BaseModel `grove:"table:mockprep_referrals"`

	ID            string    `grove:"id,pk"`
	ReferrerID    string    `grove:"referrer_id"`
	ReferredID    string    `grove:"referred_id"`
	BonusCredits  int64     `grove:"bonus_credits"`
	BonusCredited bool      `grove:"bonus_credited"`
	CreatedAt     time.Time `grove:"created_at"`
}

func toReferralModel(r *referral.Referral) *referralModel {
	return &referralModel{
		ID:            r.ID.String(),
		ReferrerID:    r.ReferrerID.String(),
		ReferredID:    r.ReferredID.String(),
		BonusCredits:  r.BonusCredits,
		BonusCredited: r.BonusCredited,
		CreatedAt:     r.CreatedAt,
	}
}

func fromReferralModel(m *referralModel) (*referral.Referral, error) {
	refID, err := id.ParseReferralID(m.ID)
	if err != nil {
		return nil, err
	}
	referrer, err := id.ParseUserID(m.ReferrerID)
	if err != nil {
		return nil, err
	}
	referred, err := id.ParseUserID(m.ReferredID)
	if err != nil {
		return nil, err
	}
	return &referral.Referral{
		ID:            refID,
		ReferrerID:    referrer,
		ReferredID:    referred,
		BonusCredits:  m.BonusCredits,
		BonusCredited: m.BonusCredited,
		CreatedAt:     m.CreatedAt,
	}, nil
}
