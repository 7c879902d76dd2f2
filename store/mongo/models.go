package mongo

import (
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

	ID                    string    `grove:"id,pk"                   bson:"_id"`
	Email                 string    `grove:"email"                   bson:"email"`
	Name                  string    `grove:"name"                    bson:"name"`
	PasswordHash          string    `grove:"password_hash"           bson:"password_hash"`
	Role                  string    `grove:"role"                    bson:"role"`
	IsActive              bool      `grove:"is_active"               bson:"is_active"`
	Credits               int64     `grove:"credits"                 bson:"credits"`
	TotalCreditsPurchased int64     `grove:"total_credits_purchased" bson:"total_credits_purchased"`
	ReferralCode          string    `grove:"referral_code"           bson:"referral_code"`
	ReferredBy            string    `grove:"referred_by"             bson:"referred_by,omitempty"`
	CreatedAt             time.Time `grove:"created_at"              bson:"created_at"`
	UpdatedAt             time.Time `grove:"updated_at"              bson:"updated_at"`
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

	ID             string    `grove:"id,pk"           bson:"_id"`
	UserID         string    `grove:"user_id"         bson:"user_id"`
	Amount         int64     `grove:"amount"          bson:"amount"`
	Type           string    `grove:"type"            bson:"type"`
	Description    string    `grove:"description"     bson:"description"`
	ConversationID string    `grove:"conversation_id" bson:"conversation_id,omitempty"`
	PaymentID      string    `grove:"payment_id"      bson:"payment_id,omitempty"`
	BalanceAfter   int64     `grove:"balance_after"   bson:"balance_after"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
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

	ID              string         `grove:"id,pk"            bson:"_id"`
	UserID          string         `grove:"user_id"          bson:"user_id"`
	Type            string         `grove:"type"             bson:"type"`
	Title           string         `grove:"title"            bson:"title"`
	JobTitle        string         `grove:"job_title"        bson:"job_title"`
	Company         string         `grove:"company"          bson:"company"`
	JobDescription  string         `grove:"job_description"  bson:"job_description"`
	ResumeSummary   string         `grove:"resume_summary"   bson:"resume_summary"`
	VapiCallID      string         `grove:"vapi_call_id"     bson:"vapi_call_id"`
	Status          string         `grove:"status"           bson:"status"`
	DurationMinutes int            `grove:"duration_minutes" bson:"duration_minutes"`
	CreditsUsed     int64          `grove:"credits_used"     bson:"credits_used"`
	Transcript      string         `grove:"transcript"       bson:"transcript"`
	Summary         string         `grove:"summary"          bson:"summary"`
	Analysis        *analysisModel `grove:"analysis"         bson:"analysis,omitempty"`
	CompletedAt     *time.Time     `grove:"completed_at"     bson:"completed_at,omitempty"`
	CancelledAt     *time.Time     `grove:"cancelled_at"     bson:"cancelled_at,omitempty"`
	CreatedAt       time.Time      `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time      `grove:"updated_at"       bson:"updated_at"`
}

type analysisModel struct {
	OverallScore      float64         `bson:"overall_score"`
	ConfidenceScore   float64         `bson:"confidence_score"`
	FluencyScore      float64         `bson:"fluency_score"`
	PatienceScore     float64         `bson:"patience_score"`
	PreparednessScore float64         `bson:"preparedness_score"`
	Timeline          []timelineModel `bson:"timeline"`
	Strengths         []string        `bson:"strengths"`
	Improvements      []string        `bson:"improvements"`
	Recommendations   []string        `bson:"recommendations"`
	TotalWords        int             `bson:"total_words"`
	UserResponses     int             `bson:"user_responses"`
	AIQuestions       int             `bson:"ai_questions"`
	Heuristic         bool            `bson:"heuristic"`
}

type timelineModel struct {
	Minute int     `bson:"minute"`
	Topic  string  `bson:"topic"`
	Score  int     `bson:"score"`
	Notes  string  `bson:"notes"`
}

func toAnalysisModel(a *conversation.Analysis) *analysisModel {
	if a == nil {
		return nil
	}
	m := &analysisModel{
		OverallScore:      a.OverallScore,
		ConfidenceScore:   a.ConfidenceScore,
		FluencyScore:      a.FluencyScore,
		PatienceScore:     a.PatienceScore,
		PreparednessScore: a.PreparednessScore,
		Strengths:         a.Strengths,
		Improvements:      a.Improvements,
		Recommendations:   a.Recommendations,
		TotalWords:        a.TotalWords,
		UserResponses:     a.UserResponses,
		AIQuestions:       a.AIQuestions,
		Heuristic:         a.Heuristic,
	}
	m.Timeline = make([]timelineModel, len(a.Timeline))
	for i, p := range a.Timeline {
		m.Timeline[i] = timelineModel{Minute: p.Minute, Topic: p.Topic, Score: p.Score, Notes: p.Notes}
	}
	return m
}

func fromAnalysisModel(m *analysisModel) *conversation.Analysis {
	if m == nil {
		return nil
	}
	a := &conversation.Analysis{
		OverallScore:      m.OverallScore,
		ConfidenceScore:   m.ConfidenceScore,
		FluencyScore:      m.FluencyScore,
		PatienceScore:     m.PatienceScore,
		PreparednessScore: m.PreparednessScore,
		Strengths:         m.Strengths,
		Improvements:      m.Improvements,
		Recommendations:   m.Recommendations,
		TotalWords:        m.TotalWords,
		UserResponses:     m.UserResponses,
		AIQuestions:       m.AIQuestions,
		Heuristic:         m.Heuristic,
	}
	a.Timeline = make([]conversation.TimelinePoint, len(m.Timeline))
	for i, p := range m.Timeline {
		a.Timeline[i] = conversation.TimelinePoint{Minute: p.Minute, Topic: p.Topic, Score: p.Score, Notes: p.Notes}
	}
	return a
}

func toConversationModel(c *conversation.Conversation) *conversationModel {
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
		Analysis:        toAnalysisModel(c.Analysis),
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
		Analysis:        fromAnalysisModel(m.Analysis),
		CompletedAt:     m.CompletedAt,
		CancelledAt:     m.CancelledAt,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:mockprep_payments"`

	ID          string     `grove:"id,pk"        bson:"_id"`
	UserID      string     `grove:"user_id"      bson:"user_id"`
	ExternalID  string     `grove:"external_id"  bson:"external_id"`
	PlanID      string     `grove:"plan_id"      bson:"plan_id"`
	PlanName    string     `grove:"plan_name"    bson:"plan_name"`
	AmountCents int64      `grove:"amount_cents" bson:"amount_cents"`
	Currency    string     `grove:"currency"     bson:"currency"`
	Credits     int64      `grove:"credits"      bson:"credits"`
	Status      string     `grove:"status"       bson:"status"`
	CompletedAt *time.Time `grove:"completed_at" bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"   bson:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		ExternalID:  p.ExternalID,
		PlanID:      p.PlanID,
		PlanName:    p.PlanName,
		AmountCents: p.Amount.Amount,
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
		Amount:      types.Money{Amount: m.AmountCents, Currency: m.Currency},
		Credits:     m.Credits,
		Status:      payment.Status(m.Status),
		CompletedAt: m.CompletedAt,
	}, nil
}

// ==================== Referral models ====================

type referralModel struct {
	grove.BaseModel `grove:"table:mockprep_referrals"`

	ID            string    `grove:"id,pk"          bson:"_id"`
	ReferrerID    string    `grove:"referrer_id"    bson:"referrer_id"`
	ReferredID    string    `grove:"referred_id"    bson:"referred_id"`
	BonusCredits  int64     `grove:"bonus_credits"  bson:"bonus_credits"`
	BonusCredited bool      `grove:"bonus_credited" bson:"bonus_credited"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
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
