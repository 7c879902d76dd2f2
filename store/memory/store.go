// Package memory is an in-process store. Every mutation runs under one
// mutex, which makes the conditional debit and payment settlement atomic.
// Values are copied on the way in and out so callers never alias stored
// records.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/mockprep"
	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/payment"
	"github.com/xraph/mockprep/referral"
	"github.com/xraph/mockprep/store"
	"github.com/xraph/mockprep/user"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	closed bool

	// User storage, plus unique indexes
	users      map[id.UserID]*user.User
	byEmail    map[string]id.UserID
	byReferral map[string]id.UserID

	// Append-only ledger
	transactions []*credit.Transaction

	conversations map[id.ConversationID]*conversation.Conversation
	convOrder     []id.ConversationID

	payments     map[id.PaymentID]*payment.Payment
	byExternalID map[string]id.PaymentID
	paymentOrder []id.PaymentID

	referrals []*referral.Referral
}

func New() *Store {
	return &Store{
		users:         make(map[id.UserID]*user.User),
		byEmail:       make(map[string]id.UserID),
		byReferral:    make(map[string]id.UserID),
		conversations: make(map[id.ConversationID]*conversation.Conversation),
		payments:      make(map[id.PaymentID]*payment.Payment),
		byExternalID:  make(map[string]id.PaymentID),
	}
}

// ==================== User Store ====================

func (s *Store) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.createUserLocked(u)
	return err
}

func (s *Store) CreateUserWithCredit(_ context.Context, u *user.User, grant *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.createUserLocked(u)
	if err != nil {
		return err
	}
	if grant != nil {
		s.applyLocked(stored, grant)
	}
	return nil
}

func (s *Store) createUserLocked(u *user.User) (*user.User, error) {
	if _, exists := s.users[u.ID]; exists {
		return nil, mockprep.ErrAlreadyExists
	}
	if _, exists := s.byEmail[u.Email]; exists {
		return nil, mockprep.ErrEmailTaken
	}
	if _, exists := s.byReferral[u.ReferralCode]; exists {
		return nil, mockprep.ErrAlreadyExists
	}

	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[u.Email] = u.ID
	s.byReferral[u.ReferralCode] = u.ID
	return &cp, nil
}

func (s *Store) GetUser(_ context.Context, userID id.UserID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, mockprep.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	userID, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, mockprep.ErrUserNotFound
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) GetUserByReferralCode(ctx context.Context, code string) (*user.User, error) {
	s.mu.RLock()
	userID, ok := s.byReferral[code]
	s.mu.RUnlock()
	if !ok {
		return nil, mockprep.ErrUserNotFound
	}
	return s.GetUser(ctx, userID)
}

// UpdateUser writes profile fields. Balances, referral code and referrer
// are owned by the ledger and never change here.
func (s *Store) UpdateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return mockprep.ErrUserNotFound
	}
	if u.Email != existing.Email {
		if _, taken := s.byEmail[u.Email]; taken {
			return mockprep.ErrEmailTaken
		}
		delete(s.byEmail, existing.Email)
		s.byEmail[u.Email] = u.ID
	}

	existing.Email = u.Email
	existing.Name = u.Name
	existing.PasswordHash = u.PasswordHash
	existing.Role = u.Role
	existing.IsActive = u.IsActive
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// ==================== Credit Store ====================

func (s *Store) ApplyCredit(_ context.Context, tx *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[tx.UserID]
	if !ok {
		return mockprep.ErrUserNotFound
	}
	s.applyLocked(u, tx)
	return nil
}

func (s *Store) ApplyDebit(_ context.Context, tx *credit.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[tx.UserID]
	if !ok {
		return mockprep.ErrUserNotFound
	}
	if !tx.ConversationID.IsNil() {
		c, err := s.activeConversationLocked(tx.ConversationID)
		if err != nil {
			return err
		}
		if !c.OwnedBy(tx.UserID) {
			return mockprep.ErrConversationNotFound
		}
	}
	if u.Credits < -tx.Amount {
		return mockprep.ErrInsufficientCredits
	}
	s.applyLocked(u, tx)
	return nil
}

func (s *Store) applyLocked(u *user.User, tx *credit.Transaction) {
	u.Credits += tx.Amount
	if tx.Type == credit.TypePurchase && tx.Amount > 0 {
		u.TotalCreditsPurchased += tx.Amount
	}
	u.UpdatedAt = time.Now().UTC()

	tx.BalanceAfter = u.Credits
	cp := *tx
	s.transactions = append(s.transactions, &cp)
}

func (s *Store) ListTransactions(_ context.Context, userID id.UserID, opts credit.ListOpts) ([]*credit.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*credit.Transaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		t := s.transactions[i]
		if t.UserID != userID {
			continue
		}
		if opts.Type != "" && t.Type != opts.Type {
			continue
		}
		if !opts.ConversationID.IsNil() && t.ConversationID != opts.ConversationID {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SumTransactions(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, t := range s.transactions {
		if t.UserID == userID {
			total += t.Amount
		}
	}
	return total, nil
}

// conversationChargesLocked sums the tagged real-time debits of convID.
func (s *Store) conversationChargesLocked(convID id.ConversationID) int64 {
	var total int64
	for _, t := range s.transactions {
		if t.ConversationID == convID && t.Type == credit.TypeConversation {
			total += t.Amount
		}
	}
	return total
}

// ==================== Conversation Store ====================

func (s *Store) CreateConversation(_ context.Context, c *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[c.ID]; exists {
		return mockprep.ErrAlreadyExists
	}
	s.conversations[c.ID] = cloneConversation(c)
	s.convOrder = append(s.convOrder, c.ID)
	return nil
}

func (s *Store) GetConversation(_ context.Context, convID id.ConversationID) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[convID]
	if !ok {
		return nil, mockprep.ErrConversationNotFound
	}
	return cloneConversation(c), nil
}

func (s *Store) ListConversations(_ context.Context, userID id.UserID, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*conversation.Conversation, 0)
	for i := len(s.convOrder) - 1; i >= 0; i-- {
		c := s.conversations[s.convOrder[i]]
		if c.UserID != userID {
			continue
		}
		if opts.Status != "" && c.Status != opts.Status {
			continue
		}
		result = append(result, cloneConversation(c))
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateTranscript(_ context.Context, convID id.ConversationID, transcript, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.activeConversationLocked(convID)
	if err != nil {
		return err
	}
	c.Transcript = transcript
	if callID != "" {
		c.VapiCallID = callID
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CompleteConversation(_ context.Context, c *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.activeConversationLocked(c.ID); err != nil {
		return err
	}
	c.CreditsUsed = -s.conversationChargesLocked(c.ID)
	s.conversations[c.ID] = cloneConversation(c)
	return nil
}

func (s *Store) CancelConversation(_ context.Context, c *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.activeConversationLocked(c.ID)
	if err != nil {
		return err
	}
	existing.Status = conversation.StatusCancelled
	existing.CreditsUsed = -s.conversationChargesLocked(c.ID)
	existing.CancelledAt = c.CancelledAt
	existing.UpdatedAt = c.UpdatedAt
	c.CreditsUsed = existing.CreditsUsed
	return nil
}

func (s *Store) activeConversationLocked(convID id.ConversationID) (*conversation.Conversation, error) {
	c, ok := s.conversations[convID]
	if !ok {
		return nil, mockprep.ErrConversationNotFound
	}
	if !c.IsActive() {
		return nil, mockprep.ErrConversationNotActive
	}
	return c, nil
}

func cloneConversation(c *conversation.Conversation) *conversation.Conversation {
	cp := *c
	if c.Analysis != nil {
		a := *c.Analysis
		a.Timeline = slices.Clone(c.Analysis.Timeline)
		a.Strengths = slices.Clone(c.Analysis.Strengths)
		a.Improvements = slices.Clone(c.Analysis.Improvements)
		a.Recommendations = slices.Clone(c.Analysis.Recommendations)
		cp.Analysis = &a
	}
	return &cp
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID]; exists {
		return mockprep.ErrAlreadyExists
	}
	if _, exists := s.byExternalID[p.ExternalID]; exists {
		return mockprep.ErrAlreadyExists
	}
	cp := *p
	s.payments[p.ID] = &cp
	s.byExternalID[p.ExternalID] = p.ID
	s.paymentOrder = append(s.paymentOrder, p.ID)
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, mockprep.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetPaymentByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	s.mu.RLock()
	paymentID, ok := s.byExternalID[externalID]
	s.mu.RUnlock()
	if !ok {
		return nil, mockprep.ErrPaymentNotFound
	}
	return s.GetPayment(ctx, paymentID)
}

func (s *Store) ListPayments(_ context.Context, userID id.UserID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for i := len(s.paymentOrder) - 1; i >= 0; i-- {
		p := s.payments[s.paymentOrder[i]]
		if p.UserID != userID {
			continue
		}
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		if !opts.Since.IsZero() && p.CreatedAt.Before(opts.Since) {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) SettlePayment(_ context.Context, paymentID id.PaymentID, tx *credit.Transaction) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return nil, mockprep.ErrPaymentNotFound
	}
	if !p.CanSettle() {
		return nil, mockprep.ErrPaymentAlreadySettled
	}
	u, ok := s.users[tx.UserID]
	if !ok {
		return nil, mockprep.ErrUserNotFound
	}

	now := time.Now().UTC()
	p.Status = payment.StatusCompleted
	p.CompletedAt = &now
	p.UpdatedAt = now
	s.applyLocked(u, tx)

	cp := *p
	return &cp, nil
}

func (s *Store) MarkPayment(_ context.Context, paymentID id.PaymentID, status payment.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return mockprep.ErrPaymentNotFound
	}
	if !p.CanSettle() {
		return mockprep.ErrPaymentAlreadySettled
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// ==================== Referral Store ====================

func (s *Store) CreateReferral(_ context.Context, r *referral.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.referrals {
		if existing.ReferredID == r.ReferredID {
			return mockprep.ErrReferralExists
		}
	}
	cp := *r
	s.referrals = append(s.referrals, &cp)
	return nil
}

func (s *Store) ListReferrals(_ context.Context, referrerID id.UserID) ([]*referral.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*referral.Referral, 0)
	for _, r := range s.referrals {
		if r.ReferrerID == referrerID {
			cp := *r
			result = append(result, &cp)
		}
	}
	slices.SortStableFunc(result, func(a, b *referral.Referral) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return result, nil
}

func (s *Store) GetReferralByReferred(_ context.Context, referredID id.UserID) (*referral.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.referrals {
		if r.ReferredID == referredID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, mockprep.ErrNotFound
}

// ==================== Core ====================

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return mockprep.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// page applies offset/limit; limit <= 0 keeps everything after offset.
func page[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
