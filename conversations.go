package mockprep

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xraph/mockprep/conversation"
	"github.com/xraph/mockprep/credit"
	"github.com/xraph/mockprep/id"
)

// ──────────────────────────────────────────────────
// Conversation Lifecycle
// ──────────────────────────────────────────────────

// StartConversation creates an active session for userID.
func (e *Engine) StartConversation(ctx context.Context, userID id.UserID, in conversation.StartInput) (*conversation.Conversation, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}

	c := conversation.New(userID, in)
	if err := e.store.CreateConversation(ctx, c); err != nil {
		return nil, err
	}

	e.logger.Info("conversation started",
		"conversation_id", c.ID.String(),
		"user_id", userID.String(),
		"type", c.Type,
	)
	e.plugins.EmitConversationStarted(ctx, c)
	return c, nil
}

// GetConversation returns a conversation owned by userID. Conversations
// owned by someone else are reported as not found.
func (e *Engine) GetConversation(ctx context.Context, userID id.UserID, convID id.ConversationID) (*conversation.Conversation, error) {
	c, err := e.store.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !c.OwnedBy(userID) {
		return nil, ErrConversationNotFound
	}
	return c, nil
}

// ListConversations returns the user's conversations newest first.
func (e *Engine) ListConversations(ctx context.Context, userID id.UserID, opts conversation.ListOpts) ([]*conversation.Conversation, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultConversationsLimit
	}
	return e.store.ListConversations(ctx, userID, opts)
}

// DeductConversationCredits debits amount credits (default 1) tagged to an
// active conversation and returns the remaining balance. An insufficient
// balance leaves the conversation active.
func (e *Engine) DeductConversationCredits(ctx context.Context, userID id.UserID, convID id.ConversationID, amount int64) (int64, error) {
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	c, err := e.GetConversation(ctx, userID, convID)
	if err != nil {
		return 0, err
	}
	if !c.IsActive() {
		return 0, ErrConversationNotActive
	}

	tx, err := e.Debit(ctx, credit.Entry{
		UserID:         userID,
		Amount:         amount,
		Type:           credit.TypeConversation,
		Description:    "Real-time credit deduction during conversation",
		ConversationID: convID,
	})
	if err != nil {
		return 0, err
	}
	return tx.BalanceAfter, nil
}

// UpdateTranscript replaces the transcript of an active conversation.
func (e *Engine) UpdateTranscript(ctx context.Context, userID id.UserID, convID id.ConversationID, transcript, callID string) (*conversation.Conversation, error) {
	c, err := e.GetConversation(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, ErrConversationNotActive
	}
	if err := e.store.UpdateTranscript(ctx, convID, transcript, callID); err != nil {
		return nil, err
	}
	return e.store.GetConversation(ctx, convID)
}

// CompleteConversation moves an active conversation to completed exactly
// once. It never debits: CreditsUsed is what the real-time deductions
// charged against this conversation, fixed by the store as it flips the
// status so no later debit can be tagged to it.
func (e *Engine) CompleteConversation(ctx context.Context, userID id.UserID, convID id.ConversationID, in conversation.CompleteInput) (*conversation.Conversation, error) {
	if in.DurationMinutes < 0 {
		return nil, Invalid("duration_minutes", "must not be negative")
	}

	c, err := e.GetConversation(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, ErrConversationNotActive
	}

	if in.Transcript != "" {
		c.Transcript = in.Transcript
	}
	now := time.Now().UTC()
	c.Status = conversation.StatusCompleted
	c.DurationMinutes = in.DurationMinutes
	c.Summary = in.Summary
	c.Analysis = conversation.Analyze(c.Transcript, c.DurationMinutes)
	c.CompletedAt = &now
	c.UpdatedAt = now

	if err := e.store.CompleteConversation(ctx, c); err != nil {
		return nil, err
	}

	e.logger.Info("conversation completed",
		"conversation_id", c.ID.String(),
		"user_id", userID.String(),
		"duration_minutes", c.DurationMinutes,
		"credits_used", c.CreditsUsed,
		"overall_score", c.Analysis.OverallScore,
	)
	e.plugins.EmitConversationCompleted(ctx, c)
	return c, nil
}

// CancelConversation moves an active conversation to cancelled.
func (e *Engine) CancelConversation(ctx context.Context, userID id.UserID, convID id.ConversationID) (*conversation.Conversation, error) {
	c, err := e.GetConversation(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, ErrConversationNotActive
	}

	now := time.Now().UTC()
	c.Status = conversation.StatusCancelled
	c.CancelledAt = &now
	c.UpdatedAt = now

	if err := e.store.CancelConversation(ctx, c); err != nil {
		return nil, err
	}

	e.plugins.EmitConversationCancelled(ctx, c)
	return c, nil
}

// ──────────────────────────────────────────────────
// Dashboard
// ──────────────────────────────────────────────────

const recentConversations = 5

// Dashboard summarizes a user's practice history.
type Dashboard struct {
	TotalConversations  int                          `json:"total_conversations"`
	TotalMinutes        int                          `json:"total_minutes"`
	AverageScore        float64                      `json:"average_score"`
	CurrentCredits      int64                        `json:"current_credits"`
	RecentConversations []*conversation.Conversation `json:"recent_conversations"`
}

// DashboardStats returns completed-session totals, the mean overall score
// and the five most recent conversations.
func (e *Engine) DashboardStats(ctx context.Context, userID id.UserID) (*Dashboard, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	all, err := e.store.ListConversations(ctx, userID, conversation.ListOpts{})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{CurrentCredits: u.Credits}
	var scoreSum float64
	var scored int
	for _, c := range all {
		if c.Status == conversation.StatusCompleted {
			d.TotalConversations++
			d.TotalMinutes += c.DurationMinutes
		}
		if c.Analysis != nil && c.Analysis.OverallScore > 0 {
			scoreSum += c.Analysis.OverallScore
			scored++
		}
	}
	if scored > 0 {
		d.AverageScore = roundTenth(scoreSum / float64(scored))
	}
	d.RecentConversations = all[:min(recentConversations, len(all))]
	return d, nil
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
