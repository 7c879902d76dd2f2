// Package conversation defines interview sessions and their lifecycle.
package conversation

import (
	"time"

	"github.com/xraph/mockprep/id"
	"github.com/xraph/mockprep/types"
)

// DefaultType is used when a conversation is started without a type.
const DefaultType = "mock_interview"

// Status is the lifecycle state of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Conversation is one mock-interview session owned by a user.
type Conversation struct {
	types.Entity
	ID              id.ConversationID `json:"id"`
	UserID          id.UserID         `json:"user_id"`
	Type            string            `json:"type"`
	Title           string            `json:"title,omitempty"`
	JobTitle        string            `json:"job_title,omitempty"`
	Company         string            `json:"company,omitempty"`
	JobDescription  string            `json:"job_description,omitempty"`
	ResumeSummary   string            `json:"resume_summary,omitempty"`
	VapiCallID      string            `json:"vapi_call_id,omitempty"`
	Status          Status            `json:"status"`
	DurationMinutes int               `json:"duration_minutes"`
	CreditsUsed     int64             `json:"credits_used"`
	Transcript      string            `json:"transcript"`
	Summary         string            `json:"summary,omitempty"`
	Analysis        *Analysis         `json:"analysis,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the conversation still accepts deductions.
func (c *Conversation) IsActive() bool { return c.Status == StatusActive }

// OwnedBy reports whether userID owns the conversation.
func (c *Conversation) OwnedBy(userID id.UserID) bool { return c.UserID == userID }

// StartInput carries the optional context for a new session.
type StartInput struct {
	Type           string `json:"type,omitempty"`
	Title          string `json:"title,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
	Company        string `json:"company,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
	ResumeSummary  string `json:"resume_summary,omitempty"`
	VapiCallID     string `json:"vapi_call_id,omitempty"`
}

// New builds an active conversation for userID from in.
func New(userID id.UserID, in StartInput) *Conversation {
	typ := in.Type
	if typ == "" {
		typ = DefaultType
	}
	return &Conversation{
		Entity:         types.NewEntity(),
		ID:             id.NewConversationID(),
		UserID:         userID,
		Type:           typ,
		Title:          in.Title,
		JobTitle:       in.JobTitle,
		Company:        in.Company,
		JobDescription: in.JobDescription,
		ResumeSummary:  in.ResumeSummary,
		VapiCallID:     in.VapiCallID,
		Status:         StatusActive,
	}
}

// CompleteInput is the final state reported by the client.
type CompleteInput struct {
	DurationMinutes int    `json:"duration_minutes"`
	Transcript      string `json:"transcript"`
	Summary         string `json:"summary,omitempty"`
}

// Analysis is the heuristic scorecard produced on completion.
type Analysis struct {
	OverallScore      float64         `json:"overall_score"`
	ConfidenceScore   float64         `json:"confidence_score"`
	FluencyScore      float64         `json:"fluency_score"`
	PatienceScore     float64         `json:"patience_score"`
	PreparednessScore float64         `json:"preparedness_score"`
	Timeline          []TimelinePoint `json:"timeline"`
	Strengths         []string        `json:"strengths"`
	Improvements      []string        `json:"improvements"`
	Recommendations   []string        `json:"recommendations"`
	TotalWords        int             `json:"total_words"`
	UserResponses     int             `json:"user_responses"`
	AIQuestions       int             `json:"ai_questions"`
	Heuristic         bool            `json:"heuristic"`
}

// TimelinePoint is one per-minute entry of an Analysis.
type TimelinePoint struct {
	Minute int    `json:"minute"`
	Topic  string `json:"topic"`
	Score  int    `json:"score"`
	Notes  string `json:"notes"`
}
