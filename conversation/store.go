package conversation

import (
	"context"

	"github.com/xraph/mockprep/id"
)

// Store persists conversations. Transition methods are guarded: they only
// apply when the stored status is still active, and report the domain
// not-active error otherwise.
type Store interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, convID id.ConversationID) (*Conversation, error)
	ListConversations(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Conversation, error)
	UpdateTranscript(ctx context.Context, convID id.ConversationID, transcript, callID string) error

	// CompleteConversation moves an active conversation to completed,
	// writing every field set by the caller on c. CreditsUsed is computed
	// by the store from the tagged debits in the same unit as the status
	// change and written back to c.
	CompleteConversation(ctx context.Context, c *Conversation) error

	// CancelConversation moves an active conversation to cancelled and
	// fixes CreditsUsed the same way.
	CancelConversation(ctx context.Context, c *Conversation) error
}

// ListOpts filters ListConversations. A zero Limit returns every row.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
