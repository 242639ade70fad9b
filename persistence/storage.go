package persistence

import (
	"context"
	"fmt"

	"github.com/superflowai/superflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// Storage is the persistence surface for flows, providers, conversations and
// chat history. Lookups return (nil, nil) when the record does not exist;
// errors are reserved for the storage layer itself.
type Storage interface {
	SaveFlow(ctx context.Context, flow model.Flow) error
	GetFlow(ctx context.Context, id int64) (*model.Flow, error)
	ListFlows(ctx context.Context) ([]model.Flow, error)
	DeleteFlow(ctx context.Context, id int64) error

	SaveProvider(ctx context.Context, provider model.LLMProvider) error
	GetProvider(ctx context.Context, id int64) (*model.LLMProvider, error)
	ListProviders(ctx context.Context) ([]model.LLMProvider, error)
	DeleteProvider(ctx context.Context, id int64) error

	SaveConversation(ctx context.Context, conv model.Conversation) error
	GetConversation(ctx context.Context, user string, conversationId string) (*model.Conversation, error)
	// ListConversations returns the user's conversations, pinned first, then
	// most recently updated first.
	ListConversations(ctx context.Context, user string) ([]model.Conversation, error)
	DeleteConversation(ctx context.Context, user string, conversationId string) error

	AppendMessage(ctx context.Context, msg model.ChatMessage) error
	// LatestMessages returns up to limit messages of a conversation, newest
	// first.
	LatestMessages(ctx context.Context, conversationId string, limit int64) ([]model.ChatMessage, error)
	DeleteMessages(ctx context.Context, conversationId string) error
}
