package chat

import "context"

// Store persists chat threads and their messages.
type Store interface {
	CreateChat(ctx context.Context, c Chat) error
	GetChat(ctx context.Context, id string) (Chat, error)
	// FindActiveByParticipants returns the active chat holding exactly this
	// pair, if any; a chat between two users is reused, not duplicated.
	FindActiveByParticipants(ctx context.Context, a, b string) (Chat, error)
	// ListByUser returns the user's active chats, most recently messaged first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Chat, error)
	// SaveMessage appends the message and bumps the chat's LastMessageAt.
	SaveMessage(ctx context.Context, msg Message) error
	// ListMessages returns the chat's messages in chronological order.
	ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error)
	Close() error
}
