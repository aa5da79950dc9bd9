package chat

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("chat not found")
	// ErrNotParticipant means the chat exists but the acting user is not a
	// member of it; the boundary maps this to an authorization failure.
	ErrNotParticipant = errors.New("user is not a chat participant")
)

// Chat is a private thread between two anonymous users.
type Chat struct {
	ID            string    `json:"id"`
	Participants  []string  `json:"participants"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	Active        bool      `json:"is_active"`
}

// Message is one text entry of a chat thread. The message list is append
// only; nothing here ever mutates a stored message.
type Message struct {
	ID                string    `json:"id"`
	ChatID            string    `json:"chat_id"`
	SenderID          string    `json:"sender_id"`
	SenderDisplayName string    `json:"sender_display_name"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"created_at"`
}
