package chat

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kriptonit/backend/internal/notify"
	"github.com/kriptonit/backend/internal/relay"
)

// TokenSource lists the registered device tokens of a user.
type TokenSource interface {
	DeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// Notifier is the fire-and-forget hand-off to the push delivery path.
type Notifier interface {
	Enqueue(job notify.Job) bool
}

// Service owns chat threads and their messages, and answers the call
// manager's participant lookups.
type Service struct {
	store    Store
	relay    relay.Provisioner
	tokens   TokenSource
	notifier Notifier

	now func() time.Time
}

func NewService(store Store, provisioner relay.Provisioner, tokens TokenSource, notifier Notifier) *Service {
	if provisioner == nil {
		provisioner = relay.NoopProvisioner{}
	}
	return &Service{
		store:    store,
		relay:    provisioner,
		tokens:   tokens,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateChat returns the existing active chat between the pair, or makes
// a new one. Creation asks the relay service for a room and notifies the
// creator's devices; both are best effort and never fail the request.
func (s *Service) CreateChat(ctx context.Context, creatorID, creatorName, receiverID string) (Chat, error) {
	if receiverID == "" || receiverID == creatorID {
		return Chat{}, fmt.Errorf("invalid receiver id %q", receiverID)
	}
	if existing, err := s.store.FindActiveByParticipants(ctx, creatorID, receiverID); err == nil {
		return existing, nil
	}

	now := s.now()
	c := Chat{
		ID:            uuid.NewString(),
		Participants:  []string{creatorID, receiverID},
		CreatedAt:     now,
		LastMessageAt: now,
		Active:        true,
	}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return Chat{}, err
	}

	go s.provisionRoom(c.ID)
	s.fanOut(creatorID, "New chat", fmt.Sprintf("Chat with %s created", creatorName))

	return c, nil
}

// ListChats lists the user's active chats, most recently messaged first.
func (s *Service) ListChats(ctx context.Context, userID string, limit int) ([]Chat, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// SendMessage appends a message to a chat the sender belongs to.
func (s *Service) SendMessage(ctx context.Context, chatID, senderID, senderName, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("message content must not be empty")
	}
	if _, err := s.requireMember(ctx, chatID, senderID); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:                uuid.NewString(),
		ChatID:            chatID,
		SenderID:          senderID,
		SenderDisplayName: senderName,
		Content:           content,
		CreatedAt:         s.now(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ListMessages returns a chat's messages to one of its participants.
func (s *Service) ListMessages(ctx context.Context, chatID, userID string, limit int) ([]Message, error) {
	if _, err := s.requireMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, chatID, limit)
}

// Participants implements the call manager's chat directory port: the
// counterparts of the chat as seen by userID. ErrNotFound when the chat
// does not exist, ErrNotParticipant when the user is not a member.
func (s *Service) Participants(ctx context.Context, chatID, userID string) ([]string, error) {
	c, err := s.requireMember(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	others := make([]string, 0, len(c.Participants)-1)
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others, nil
}

func (s *Service) requireMember(ctx context.Context, chatID, userID string) (Chat, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return Chat{}, err
	}
	if !c.Active {
		return Chat{}, ErrNotFound
	}
	if !slices.Contains(c.Participants, userID) {
		return Chat{}, ErrNotParticipant
	}
	return c, nil
}

func (s *Service) provisionRoom(chatID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.relay.ProvisionRoom(ctx, chatID); err != nil {
		log.Err(err).Str("chat_id", chatID).Msg("relay room provisioning failed")
	}
}

func (s *Service) fanOut(userID, title, body string) {
	if s.tokens == nil || s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tokens, err := s.tokens.DeviceTokens(ctx, userID)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("device token lookup failed")
		return
	}
	for _, token := range tokens {
		s.notifier.Enqueue(notify.Job{
			UserID: userID,
			Title:  title,
			Body:   body,
			Token:  token,
		})
	}
}
