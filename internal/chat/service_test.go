package chat

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeProvisioner struct {
	mu    sync.Mutex
	rooms []string
}

func (p *fakeProvisioner) ProvisionRoom(_ context.Context, chatID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms = append(p.rooms, chatID)
	return nil
}

func (p *fakeProvisioner) provisioned() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.rooms))
	copy(out, p.rooms)
	return out
}

func newTestService() (*Service, *fakeProvisioner) {
	p := &fakeProvisioner{}
	return NewService(NewMemoryStore(), p, nil, nil), p
}

func TestCreateChatReusesActiveThread(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CreateChat(ctx, "u1", "Anon #7", "u2")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	// Same pair from the other side resolves to the same thread.
	second, err := svc.CreateChat(ctx, "u2", "Anon #9", "u1")
	if err != nil {
		t.Fatalf("CreateChat() reverse error = %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("chat id = %q, want existing %q", second.ID, first.ID)
	}

	third, err := svc.CreateChat(ctx, "u1", "Anon #7", "u3")
	if err != nil {
		t.Fatalf("CreateChat() with new pair error = %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("distinct pair mapped to the same chat")
	}
}

func TestCreateChatRejectsSelfAndEmptyReceiver(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CreateChat(ctx, "u1", "Anon #7", "u1"); err == nil {
		t.Fatal("CreateChat() with self receiver succeeded")
	}
	if _, err := svc.CreateChat(ctx, "u1", "Anon #7", ""); err == nil {
		t.Fatal("CreateChat() with empty receiver succeeded")
	}
}

func TestCreateChatProvisionsRelayRoom(t *testing.T) {
	svc, prov := newTestService()

	c, err := svc.CreateChat(context.Background(), "u1", "Anon #7", "u2")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rooms := prov.provisioned()
		if len(rooms) == 1 && rooms[0] == c.ID {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("relay room was never provisioned")
}

func TestSendAndListMessages(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "u1", "Anon #7", "u2")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	msg, err := svc.SendMessage(ctx, c.ID, "u1", "Anon #7", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.SenderDisplayName != "Anon #7" {
		t.Fatalf("sender name = %q, want %q", msg.SenderDisplayName, "Anon #7")
	}
	if _, err := svc.SendMessage(ctx, c.ID, "u2", "Anon #9", "hi back"); err != nil {
		t.Fatalf("SendMessage() from receiver error = %v", err)
	}
	if _, err := svc.SendMessage(ctx, c.ID, "u1", "Anon #7", "   "); err == nil {
		t.Fatal("SendMessage() with blank content succeeded")
	}

	msgs, err := svc.ListMessages(ctx, c.ID, "u2", 50)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hello" {
		t.Fatalf("first message = %q, want chronological order", msgs[0].Content)
	}
}

func TestMembershipBoundary(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "u1", "Anon #7", "u2")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	if _, err := svc.SendMessage(ctx, c.ID, "outsider", "Anon #3", "hi"); err != ErrNotParticipant {
		t.Fatalf("SendMessage() by outsider error = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.ListMessages(ctx, c.ID, "outsider", 10); err != ErrNotParticipant {
		t.Fatalf("ListMessages() by outsider error = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.Participants(ctx, "missing-chat", "u1"); err != ErrNotFound {
		t.Fatalf("Participants() on missing chat error = %v, want ErrNotFound", err)
	}
}

func TestParticipantsReturnsCounterpart(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	c, err := svc.CreateChat(ctx, "u1", "Anon #7", "u2")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	others, err := svc.Participants(ctx, c.ID, "u1")
	if err != nil {
		t.Fatalf("Participants() error = %v", err)
	}
	if len(others) != 1 || others[0] != "u2" {
		t.Fatalf("counterparts = %v, want [u2]", others)
	}

	others, err = svc.Participants(ctx, c.ID, "u2")
	if err != nil {
		t.Fatalf("Participants() error = %v", err)
	}
	if len(others) != 1 || others[0] != "u1" {
		t.Fatalf("counterparts = %v, want [u1]", others)
	}
}

func TestListChatsOrdersByRecentMessage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc.now = func() time.Time { return now }

	first, err := svc.CreateChat(ctx, "u1", "Anon #7", "u2")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}
	now = now.Add(time.Minute)
	second, err := svc.CreateChat(ctx, "u1", "Anon #7", "u3")
	if err != nil {
		t.Fatalf("CreateChat() error = %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := svc.SendMessage(ctx, first.ID, "u1", "Anon #7", "bump"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	chats, err := svc.ListChats(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("ListChats() error = %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("chats = %d, want 2", len(chats))
	}
	if chats[0].ID != first.ID || chats[1].ID != second.ID {
		t.Fatalf("order = [%s %s], want most recently messaged first", chats[0].ID, chats[1].ID)
	}
}
