package users

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestService() *Service {
	return NewService(NewMemoryStore(), "test-secret", time.Hour)
}

func TestCreateAnonymousAndAuthenticate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	resp, err := svc.CreateAnonymous(ctx, "device-1")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}
	if resp.ID == "" || resp.Token == "" {
		t.Fatalf("incomplete response: %+v", resp)
	}
	if !strings.HasPrefix(resp.AnonymousID, "Anon #") {
		t.Fatalf("anonymous id = %q, want Anon #N form", resp.AnonymousID)
	}
	if resp.DisplayName != resp.AnonymousID {
		t.Fatalf("display name = %q, want pen name %q", resp.DisplayName, resp.AnonymousID)
	}
	if len(resp.DeviceTokens) != 1 || resp.DeviceTokens[0] != "device-1" {
		t.Fatalf("device tokens = %v, want [device-1]", resp.DeviceTokens)
	}

	u, err := svc.Authenticate(ctx, resp.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if u.ID != resp.ID {
		t.Fatalf("authenticated user = %q, want %q", u.ID, resp.ID)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	svc := newTestService()

	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := svc.Authenticate(context.Background(), token); err != ErrInvalidToken {
			t.Fatalf("Authenticate(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	issuer := NewService(NewMemoryStore(), "other-secret", time.Hour)
	resp, err := issuer.CreateAnonymous(ctx, "")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}

	svc := newTestService()
	if _, err := svc.Authenticate(ctx, resp.Token); err != ErrInvalidToken {
		t.Fatalf("Authenticate() with foreign signature error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	store := NewMemoryStore()
	issuer := NewService(store, "test-secret", time.Hour)
	issuer.tokenTTL = -time.Hour

	resp, err := issuer.CreateAnonymous(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}

	svc := NewService(store, "test-secret", time.Hour)
	if _, err := svc.Authenticate(context.Background(), resp.Token); err != ErrInvalidToken {
		t.Fatalf("Authenticate() with expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestAuthenticateRejectsBlockedUser(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, "test-secret", time.Hour)
	ctx := context.Background()

	resp, err := svc.CreateAnonymous(ctx, "")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}

	blocked := User{
		ID:           "blocked-1",
		AnonymousID:  "Anon #1",
		DisplayName:  "Anon #1",
		Blocked:      true,
		CreatedAt:    time.Now().UTC(),
		LastActive:   time.Now().UTC(),
		DeviceTokens: []string{},
	}
	if err := store.CreateUser(ctx, blocked); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	token, err := svc.signToken(blocked.ID)
	if err != nil {
		t.Fatalf("signToken() error = %v", err)
	}

	if _, err := svc.Authenticate(ctx, token); err != ErrBlocked {
		t.Fatalf("Authenticate() for blocked user error = %v, want ErrBlocked", err)
	}
	// The unblocked account remains usable.
	if _, err := svc.Authenticate(ctx, resp.Token); err != nil {
		t.Fatalf("Authenticate() for live user error = %v", err)
	}
}

func TestRegisterDeviceDeduplicates(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	resp, err := svc.CreateAnonymous(ctx, "")
	if err != nil {
		t.Fatalf("CreateAnonymous() error = %v", err)
	}

	for _, token := range []string{"dev-a", "dev-a", "dev-b", "  dev-a  "} {
		if err := svc.RegisterDevice(ctx, resp.ID, token); err != nil {
			t.Fatalf("RegisterDevice(%q) error = %v", token, err)
		}
	}
	if err := svc.RegisterDevice(ctx, resp.ID, "   "); err == nil {
		t.Fatal("RegisterDevice() with blank token succeeded")
	}

	tokens, err := svc.DeviceTokens(ctx, resp.ID)
	if err != nil {
		t.Fatalf("DeviceTokens() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("tokens = %v, want exactly [dev-a dev-b]", tokens)
	}
}

func TestAnonymousIDsAreUnique(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		resp, err := svc.CreateAnonymous(ctx, "")
		if err != nil {
			t.Fatalf("CreateAnonymous() error = %v", err)
		}
		if seen[resp.AnonymousID] {
			t.Fatalf("pen name %q allocated twice", resp.AnonymousID)
		}
		seen[resp.AnonymousID] = true
	}
}
