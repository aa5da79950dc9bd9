package users

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrBlocked      = errors.New("user is blocked")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// User is an anonymous account. There is no registration: an account is
// just an opaque id plus a generated pen name and whatever device tokens
// the client registered for push.
type User struct {
	ID           string    `json:"id"`
	AnonymousID  string    `json:"anonymous_id"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	LastActive   time.Time `json:"last_active"`
	Blocked      bool      `json:"is_blocked"`
	DeviceTokens []string  `json:"device_tokens"`
}

// CreateResponse returns the new account together with its bearer token.
type CreateResponse struct {
	ID           string   `json:"id"`
	AnonymousID  string   `json:"anonymous_id"`
	DisplayName  string   `json:"display_name"`
	Token        string   `json:"token"`
	DeviceTokens []string `json:"device_tokens"`
}
