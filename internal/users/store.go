package users

import "context"

// Store persists anonymous accounts.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	// AnonymousIDTaken reports whether a generated pen name is already in use.
	AnonymousIDTaken(ctx context.Context, anonymousID string) (bool, error)
	TouchLastActive(ctx context.Context, id string) error
	// AddDeviceToken appends a token to the user's device set; adding a
	// token that is already registered is a no-op.
	AddDeviceToken(ctx context.Context, id, token string) error
	DeviceTokens(ctx context.Context, id string) ([]string, error)
	Close() error
}
