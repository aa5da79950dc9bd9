package users

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service issues anonymous accounts and validates their bearer tokens.
type Service struct {
	store     Store
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewService(store Store, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &Service{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// CreateAnonymous mints a new account with a generated pen name and a
// signed bearer token. The optional device token is registered for push.
func (s *Service) CreateAnonymous(ctx context.Context, deviceToken string) (CreateResponse, error) {
	anonymousID, err := s.uniqueAnonymousID(ctx)
	if err != nil {
		return CreateResponse{}, err
	}

	now := time.Now().UTC()
	u := User{
		ID:           uuid.NewString(),
		AnonymousID:  anonymousID,
		DisplayName:  anonymousID,
		CreatedAt:    now,
		LastActive:   now,
		DeviceTokens: []string{},
	}
	if token := strings.TrimSpace(deviceToken); token != "" {
		u.DeviceTokens = append(u.DeviceTokens, token)
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return CreateResponse{}, err
	}

	token, err := s.signToken(u.ID)
	if err != nil {
		return CreateResponse{}, err
	}
	return CreateResponse{
		ID:           u.ID,
		AnonymousID:  u.AnonymousID,
		DisplayName:  u.DisplayName,
		Token:        token,
		DeviceTokens: u.DeviceTokens,
	}, nil
}

// Authenticate resolves a bearer token to its live account and touches
// LastActive as a side effect.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (User, error) {
	userID, err := s.parseToken(tokenString)
	if err != nil {
		return User{}, err
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if u.Blocked {
		return User{}, ErrBlocked
	}
	if err := s.store.TouchLastActive(ctx, userID); err != nil {
		return User{}, err
	}
	return u, nil
}

// RegisterDevice adds a device token to the user's push fan-out set.
func (s *Service) RegisterDevice(ctx context.Context, userID, deviceToken string) error {
	token := strings.TrimSpace(deviceToken)
	if token == "" {
		return fmt.Errorf("device token must not be empty")
	}
	return s.store.AddDeviceToken(ctx, userID, token)
}

// DeviceTokens exposes the user's registered device tokens for fan-out.
func (s *Service) DeviceTokens(ctx context.Context, userID string) ([]string, error) {
	return s.store.DeviceTokens(ctx, userID)
}

func (s *Service) signToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().UTC().Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// uniqueAnonymousID draws pen names until one is free. The space is small
// on purpose (the original product capped it at four digits), so collisions
// are expected and retried.
func (s *Service) uniqueAnonymousID(ctx context.Context) (string, error) {
	for i := 0; i < 100; i++ {
		candidate, err := randomAnonymousID()
		if err != nil {
			return "", err
		}
		taken, err := s.store.AnonymousIDTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not allocate a free anonymous id")
}

func randomAnonymousID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9999))
	if err != nil {
		return "", fmt.Errorf("draw anonymous id: %w", err)
	}
	return fmt.Sprintf("Anon #%d", n.Int64()+1), nil
}
