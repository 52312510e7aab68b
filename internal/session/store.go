// Package session issues bearer tokens and resolves them back to
// principals. The store is deliberately thin: token in, principal out.
// Everything richer than that belongs to an external identity provider.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"roomsync/internal/domain"
)

const (
	// sessionPrefix is the Redis key prefix for all session hashes.
	sessionPrefix = "token:"

	// SessionTTL is refreshed on every successful resolve, so a token
	// expires only after a day of silence.
	SessionTTL = 24 * time.Hour
)

// Store manages bearer tokens in Redis and implements
// domain.PrincipalResolver.
type Store struct {
	client *redis.Client
}

// NewStore wraps an existing Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(token string) string {
	return sessionPrefix + token
}

// Create issues a fresh token for the display name. The principal id is
// minted here and stays stable for the token's lifetime.
func (s *Store) Create(ctx context.Context, displayName string) (string, *domain.Principal, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", nil, domain.ErrInvalidInput
	}

	token := uuid.New().String()
	principal := &domain.Principal{
		ID:          uuid.New().String(),
		DisplayName: displayName,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key(token), map[string]any{
		"principal_id": principal.ID,
		"display_name": principal.DisplayName,
		"created_at":   time.Now().Unix(),
	})
	pipe.Expire(ctx, key(token), SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", nil, fmt.Errorf("session: create: %w", err)
	}
	return token, principal, nil
}

// Resolve maps a token to its principal and refreshes the TTL. Unknown
// or expired tokens resolve to ErrUnauthorized.
func (s *Store) Resolve(ctx context.Context, token string) (*domain.Principal, error) {
	fields, err := s.client.HGetAll(ctx, key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: resolve: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrUnauthorized
	}

	s.client.Expire(ctx, key(token), SessionTTL)
	return &domain.Principal{
		ID:          fields["principal_id"],
		DisplayName: fields["display_name"],
	}, nil
}

// Revoke deletes a token. Revoking an unknown token is a no-op.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}
