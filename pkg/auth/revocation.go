package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "ekaya:revoked:"

// RevocationStore remembers logged-out token IDs until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NewRevocationStore returns a Redis-backed store, or a no-op store when client is nil.
func NewRevocationStore(client *redis.Client) RevocationStore {
	if client == nil {
		return noopRevocationStore{}
	}
	return &redisRevocationStore{client: client, now: time.Now}
}

type redisRevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

func (s *redisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *redisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := s.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return true, nil
}

type noopRevocationStore struct{}

func (noopRevocationStore) Revoke(context.Context, string, time.Time) error { return nil }

func (noopRevocationStore) IsRevoked(context.Context, string) (bool, error) { return false, nil }

var (
	_ RevocationStore = (*redisRevocationStore)(nil)
	_ RevocationStore = noopRevocationStore{}
)
