package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revocationKeyPrefix namespaces revoked token IDs in Redis
const revocationKeyPrefix = "revoked_token:"

// RedisRevocationStore tracks revoked token IDs in Redis. Entries
// expire with the token itself, so the set never grows unbounded.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a Redis-backed revocation store
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke marks a token ID as revoked for ttlSeconds
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttlSeconds int) error {
	key := revocationKeyPrefix + jti
	if err := s.client.Set(ctx, key, "1", time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token ID has been revoked
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
