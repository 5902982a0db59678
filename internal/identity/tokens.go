package identity

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// ErrTokenNotFound is returned when a refresh token is unknown or expired.
var ErrTokenNotFound = errors.New("token not found")

// TokenStore keeps refresh tokens and the upstream bearer token of each
// signed-in user.
type TokenStore interface {
	SaveRefresh(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	// ConsumeRefresh returns the owner of token and deletes it.
	ConsumeRefresh(ctx context.Context, token string) (uuid.UUID, error)
	DeleteRefresh(ctx context.Context, token string) error

	SaveBearer(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error
	// Bearer returns "" when the user has no live bearer token.
	Bearer(ctx context.Context, userID uuid.UUID) (string, error)
	DeleteBearer(ctx context.Context, userID uuid.UUID) error
}

// RedisTokens is the Redis-backed TokenStore. Refresh tokens are stored
// under their BLAKE2b digest, never in the clear.
type RedisTokens struct {
	rdb *redis.Client
}

func NewRedisTokens(rdb *redis.Client) *RedisTokens {
	return &RedisTokens{rdb: rdb}
}

func refreshKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return "refresh:" + hex.EncodeToString(sum[:])
}

func bearerKey(userID uuid.UUID) string {
	return "bearer:" + userID.String()
}

func (s *RedisTokens) SaveRefresh(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, refreshKey(token), userID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (s *RedisTokens) ConsumeRefresh(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.rdb.GetDel(ctx, refreshKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in refresh token: %w", err)
	}
	return userID, nil
}

func (s *RedisTokens) DeleteRefresh(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, refreshKey(token)).Err()
}

func (s *RedisTokens) SaveBearer(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, bearerKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store bearer token: %w", err)
	}
	return nil
}

func (s *RedisTokens) Bearer(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := s.rdb.Get(ctx, bearerKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read bearer token: %w", err)
	}
	return token, nil
}

func (s *RedisTokens) DeleteBearer(ctx context.Context, userID uuid.UUID) error {
	return s.rdb.Del(ctx, bearerKey(userID)).Err()
}
