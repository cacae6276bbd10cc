package caching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "vocabapp:revoked"

// RevocationCache marks tokens, sessions and users as invalid ahead of their
// natural expiry. Every marker expires when the thing it protects would have
// expired anyway, so the store never needs garbage collection.
//
// Lookups fail closed: when the store cannot answer, the Is* methods report
// true together with the error.
type RevocationCache interface {
	MarkToken(ctx context.Context, sessionID uuid.UUID, tokenID string, expiresAtMs int64) error
	MarkSession(ctx context.Context, sessionID uuid.UUID, expiresAtMs int64) error
	MarkUser(ctx context.Context, userID uuid.UUID, expiresAtMs int64) error

	IsTokenRevoked(ctx context.Context, sessionID uuid.UUID, tokenID string) (bool, error)
	IsUserRevoked(ctx context.Context, userID uuid.UUID) (bool, error)

	Ping(ctx context.Context) error
}

type redisRevocationCache struct {
	client        redis.UniversalClient
	lookupTimeout time.Duration
	now           func() time.Time
}

// NewRedisRevocationCache returns a RevocationCache backed by Redis.
// lookupTimeout bounds every Is* call.
func NewRedisRevocationCache(client redis.UniversalClient, lookupTimeout time.Duration, now func() time.Time) RevocationCache {
	if now == nil {
		now = time.Now
	}
	return &redisRevocationCache{
		client:        client,
		lookupTimeout: lookupTimeout,
		now:           now,
	}
}

func tokenKey(sessionID uuid.UUID, tokenID string) string {
	return fmt.Sprintf("%s:token:%s:%s", keyPrefix, sessionID.String(), tokenID)
}

func sessionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, sessionID.String())
}

func userKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, userID.String())
}

func (r *redisRevocationCache) MarkToken(ctx context.Context, sessionID uuid.UUID, tokenID string, expiresAtMs int64) error {
	return r.mark(ctx, tokenKey(sessionID, tokenID), expiresAtMs)
}

func (r *redisRevocationCache) MarkSession(ctx context.Context, sessionID uuid.UUID, expiresAtMs int64) error {
	return r.mark(ctx, sessionKey(sessionID), expiresAtMs)
}

func (r *redisRevocationCache) MarkUser(ctx context.Context, userID uuid.UUID, expiresAtMs int64) error {
	return r.mark(ctx, userKey(userID), expiresAtMs)
}

func (r *redisRevocationCache) mark(ctx context.Context, key string, expiresAtMs int64) error {
	ttl := time.Duration(expiresAtMs-r.now().UnixMilli()) * time.Millisecond
	if ttl <= 0 {
		// Already expired; there is nothing left to protect.
		return nil
	}
	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation cache: mark %s: %w", key, err)
	}
	return nil
}

func (r *redisRevocationCache) IsTokenRevoked(ctx context.Context, sessionID uuid.UUID, tokenID string) (bool, error) {
	return r.exists(ctx, tokenKey(sessionID, tokenID), sessionKey(sessionID))
}

func (r *redisRevocationCache) IsUserRevoked(ctx context.Context, userID uuid.UUID) (bool, error) {
	return r.exists(ctx, userKey(userID))
}

func (r *redisRevocationCache) exists(ctx context.Context, keys ...string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, keys...).Result()
	if err != nil {
		return true, fmt.Errorf("revocation cache: lookup: %w", err)
	}
	return n > 0, nil
}

func (r *redisRevocationCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
