package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/braintease/quizlink/internal/domain"
)

const defaultTTL = 2 * time.Hour

type RedisConfig struct {
	Redis redis.UniversalClient
	// Prefix namespaces keys per user, so shared Redis deployments don't mix
	// players' snapshots.
	Prefix string
	TTL    time.Duration
}

// Redis persists snapshots across client restarts.
type Redis struct {
	rc     redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(c RedisConfig) *Redis {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Redis{
		rc:     c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

func (r *Redis) PutSession(ctx context.Context, key string, s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cache: marshal session: %w", err)
	}

	if err := r.rc.Set(ctx, r.key(key), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put session: %w", err)
	}

	return nil
}

func (r *Redis) GetSession(ctx context.Context, key string) (*domain.Session, bool, error) {
	b, err := r.rc.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal session: %w", err)
	}

	return &s, true, nil
}

func (r *Redis) PutCode(ctx context.Context, key, code string) error {
	if err := r.rc.Set(ctx, r.key(key), code, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put code: %w", err)
	}

	return nil
}

func (r *Redis) GetCode(ctx context.Context, key string) (string, bool, error) {
	code, err := r.rc.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get code: %w", err)
	}

	return code, true, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	keys := []string{
		r.key(KeyCreatedSession),
		r.key(KeyCurrentSession),
		r.key(KeyCreatedCode),
		r.key(KeyCurrentCode),
	}

	if err := r.rc.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}

	return nil
}

func (r *Redis) key(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}
