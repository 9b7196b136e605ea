package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// ErrSessionInvalid reports a token that resolves to no live session. The
// authorization layer treats it as "unauthenticated", not as a hard error.
var ErrSessionInvalid = errors.New("session invalid")

// SessionRegistry manages server-side session artifacts. A session binds a
// Principal to an opaque token from login success until logout or TTL expiry.
type SessionRegistry interface {
	Create(ctx context.Context, p Principal) (string, error)
	Resolve(ctx context.Context, token string) (*Principal, error)
	Destroy(ctx context.Context, token string) error
	Touch(ctx context.Context, token string) error
}

// sessionRecord is the JSON payload stored under each token.
type sessionRecord struct {
	Principal Principal `json:"principal"`
	IssuedAt  time.Time `json:"issued_at"`
}

// RedisSessionRegistry stores session records in Redis with a TTL. Destroying
// the key invalidates the token immediately for every subsequent request.
type RedisSessionRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRegistry(client *redis.Client, ttl time.Duration) *RedisSessionRegistry {
	if ttl <= 0 {
		ttl = time.Duration(sessionMaxAge) * time.Second
	}
	return &RedisSessionRegistry{client: client, ttl: ttl}
}

// Create stores a new session record and returns its opaque token.
func (r *RedisSessionRegistry) Create(ctx context.Context, p Principal) (string, error) {
	token := uuid.NewString()
	data, err := json.Marshal(sessionRecord{Principal: p, IssuedAt: time.Now()})
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+token, data, r.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the principal bound to token, or ErrSessionInvalid when the
// token is unknown or expired.
func (r *RedisSessionRegistry) Resolve(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}
	val, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, ErrSessionInvalid
	}
	return &rec.Principal, nil
}

// Destroy removes the session record. Unknown tokens are a no-op.
func (r *RedisSessionRegistry) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}

// Touch slides the session expiry forward by the registry TTL.
func (r *RedisSessionRegistry) Touch(ctx context.Context, token string) error {
	if token == "" {
		return ErrSessionInvalid
	}
	ok, err := r.client.Expire(ctx, sessionKeyPrefix+token, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionInvalid
	}
	return nil
}
