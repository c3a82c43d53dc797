package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"user-auth-service/internal/verification/domain"
)

const (
	codeKeyPrefix     = "verify:code:"
	verifiedKeyPrefix = "verify:ok:"

	// Code keys are kept past logical expiry so a late attempt can be told
	// "expired" instead of "not found". After the retention window Redis
	// drops the key and the two become indistinguishable.
	expiredRetention = time.Hour
)

// RedisStore keeps verification codes in Redis hashes with server-side expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func codeKey(identity string) string     { return codeKeyPrefix + identity }
func verifiedKey(identity string) string { return verifiedKeyPrefix + identity }

// Put saves the code, replacing any existing challenge for the identity.
func (s *RedisStore) Put(ctx context.Context, c *domain.Code) error {
	key := codeKey(c.Identity)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		"channel":      c.Channel,
		"value":        c.Value,
		"attempts":     c.AttemptCount,
		"created_at":   c.CreatedAt.UnixMilli(),
		"last_sent_at": c.LastSentAt.UnixMilli(),
		"expires_at":   c.ExpiresAt.UnixMilli(),
	})
	pipe.ExpireAt(ctx, key, c.ExpiresAt.Add(expiredRetention))
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

// Get returns the code for the identity, or nil if absent.
func (s *RedisStore) Get(ctx context.Context, identity string) (*domain.Code, error) {
	fields, err := s.client.HGetAll(ctx, codeKey(identity)).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	c := &domain.Code{
		Identity: identity,
		Channel:  fields["channel"],
		Value:    fields["value"],
	}
	if c.AttemptCount, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, wrap(fmt.Errorf("corrupt attempts field: %w", err))
	}
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{
		{"created_at", &c.CreatedAt},
		{"last_sent_at", &c.LastSentAt},
		{"expires_at", &c.ExpiresAt},
	} {
		ms, err := strconv.ParseInt(fields[f.name], 10, 64)
		if err != nil {
			return nil, wrap(fmt.Errorf("corrupt %s field: %w", f.name, err))
		}
		*f.dst = time.UnixMilli(ms).UTC()
	}
	return c, nil
}

// incrementAttemptScript bumps the attempt counter only if the challenge still
// exists. A plain HINCRBY would re-create the hash after a concurrent delete,
// leaving a stray key holding nothing but a counter.
var incrementAttemptScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HINCRBY", KEYS[1], "attempts", 1)
end
return 0
`)

// IncrementAttempt bumps the attempt counter and returns the new count, or 0
// if the challenge no longer exists.
func (s *RedisStore) IncrementAttempt(ctx context.Context, identity string) (int, error) {
	n, err := incrementAttemptScript.Run(ctx, s.client, []string{codeKey(identity)}).Int64()
	if err != nil {
		return 0, wrap(err)
	}
	return int(n), nil
}

// Delete removes the code for the identity and reports whether a key was removed.
func (s *RedisStore) Delete(ctx context.Context, identity string) (bool, error) {
	n, err := s.client.Del(ctx, codeKey(identity)).Result()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}

// MarkVerified records a verified-status marker for the identity.
func (s *RedisStore) MarkVerified(ctx context.Context, identity string, ttl time.Duration) error {
	return wrap(s.client.Set(ctx, verifiedKey(identity), "1", ttl).Err())
}

// IsVerified reports whether an unexpired verified marker exists, consuming it
// when consume is true so a marker admits exactly one registration.
func (s *RedisStore) IsVerified(ctx context.Context, identity string, consume bool) (bool, error) {
	var err error
	if consume {
		err = s.client.GetDel(ctx, verifiedKey(identity)).Err()
	} else {
		err = s.client.Get(ctx, verifiedKey(identity)).Err()
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err)
	}
	return true, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
