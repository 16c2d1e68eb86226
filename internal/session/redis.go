package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is used when NewRedisStore is given an empty key.
const DefaultRedisKey = "appaccess:session"

// redisClient is the subset of *redis.Client the store needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// swapScript replaces KEYS[1] only while it still holds ARGV[1]. An empty
// ARGV[2] deletes the key; ARGV[3] is the expiry in milliseconds.
const swapScript = `
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == '' then
	redis.call('DEL', KEYS[1])
elseif tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`

// RedisStore keeps the session under one Redis key, so several processes
// on different hosts can share a login. Each Save is a single SET.
type RedisStore struct {
	client redisClient
	key    string
	ttl    time.Duration
}

// NewRedisStore stores the session under key with an optional expiry
// (0 keeps it until cleared).
func NewRedisStore(client redisClient, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Dial connects to a Redis server and verifies it with PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, s Session) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving session to redis: %w", err)
	}
	return nil
}

// Current implements Store.
func (r *RedisStore) Current(ctx context.Context) (*Session, error) {
	s, _, err := r.load(ctx)
	return s, err
}

// load returns the decoded session together with the raw value it was
// decoded from.
func (r *RedisStore) load(ctx context.Context) (*Session, []byte, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil, ErrNoSession
		}
		return nil, nil, fmt.Errorf("reading session from redis: %w", err)
	}

	s, err := decode(b)
	if err != nil {
		if clearErr := r.Clear(ctx); clearErr != nil {
			return nil, nil, clearErr
		}
		return nil, nil, err
	}
	return s, b, nil
}

// CompareAndSwap implements Store. The match runs locally against the value
// read from Redis; the write is a server-side script that only applies if
// that exact value is still stored.
func (r *RedisStore) CompareAndSwap(ctx context.Context, match func(Session) bool, next *Session) (bool, error) {
	var b []byte
	if next != nil {
		var err error
		if b, err = encode(*next); err != nil {
			return false, err
		}
	}

	cur, raw, err := r.load(ctx)
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !match(*cur) {
		return false, nil
	}

	n, err := r.client.Eval(ctx, swapScript, []string{r.key}, string(raw), string(b), r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("swapping session in redis: %w", err)
	}
	return n == 1, nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("clearing session in redis: %w", err)
	}
	return nil
}
