// Package redis backs the credential rate limiter and the access token
// deny-list with Redis, for deployments running more than one API
// instance. Single-instance deployments use the in-memory defaults.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"drouple.org/internal/ratelimit"
	"drouple.org/internal/token"
)

const (
	attemptPrefix = "drouple:login:"
	denyPrefix    = "drouple:deny:"
)

// Open connects and verifies the server is reachable.
func Open(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// AttemptStore implements ratelimit.AttemptStore on Redis. The increment
// script is atomic server-side, so concurrent attempts against one key
// cannot lose counts across instances.
type AttemptStore struct {
	client *redis.Client
}

var _ ratelimit.AttemptStore = (*AttemptStore)(nil)

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

// incrScript bumps the counter and stamps the window TTL on first use.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

func (s *AttemptStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (ratelimit.Entry, error) {
	res, err := incrScript.Run(ctx, s.client, []string{attemptPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Entry{}, err
	}
	count, ttlMillis := res[0], res[1]
	return ratelimit.Entry{
		Count:       int(count),
		WindowStart: windowStart(now, window, ttlMillis),
	}, nil
}

func (s *AttemptStore) Get(ctx context.Context, key string, now time.Time, window time.Duration) (ratelimit.Entry, bool, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, attemptPrefix+key)
	ttlCmd := pipe.PTTL(ctx, attemptPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return ratelimit.Entry{}, false, nil
		}
		return ratelimit.Entry{}, false, err
	}
	count, err := getCmd.Int()
	if err != nil {
		return ratelimit.Entry{}, false, err
	}
	// The window key expires on its own; a live key means the window is
	// still open. Derive its start from the remaining TTL.
	return ratelimit.Entry{
		Count:       count,
		WindowStart: windowStart(now, window, ttlCmd.Val().Milliseconds()),
	}, true, nil
}

func (s *AttemptStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, attemptPrefix+key).Err()
}

func windowStart(now time.Time, window time.Duration, ttlMillis int64) time.Time {
	elapsed := window - time.Duration(ttlMillis)*time.Millisecond
	if elapsed < 0 {
		elapsed = 0
	}
	return now.Add(-elapsed)
}

// DenyList implements token.DenyList on Redis. Entries carry a TTL equal
// to the token's remaining lifetime, so expired revocations clean
// themselves up.
type DenyList struct {
	client *redis.Client
	now    func() time.Time
}

var _ token.DenyList = (*DenyList)(nil)

func NewDenyList(client *redis.Client) *DenyList {
	return &DenyList{client: client, now: time.Now}
}

func (d *DenyList) Insert(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		// Already expired; verification rejects it on expiry alone.
		return nil
	}
	return d.client.Set(ctx, denyPrefix+tokenID, "1", ttl).Err()
}

func (d *DenyList) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, denyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
