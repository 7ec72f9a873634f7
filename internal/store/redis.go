package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key the service writes to a shared Redis.
const KeyPrefix = "campushub"

// Key joins parts under KeyPrefix: Key("jobs") is "campushub:jobs".
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}

var errNoRedis = errors.New("redis not configured")

// Redis holds the client used by the queue, the realtime broker and the rate limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client with short timeouts. BRPOP and pub/sub reads block
// longer than ReadTimeout, so go-redis extends it per command.
func NewRedis(addr string) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: time.Second,
	})}
}

// Ping checks connectivity within one second.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errNoRedis
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

// Healthy reports whether Ping succeeds.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
