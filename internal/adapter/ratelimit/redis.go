package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type redisLimiter struct {
	client  *redis.Client
	log     zerolog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedis returns a Limiter shared by every instance using the same Redis.
// Redis failures let the request through.
func NewRedis(ctx context.Context, addr, password string, db int, log zerolog.Logger) (Limiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisLimiter{
		client:  client,
		log:     log,
		prefix:  "trimfit:ratelimit:",
		timeout: 250 * time.Millisecond,
	}, nil
}

func (rl *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	var (
		incr   *redis.IntCmd
		ttlCmd *redis.DurationCmd
	)
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttlCmd = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		rl.log.Error().Err(err).Str("op", "incr").Msg("redis rate limiter")
		return Decision{Allowed: true}
	}
	counter := incr.Val()

	// A key left without a TTL never resets; arm it whenever one is missing.
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.log.Error().Err(err).Str("op", "expire").Msg("redis rate limiter")
		}
		ttl = window
	}
	return Decision{
		Allowed:   int(counter) <= limit,
		Count:     int(counter),
		WindowEnd: time.Now().Add(ttl),
	}
}

func (rl *redisLimiter) Close() {
	_ = rl.client.Close()
}
