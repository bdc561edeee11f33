package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed is a fixed window limiter on top of ulule/limiter. It guards the
// destination refresh endpoint.
type Fixed struct {
	L *limiter.Limiter
}

// NewRedisStore wires a limiter store backed by Redis.
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
}

// NewFixed builds a Fixed limiter from a rate such as "120-M".
func NewFixed(store limiter.Store, formatted string) (*Fixed, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	return &Fixed{L: limiter.New(store, rate)}, nil
}

// Rate parses a formatted rate into its window and request count.
func Rate(formatted string) (time.Duration, int, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return 0, 0, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	return rate.Period, int(rate.Limit), nil
}

// Take consumes one request for key.
func (f *Fixed) Take(ctx context.Context, key string) (Decision, error) {
	lc, err := f.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lc.Reached,
		Limit:     int(lc.Limit),
		Remaining: int(lc.Remaining),
		Reset:     time.Unix(lc.Reset, 0),
	}, nil
}
