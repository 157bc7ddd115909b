package quality

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultStream is the Redis stream results are appended to.
const DefaultStream = "creditetl:quality"

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisOptions configures NewRedisPublisher.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen approximately caps the stream length; 0 leaves it unbounded.
	MaxLen int64
}

// RedisPublisher appends each result to a Redis stream with XADD.
type RedisPublisher struct {
	c      streamAdder
	stream string
	maxLen int64
}

func NewRedisPublisher(o RedisOptions) *RedisPublisher {
	stream := o.Stream
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{
		c:      redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}),
		stream: stream,
		maxLen: o.MaxLen,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, res Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis publish: encode: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"run_id":  res.RunID,
			"context": res.Context,
			"passed":  res.Passed,
			"result":  string(body),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen, args.Approx = p.maxLen, true
	}
	if err := p.c.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.c.Close() }
