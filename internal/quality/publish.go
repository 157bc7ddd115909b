package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"creditetl/internal/config"
	"creditetl/internal/metrics"
)

// Publisher delivers an evaluation result somewhere outside the job.
type Publisher interface {
	Publish(ctx context.Context, res Result) error
}

// LogPublisher writes the result to the job log.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, res Result) error {
	log := p.Log
	if log == nil {
		return nil
	}
	log = log.With(zap.String("context", res.Context), zap.String("run_id", res.RunID))
	for _, o := range res.Outcomes {
		fields := []zap.Field{zap.String("rule", o.Rule), zap.Bool("passed", o.Passed), zap.Float64("actual", o.Actual)}
		if o.Message != "" {
			fields = append(fields, zap.String("message", o.Message))
		}
		log.Info("quality: rule", fields...)
	}
	log.Info("quality: evaluated",
		zap.Bool("passed", res.Passed),
		zap.Int("rules", len(res.Outcomes)),
		zap.Int("observations", len(res.Observations)),
	)
	return nil
}

// MetricsPublisher records outcomes and observations through internal/metrics.
type MetricsPublisher struct{}

func (MetricsPublisher) Publish(_ context.Context, res Result) error {
	for _, o := range res.Outcomes {
		metrics.RecordQualityRule(res.Context, o.Rule, o.Passed)
	}
	for _, ob := range res.Observations {
		metrics.RecordObservation(res.Context, ob.Name, ob.Column, ob.Value)
	}
	return nil
}

// MultiPublisher publishes to every member and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, res Result) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every member that holds a connection.
func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// PublishersFromConfig builds the configured publishers. Unknown kinds are
// skipped with a warning. Kafka and Redis publishers connect lazily, so
// construction does not touch the network.
func PublishersFromConfig(in []config.Publisher, log *zap.Logger) (MultiPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	out := make(MultiPublisher, 0, len(in))
	for i, c := range in {
		switch strings.ToLower(c.Kind) {
		case "log":
			out = append(out, LogPublisher{Log: log})
		case "metrics":
			out = append(out, MetricsPublisher{})
		case "kafka":
			brokers := c.Options.StringSlice("brokers")
			topic := c.Options.String("topic", "")
			if len(brokers) == 0 || topic == "" {
				return nil, fmt.Errorf("publisher %d: kafka needs brokers and topic", i)
			}
			out = append(out, NewKafkaPublisher(brokers, topic))
		case "redis":
			addr := c.Options.String("addr", "")
			if addr == "" {
				return nil, fmt.Errorf("publisher %d: redis needs addr", i)
			}
			out = append(out, NewRedisPublisher(RedisOptions{
				Addr:     addr,
				Password: c.Options.String("password", ""),
				DB:       c.Options.Int("db", 0),
				Stream:   c.Options.String("stream", ""),
				MaxLen:   int64(c.Options.Int("max_len", 0)),
			}))
		default:
			log.Warn("quality: unknown publisher skipped", zap.Int("index", i), zap.String("kind", c.Kind))
		}
	}
	return out, nil
}
