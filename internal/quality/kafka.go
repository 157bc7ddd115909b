package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends each result as one JSON message keyed by run id.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns a publisher writing to topic. The writer dials on
// first use.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  1,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, res Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("kafka publish: encode: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(res.RunID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "context", Value: []byte(res.Context)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
