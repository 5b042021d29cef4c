package events

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	// Brokers is a comma-separated broker list. Empty disables publishing.
	Brokers      string        `usage:"Comma-separated Kafka brokers, empty disables publishing"`
	Topic        string        `default:"techstore.orders" usage:"Order events topic"`
	WriteTimeout time.Duration `default:"5s" usage:"Kafka write timeout" flag:"kafka-write-timeout"`
	// BatchTimeout bounds how long a write waits for more messages before
	// flushing. Publishing is synchronous, so this adds directly to request
	// latency.
	BatchTimeout time.Duration `default:"10ms" usage:"Kafka batch flush interval" flag:"kafka-batch-timeout"`
}

// BrokerList splits Brokers, dropping blanks.
func (c KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.BrokerList()) > 0
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes events to a single topic, keyed by order ID so every
// event of one order lands on the same partition.
type Kafka struct {
	w       messageWriter
	brokers []string
	dial    func(ctx context.Context, addr string) (io.Closer, error)
	now     func() time.Time
}

// NewKafka creates a Kafka publisher for cfg.
func NewKafka(cfg KafkaConfig) *Kafka {
	k := newKafka(newWriter(cfg))
	k.brokers = cfg.BrokerList()
	return k
}

func newWriter(cfg KafkaConfig) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerList()...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: batchTimeout,
	}
}

func newKafka(w messageWriter) *Kafka {
	return &Kafka{w: w, dial: dialBroker, now: time.Now}
}

func dialBroker(ctx context.Context, addr string) (io.Closer, error) {
	return kafka.DialContext(ctx, "tcp", addr)
}

// Ping succeeds once any configured broker accepts a connection.
func (k *Kafka) Ping(ctx context.Context) error {
	lastErr := errors.New("no brokers configured")
	for _, addr := range k.brokers {
		conn, err := k.dial(ctx, addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return errors.Wrap(lastErr, "dial kafka")
}

// Publish writes events in one batch.
func (k *Kafka) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	now := k.now().UTC()
	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = kafka.Message{
			Key:   []byte(ev.Key()),
			Value: Marshal(ev),
			Time:  now,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(ev.Type())},
			},
		}
	}
	if err := k.w.WriteMessages(ctx, msgs...); err != nil {
		return errors.Wrap(err, "write messages")
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}

var (
	_ Publisher = (*Kafka)(nil)
	_ Publisher = Nop{}
)
