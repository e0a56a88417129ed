package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const defaultBatchTimeout = 50 * time.Millisecond

// KafkaProducer publishes outbox rows with one synchronous writer per topic.
// Messages are hashed on their key, the tenant:owner partition key, so all
// events of one owner land on one partition in outbox order.
type KafkaProducer struct {
	brokers      []string
	batchTimeout time.Duration
	logger       zerolog.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// ProducerOption customises a KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithProducerLogger routes kafka-go client errors to logger.
func WithProducerLogger(logger zerolog.Logger) ProducerOption {
	return func(p *KafkaProducer) { p.logger = logger }
}

// WithBatchTimeout bounds how long a writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:      brokers,
		batchTimeout: defaultBatchTimeout,
		logger:       zerolog.Nop(),
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages writes msgs to topic and waits for every in-sync replica.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	writer, err := p.writerForTopic(topic)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writers == nil {
		return nil, errors.New("kafka producer is closed")
	}
	if writer, ok := p.writers[topic]; ok {
		return writer, nil
	}

	logger := p.logger.With().Str("topic", topic).Logger()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: p.batchTimeout,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Msg(fmt.Sprintf(msg, args...))
		}),
	}
	p.writers[topic] = writer
	return writer, nil
}

// Close releases all writers. Later writes fail.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
	}
	p.writers = nil
	return errors.Join(errs...)
}
