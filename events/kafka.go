package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"ecoheat/metrics"

	"github.com/segmentio/kafka-go"
)

const queueSize = 256

var ErrPublisherStopped = errors.New("event publisher stopped")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events and writes them from a single goroutine.
// Events are keyed by room id so a room's events stay ordered.
type KafkaPublisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *metrics.Metrics
	queue   chan kafka.Message

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewKafkaPublisher(brokers []string, topic string, m *metrics.Metrics, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, m, logger), nil
}

func newKafkaPublisher(w messageWriter, m *metrics.Metrics, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		logger:  logger.With("component", "event_publisher"),
		metrics: m,
		queue:   make(chan kafka.Message, queueSize),
	}
}

// Start drains the queue until ctx is cancelled or Close is called.
func (p *KafkaPublisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-p.queue:
				if !ok {
					return
				}
				p.write(ctx, msg)
			}
		}
	}()
}

func (p *KafkaPublisher) write(ctx context.Context, msg kafka.Message) {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.metrics.EventsDropped.Inc()
		p.logger.Error("Failed to write event", "key", string(msg.Key), slog.Any("error", err))
	}
}

// Publish enqueues ev. A full queue drops the event instead of blocking.
func (p *KafkaPublisher) Publish(_ context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.RoomID), 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPublisherStopped
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.metrics.EventsDropped.Inc()
		p.logger.Warn("Event queue full, dropping event", "type", ev.Type, "room_id", ev.RoomID)
		return nil
	}
}

// Close stops accepting events, waits for the writer goroutine and closes the
// writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return p.writer.Close()
}
