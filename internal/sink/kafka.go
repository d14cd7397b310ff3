package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/model"
)

const (
	defaultWriteTimeout = 2 * time.Second
	defaultQueueSize    = 64
)

// KafkaConfig configures the notice producer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration

	// QueueSize bounds the notices waiting to be published. Notices that
	// arrive while the queue is full are dropped.
	QueueSize int
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notices as JSON records keyed by severity. Notify only
// enqueues; a single goroutine owns the writer, so a slow broker never
// stalls the caller.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
	log     logging.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan kafka.Message
	done    chan struct{}
	dropped atomic.Uint64
}

// NewKafkaSink builds a producer for cfg. No connection is made until the
// first notice is published.
func NewKafkaSink(cfg KafkaConfig, log logging.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka sink: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka sink: no topic configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaSink(w, cfg.WriteTimeout, cfg.QueueSize, log), nil
}

func newKafkaSink(w messageWriter, timeout time.Duration, queueSize int, log logging.Logger) *KafkaSink {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &KafkaSink{
		writer:  w,
		timeout: timeout,
		log:     log,
		queue:   make(chan kafka.Message, queueSize),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Notify queues n for publishing and returns immediately. When the queue is
// full or the sink is closed the notice is dropped and logged.
func (s *KafkaSink) Notify(ctx context.Context, n model.Notice) {
	value, err := json.Marshal(n)
	if err != nil {
		s.log.Warn(ctx, "encode notice", logging.Err(err))
		return
	}
	msg := kafka.Message{
		Key:   []byte(n.Severity.String()),
		Value: value,
		Time:  n.At,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.drop(ctx, n, "sink closed")
		return
	}
	select {
	case s.queue <- msg:
	default:
		s.drop(ctx, n, "queue full")
	}
}

// Dropped reports how many notices were discarded without publishing.
func (s *KafkaSink) Dropped() uint64 { return s.dropped.Load() }

func (s *KafkaSink) drop(ctx context.Context, n model.Notice, reason string) {
	s.dropped.Add(1)
	s.log.Warn(ctx, "notice dropped",
		logging.String("notice_id", n.ID),
		logging.String("reason", reason),
	)
}

func (s *KafkaSink) run() {
	defer close(s.done)
	for msg := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			s.log.Warn(ctx, "publish notice failed",
				logging.String("severity", string(msg.Key)),
				logging.Err(err),
			)
		}
	}
}

// Close stops accepting notices, drains the queue and closes the producer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.writer.Close()
}
