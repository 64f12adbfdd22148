// Package messaging implements event bus functionality for the learning
// progress engine. It provides both in-memory and Redis-based event buses;
// the engine is a producer only, subscribers live in downstream services.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrNilEvent is returned when a nil event is published.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNilHandler is returned when a nil handler is subscribed.
	ErrNilHandler = errors.New("handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig configures an InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode dispatches handlers on the worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handler executions in async mode.
	WorkerPoolSize int

	// Logger for bus diagnostics.
	Logger *logger.Logger

	// EnableMetrics turns on execution counters.
	EnableMetrics bool
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		EnableMetrics:  true,
	}
}

// InMemoryEventBus delivers events to in-process handlers. It backs
// single-instance deployments and serves as the local half of the
// Redis bus. Handler errors are logged, never propagated to the
// publisher: a failing subscriber must not undo a committed lesson.
type InMemoryEventBus struct {
	mu     sync.RWMutex
	byType map[shared.EventType][]shared.EventHandler
	global []shared.EventHandler
	closed bool

	async   bool
	slots   chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	log     *logger.Logger
	metrics *EventBusMetrics
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	bus := &InMemoryEventBus{
		byType:  make(map[shared.EventType][]shared.EventHandler),
		async:   config.AsyncMode,
		slots:   make(chan struct{}, config.WorkerPoolSize),
		closeCh: make(chan struct{}),
		log:     config.Logger.With(logger.Component("event_bus")),
	}
	if config.EnableMetrics {
		bus.metrics = NewEventBusMetrics()
	}
	return bus
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.register(func() {
		b.byType[eventType] = append(b.byType[eventType], handler)
	}, handler)
}

// SubscribeAll registers a handler that receives every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.register(func() {
		b.global = append(b.global, handler)
	}, handler)
}

func (b *InMemoryEventBus) register(add func(), handler shared.EventHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish fans the event out to matching handlers. In async mode delivery
// happens on the worker pool and Publish returns immediately; in sync mode
// handlers run inline but their errors are still swallowed after logging.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := make([]shared.EventHandler, 0, len(b.byType[event.EventType()])+len(b.global))
	targets = append(targets, b.byType[event.EventType()]...)
	targets = append(targets, b.global...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	if b.metrics != nil {
		b.metrics.recordPublish()
	}

	for _, h := range targets {
		if b.async {
			b.dispatch(event, h)
		} else {
			b.run(event, h)
		}
	}
	return nil
}

// dispatch hands the execution to the worker pool. Close waits for every
// dispatched handler, so shutdown never drops an accepted event.
func (b *InMemoryEventBus) dispatch(event shared.Event, handler shared.EventHandler) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		select {
		case b.slots <- struct{}{}:
			defer func() { <-b.slots }()
		case <-b.closeCh:
			return
		}

		b.run(event, handler)
	}()
}

func (b *InMemoryEventBus) run(event shared.Event, handler shared.EventHandler) {
	start := time.Now()
	err := handler(event)
	elapsed := time.Since(start)

	if b.metrics != nil {
		b.metrics.recordExecution(elapsed, err == nil)
	}
	if err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(event.EventType())),
			logger.Duration("duration", elapsed),
			logger.Err(err),
		)
	}
}

// Close stops accepting work and waits for in-flight handlers. Idempotent.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Metrics returns the bus counters, or nil when metrics are disabled.
func (b *InMemoryEventBus) Metrics() *EventBusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// RedisEventBusConfig configures a RedisEventBus.
type RedisEventBusConfig struct {
	// Client is the Redis client to publish and subscribe with. Required.
	Client *redis.Client

	// ChannelName is the pub/sub channel (default "skillpath:events").
	ChannelName string

	// InstanceID identifies this process so it can skip its own messages.
	InstanceID string

	// LocalBusConfig configures the embedded in-memory bus.
	LocalBusConfig InMemoryEventBusConfig

	// Logger for bus diagnostics.
	Logger *logger.Logger
}

// RedisEventBus publishes events over Redis Pub/Sub for distributed
// deployments. Local subscribers go through the embedded in-memory bus;
// remote events arrive via the subscription loop. A Redis outage degrades
// to local-only delivery, it never fails the publish.
type RedisEventBus struct {
	client   *redis.Client
	local    *InMemoryEventBus
	channel  string
	instance string
	log      *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRedisEventBus creates a Redis-backed event bus and starts its
// subscription loop.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = "skillpath:events"
	}
	if config.InstanceID == "" {
		config.InstanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:   config.Client,
		local:    NewInMemoryEventBus(config.LocalBusConfig),
		channel:  config.ChannelName,
		instance: config.InstanceID,
		log:      config.Logger.With(logger.Component("redis_event_bus")),
		ctx:      ctx,
		cancel:   cancel,
	}

	pubsub := bus.client.Subscribe(ctx, bus.channel)
	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		defer pubsub.Close()
		bus.receive(pubsub.Channel())
	}()

	return bus, nil
}

// Subscribe registers a handler for one event type on the local bus.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events on the local bus.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish broadcasts the event over Redis and delivers it locally. The
// Redis leg is best-effort.
func (b *RedisEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(wireEnvelope{
		InstanceID:  b.instance,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, string(data)).Err(); err != nil {
		b.log.Error("redis publish failed, delivering locally only",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}

	return b.local.Publish(ctx, event)
}

// receive feeds remote messages into the local bus until the bus is closed.
func (b *RedisEventBus) receive(messages <-chan *redis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var env wireEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.Error("malformed event on channel", logger.Err(err))
				continue
			}
			if env.InstanceID == b.instance {
				// Own broadcast, already delivered locally.
				continue
			}

			remote := &remoteEvent{
				eventType:   env.EventType,
				aggregateID: env.AggregateID,
				occurredAt:  env.OccurredAt,
				payload:     env.Payload,
			}
			if err := b.local.Publish(b.ctx, remote); err != nil {
				b.log.Error("remote event delivery failed", logger.Err(err))
			}
		}
	}
}

// Close stops the subscription loop and shuts down the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.local.Close(); err != nil {
		b.log.Error("local bus close failed", logger.Err(err))
	}
	b.log.Info("redis event bus closed")
	return nil
}

// Metrics returns the local bus counters.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.local.Metrics()
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type wireEnvelope struct {
	InstanceID  string           `json:"instance_id"`
	EventType   shared.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     map[string]any   `json:"payload"`
}

// remoteEvent rehydrates an event received over Redis.
type remoteEvent struct {
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     map[string]any
}

func (e *remoteEvent) EventType() shared.EventType { return e.eventType }
func (e *remoteEvent) AggregateID() string         { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time       { return e.occurredAt }
func (e *remoteEvent) Payload() map[string]any     { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts bus activity with atomics; it is safe for
// concurrent use by publishers and workers.
type EventBusMetrics struct {
	published     atomic.Int64
	execs         atomic.Int64
	successes     atomic.Int64
	durationNanos atomic.Int64
	startedAt     time.Time
}

// NewEventBusMetrics creates a zeroed metrics tracker.
func NewEventBusMetrics() *EventBusMetrics {
	return &EventBusMetrics{startedAt: time.Now()}
}

func (m *EventBusMetrics) recordPublish() {
	m.published.Add(1)
}

func (m *EventBusMetrics) recordExecution(d time.Duration, success bool) {
	m.execs.Add(1)
	m.durationNanos.Add(int64(d))
	if success {
		m.successes.Add(1)
	}
}

// EventBusMetricsSnapshot is a point-in-time snapshot of metrics.
type EventBusMetricsSnapshot struct {
	TotalPublished         int64
	TotalHandlerExecs      int64
	HandlerSuccessRate     float64
	AverageHandlerDuration time.Duration
	StartedAt              time.Time
}

// Snapshot returns a point-in-time copy of the current counters. With no
// executions yet the success rate reads as 1.0.
func (m *EventBusMetrics) Snapshot() EventBusMetricsSnapshot {
	execs := m.execs.Load()

	successRate := 1.0
	avg := time.Duration(0)
	if execs > 0 {
		successRate = float64(m.successes.Load()) / float64(execs)
		avg = time.Duration(m.durationNanos.Load() / execs)
	}

	return EventBusMetricsSnapshot{
		TotalPublished:         m.published.Load(),
		TotalHandlerExecs:      execs,
		HandlerSuccessRate:     successRate,
		AverageHandlerDuration: avg,
		StartedAt:              m.startedAt,
	}
}

// interface conformance checks
var (
	_ shared.EventBus = (*InMemoryEventBus)(nil)
	_ shared.EventBus = (*RedisEventBus)(nil)
)
