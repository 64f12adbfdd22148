package messaging

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/skillpath/skillpath-engine/internal/domain/shared"
	"github.com/skillpath/skillpath-engine/pkg/logger"
	"github.com/skillpath/skillpath-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTEGRATION PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// IntegrationPublisher is the shared.EventPublisher the command handlers
// talk to. It assigns each event a unique envelope ID, retries transient
// publish failures with backoff, and logs exhausted retries instead of
// failing the triggering operation: events fire only after the state
// change commits, so a lost event never blocks or corrupts progress.
type IntegrationPublisher struct {
	bus     shared.EventBus
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewIntegrationPublisher creates a publisher over the given bus.
func NewIntegrationPublisher(bus shared.EventBus, log *logger.Logger) *IntegrationPublisher {
	return &IntegrationPublisher{
		bus:     bus,
		retrier: retry.PersistenceRetrier(),
		log:     log.With(logger.Component("integration_publisher")),
	}
}

// Publish delivers the event with at-least-once semantics. The returned
// error is informational; callers log it and move on.
func (p *IntegrationPublisher) Publish(ctx context.Context, event shared.Event) error {
	envelopeID := uuid.New().String()

	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		if err := p.bus.Publish(ctx, event); err != nil {
			if shared.IsTransient(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		return nil
	})
	if err != nil {
		p.log.Error("event publish failed",
			logger.String("envelope_id", envelopeID),
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
		return err
	}

	p.log.Debug("event published",
		logger.String("envelope_id", envelopeID),
		logger.String("event_type", string(event.EventType())),
	)
	return nil
}

// Envelope builds the transport envelope for an event. Used by outbound
// adapters that need the serialized form.
func Envelope(event shared.Event) (*shared.EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return nil, err
	}

	return &shared.EventEnvelope{
		ID:          uuid.New().String(),
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt().UTC(),
		Version:     1,
		Payload:     payload,
	}, nil
}

// interface conformance check
var _ shared.EventPublisher = (*IntegrationPublisher)(nil)
