package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
)

// ErrUnroutable marks rows whose event type or aggregate has no descriptor.
// It is always wrapped in a NonRetryableError.
var ErrUnroutable = errors.New("unroutable event")

// NonRetryableError tells the publisher to dead-letter a row instead of
// retrying it.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// EventDescriptor says where an event type is published and which aggregate
// may emit it.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed routing and decoded cleanly.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry routes outbox rows to topics. It shares the decoder table
// with consumers, so a row is only published once this build can read it.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NewEventRegistry routes every booking event to the booking topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.BookingTopic == "" {
		return nil, errors.New("booking topic is required")
	}
	reg := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]EventDescriptor, len(bookingCatalog)),
		decoders: NewBookingDecoders(),
	}
	for _, entry := range bookingCatalog {
		reg.routes[entry.eventType] = EventDescriptor{
			EventType:     entry.eventType,
			AggregateType: entry.aggregate,
			Topic:         cfg.BookingTopic,
		}
	}
	return reg, nil
}

// Resolve checks the row against its route, then decodes the payload with the
// decoder for the envelope's version. Every failure is non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.route(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || string(data) == "null" {
		return nil, NewNonRetryableError(fmt.Errorf("%s envelope carries no data", event.EventType))
	}
	payload, err := r.decoders.DecodeEnvelope(event.EventType, envelope)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) route(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("%w: unsupported event type %s", ErrUnroutable, event.EventType)
	case desc.AggregateType != event.AggregateType:
		return desc, fmt.Errorf("%w: %s is emitted by %s, not %s", ErrUnroutable, event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}
