package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
)

// ErrDecoderNotRegistered marks an event type/version pair this process cannot read.
// Consumers should ack such messages; retrying will not help.
var ErrDecoderNotRegistered = errors.New("decoder not registered")

// Decoder turns envelope data into a typed payload value.
type Decoder func(data json.RawMessage) (any, error)

// As builds a Decoder that unmarshals into T and returns T by value.
func As[T any]() Decoder {
	return func(data json.RawMessage) (any, error) {
		var out T
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// catalogEntry binds a booking event to the aggregate that emits it and the
// decoder for its current payload version.
type catalogEntry struct {
	eventType enums.OutboxEventType
	aggregate enums.OutboxAggregateType
	decode    Decoder
}

var bookingCatalog = []catalogEntry{
	{enums.EventReservationItemCreated, enums.AggregateReservationItem, As[payloads.ReservationItemCreatedEvent]()},
	{enums.EventReservationItemPulled, enums.AggregateReservationItem, As[payloads.ReservationItemPulledEvent]()},
	{enums.EventAssignAccepted, enums.AggregateAssign, As[payloads.AssignDecisionEvent]()},
	{enums.EventAssignRejected, enums.AggregateAssign, As[payloads.AssignDecisionEvent]()},
	{enums.EventAssignCancelled, enums.AggregateAssign, As[payloads.AssignDecisionEvent]()},
	{enums.EventAssignExpired, enums.AggregateAssign, As[payloads.AssignDecisionEvent]()},
	{enums.EventAssignedCreated, enums.AggregateAssigned, As[payloads.AssignedEvent]()},
	{enums.EventAssignedClosed, enums.AggregateAssigned, As[payloads.AssignedEvent]()},
}

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders. Older versions stay
// registered next to the current one while producers roll forward.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]Decoder)}
}

// NewBookingDecoders registers the current payload of every booking event.
func NewBookingDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	for _, entry := range bookingCatalog {
		r.Register(entry.eventType, outbox.EnvelopeVersion, entry.decode)
	}
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrDecoderNotRegistered, eventType, version)
	}
	return decoder(payload)
}

// DecodeEnvelope decodes envelope.Data using the envelope's own version.
func (r *DecoderRegistry) DecodeEnvelope(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (any, error) {
	return r.Decode(eventType, envelope.Version, envelope.Data)
}
