package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
)

func TestBookingDecodersCoverEveryEvent(t *testing.T) {
	reg := NewBookingDecoders()
	for _, eventType := range []enums.OutboxEventType{
		enums.EventReservationItemCreated,
		enums.EventReservationItemPulled,
		enums.EventAssignAccepted,
		enums.EventAssignRejected,
		enums.EventAssignCancelled,
		enums.EventAssignExpired,
		enums.EventAssignedCreated,
		enums.EventAssignedClosed,
	} {
		_, err := reg.Decode(eventType, outbox.EnvelopeVersion, json.RawMessage(`{}`))
		require.NoError(t, err, eventType)
	}
}

func TestDecodeEnvelopeReturnsTypedPayload(t *testing.T) {
	assignID := uuid.New()
	data, err := json.Marshal(payloads.AssignDecisionEvent{AssignID: assignID, Status: enums.AssignAccept})
	require.NoError(t, err)

	out, err := NewBookingDecoders().DecodeEnvelope(enums.EventAssignAccepted, outbox.PayloadEnvelope{
		Version: outbox.EnvelopeVersion,
		Data:    data,
	})
	require.NoError(t, err)
	decoded, ok := out.(payloads.AssignDecisionEvent)
	require.True(t, ok)
	require.Equal(t, assignID, decoded.AssignID)
}

func TestDecodeUnknownVersion(t *testing.T) {
	_, err := NewBookingDecoders().Decode(enums.EventAssignAccepted, 99, json.RawMessage(`{}`))
	require.True(t, errors.Is(err, ErrDecoderNotRegistered))
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := NewBookingDecoders().Decode(enums.EventAssignedClosed, outbox.EnvelopeVersion, json.RawMessage(`[`))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrDecoderNotRegistered))
}
