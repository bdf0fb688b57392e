package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/dbtest"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

func TestEmitWritesEnvelopeKeyedByRowID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	occurred := time.Date(2030, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	actor := &ActorRef{UserID: uuid.New(), Role: enums.UserRoleConsultant}
	aggregate := uuid.New()

	err := svc.Emit(context.Background(), conn,
		DomainEvent{
			EventType:     enums.EventAssignAccepted,
			AggregateType: enums.AggregateAssign,
			AggregateID:   aggregate,
			Actor:         actor,
			Data:          map[string]string{"reason": "fits"},
			OccurredAt:    occurred,
		},
		DomainEvent{
			EventType:     enums.EventAssignAccepted,
			AggregateType: enums.AggregateAssign,
			AggregateID:   uuid.New(),
		},
	)
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&rows).Error)
	require.Len(t, rows, 2)

	var first *models.OutboxEvent
	for i := range rows {
		if rows[i].AggregateID == aggregate {
			first = &rows[i]
		}
	}
	require.NotNil(t, first)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(first.Payload, &envelope))
	assert.Equal(t, first.ID.String(), envelope.EventID)
	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.True(t, envelope.OccurredAt.Equal(occurred))
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
	assert.Equal(t, actor.UserID, envelope.Actor.UserID)
	assert.JSONEq(t, `{"reason":"fits"}`, string(envelope.Data))
	assert.Nil(t, first.PublishedAt)
}

func TestEmitRejectsInvalidEventsAtomically(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	valid := DomainEvent{EventType: enums.EventAssignAccepted, AggregateType: enums.AggregateAssign, AggregateID: uuid.New()}

	for name, bad := range map[string]DomainEvent{
		"event type":     {EventType: "assign_teleported", AggregateType: enums.AggregateAssign, AggregateID: uuid.New()},
		"aggregate type": {EventType: enums.EventAssignAccepted, AggregateType: "planet", AggregateID: uuid.New()},
		"aggregate id":   {EventType: enums.EventAssignAccepted, AggregateType: enums.AggregateAssign},
		"data":           {EventType: enums.EventAssignAccepted, AggregateType: enums.AggregateAssign, AggregateID: uuid.New(), Data: make(chan int)},
	} {
		assert.Error(t, svc.Emit(context.Background(), conn, valid, bad), name)
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.Error(t, svc.Emit(context.Background(), nil, valid))
	assert.NoError(t, svc.Emit(context.Background(), conn))
}

type failingWriter struct{}

func (failingWriter) Insert(*gorm.DB, ...models.OutboxEvent) error { return errors.New("disk full") }

func TestEmitWrapsWriterFailure(t *testing.T) {
	svc := &Service{repo: failingWriter{}, now: time.Now}
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventAssignAccepted,
		AggregateType: enums.AggregateAssign,
		AggregateID:   uuid.New(),
	})
	assert.ErrorContains(t, err, "disk full")
}
