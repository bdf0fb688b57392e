package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/registry"
)

const (
	bookingNotificationConsumer = "booking-notifications"
	noticeTimeLayout            = "2006-01-02 15:04 MST"
)

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type processedStore interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns booking events into inbox entries for the client and the
// consultant involved.
type Consumer struct {
	inbox    repository
	sub      receiver
	claims   processedStore
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	var sub receiver
	if subscription != nil {
		sub = subscription
	}
	var claims processedStore
	if manager != nil {
		claims = manager
	}
	return newConsumer(repo, sub, claims, logg)
}

func newConsumer(repo repository, sub receiver, claims processedStore, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, errors.New("notifications repository required")
	case sub == nil:
		return nil, errors.New("booking subscription required")
	case claims == nil:
		return nil, errors.New("idempotency store required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{
		inbox:    repo,
		sub:      sub,
		claims:   claims,
		decoders: registry.NewBookingDecoders(),
		logg:     logg,
	}, nil
}

// Run receives until ctx is canceled. Messages this build cannot use are
// acked; only transient failures are redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type verdict int

const (
	done verdict = iota
	redeliver
)

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) verdict {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
		"attempt":    deliveryAttempt(msg),
	})

	build, ok := builders[eventType]
	if !ok {
		c.logg.Debug(logCtx, "skipping event without notification")
		return done
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "undecodable envelope dropped", err)
		return done
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "envelope without a valid event id dropped", err)
		return done
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	seen, err := c.claims.CheckAndMarkProcessed(ctx, bookingNotificationConsumer, eventID)
	switch {
	case err != nil:
		c.logg.Error(logCtx, "claiming event failed", err)
		return redeliver
	case seen:
		c.logg.Debug(logCtx, "event already delivered")
		return done
	}

	decoded, err := c.decoders.DecodeEnvelope(eventType, envelope)
	if errors.Is(err, registry.ErrDecoderNotRegistered) {
		c.logg.Warn(c.logg.WithField(logCtx, "version", envelope.Version), "unsupported payload version")
		c.complete(ctx, logCtx, eventID)
		return done
	}
	if err != nil {
		return c.release(ctx, logCtx, eventID, "payload decode failed", err)
	}

	created := 0
	for _, n := range build(decoded) {
		if n.UserID == uuid.Nil {
			continue
		}
		if err := c.inbox.Create(ctx, &n); err != nil {
			return c.release(ctx, logCtx, eventID, "writing notification failed", err)
		}
		created++
	}
	c.complete(ctx, logCtx, eventID)
	c.logg.Info(c.logg.WithField(logCtx, "notifications", created), "booking event delivered to inbox")
	return done
}

// release drops the claim so the redelivered message is processed again.
func (c *Consumer) release(ctx, logCtx context.Context, eventID uuid.UUID, msg string, cause error) verdict {
	c.logg.Error(logCtx, msg, cause)
	if err := c.claims.Delete(ctx, bookingNotificationConsumer, eventID); err != nil {
		c.logg.Warn(c.logg.WithError(logCtx, err), "releasing event claim failed")
	}
	return redeliver
}

// complete failures are logged only; the claim lease expires on its own.
func (c *Consumer) complete(ctx, logCtx context.Context, eventID uuid.UUID) {
	if err := c.claims.Complete(ctx, bookingNotificationConsumer, eventID); err != nil {
		c.logg.Warn(c.logg.WithError(logCtx, err), "idempotency complete failed")
	}
}

func deliveryAttempt(msg *pubsub.Message) int {
	if msg.DeliveryAttempt == nil {
		return 0
	}
	return *msg.DeliveryAttempt
}

type builder func(payload any) []models.Notification

var builders = map[enums.OutboxEventType]builder{
	enums.EventReservationItemCreated: func(payload any) []models.Notification {
		p, _ := payload.(payloads.ReservationItemCreatedEvent)
		return []models.Notification{{
			UserID:  p.ConsultantID,
			Type:    enums.NotificationTypeBookingRequest,
			Title:   "New booking request",
			Message: fmt.Sprintf("A client requested %s.", p.Datetime.UTC().Format(noticeTimeLayout)),
			Link:    stringPtr(fmt.Sprintf("/assigns/%s", p.AssignID)),
		}}
	},
	enums.EventReservationItemPulled: func(payload any) []models.Notification {
		p, _ := payload.(payloads.ReservationItemPulledEvent)
		return []models.Notification{{
			UserID:  p.ConsultantID,
			Type:    enums.NotificationTypeBookingCanceled,
			Title:   "Booking withdrawn",
			Message: "The client withdrew a booking request.",
			Link:    stringPtr(fmt.Sprintf("/reservations/%s", p.ReservationID)),
		}}
	},
	enums.EventAssignAccepted: func(payload any) []models.Notification {
		p, _ := payload.(payloads.AssignDecisionEvent)
		return []models.Notification{{
			UserID:  p.ClientID,
			Type:    enums.NotificationTypeBookingAccepted,
			Title:   "Booking accepted",
			Message: fmt.Sprintf("Your booking for %s was accepted.", p.Datetime.UTC().Format(noticeTimeLayout)),
			Link:    stringPtr(fmt.Sprintf("/assigns/%s", p.AssignID)),
		}}
	},
	enums.EventAssignRejected:  decisionClosed("Booking declined", "The consultant declined your booking."),
	enums.EventAssignCancelled: decisionClosed("Booking cancelled", "Your booking was cancelled."),
	enums.EventAssignExpired:   decisionClosed("Booking expired", "Your booking expired before the consultant answered."),
	enums.EventAssignedCreated: func(payload any) []models.Notification {
		p, _ := payload.(payloads.AssignedEvent)
		return []models.Notification{{
			UserID:  p.ConsultantID,
			Type:    enums.NotificationTypeSystem,
			Title:   "Consultation confirmed",
			Message: fmt.Sprintf("Consultation is due by %s.", p.DueAt.UTC().Format(noticeTimeLayout)),
			Link:    stringPtr(fmt.Sprintf("/assigned/%s", p.AssignedID)),
		}}
	},
	enums.EventAssignedClosed: func(payload any) []models.Notification {
		p, _ := payload.(payloads.AssignedEvent)
		return []models.Notification{{
			UserID:  p.ClientID,
			Type:    enums.NotificationTypeSystem,
			Title:   "Consultation closed",
			Message: "Your consultation has been closed.",
			Link:    stringPtr(fmt.Sprintf("/assigned/%s", p.AssignedID)),
		}}
	},
}

func decisionClosed(title, message string) builder {
	return func(payload any) []models.Notification {
		p, _ := payload.(payloads.AssignDecisionEvent)
		text := message
		if p.Reason != "" {
			text = fmt.Sprintf("%s Reason: %s", message, p.Reason)
		}
		return []models.Notification{{
			UserID:  p.ClientID,
			Type:    enums.NotificationTypeBookingCanceled,
			Title:   title,
			Message: text,
			Link:    stringPtr(fmt.Sprintf("/assigns/%s", p.AssignID)),
		}}
	}
}

func stringPtr(value string) *string {
	return &value
}
