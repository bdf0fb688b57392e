package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
)

type dlqReplayer interface {
	Replay(ctx context.Context, eventID uuid.UUID) (*models.OutboxEvent, error)
}

// replayDeadLetters requeues each listed event. Every id is attempted; the
// failures are combined.
func replayDeadLetters(ctx context.Context, logg *logger.Logger, dlq dlqReplayer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: outbox-publisher replay <event-id>...")
	}
	var errs error
	for _, arg := range args {
		eventID, err := uuid.Parse(arg)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event id %q: %w", arg, err))
			continue
		}
		event, err := dlq.Replay(ctx, eventID)
		if errors.Is(err, outbox.ErrDLQEntryNotFound) {
			logg.Warn(logg.WithField(ctx, "event_id", eventID.String()), "event is not dead-lettered")
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("replay %s: %w", eventID, err))
			continue
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": event.EventType,
		}), "dead-lettered event requeued")
	}
	return errs
}
