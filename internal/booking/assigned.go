package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
)

// CreateAssigned opens the consultation for an accepted, paid assign. The
// due instant is computed once here and never recomputed.
func (s *service) CreateAssigned(ctx context.Context, input CreateAssignedInput) (*AssignedView, error) {
	paymentRef := strings.TrimSpace(input.PaymentRef)
	if paymentRef == "" {
		return nil, pkgerrors.Validation("payment_ref", "payment reference is required")
	}

	var view AssignedView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assign, err := repo.LockAssign(ctx, input.AssignID)
		if err != nil {
			return lookupError(err, "assign")
		}
		if assign.ClientID != input.Actor.UserID && !input.Actor.isAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "assign belongs to another client")
		}
		if assign.Status != enums.AssignAccept {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assign is not accepted").
				WithDetails(map[string]any{"status": assign.Status}).
				WithReason(pkgerrors.ReasonAssignNotAccepted)
		}
		exists, err := repo.ExistsAssigned(ctx, assign.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check assigned")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "assign already has a consultation")
		}

		item, err := repo.FindItem(ctx, assign.ReservationItemID)
		if err != nil {
			return lookupError(err, "reservation item")
		}
		segment, err := repo.FindSegment(ctx, item.SegmentID)
		if err != nil {
			return lookupError(err, "segment")
		}
		sla, err := repo.FindSLA(ctx, item.SLAID)
		if err != nil {
			return lookupError(err, "sla")
		}
		loc, err := s.availability.ScheduleLocation(ctx, tx, item.ScheduleID)
		if err != nil {
			return err
		}

		due := DueAt(item.Datetime, time.Duration(segment.OpenTime), sla.GracePeriodHours, loc)
		assigned := models.Assigned{
			AssignID:          assign.ID,
			ReservationItemID: item.ID,
			IssueID:           assign.IssueID,
			ClientID:          assign.ClientID,
			ConsultantID:      assign.ConsultantID,
			PaymentRef:        &paymentRef,
			DueDate:           datatypes.Date(time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)),
			DueTime:           datatypes.NewTime(due.Hour(), due.Minute(), due.Second(), 0),
			DueAt:             due.UTC(),
			Status:            enums.TicketOpen,
		}
		if err := repo.CreateAssigned(ctx, &assigned); err != nil {
			return dbpkg.MapError(err, "create assigned")
		}
		if err := s.outbox.Emit(ctx, tx, assignedEvent(enums.EventAssignedCreated, assigned, input.Actor)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue assigned event")
		}
		view = newAssignedView(assigned)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "assigned_id", view.ID.String()), "consultation opened")
	return &view, nil
}

// CloseAssigned mirrors the end of the consultation and releases the
// item's ticket.
func (s *service) CloseAssigned(ctx context.Context, assignedID uuid.UUID, actor Actor) (*AssignedView, error) {
	now := s.now().UTC()
	var view AssignedView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assigned, err := repo.LockAssigned(ctx, assignedID)
		if err != nil {
			return lookupError(err, "assigned")
		}
		if assigned.ConsultantID != actor.UserID && !actor.isAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "consultation belongs to another consultant")
		}
		if assigned.Status == enums.TicketClosed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "consultation already closed").
				WithReason(pkgerrors.ReasonTerminalStateViolation)
		}
		if err := repo.CloseAssigned(ctx, assigned.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close assigned")
		}
		if err := repo.CloseTickets(ctx, []uuid.UUID{assigned.ReservationItemID}, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close ticket")
		}
		assigned.Status = enums.TicketClosed
		assigned.ClosedAt = &now
		if err := s.outbox.Emit(ctx, tx, assignedEvent(enums.EventAssignedClosed, *assigned, actor)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue assigned closed event")
		}
		view = newAssignedView(*assigned)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "assigned_id", assignedID.String()), "consultation closed")
	return &view, nil
}

// DueAt is the local date of the booked instant at the segment's opening
// time, plus the SLA grace period. The wall clock is built in loc so a DST
// change on that day does not shift the opening hour.
func DueAt(instant time.Time, open time.Duration, graceHours int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := instant.In(loc)
	openAt := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, int(open/time.Second), 0, loc)
	return openAt.Add(time.Duration(graceHours) * time.Hour)
}

func assignedEvent(eventType enums.OutboxEventType, assigned models.Assigned, actor Actor) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAssigned,
		AggregateID:   assigned.ID,
		Actor:         actorRef(actor),
		Data: payloads.AssignedEvent{
			AssignedID:   assigned.ID,
			AssignID:     assigned.AssignID,
			IssueID:      assigned.IssueID,
			ClientID:     assigned.ClientID,
			ConsultantID: assigned.ConsultantID,
			Status:       assigned.Status,
			DueAt:        assigned.DueAt,
			ClosedAt:     assigned.ClosedAt,
		},
	}
}
