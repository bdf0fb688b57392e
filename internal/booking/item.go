package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/capacity"
	"github.com/angelmondragon/consultly-backend/internal/validation"
	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
)

// CreateReservationItem books one instant. The chain checks, availability,
// the quota check and the inserts share one transaction; the segment row
// stays locked until commit so concurrent bookings cannot both see room.
func (s *service) CreateReservationItem(ctx context.Context, input CreateItemInput) (*ItemResult, error) {
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	errs := validation.FieldErrors{}
	for field, id := range map[string]uuid.UUID{
		"reservation_id": input.ReservationID,
		"issue_id":       input.IssueID,
		"schedule_id":    input.ScheduleID,
		"segment_id":     input.SegmentID,
		"sla_id":         input.SLAID,
		"priority_id":    input.PriorityID,
	} {
		if id == uuid.Nil {
			errs.Add(field, "is required")
		}
	}
	if input.Datetime.IsZero() {
		errs.Add("datetime", "is required")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	instant := input.Datetime.UTC()
	if instant.Before(now) {
		return nil, pkgerrors.Validation("datetime", "datetime must not be in the past").
			WithReason(pkgerrors.ReasonPastDatetime)
	}

	var result ItemResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reservation, err := repo.LockReservation(ctx, input.ReservationID)
		if err != nil {
			return lookupError(err, "reservation")
		}
		if reservation.ClientID != input.ClientID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another client")
		}
		issue, err := repo.FindIssue(ctx, input.IssueID)
		if err != nil {
			return lookupError(err, "issue")
		}
		if issue.ClientID != reservation.ClientID {
			return pkgerrors.Validation("issue_id", "issue belongs to another client")
		}

		segment, sla, priority, err := s.loadChain(ctx, repo, input)
		if err != nil {
			return err
		}

		policy, err := s.policy(ctx, tx, input.ScheduleID)
		if err != nil {
			return err
		}
		if policy.LeadTime > 0 && instant.Before(now.Add(policy.LeadTime)) {
			return pkgerrors.Validation("datetime", fmt.Sprintf("bookings need %s notice", policy.LeadTime)).
				WithReason(pkgerrors.ReasonLeadTime)
		}

		available, err := s.availability.IsAvailable(ctx, tx, input.ScheduleID, instant)
		if err != nil {
			return err
		}
		if !available {
			return pkgerrors.Validation("datetime", "instant is not in the schedule's availability").
				WithReason(pkgerrors.ReasonUnavailableInstant)
		}
		loc, err := s.availability.ScheduleLocation(ctx, tx, input.ScheduleID)
		if err != nil {
			return err
		}
		if !capacity.WithinBand(*segment, instant, loc) {
			return pkgerrors.Validation("datetime", "instant is outside the segment hours").
				WithReason(pkgerrors.ReasonUnavailableInstant)
		}

		if _, err := s.capacity.Reserve(ctx, tx, segment.ID); err != nil {
			return err
		}
		if policy.MaxDailyBookings > 0 {
			if err := s.checkDailyLimit(ctx, repo, input.ScheduleID, instant, loc, policy.MaxDailyBookings); err != nil {
				return err
			}
		}

		item := models.ReservationItem{
			ReservationID: reservation.ID,
			IssueID:       issue.ID,
			ScheduleID:    input.ScheduleID,
			SegmentID:     segment.ID,
			SLAID:         sla.ID,
			PriorityID:    priority.ID,
			Datetime:      instant,
			Status:        enums.ReservationItemPush,
			TotalCost:     capacity.ItemTotalCost(*sla, *priority),
		}
		if err := repo.CreateItem(ctx, &item); err != nil {
			return dbpkg.MapError(err, "create reservation item")
		}
		ticket := models.Ticket{
			SegmentID:         segment.ID,
			ReservationItemID: item.ID,
			Status:            enums.TicketOpen,
		}
		if err := repo.CreateTicket(ctx, &ticket); err != nil {
			return dbpkg.MapError(err, "create ticket")
		}
		assign := models.Assign{
			ReservationItemID: item.ID,
			IssueID:           issue.ID,
			ReservationID:     reservation.ID,
			ClientID:          reservation.ClientID,
			ConsultantID:      reservation.ConsultantID,
			Status:            enums.AssignWaiting,
		}
		if err := repo.CreateAssign(ctx, &assign); err != nil {
			return dbpkg.MapError(err, "create assign")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationItemCreated,
			AggregateType: enums.AggregateReservationItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: input.ClientID, Role: enums.UserRoleClient},
			Data: payloads.ReservationItemCreatedEvent{
				ReservationItemID: item.ID,
				ReservationID:     reservation.ID,
				IssueID:           issue.ID,
				AssignID:          assign.ID,
				ClientID:          reservation.ClientID,
				ConsultantID:      reservation.ConsultantID,
				SegmentID:         segment.ID,
				Datetime:          instant,
				TotalCost:         item.TotalCost,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue reservation item event")
		}

		result = ItemResult{
			Item:     newItemView(item),
			Assign:   newAssignView(assign),
			TicketID: ticket.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reservation_item_id": result.Item.ID.String(),
		"segment_id":          result.Item.SegmentID.String(),
		"assign_id":           result.Assign.ID.String(),
	})
	s.logg.Info(logCtx, "reservation item created")
	return &result, nil
}

// loadChain checks that the SLA belongs to the segment, the segment to the
// schedule and the priority to the SLA.
func (s *service) loadChain(ctx context.Context, repo Repository, input CreateItemInput) (*models.Segment, *models.SLA, *models.Priority, error) {
	segment, err := repo.FindSegment(ctx, input.SegmentID)
	if err != nil {
		return nil, nil, nil, lookupError(err, "segment")
	}
	if segment.ScheduleID != input.ScheduleID {
		return nil, nil, nil, pkgerrors.Validation("segment_id", "segment does not belong to schedule")
	}
	sla, err := repo.FindSLA(ctx, input.SLAID)
	if err != nil {
		return nil, nil, nil, lookupError(err, "sla")
	}
	if sla.SegmentID != segment.ID {
		return nil, nil, nil, pkgerrors.Validation("sla_id", "sla does not belong to segment")
	}
	priority, err := repo.FindPriority(ctx, input.PriorityID)
	if err != nil {
		return nil, nil, nil, lookupError(err, "priority")
	}
	if priority.SLAID != sla.ID {
		return nil, nil, nil, pkgerrors.Validation("priority_id", "priority does not belong to sla")
	}
	return segment, sla, priority, nil
}

func (s *service) policy(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (Policy, error) {
	if s.policies == nil {
		return Policy{}, nil
	}
	return s.policies.SchedulePolicy(ctx, tx, scheduleID)
}

func (s *service) checkDailyLimit(ctx context.Context, repo Repository, scheduleID uuid.UUID, instant time.Time, loc *time.Location, limit int) error {
	if loc == nil {
		loc = time.UTC
	}
	if err := repo.LockScheduleBookings(ctx, scheduleID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock schedule bookings")
	}
	local := instant.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)
	count, err := repo.CountScheduleBookings(ctx, scheduleID, from, to)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count daily bookings")
	}
	if count >= int64(limit) {
		return pkgerrors.New(pkgerrors.CodeCapacityExceeded, "daily booking limit reached").
			WithDetails(map[string]any{"max_daily_bookings": limit, "bookings": count}).
			WithReason(pkgerrors.ReasonDailyLimitReached)
	}
	return nil
}

// PullReservationItem withdraws a PUSH item while no assign has reached
// ACCEPT or REJECT. Its WAITING assigns are cancelled and its ticket is closed.
func (s *service) PullReservationItem(ctx context.Context, itemID uuid.UUID, actor Actor) (*ItemView, error) {
	now := s.now().UTC()
	var view ItemView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindItem(ctx, itemID)
		if err != nil {
			return lookupError(err, "reservation item")
		}
		reservation, err := repo.FindReservation(ctx, current.ReservationID)
		if err != nil {
			return lookupError(err, "reservation")
		}
		if reservation.ClientID != actor.UserID && !actor.isAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another client")
		}

		if _, err := repo.LockIssue(ctx, current.IssueID); err != nil {
			return lookupError(err, "issue")
		}
		assigns, err := repo.LockAssignsByItem(ctx, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock item assigns")
		}
		item, err := repo.LockItem(ctx, itemID)
		if err != nil {
			return lookupError(err, "reservation item")
		}
		if item.Status == enums.ReservationItemPull {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation item already withdrawn").
				WithReason(pkgerrors.ReasonItemWithdrawn)
		}
		if itemFrozen(assigns) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation item is frozen by a decided assign").
				WithReason(pkgerrors.ReasonItemFrozen)
		}

		waiting := make([]uuid.UUID, 0, len(assigns))
		for _, assign := range assigns {
			if assign.Status == enums.AssignWaiting {
				waiting = append(waiting, assign.ID)
			}
		}
		if err := repo.UpdateAssignStatus(ctx, waiting, enums.AssignCancel, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel item assigns")
		}
		if err := repo.UpdateItemStatus(ctx, item.ID, enums.ReservationItemPull); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "withdraw reservation item")
		}
		if err := repo.CloseTickets(ctx, []uuid.UUID{item.ID}, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close ticket")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReservationItemPulled,
			AggregateType: enums.AggregateReservationItem,
			AggregateID:   item.ID,
			Actor:         actorRef(actor),
			Data: payloads.ReservationItemPulledEvent{
				ReservationItemID: item.ID,
				ReservationID:     reservation.ID,
				ClientID:          reservation.ClientID,
				ConsultantID:      reservation.ConsultantID,
				CanceledAssignIDs: waiting,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue item pulled event")
		}

		item.Status = enums.ReservationItemPull
		view = newItemView(*item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "reservation_item_id", itemID.String()), "reservation item withdrawn")
	return &view, nil
}
