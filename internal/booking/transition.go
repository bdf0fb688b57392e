package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
)

// TransitionAssign moves a WAITING assign to ACCEPT, REJECT or CANCEL.
//
// Locks are taken in a fixed order: the issue, then (for ACCEPT) every open
// assign of the consultant by id, then the target assign, then its item.
// Accepting cancels the consultant's other WAITING/ACCEPT assigns in the
// same transaction; assigns already backed by an Assigned are left alone.
func (s *service) TransitionAssign(ctx context.Context, input TransitionInput) (*TransitionResult, error) {
	switch input.Status {
	case enums.AssignAccept, enums.AssignReject, enums.AssignCancel:
	default:
		return nil, pkgerrors.Validation("status", "status must be ACCEPT, REJECT or CANCEL")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	now := s.now().UTC()
	var result TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindAssign(ctx, input.AssignID)
		if err != nil {
			return lookupError(err, "assign")
		}
		if err := authorizeTransition(*current, input.Actor, input.Status); err != nil {
			return err
		}

		if _, err := repo.LockIssue(ctx, current.IssueID); err != nil {
			return lookupError(err, "issue")
		}
		var open []models.Assign
		if input.Status == enums.AssignAccept {
			open, err = repo.LockOpenAssignsByConsultant(ctx, current.ConsultantID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock consultant assigns")
			}
		}
		assign, err := repo.LockAssign(ctx, input.AssignID)
		if err != nil {
			return lookupError(err, "assign")
		}
		if assign.Status != enums.AssignWaiting {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "assign is no longer waiting").
				WithDetails(map[string]any{"status": assign.Status}).
				WithReason(pkgerrors.ReasonTerminalStateViolation)
		}
		item, err := repo.LockItem(ctx, assign.ReservationItemID)
		if err != nil {
			return lookupError(err, "reservation item")
		}

		var cancelled []uuid.UUID
		if input.Status == enums.AssignAccept {
			cancelled, err = s.accept(ctx, tx, repo, assign, item, open, input, now)
		} else {
			err = s.decline(ctx, tx, repo, assign, item, input, now)
		}
		if err != nil {
			return err
		}

		assign.Status = input.Status
		decided := now
		assign.DecidedAt = &decided
		if input.Status == enums.AssignAccept {
			assign.AcceptedAt = &decided
		}
		result = TransitionResult{Assign: newAssignView(*assign), Cancelled: cancelled}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assign_id": input.AssignID.String(),
		"status":    string(input.Status),
		"cancelled": len(result.Cancelled),
	})
	s.logg.Info(logCtx, "assign transitioned")

	if input.Status == enums.AssignAccept {
		s.notifyAccepted(ctx, input.AssignID)
	}
	return &result, nil
}

func (s *service) accept(ctx context.Context, tx *gorm.DB, repo Repository, assign *models.Assign, item *models.ReservationItem, open []models.Assign, input TransitionInput, now time.Time) ([]uuid.UUID, error) {
	if item.Status != enums.ReservationItemPush {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation item was withdrawn").
			WithReason(pkgerrors.ReasonItemWithdrawn)
	}
	accepted, err := repo.HasAcceptedAssign(ctx, assign.IssueID, assign.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check accepted assigns")
	}
	if accepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "issue already accepted by another assign").
			WithReason(pkgerrors.ReasonAlreadyAcceptedBySibling)
	}

	siblings := make([]models.Assign, 0, len(open))
	ids := make([]uuid.UUID, 0, len(open))
	for _, candidate := range open {
		if candidate.ID == assign.ID {
			continue
		}
		siblings = append(siblings, candidate)
		ids = append(ids, candidate.ID)
	}
	backed, err := repo.AssignedAssignIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assigned consultations")
	}

	var cancelled []uuid.UUID
	var itemIDs []uuid.UUID
	var cancelledAssigns []models.Assign
	for _, sibling := range siblings {
		if _, ok := backed[sibling.ID]; ok {
			continue
		}
		cancelled = append(cancelled, sibling.ID)
		itemIDs = append(itemIDs, sibling.ReservationItemID)
		cancelledAssigns = append(cancelledAssigns, sibling)
	}

	// Siblings go first so the per-tuple ACCEPT index never sees two rows.
	if err := repo.UpdateAssignStatus(ctx, cancelled, enums.AssignCancel, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sibling assigns")
	}
	if err := repo.CloseTickets(ctx, itemIDs, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close sibling tickets")
	}
	if err := repo.UpdateAssignStatus(ctx, []uuid.UUID{assign.ID}, enums.AssignAccept, now); err != nil {
		return nil, dbpkg.MapError(err, "accept assign")
	}

	for _, sibling := range cancelledAssigns {
		siblingItem, err := repo.FindItem(ctx, sibling.ReservationItemID)
		if err != nil {
			return nil, lookupError(err, "reservation item")
		}
		sibling.Status = enums.AssignCancel
		event := decisionEvent(enums.EventAssignCancelled, sibling, *siblingItem, now, "accepted elsewhere", input.Actor)
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue sibling cancel event")
		}
	}
	return cancelled, nil
}

func (s *service) decline(ctx context.Context, tx *gorm.DB, repo Repository, assign *models.Assign, item *models.ReservationItem, input TransitionInput, now time.Time) error {
	if err := repo.UpdateAssignStatus(ctx, []uuid.UUID{assign.ID}, input.Status, now); err != nil {
		return dbpkg.MapError(err, "update assign")
	}
	if err := repo.CloseTickets(ctx, []uuid.UUID{item.ID}, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close ticket")
	}
	eventType := enums.EventAssignRejected
	if input.Status == enums.AssignCancel {
		eventType = enums.EventAssignCancelled
	}
	decided := *assign
	decided.Status = input.Status
	if err := s.outbox.Emit(ctx, tx, decisionEvent(eventType, decided, *item, now, input.Reason, input.Actor)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue assign event")
	}
	return nil
}

// notifyAccepted runs after commit. Failures are logged and never undo the
// accept.
func (s *service) notifyAccepted(ctx context.Context, assignID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAssignAccepted(ctx, assignID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "assign_id", assignID.String()), "notify assign accepted", err)
	}
}

// authorizeTransition lets the consultant decide its assigns. The client may
// only cancel; admins may do anything.
func authorizeTransition(assign models.Assign, actor Actor, status enums.AssignStatus) error {
	if actor.isAdmin() || actor.UserID == assign.ConsultantID {
		return nil
	}
	if status == enums.AssignCancel && actor.UserID == assign.ClientID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "assign belongs to another consultant")
}

func decisionEvent(eventType enums.OutboxEventType, assign models.Assign, item models.ReservationItem, decidedAt time.Time, reason string, actor Actor) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAssign,
		AggregateID:   assign.ID,
		Actor:         actorRef(actor),
		Data: payloads.AssignDecisionEvent{
			AssignID:          assign.ID,
			ReservationItemID: assign.ReservationItemID,
			ReservationID:     assign.ReservationID,
			IssueID:           assign.IssueID,
			ClientID:          assign.ClientID,
			ConsultantID:      assign.ConsultantID,
			Status:            assign.Status,
			Datetime:          item.Datetime,
			DecidedAt:         decidedAt,
			Reason:            reason,
		},
	}
}

// ExpireWaitingAssigns cancels WAITING assigns whose booked instant passed
// more than grace ago and closes their tickets. It returns how many were
// expired.
func (s *service) ExpireWaitingAssigns(ctx context.Context, grace time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	now := s.now().UTC()
	cutoff := now.Add(-grace)
	expired := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assigns, err := repo.ClaimExpiredAssigns(ctx, cutoff, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim expired assigns")
		}
		if len(assigns) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(assigns))
		itemIDs := make([]uuid.UUID, 0, len(assigns))
		for _, assign := range assigns {
			ids = append(ids, assign.ID)
			itemIDs = append(itemIDs, assign.ReservationItemID)
		}
		if err := repo.UpdateAssignStatus(ctx, ids, enums.AssignCancel, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire assigns")
		}
		if err := repo.CloseTickets(ctx, itemIDs, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close expired tickets")
		}
		for _, assign := range assigns {
			item, err := repo.FindItem(ctx, assign.ReservationItemID)
			if err != nil {
				return lookupError(err, "reservation item")
			}
			assign.Status = enums.AssignCancel
			if err := s.outbox.Emit(ctx, tx, decisionEvent(enums.EventAssignExpired, assign, *item, now, "expired", Actor{})); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue expiry event")
			}
		}
		expired = len(assigns)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired", expired), "waiting assigns expired")
	}
	return expired, nil
}
