package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AcceptedNotifier queues an assign_accepted event once the accepting
// transaction has committed. The consumer turns it into the client's inbox
// entry.
type AcceptedNotifier struct {
	tx     txRunner
	outbox emitter
}

// NewAcceptedNotifier wires the outbox-backed notifier.
func NewAcceptedNotifier(tx txRunner, out emitter) (*AcceptedNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if out == nil {
		return nil, fmt.Errorf("outbox required")
	}
	return &AcceptedNotifier{tx: tx, outbox: out}, nil
}

func (n *AcceptedNotifier) NotifyAssignAccepted(ctx context.Context, assignID uuid.UUID) error {
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var assign models.Assign
		if err := tx.WithContext(ctx).Where("id = ?", assignID).First(&assign).Error; err != nil {
			return fmt.Errorf("load assign: %w", err)
		}
		if assign.Status != enums.AssignAccept {
			return fmt.Errorf("assign %s is %s, not accepted", assignID, assign.Status)
		}
		var item models.ReservationItem
		if err := tx.WithContext(ctx).Where("id = ?", assign.ReservationItemID).First(&item).Error; err != nil {
			return fmt.Errorf("load reservation item: %w", err)
		}
		decided := time.Now().UTC()
		if assign.DecidedAt != nil {
			decided = assign.DecidedAt.UTC()
		}
		return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAssignAccepted,
			AggregateType: enums.AggregateAssign,
			AggregateID:   assign.ID,
			Actor:         &outbox.ActorRef{UserID: assign.ConsultantID, Role: enums.UserRoleConsultant},
			Data: payloads.AssignDecisionEvent{
				AssignID:          assign.ID,
				ReservationItemID: assign.ReservationItemID,
				ReservationID:     assign.ReservationID,
				IssueID:           assign.IssueID,
				ClientID:          assign.ClientID,
				ConsultantID:      assign.ConsultantID,
				Status:            assign.Status,
				Datetime:          item.Datetime,
				DecidedAt:         decided,
			},
		})
	})
}
