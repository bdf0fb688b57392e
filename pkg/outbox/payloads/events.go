package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// ReservationItemCreatedEvent tells the consultant a new request is waiting.
type ReservationItemCreatedEvent struct {
	ReservationItemID uuid.UUID       `json:"reservation_item_id"`
	ReservationID     uuid.UUID       `json:"reservation_id"`
	IssueID           uuid.UUID       `json:"issue_id"`
	AssignID          uuid.UUID       `json:"assign_id"`
	ClientID          uuid.UUID       `json:"client_id"`
	ConsultantID      uuid.UUID       `json:"consultant_id"`
	SegmentID         uuid.UUID       `json:"segment_id"`
	Datetime          time.Time       `json:"datetime"`
	TotalCost         decimal.Decimal `json:"total_cost"`
}

// ReservationItemPulledEvent is emitted when a client withdraws an item.
type ReservationItemPulledEvent struct {
	ReservationItemID uuid.UUID   `json:"reservation_item_id"`
	ReservationID     uuid.UUID   `json:"reservation_id"`
	ClientID          uuid.UUID   `json:"client_id"`
	ConsultantID      uuid.UUID   `json:"consultant_id"`
	CanceledAssignIDs []uuid.UUID `json:"canceled_assign_ids"`
}

// AssignDecisionEvent covers every assign transition out of WAITING.
type AssignDecisionEvent struct {
	AssignID          uuid.UUID          `json:"assign_id"`
	ReservationItemID uuid.UUID          `json:"reservation_item_id"`
	ReservationID     uuid.UUID          `json:"reservation_id"`
	IssueID           uuid.UUID          `json:"issue_id"`
	ClientID          uuid.UUID          `json:"client_id"`
	ConsultantID      uuid.UUID          `json:"consultant_id"`
	Status            enums.AssignStatus `json:"status"`
	Datetime          time.Time          `json:"datetime"`
	DecidedAt         time.Time          `json:"decided_at"`
	Reason            string             `json:"reason,omitempty"`
}

// AssignedEvent is emitted when a consultation is created or closed.
type AssignedEvent struct {
	AssignedID   uuid.UUID          `json:"assigned_id"`
	AssignID     uuid.UUID          `json:"assign_id"`
	IssueID      uuid.UUID          `json:"issue_id"`
	ClientID     uuid.UUID          `json:"client_id"`
	ConsultantID uuid.UUID          `json:"consultant_id"`
	Status       enums.TicketStatus `json:"status"`
	DueAt        time.Time          `json:"due_at"`
	ClosedAt     *time.Time         `json:"closed_at,omitempty"`
}
