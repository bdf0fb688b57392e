package booking

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) isAdmin() bool { return a.Role == enums.UserRoleAdmin }

type CreateIssueInput struct {
	ClientID    uuid.UUID
	Topics      []string
	Description string
}

type CreateReservationInput struct {
	ClientID     uuid.UUID
	ConsultantID uuid.UUID
}

// CreateItemInput books one instant of a schedule inside a reservation.
type CreateItemInput struct {
	ReservationID uuid.UUID
	ClientID      uuid.UUID
	IssueID       uuid.UUID
	ScheduleID    uuid.UUID
	SegmentID     uuid.UUID
	SLAID         uuid.UUID
	PriorityID    uuid.UUID
	Datetime      time.Time
}

// TransitionInput moves a WAITING assign to a terminal status.
type TransitionInput struct {
	AssignID uuid.UUID
	Actor    Actor
	Status   enums.AssignStatus
	Reason   string
}

type CreateAssignedInput struct {
	AssignID   uuid.UUID
	Actor      Actor
	PaymentRef string
}

type IssueView struct {
	ID          uuid.UUID `json:"id"`
	ClientID    uuid.UUID `json:"client_id"`
	Number      string    `json:"number"`
	Topics      []string  `json:"topics"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReservationView struct {
	ID           uuid.UUID  `json:"id"`
	ClientID     uuid.UUID  `json:"client_id"`
	ConsultantID uuid.UUID  `json:"consultant_id"`
	Number       string     `json:"number"`
	Items        []ItemView `json:"items"`
	CreatedAt    time.Time  `json:"created_at"`
}

type ItemView struct {
	ID            uuid.UUID                   `json:"id"`
	ReservationID uuid.UUID                   `json:"reservation_id"`
	IssueID       uuid.UUID                   `json:"issue_id"`
	ScheduleID    uuid.UUID                   `json:"schedule_id"`
	SegmentID     uuid.UUID                   `json:"segment_id"`
	SLAID         uuid.UUID                   `json:"sla_id"`
	PriorityID    uuid.UUID                   `json:"priority_id"`
	Datetime      time.Time                   `json:"datetime"`
	Status        enums.ReservationItemStatus `json:"status"`
	TotalCost     decimal.Decimal             `json:"total_cost"`
	CreatedAt     time.Time                   `json:"created_at"`
}

type AssignView struct {
	ID                uuid.UUID          `json:"id"`
	ReservationItemID uuid.UUID          `json:"reservation_item_id"`
	ReservationID     uuid.UUID          `json:"reservation_id"`
	IssueID           uuid.UUID          `json:"issue_id"`
	ClientID          uuid.UUID          `json:"client_id"`
	ConsultantID      uuid.UUID          `json:"consultant_id"`
	Status            enums.AssignStatus `json:"status"`
	DecidedAt         *time.Time         `json:"decided_at,omitempty"`
	AcceptedAt        *time.Time         `json:"accepted_at,omitempty"`
}

// ItemResult is returned by CreateReservationItem.
type ItemResult struct {
	Item     ItemView   `json:"item"`
	Assign   AssignView `json:"assign"`
	TicketID uuid.UUID  `json:"ticket_id"`
}

// TransitionResult carries the decided assign and the siblings an accept
// cancelled.
type TransitionResult struct {
	Assign    AssignView  `json:"assign"`
	Cancelled []uuid.UUID `json:"cancelled"`
}

type AssignedView struct {
	ID                uuid.UUID          `json:"id"`
	AssignID          uuid.UUID          `json:"assign_id"`
	ReservationItemID uuid.UUID          `json:"reservation_item_id"`
	IssueID           uuid.UUID          `json:"issue_id"`
	ClientID          uuid.UUID          `json:"client_id"`
	ConsultantID      uuid.UUID          `json:"consultant_id"`
	PaymentRef        *string            `json:"payment_ref,omitempty"`
	DueDate           string             `json:"due_date"`
	DueTime           string             `json:"due_time"`
	DueAt             time.Time          `json:"due_at"`
	Status            enums.TicketStatus `json:"status"`
	ClosedAt          *time.Time         `json:"closed_at,omitempty"`
}

func newIssueView(m models.Issue) IssueView {
	topics := []string{}
	if len(m.Topics) > 0 {
		_ = json.Unmarshal(m.Topics, &topics)
	}
	return IssueView{
		ID:          m.ID,
		ClientID:    m.ClientID,
		Number:      m.Number,
		Topics:      topics,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

func newReservationView(m models.Reservation) ReservationView {
	items := make([]ItemView, 0, len(m.Items))
	for _, item := range m.Items {
		items = append(items, newItemView(item))
	}
	return ReservationView{
		ID:           m.ID,
		ClientID:     m.ClientID,
		ConsultantID: m.ConsultantID,
		Number:       m.Number,
		Items:        items,
		CreatedAt:    m.CreatedAt,
	}
}

func newItemView(m models.ReservationItem) ItemView {
	return ItemView{
		ID:            m.ID,
		ReservationID: m.ReservationID,
		IssueID:       m.IssueID,
		ScheduleID:    m.ScheduleID,
		SegmentID:     m.SegmentID,
		SLAID:         m.SLAID,
		PriorityID:    m.PriorityID,
		Datetime:      m.Datetime,
		Status:        m.Status,
		TotalCost:     m.TotalCost,
		CreatedAt:     m.CreatedAt,
	}
}

func newAssignView(m models.Assign) AssignView {
	return AssignView{
		ID:                m.ID,
		ReservationItemID: m.ReservationItemID,
		ReservationID:     m.ReservationID,
		IssueID:           m.IssueID,
		ClientID:          m.ClientID,
		ConsultantID:      m.ConsultantID,
		Status:            m.Status,
		DecidedAt:         m.DecidedAt,
		AcceptedAt:        m.AcceptedAt,
	}
}

func newAssignedView(m models.Assigned) AssignedView {
	return AssignedView{
		ID:                m.ID,
		AssignID:          m.AssignID,
		ReservationItemID: m.ReservationItemID,
		IssueID:           m.IssueID,
		ClientID:          m.ClientID,
		ConsultantID:      m.ConsultantID,
		PaymentRef:        m.PaymentRef,
		DueDate:           time.Time(m.DueDate).Format("2006-01-02"),
		DueTime:           m.DueTime.String(),
		DueAt:             m.DueAt,
		Status:            m.Status,
		ClosedAt:          m.ClosedAt,
	}
}
