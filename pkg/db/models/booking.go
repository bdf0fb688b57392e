package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Issue is a client's consultation request.
type Issue struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ClientID    uuid.UUID      `gorm:"column:client_id;type:uuid;not null;index"`
	Number      string         `gorm:"column:number;not null;uniqueIndex:ux_issues_number"`
	Topics      datatypes.JSON `gorm:"column:topics;type:jsonb;not null"`
	Description string         `gorm:"column:description;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Issue) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Reservation is a client to consultant booking cart.
type Reservation struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ClientID     uuid.UUID         `gorm:"column:client_id;type:uuid;not null;index"`
	ConsultantID uuid.UUID         `gorm:"column:consultant_id;type:uuid;not null;index"`
	Number       string            `gorm:"column:number;not null;uniqueIndex:ux_reservations_number"`
	Items        []ReservationItem `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Reservation) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ReservationItem is one booked instant inside a reservation.
type ReservationItem struct {
	ID            uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ReservationID uuid.UUID                   `gorm:"column:reservation_id;type:uuid;not null;index"`
	IssueID       uuid.UUID                   `gorm:"column:issue_id;type:uuid;not null;index"`
	ScheduleID    uuid.UUID                   `gorm:"column:schedule_id;type:uuid;not null;index"`
	SegmentID     uuid.UUID                   `gorm:"column:segment_id;type:uuid;not null;index"`
	SLAID         uuid.UUID                   `gorm:"column:sla_id;type:uuid;not null"`
	PriorityID    uuid.UUID                   `gorm:"column:priority_id;type:uuid;not null"`
	Datetime      time.Time                   `gorm:"column:datetime;not null"`
	Status        enums.ReservationItemStatus `gorm:"column:status;type:text;not null"`
	TotalCost     decimal.Decimal             `gorm:"column:total_cost;type:numeric(12,2);not null"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *ReservationItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Ticket counts a reservation item against its segment quota while OPEN.
type Ticket struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SegmentID         uuid.UUID          `gorm:"column:segment_id;type:uuid;not null;index:idx_tickets_segment_status,priority:1"`
	Status            enums.TicketStatus `gorm:"column:status;type:text;not null;index:idx_tickets_segment_status,priority:2"`
	ReservationItemID uuid.UUID          `gorm:"column:reservation_item_id;type:uuid;not null;uniqueIndex:ux_tickets_reservation_item"`
	ClosedAt          *time.Time         `gorm:"column:closed_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (t *Ticket) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Assign is a consultant's decision on a reservation item. The partial
// unique indexes keep a single ACCEPT per issue and per
// client/consultant/reservation tuple. AcceptedAt survives a later sibling
// cancellation and keeps the item frozen.
type Assign struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ReservationItemID uuid.UUID          `gorm:"column:reservation_item_id;type:uuid;not null;index"`
	IssueID           uuid.UUID          `gorm:"column:issue_id;type:uuid;not null;index;uniqueIndex:ux_assigns_issue_accepted,where:status = 'ACCEPT'"`
	ReservationID     uuid.UUID          `gorm:"column:reservation_id;type:uuid;not null;uniqueIndex:ux_assigns_tuple_accepted,priority:3,where:status = 'ACCEPT'"`
	ClientID          uuid.UUID          `gorm:"column:client_id;type:uuid;not null;uniqueIndex:ux_assigns_tuple_accepted,priority:1,where:status = 'ACCEPT'"`
	ConsultantID      uuid.UUID          `gorm:"column:consultant_id;type:uuid;not null;index;uniqueIndex:ux_assigns_tuple_accepted,priority:2,where:status = 'ACCEPT'"`
	Status            enums.AssignStatus `gorm:"column:status;type:text;not null"`
	DecidedAt         *time.Time         `gorm:"column:decided_at"`
	AcceptedAt        *time.Time         `gorm:"column:accepted_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Assign) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// Assigned is the paid consultation created from an accepted assign.
// Identity fields derive from the assign and never change.
type Assigned struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	AssignID          uuid.UUID          `gorm:"column:assign_id;type:uuid;not null;uniqueIndex:ux_assigned_assign"`
	ReservationItemID uuid.UUID          `gorm:"column:reservation_item_id;type:uuid;not null"`
	IssueID           uuid.UUID          `gorm:"column:issue_id;type:uuid;not null"`
	ClientID          uuid.UUID          `gorm:"column:client_id;type:uuid;not null;index"`
	ConsultantID      uuid.UUID          `gorm:"column:consultant_id;type:uuid;not null;index"`
	PaymentRef        *string            `gorm:"column:payment_ref"`
	DueDate           datatypes.Date     `gorm:"column:due_date;not null"`
	DueTime           datatypes.Time     `gorm:"column:due_time;not null"`
	DueAt             time.Time          `gorm:"column:due_at;not null"`
	Status            enums.TicketStatus `gorm:"column:status;type:text;not null"`
	ClosedAt          *time.Time         `gorm:"column:closed_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (Assigned) TableName() string { return "assigned" }

func (a *Assigned) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
