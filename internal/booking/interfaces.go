package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
)

// Repository defines persistence for the issue/reservation/assign chain.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateIssue(ctx context.Context, issue *models.Issue) error
	FindIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)
	LockIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)

	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	LockReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	LockAssignsByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Assign, error)
	DeleteReservation(ctx context.Context, id uuid.UUID) error

	CreateItem(ctx context.Context, item *models.ReservationItem) error
	FindItem(ctx context.Context, id uuid.UUID) (*models.ReservationItem, error)
	LockItem(ctx context.Context, id uuid.UUID) (*models.ReservationItem, error)
	UpdateItemStatus(ctx context.Context, id uuid.UUID, status enums.ReservationItemStatus) error
	LockScheduleBookings(ctx context.Context, scheduleID uuid.UUID) error
	CountScheduleBookings(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (int64, error)

	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	CloseTickets(ctx context.Context, itemIDs []uuid.UUID, now time.Time) error

	CreateAssign(ctx context.Context, assign *models.Assign) error
	FindAssign(ctx context.Context, id uuid.UUID) (*models.Assign, error)
	LockAssign(ctx context.Context, id uuid.UUID) (*models.Assign, error)
	LockOpenAssignsByConsultant(ctx context.Context, consultantID uuid.UUID) ([]models.Assign, error)
	LockAssignsByItem(ctx context.Context, itemID uuid.UUID) ([]models.Assign, error)
	HasAcceptedAssign(ctx context.Context, issueID, excludeID uuid.UUID) (bool, error)
	UpdateAssignStatus(ctx context.Context, ids []uuid.UUID, status enums.AssignStatus, decidedAt time.Time) error
	ClaimExpiredAssigns(ctx context.Context, cutoff time.Time, limit int) ([]models.Assign, error)

	CreateAssigned(ctx context.Context, assigned *models.Assigned) error
	LockAssigned(ctx context.Context, id uuid.UUID) (*models.Assigned, error)
	AssignedAssignIDs(ctx context.Context, assignIDs []uuid.UUID) (map[uuid.UUID]struct{}, error)
	ExistsAssigned(ctx context.Context, assignID uuid.UUID) (bool, error)
	CloseAssigned(ctx context.Context, id uuid.UUID, now time.Time) error

	FindSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	FindSLA(ctx context.Context, id uuid.UUID) (*models.SLA, error)
	FindPriority(ctx context.Context, id uuid.UUID) (*models.Priority, error)
}

// CapacityReserver locks a segment and checks its quota inside tx.
type CapacityReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) (*models.Segment, error)
}

// AvailabilityChecker answers whether an instant is bookable on a schedule.
type AvailabilityChecker interface {
	IsAvailable(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, instant time.Time) (bool, error)
	ScheduleLocation(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error)
}

// Policy is the per-schedule booking policy read from schedule attributes.
// Zero values disable the corresponding check.
type Policy struct {
	LeadTime         time.Duration
	MaxDailyBookings int
}

// PolicyResolver loads the booking policy of a schedule.
type PolicyResolver interface {
	SchedulePolicy(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (Policy, error)
}

// Notifier is told about accepted assigns after the accepting commit.
type Notifier interface {
	NotifyAssignAccepted(ctx context.Context, assignID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
