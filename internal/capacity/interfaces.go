package capacity

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Repository defines persistence for segments, SLAs and priorities.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindScheduleProvider(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error)
	CreateSegment(ctx context.Context, segment *models.Segment) error
	FindSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	FindSegmentForUpdate(ctx context.Context, id uuid.UUID) (*models.Segment, error)
	ListSegments(ctx context.Context, scheduleID uuid.UUID) ([]models.Segment, error)
	CreateSLA(ctx context.Context, sla *models.SLA) error
	FindSLA(ctx context.Context, id uuid.UUID) (*models.SLA, error)
	CreatePriority(ctx context.Context, priority *models.Priority) error
	FindPriority(ctx context.Context, id uuid.UUID) (*models.Priority, error)
	CountOpenTickets(ctx context.Context, segmentID uuid.UUID) (int64, error)
	SumReservationItems(ctx context.Context, reservationID uuid.UUID, status enums.AssignStatus) (decimal.Decimal, int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
