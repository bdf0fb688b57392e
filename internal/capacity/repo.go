package capacity

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds a capacity repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindScheduleProvider(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error) {
	var schedule models.Schedule
	if err := r.db.WithContext(ctx).Select("id", "provider_id").Where("id = ?", scheduleID).First(&schedule).Error; err != nil {
		return uuid.Nil, err
	}
	return schedule.ProviderID, nil
}

func (r *repository) CreateSegment(ctx context.Context, segment *models.Segment) error {
	return r.db.WithContext(ctx).Create(segment).Error
}

func (r *repository) FindSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	var segment models.Segment
	err := r.db.WithContext(ctx).
		Preload("SLAs.Priorities").
		Where("id = ?", id).
		First(&segment).Error
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

func (r *repository) FindSegmentForUpdate(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	var segment models.Segment
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&segment).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

func (r *repository) ListSegments(ctx context.Context, scheduleID uuid.UUID) ([]models.Segment, error) {
	var segments []models.Segment
	err := r.db.WithContext(ctx).
		Preload("SLAs.Priorities").
		Where("schedule_id = ?", scheduleID).
		Order("open_time, id").
		Find(&segments).Error
	return segments, err
}

func (r *repository) CreateSLA(ctx context.Context, sla *models.SLA) error {
	return r.db.WithContext(ctx).Create(sla).Error
}

func (r *repository) FindSLA(ctx context.Context, id uuid.UUID) (*models.SLA, error) {
	var sla models.SLA
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sla).Error; err != nil {
		return nil, err
	}
	return &sla, nil
}

func (r *repository) CreatePriority(ctx context.Context, priority *models.Priority) error {
	return r.db.WithContext(ctx).Create(priority).Error
}

func (r *repository) FindPriority(ctx context.Context, id uuid.UUID) (*models.Priority, error) {
	var priority models.Priority
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&priority).Error; err != nil {
		return nil, err
	}
	return &priority, nil
}

func (r *repository) CountOpenTickets(ctx context.Context, segmentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("segment_id = ? AND status = ?", segmentID, enums.TicketOpen).
		Count(&count).Error
	return count, err
}

// SumReservationItems totals PUSH items whose assign is in status.
func (r *repository) SumReservationItems(ctx context.Context, reservationID uuid.UUID, status enums.AssignStatus) (decimal.Decimal, int64, error) {
	var items []models.ReservationItem
	err := r.db.WithContext(ctx).
		Model(&models.ReservationItem{}).
		Joins("JOIN assigns ON assigns.reservation_item_id = reservation_items.id").
		Where("reservation_items.reservation_id = ? AND reservation_items.status = ? AND assigns.status = ?",
			reservationID, enums.ReservationItemPush, status).
		Distinct("reservation_items.id", "reservation_items.total_cost").
		Find(&items).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalCost)
	}
	return total, int64(len(items)), nil
}
