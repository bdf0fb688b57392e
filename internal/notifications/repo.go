package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/pagination"
)

// Repository stores inbox entries. Every read and write is scoped to one
// user except the retention sweep.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markOutcome, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type listNotificationsParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
	Types      []enums.NotificationType
}

type markOutcome int

const (
	markMissing markOutcome = iota
	markAlreadyRead
	markUpdated
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.inbox(ctx, params.UserID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if len(params.Types) > 0 {
		query = query.Where("type IN ?", params.Types)
	}

	return pagination.Find(query, params.Cursor, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
}

// MarkRead stamps read_at once. A second call reports markAlreadyRead so the
// caller can stay idempotent without a separate lookup on the hot path.
func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markOutcome, error) {
	res := r.inbox(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return markMissing, res.Error
	}
	if res.RowsAffected > 0 {
		return markUpdated, nil
	}

	var existing int64
	if err := r.inbox(ctx, userID).Where("id = ?", notificationID).Count(&existing).Error; err != nil {
		return markMissing, err
	}
	if existing == 0 {
		return markMissing, nil
	}
	return markAlreadyRead, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.inbox(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var unread int64
	err := r.inbox(ctx, userID).Where("read_at IS NULL").Count(&unread).Error
	return unread, err
}

// DeleteOlderThan drops up to limit entries created before cutoff, read or
// not, oldest first. The id subquery keeps the statement valid on sqlite.
func (r *gormRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	oldest := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("id").
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit)
	res := r.db.WithContext(ctx).Where("id IN (?)", oldest).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
