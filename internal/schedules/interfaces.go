package schedules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/pagination"
)

// Repository defines persistence operations for schedules, terms and rules.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	List(ctx context.Context, params listParams) ([]models.Schedule, *pagination.Cursor, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateTerm(ctx context.Context, termID uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountReservationItems(ctx context.Context, scheduleID uuid.UUID) (int64, error)
	CreateRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, termID, ruleID uuid.UUID) (bool, error)
	Touch(ctx context.Context, scheduleID uuid.UUID, now time.Time) error
}

// LocationResolver returns the time zone availability is expanded in. A nil
// tx reads outside any transaction.
type LocationResolver interface {
	ScheduleLocation(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error)
}

// CacheKey identifies one cached expansion. Version is bumped on every
// schedule edit.
type CacheKey struct {
	ScheduleID uuid.UUID
	Version    int64
	Window     string
}

// AvailabilityCache stores serialized expansions. Implementations must treat
// a miss as ("", false, nil).
type AvailabilityCache interface {
	Get(ctx context.Context, key CacheKey) (string, bool, error)
	Set(ctx context.Context, key CacheKey, value string, ttl time.Duration) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
