package schedules

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds a schedules repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	ProviderID uuid.UUID
	ActiveOnly bool
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockActiveByProvider takes the provider's schedule lock before reading its
// active schedules. Row locks alone miss schedules a concurrent transaction
// is inserting, so two creates could both pass the limit.
func (r *repository) LockActiveByProvider(ctx context.Context, providerID uuid.UUID) ([]models.Schedule, error) {
	if err := dbpkg.AdvisoryXactLock(r.db.WithContext(ctx), dbpkg.LockScopeProviderSchedules, providerID); err != nil {
		return nil, err
	}
	var rows []models.Schedule
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("provider_id = ? AND is_active = ?", providerID, true).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, schedule *models.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	return r.find(r.db.WithContext(ctx), id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	return r.find(dbpkg.ForUpdate(r.db.WithContext(ctx)), id)
}

func (r *repository) find(query *gorm.DB, id uuid.UUID) (*models.Schedule, error) {
	var schedule models.Schedule
	err := query.
		Preload("Term.Rules", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Preload("Term.Rules.Values").
		Where("id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Schedule, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Preload("Term").
		Where("provider_id = ?", params.ProviderID)
	if params.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	return pagination.Find(query, params.Cursor, params.Limit, func(s models.Schedule) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Schedule{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) UpdateTerm(ctx context.Context, termID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.ScheduleTerm{}).Where("id = ?", termID).Updates(updates).Error
}

// Delete removes the schedule with its term, rules and capacity tree.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	termIDs := db.Model(&models.ScheduleTerm{}).Select("id").Where("schedule_id = ?", id)
	ruleIDs := db.Model(&models.Rule{}).Select("id").Where("term_id IN (?)", termIDs)
	segmentIDs := db.Model(&models.Segment{}).Select("id").Where("schedule_id = ?", id)
	slaIDs := db.Model(&models.SLA{}).Select("id").Where("segment_id IN (?)", segmentIDs)

	steps := []func() error{
		func() error { return db.Where("rule_id IN (?)", ruleIDs).Delete(&models.RuleValue{}).Error },
		func() error { return db.Where("term_id IN (?)", termIDs).Delete(&models.Rule{}).Error },
		func() error { return db.Where("schedule_id = ?", id).Delete(&models.ScheduleTerm{}).Error },
		func() error { return db.Where("sla_id IN (?)", slaIDs).Delete(&models.Priority{}).Error },
		func() error { return db.Where("segment_id IN (?)", segmentIDs).Delete(&models.SLA{}).Error },
		func() error { return db.Where("schedule_id = ?", id).Delete(&models.Segment{}).Error },
		func() error { return db.Where("id = ?", id).Delete(&models.Schedule{}).Error },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) CountReservationItems(ctx context.Context, scheduleID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationItem{}).
		Where("schedule_id = ?", scheduleID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateRule(ctx context.Context, rule *models.Rule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) DeleteRule(ctx context.Context, termID, ruleID uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx)
	var rule models.Rule
	if err := db.Where("id = ? AND term_id = ?", ruleID, termID).First(&rule).Error; err != nil {
		if dbpkg.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if err := db.Where("rule_id = ?", rule.ID).Delete(&models.RuleValue{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("id = ?", rule.ID).Delete(&models.Rule{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

// Touch bumps updated_at so cached expansions keyed on it go stale.
func (r *repository) Touch(ctx context.Context, scheduleID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Schedule{}).
		Where("id = ?", scheduleID).
		UpdateColumn("updated_at", now).Error
}
