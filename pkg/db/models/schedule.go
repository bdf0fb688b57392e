package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Schedule is a provider-owned availability definition with exactly one term.
type Schedule struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	ProviderID uuid.UUID     `gorm:"column:provider_id;type:uuid;not null;index:idx_schedules_provider_active,priority:1"`
	Label      string        `gorm:"column:label;not null"`
	IsActive   bool          `gorm:"column:is_active;not null;index:idx_schedules_provider_active,priority:2"`
	SortOrder  int           `gorm:"column:sort_order;not null;default:0"`
	Term       *ScheduleTerm `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE"`
	Segments   []Segment     `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Schedule) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// ScheduleTerm holds the base recurrence of a schedule.
type ScheduleTerm struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ScheduleID uuid.UUID           `gorm:"column:schedule_id;type:uuid;not null;uniqueIndex:ux_schedule_terms_schedule"`
	Dtstart    time.Time           `gorm:"column:dtstart;not null"`
	Dtuntil    *time.Time          `gorm:"column:dtuntil"`
	Frequency  enums.Frequency     `gorm:"column:frequency;type:text;not null"`
	Interval   int                 `gorm:"column:repeat_interval;not null;default:1"`
	Count      *int                `gorm:"column:occurrence_count"`
	Wkst       enums.Weekday       `gorm:"column:wkst;type:text;not null;default:'MO'"`
	Direction  enums.TermDirection `gorm:"column:direction;type:text;not null;default:'recurrence'"`
	Rules      []Rule              `gorm:"foreignKey:TermID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *ScheduleTerm) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
