package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Segment is a canal-scoped time-of-day band with a ticket quota.
type Segment struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ScheduleID uuid.UUID      `gorm:"column:schedule_id;type:uuid;not null;index"`
	Canal      enums.Canal    `gorm:"column:canal;type:text;not null"`
	OpenTime   datatypes.Time `gorm:"column:open_time;not null"`
	CloseTime  datatypes.Time `gorm:"column:close_time;not null"`
	Quota      int            `gorm:"column:quota;not null"`
	SLAs       []SLA          `gorm:"foreignKey:SegmentID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Segment) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SLA is a cost and grace-period tier attached to a segment.
type SLA struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SegmentID        uuid.UUID            `gorm:"column:segment_id;type:uuid;not null;index"`
	Label            string               `gorm:"column:label;not null"`
	Cost             decimal.Decimal      `gorm:"column:cost;type:numeric(12,2);not null"`
	GracePeriodHours int                  `gorm:"column:grace_period_hours;not null"`
	Unit             enums.AllocationUnit `gorm:"column:unit;type:text;not null"`
	Allocation       int                  `gorm:"column:allocation;not null;default:0"`
	Priorities       []Priority           `gorm:"foreignKey:SLAID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (SLA) TableName() string { return "slas" }

func (s *SLA) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Priority adds an incremental cost on top of an SLA.
type Priority struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SLAID      uuid.UUID           `gorm:"column:sla_id;type:uuid;not null;uniqueIndex:ux_priorities_sla_identifier,priority:1"`
	Identifier enums.PriorityLevel `gorm:"column:identifier;type:text;not null;uniqueIndex:ux_priorities_sla_identifier,priority:2"`
	Label      string              `gorm:"column:label;not null"`
	Cost       decimal.Decimal     `gorm:"column:cost;type:numeric(12,2);not null"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (Priority) TableName() string { return "priorities" }

func (p *Priority) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
