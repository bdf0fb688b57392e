package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Attribute declares a typed extension field for one content type.
type Attribute struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ContentType enums.ContentType   `gorm:"column:content_type;type:text;not null;uniqueIndex:ux_attributes_content_identifier,priority:1"`
	Identifier  string              `gorm:"column:identifier;not null;uniqueIndex:ux_attributes_content_identifier,priority:2"`
	Type        enums.AttributeType `gorm:"column:type;type:text;not null"`
	Label       string              `gorm:"column:label;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (a *Attribute) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// AttributeValue stores one typed value for an object. Unused columns are nil.
type AttributeValue struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	AttributeID   uuid.UUID         `gorm:"column:attribute_id;type:uuid;not null;uniqueIndex:ux_attribute_values_attribute_object,priority:1"`
	ContentType   enums.ContentType `gorm:"column:content_type;type:text;not null;index:idx_attribute_values_target,priority:1"`
	ObjectID      uuid.UUID         `gorm:"column:object_id;type:uuid;not null;uniqueIndex:ux_attribute_values_attribute_object,priority:2;index:idx_attribute_values_target,priority:2"`
	VarcharValue  *string           `gorm:"column:varchar_value"`
	IntegerValue  *int64            `gorm:"column:integer_value"`
	BooleanValue  *bool             `gorm:"column:boolean_value"`
	DateValue     *datatypes.Date   `gorm:"column:date_value"`
	DatetimeValue *time.Time        `gorm:"column:datetime_value"`
	Attribute     *Attribute        `gorm:"foreignKey:AttributeID"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *AttributeValue) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
