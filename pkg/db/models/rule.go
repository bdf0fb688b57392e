package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Rule narrows or widens a term's series along one identifier.
type Rule struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	TermID     uuid.UUID            `gorm:"column:term_id;type:uuid;not null;uniqueIndex:ux_rules_term_mode_identifier_direction,priority:1"`
	Mode       enums.RuleMode       `gorm:"column:mode;type:text;not null;uniqueIndex:ux_rules_term_mode_identifier_direction,priority:2"`
	Identifier enums.RuleIdentifier `gorm:"column:identifier;type:text;not null;uniqueIndex:ux_rules_term_mode_identifier_direction,priority:3"`
	Direction  enums.TermDirection  `gorm:"column:direction;type:text;not null;uniqueIndex:ux_rules_term_mode_identifier_direction,priority:4"`
	ValueType  enums.RuleValueType  `gorm:"column:value_type;type:text;not null"`
	Values     []RuleValue          `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (r *Rule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// RuleValue stores one typed value. Exactly one column is populated.
type RuleValue struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	RuleID        uuid.UUID  `gorm:"column:rule_id;type:uuid;not null;index"`
	VarcharValue  *string    `gorm:"column:varchar_value"`
	IntegerValue  *int       `gorm:"column:integer_value"`
	DatetimeValue *time.Time `gorm:"column:datetime_value"`
}

var errRuleValueShape = errors.New("rule value must hold exactly one typed value")

func (v *RuleValue) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

func (v *RuleValue) BeforeSave(*gorm.DB) error {
	set := 0
	if v.VarcharValue != nil {
		set++
	}
	if v.IntegerValue != nil {
		set++
	}
	if v.DatetimeValue != nil {
		set++
	}
	if set != 1 {
		return errRuleValueShape
	}
	return nil
}

// Keep clears every column except the one matching valueType.
func (v *RuleValue) Keep(valueType enums.RuleValueType) {
	switch valueType {
	case enums.RuleValueVarchar:
		v.IntegerValue, v.DatetimeValue = nil, nil
	case enums.RuleValueInteger:
		v.VarcharValue, v.DatetimeValue = nil, nil
	case enums.RuleValueDatetime:
		v.VarcharValue, v.IntegerValue = nil, nil
	}
}
