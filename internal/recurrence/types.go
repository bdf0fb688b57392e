// Package recurrence expands a schedule term and its inclusion/exclusion
// rules into concrete available instants.
package recurrence

import (
	"time"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Term is the base recurrence of a schedule.
type Term struct {
	Dtstart   time.Time           `json:"dtstart"`
	Dtuntil   *time.Time          `json:"dtuntil,omitempty"`
	Frequency enums.Frequency     `json:"frequency"`
	Interval  int                 `json:"interval"`
	Count     *int                `json:"count,omitempty"`
	Wkst      enums.Weekday       `json:"wkst"`
	Direction enums.TermDirection `json:"direction"`
}

// Rule is one typed filter layered on a term.
type Rule struct {
	Identifier enums.RuleIdentifier `json:"identifier"`
	Mode       enums.RuleMode       `json:"mode"`
	Direction  enums.TermDirection  `json:"direction"`
	ValueType  enums.RuleValueType  `json:"value_type"`
	Values     []Value              `json:"values"`
}

// Value holds exactly one of its fields, matching the rule's value type.
type Value struct {
	Varchar  *string    `json:"varchar,omitempty"`
	Integer  *int       `json:"integer,omitempty"`
	Datetime *time.Time `json:"datetime,omitempty"`
}

// Varchar builds a varchar value.
func Varchar(s string) Value { return Value{Varchar: &s} }

// Integer builds an integer value.
func Integer(i int) Value { return Value{Integer: &i} }

// Datetime builds a datetime value.
func Datetime(t time.Time) Value { return Value{Datetime: &t} }

// Normalize fills defaults that callers may omit.
func (t Term) Normalize() Term {
	if t.Interval == 0 {
		t.Interval = 1
	}
	if t.Wkst == "" {
		t.Wkst = enums.WeekdayMO
	}
	if t.Direction == "" {
		t.Direction = enums.TermDirectionRecurrence
	}
	return t
}

// Normalize fills the rule direction from its identifier when omitted.
func (r Rule) Normalize() Rule {
	if r.Direction == "" {
		r.Direction = DirectionFor(r.Identifier)
	}
	if r.ValueType == "" {
		r.ValueType = ValueTypeFor(r.Identifier)
	}
	return r
}

// DirectionFor returns the direction a rule identifier operates in: explicit
// instants are occurrences, every by-rule acts on the recurrence.
func DirectionFor(identifier enums.RuleIdentifier) enums.TermDirection {
	if identifier == enums.RuleInstant {
		return enums.TermDirectionOccurrence
	}
	return enums.TermDirectionRecurrence
}

// ValueTypeFor returns the value type an identifier stores.
func ValueTypeFor(identifier enums.RuleIdentifier) enums.RuleValueType {
	switch identifier {
	case enums.RuleByWeekday:
		return enums.RuleValueVarchar
	case enums.RuleInstant:
		return enums.RuleValueDatetime
	default:
		return enums.RuleValueInteger
	}
}

// TermFromModel converts a stored term.
func TermFromModel(m models.ScheduleTerm) Term {
	return Term{
		Dtstart:   m.Dtstart,
		Dtuntil:   m.Dtuntil,
		Frequency: m.Frequency,
		Interval:  m.Interval,
		Count:     m.Count,
		Wkst:      m.Wkst,
		Direction: m.Direction,
	}
}

// RulesFromModels converts stored rules and their values.
func RulesFromModels(rows []models.Rule) []Rule {
	out := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rule := Rule{
			Identifier: row.Identifier,
			Mode:       row.Mode,
			Direction:  row.Direction,
			ValueType:  row.ValueType,
			Values:     make([]Value, 0, len(row.Values)),
		}
		for _, v := range row.Values {
			rule.Values = append(rule.Values, Value{
				Varchar:  v.VarcharValue,
				Integer:  v.IntegerValue,
				Datetime: v.DatetimeValue,
			})
		}
		out = append(out, rule)
	}
	return out
}

// ToModel converts a validated rule into its stored shape. Columns other than
// the one matching the value type are nulled.
func (r Rule) ToModel() models.Rule {
	row := models.Rule{
		Identifier: r.Identifier,
		Mode:       r.Mode,
		Direction:  r.Direction,
		ValueType:  r.ValueType,
		Values:     make([]models.RuleValue, 0, len(r.Values)),
	}
	for _, v := range r.Values {
		value := models.RuleValue{
			VarcharValue:  v.Varchar,
			IntegerValue:  v.Integer,
			DatetimeValue: v.Datetime,
		}
		if value.DatetimeValue != nil {
			utc := value.DatetimeValue.UTC()
			value.DatetimeValue = &utc
		}
		value.Keep(r.ValueType)
		row.Values = append(row.Values, value)
	}
	return row
}
