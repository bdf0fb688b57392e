package attributes

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Identifiers with fixed meaning on schedules.
const (
	ScheduleTimezone         = "timezone"
	ScheduleLeadTimeHours    = "lead_time_hours"
	ScheduleMaxDailyBookings = "max_daily_bookings"
)

// wellKnown pins the type of the schedule identifiers the booking flow reads.
var wellKnown = map[enums.ContentType]map[string]enums.AttributeType{
	enums.ContentSchedule: {
		ScheduleTimezone:         enums.AttributeVarchar,
		ScheduleLeadTimeHours:    enums.AttributeInteger,
		ScheduleMaxDailyBookings: enums.AttributeInteger,
	},
}

// Target is the object an attribute value hangs off.
type Target struct {
	ContentType enums.ContentType
	ObjectID    uuid.UUID
}

// Value holds exactly one typed value. Type selects which field is live.
type Value struct {
	Type     enums.AttributeType
	Varchar  string
	Integer  int64
	Boolean  bool
	Date     time.Time
	Datetime time.Time
}

// Varchar builds a varchar value.
func Varchar(v string) Value { return Value{Type: enums.AttributeVarchar, Varchar: v} }

// Integer builds an integer value.
func Integer(v int64) Value { return Value{Type: enums.AttributeInteger, Integer: v} }

// Boolean builds a boolean value.
func Boolean(v bool) Value { return Value{Type: enums.AttributeBoolean, Boolean: v} }

// Datetime builds a datetime value stored in UTC.
func Datetime(v time.Time) Value { return Value{Type: enums.AttributeDatetime, Datetime: v.UTC()} }

// Date builds a calendar date value at UTC midnight.
func Date(y int, m time.Month, d int) Value {
	return Value{Type: enums.AttributeDate, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Raw returns the live field as a plain Go value.
func (v Value) Raw() any {
	switch v.Type {
	case enums.AttributeVarchar:
		return v.Varchar
	case enums.AttributeInteger:
		return v.Integer
	case enums.AttributeBoolean:
		return v.Boolean
	case enums.AttributeDate:
		return v.Date.Format("2006-01-02")
	case enums.AttributeDatetime:
		return v.Datetime.UTC().Format(time.RFC3339)
	default:
		return nil
	}
}

// ParseValue decodes a JSON scalar into a Value of type t.
func ParseValue(t enums.AttributeType, raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Value{}, fmt.Errorf("value is required")
	}
	switch t {
	case enums.AttributeVarchar:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("expected a string")
		}
		return Varchar(s), nil
	case enums.AttributeInteger:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Value{}, fmt.Errorf("expected an integer")
		}
		return Integer(n), nil
	case enums.AttributeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, fmt.Errorf("expected a boolean")
		}
		return Boolean(b), nil
	case enums.AttributeDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("expected a date string")
		}
		d, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("date must be YYYY-MM-DD")
		}
		return Date(d.Year(), d.Month(), d.Day()), nil
	case enums.AttributeDatetime:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, fmt.Errorf("expected a datetime string")
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
		if err != nil {
			return Value{}, fmt.Errorf("datetime must be RFC3339")
		}
		return Datetime(ts), nil
	default:
		return Value{}, fmt.Errorf("unknown attribute type %q", t)
	}
}

// apply writes v into row and nulls every other value column.
func (v Value) apply(row *models.AttributeValue) {
	row.VarcharValue = nil
	row.IntegerValue = nil
	row.BooleanValue = nil
	row.DateValue = nil
	row.DatetimeValue = nil
	switch v.Type {
	case enums.AttributeVarchar:
		s := v.Varchar
		row.VarcharValue = &s
	case enums.AttributeInteger:
		n := v.Integer
		row.IntegerValue = &n
	case enums.AttributeBoolean:
		b := v.Boolean
		row.BooleanValue = &b
	case enums.AttributeDate:
		d := datatypes.Date(v.Date)
		row.DateValue = &d
	case enums.AttributeDatetime:
		ts := v.Datetime.UTC()
		row.DatetimeValue = &ts
	}
}

// valueFromRow reads the column selected by t. ok is false when that column
// is null.
func valueFromRow(t enums.AttributeType, row models.AttributeValue) (Value, bool) {
	switch t {
	case enums.AttributeVarchar:
		if row.VarcharValue != nil {
			return Varchar(*row.VarcharValue), true
		}
	case enums.AttributeInteger:
		if row.IntegerValue != nil {
			return Integer(*row.IntegerValue), true
		}
	case enums.AttributeBoolean:
		if row.BooleanValue != nil {
			return Boolean(*row.BooleanValue), true
		}
	case enums.AttributeDate:
		if row.DateValue != nil {
			d := time.Time(*row.DateValue)
			return Date(d.Year(), d.Month(), d.Day()), true
		}
	case enums.AttributeDatetime:
		if row.DatetimeValue != nil {
			return Datetime(*row.DatetimeValue), true
		}
	}
	return Value{}, false
}

// DefineInput declares an attribute for one content type.
type DefineInput struct {
	ContentType enums.ContentType
	Identifier  string
	Type        enums.AttributeType
	Label       string
}

// AttributeView is the public shape of an attribute definition.
type AttributeView struct {
	ID          uuid.UUID           `json:"id"`
	ContentType enums.ContentType   `json:"content_type"`
	Identifier  string              `json:"identifier"`
	Type        enums.AttributeType `json:"type"`
	Label       string              `json:"label"`
	CreatedAt   time.Time           `json:"created_at"`
}

func newAttributeView(a models.Attribute) AttributeView {
	return AttributeView{
		ID:          a.ID,
		ContentType: a.ContentType,
		Identifier:  a.Identifier,
		Type:        a.Type,
		Label:       a.Label,
		CreatedAt:   a.CreatedAt,
	}
}

// ValueView is a stored value with its definition's identifier and type.
// Value is nil when the typed column is empty.
type ValueView struct {
	Identifier  string              `json:"identifier"`
	Type        enums.AttributeType `json:"type"`
	ContentType enums.ContentType   `json:"content_type"`
	ObjectID    uuid.UUID           `json:"object_id"`
	Value       any                 `json:"value"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func newValueView(attr models.Attribute, row models.AttributeValue) ValueView {
	view := ValueView{
		Identifier:  attr.Identifier,
		Type:        attr.Type,
		ContentType: row.ContentType,
		ObjectID:    row.ObjectID,
		UpdatedAt:   row.UpdatedAt,
	}
	if v, ok := valueFromRow(attr.Type, row); ok {
		view.Value = v.Raw()
	}
	return view
}
