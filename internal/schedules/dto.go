package schedules

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/internal/recurrence"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// CreateScheduleInput carries a new schedule with its term and rules.
type CreateScheduleInput struct {
	ProviderID uuid.UUID
	Label      string
	SortOrder  int
	Inactive   bool
	Term       recurrence.Term
	Rules      []recurrence.Rule
}

// UpdateScheduleInput patches schedule fields. Nil fields are left alone.
type UpdateScheduleInput struct {
	Label     *string
	SortOrder *int
	IsActive  *bool
	Term      *recurrence.Term
}

// ListParams filters a provider's schedules.
type ListParams struct {
	ProviderID uuid.UUID
	ActiveOnly bool
	Limit      int
	Cursor     string
}

// ListResult is one page of schedules.
type ListResult struct {
	Items  []ScheduleView `json:"items"`
	Cursor string         `json:"cursor"`
}

// ScheduleView is the API shape of a schedule.
type ScheduleView struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	Label      string     `json:"label"`
	IsActive   bool       `json:"is_active"`
	SortOrder  int        `json:"sort_order"`
	Term       *TermView  `json:"term,omitempty"`
	Rules      []RuleView `json:"rules"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type TermView struct {
	ID        uuid.UUID           `json:"id"`
	Dtstart   time.Time           `json:"dtstart"`
	Dtuntil   *time.Time          `json:"dtuntil,omitempty"`
	Frequency enums.Frequency     `json:"frequency"`
	Interval  int                 `json:"interval"`
	Count     *int                `json:"count,omitempty"`
	Wkst      enums.Weekday       `json:"wkst"`
	Direction enums.TermDirection `json:"direction"`
}

type RuleView struct {
	ID         uuid.UUID            `json:"id"`
	Identifier enums.RuleIdentifier `json:"identifier"`
	Mode       enums.RuleMode       `json:"mode"`
	Direction  enums.TermDirection  `json:"direction"`
	ValueType  enums.RuleValueType  `json:"value_type"`
	Values     []recurrence.Value   `json:"values"`
}

// AvailabilityView is an expanded window of a schedule.
type AvailabilityView struct {
	ScheduleID uuid.UUID   `json:"schedule_id"`
	Timezone   string      `json:"timezone"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Instants   []time.Time `json:"instants"`
	Truncated  bool        `json:"truncated"`
}

func newScheduleView(m models.Schedule) ScheduleView {
	view := ScheduleView{
		ID:         m.ID,
		ProviderID: m.ProviderID,
		Label:      m.Label,
		IsActive:   m.IsActive,
		SortOrder:  m.SortOrder,
		Rules:      []RuleView{},
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.Term == nil {
		return view
	}
	view.Term = &TermView{
		ID:        m.Term.ID,
		Dtstart:   m.Term.Dtstart.UTC(),
		Dtuntil:   m.Term.Dtuntil,
		Frequency: m.Term.Frequency,
		Interval:  m.Term.Interval,
		Count:     m.Term.Count,
		Wkst:      m.Term.Wkst,
		Direction: m.Term.Direction,
	}
	converted := recurrence.RulesFromModels(m.Term.Rules)
	for i, rule := range m.Term.Rules {
		view.Rules = append(view.Rules, RuleView{
			ID:         rule.ID,
			Identifier: rule.Identifier,
			Mode:       rule.Mode,
			Direction:  rule.Direction,
			ValueType:  rule.ValueType,
			Values:     converted[i].Values,
		})
	}
	return view
}
