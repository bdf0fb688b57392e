package capacity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// CreateSegmentInput describes a new time band. Open and close are offsets
// from local midnight.
type CreateSegmentInput struct {
	Canal     enums.Canal
	OpenTime  time.Duration
	CloseTime time.Duration
	Quota     int
}

// CreateSLAInput describes a cost tier. An empty label is derived from the
// grace period and cost.
type CreateSLAInput struct {
	Label            string
	Cost             decimal.Decimal
	GracePeriodHours int
	Unit             enums.AllocationUnit
	Allocation       int
}

type CreatePriorityInput struct {
	Identifier enums.PriorityLevel
	Label      string
	Cost       decimal.Decimal
}

// Status is the recomputed capacity of a segment.
type Status struct {
	SegmentID   uuid.UUID `json:"segment_id"`
	Quota       int       `json:"quota"`
	OpenTickets int64     `json:"open_tickets"`
	IsOpen      bool      `json:"is_open"`
}

// Total is the cost of a reservation for one assign status.
type Total struct {
	ReservationID uuid.UUID          `json:"reservation_id"`
	AssignStatus  enums.AssignStatus `json:"assign_status"`
	Items         int64              `json:"items"`
	TotalCost     decimal.Decimal    `json:"total_cost"`
}

type SegmentView struct {
	ID         uuid.UUID   `json:"id"`
	ScheduleID uuid.UUID   `json:"schedule_id"`
	Canal      enums.Canal `json:"canal"`
	OpenTime   string      `json:"open_time"`
	CloseTime  string      `json:"close_time"`
	Quota      int         `json:"quota"`
	SLAs       []SLAView   `json:"slas"`
}

type SLAView struct {
	ID               uuid.UUID            `json:"id"`
	SegmentID        uuid.UUID            `json:"segment_id"`
	Label            string               `json:"label"`
	Cost             decimal.Decimal      `json:"cost"`
	GracePeriodHours int                  `json:"grace_period_hours"`
	Unit             enums.AllocationUnit `json:"unit"`
	Allocation       int                  `json:"allocation"`
	Priorities       []PriorityView       `json:"priorities"`
}

type PriorityView struct {
	ID         uuid.UUID           `json:"id"`
	SLAID      uuid.UUID           `json:"sla_id"`
	Identifier enums.PriorityLevel `json:"identifier"`
	Label      string              `json:"label"`
	Cost       decimal.Decimal     `json:"cost"`
}

func newSegmentView(m models.Segment) SegmentView {
	view := SegmentView{
		ID:         m.ID,
		ScheduleID: m.ScheduleID,
		Canal:      m.Canal,
		OpenTime:   m.OpenTime.String(),
		CloseTime:  m.CloseTime.String(),
		Quota:      m.Quota,
		SLAs:       make([]SLAView, 0, len(m.SLAs)),
	}
	for _, sla := range m.SLAs {
		view.SLAs = append(view.SLAs, newSLAView(sla))
	}
	return view
}

func newSLAView(m models.SLA) SLAView {
	view := SLAView{
		ID:               m.ID,
		SegmentID:        m.SegmentID,
		Label:            m.Label,
		Cost:             m.Cost,
		GracePeriodHours: m.GracePeriodHours,
		Unit:             m.Unit,
		Allocation:       m.Allocation,
		Priorities:       make([]PriorityView, 0, len(m.Priorities)),
	}
	for _, p := range m.Priorities {
		view.Priorities = append(view.Priorities, newPriorityView(p))
	}
	return view
}

func newPriorityView(m models.Priority) PriorityView {
	return PriorityView{ID: m.ID, SLAID: m.SLAID, Identifier: m.Identifier, Label: m.Label, Cost: m.Cost}
}

// DefaultSLALabel renders the label used when none is supplied.
func DefaultSLALabel(graceHours int, cost decimal.Decimal) string {
	return fmt.Sprintf("%dh / %s", graceHours, cost.StringFixed(2))
}
