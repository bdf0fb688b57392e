package schedules

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/internal/recurrence"
	schedulesvc "github.com/angelmondragon/consultly-backend/internal/schedules"
)

type createScheduleRequest struct {
	Label     string            `json:"label" validate:"required,max=120"`
	SortOrder int               `json:"sort_order" validate:"min=0"`
	Inactive  bool              `json:"inactive"`
	Term      recurrence.Term   `json:"term"`
	Rules     []recurrence.Rule `json:"rules" validate:"max=64"`
}

type updateScheduleRequest struct {
	Label     *string          `json:"label,omitempty" validate:"omitempty,max=120"`
	SortOrder *int             `json:"sort_order,omitempty" validate:"omitempty,min=0"`
	IsActive  *bool            `json:"is_active,omitempty"`
	Term      *recurrence.Term `json:"term,omitempty"`
}

type addRuleRequest struct {
	Rule recurrence.Rule `json:"rule"`
}

func toCreateScheduleInput(providerID uuid.UUID, payload createScheduleRequest) schedulesvc.CreateScheduleInput {
	return schedulesvc.CreateScheduleInput{
		ProviderID: providerID,
		Label:      payload.Label,
		SortOrder:  payload.SortOrder,
		Inactive:   payload.Inactive,
		Term:       payload.Term,
		Rules:      payload.Rules,
	}
}

func toUpdateScheduleInput(payload updateScheduleRequest) schedulesvc.UpdateScheduleInput {
	return schedulesvc.UpdateScheduleInput{
		Label:     payload.Label,
		SortOrder: payload.SortOrder,
		IsActive:  payload.IsActive,
		Term:      payload.Term,
	}
}
