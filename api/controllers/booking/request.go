package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

type createIssueRequest struct {
	Topics      []string `json:"topics" validate:"required,min=1,max=10,dive,required,max=64"`
	Description string   `json:"description" validate:"max=4000"`
}

type createReservationRequest struct {
	ConsultantID uuid.UUID `json:"consultant_id" validate:"required"`
}

type createItemRequest struct {
	IssueID    uuid.UUID `json:"issue_id" validate:"required"`
	ScheduleID uuid.UUID `json:"schedule_id" validate:"required"`
	SegmentID  uuid.UUID `json:"segment_id" validate:"required"`
	SLAID      uuid.UUID `json:"sla_id" validate:"required"`
	PriorityID uuid.UUID `json:"priority_id" validate:"required"`
	Datetime   time.Time `json:"datetime" validate:"required"`
}

type transitionRequest struct {
	Status enums.AssignStatus `json:"status" validate:"required"`
	Reason string             `json:"reason" validate:"max=500"`
}

type createAssignedRequest struct {
	PaymentRef string `json:"payment_ref" validate:"max=128"`
}
