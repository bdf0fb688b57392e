package capacity

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/consultly-backend/api/validators"
	capacitysvc "github.com/angelmondragon/consultly-backend/internal/capacity"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

type createSegmentRequest struct {
	Canal     enums.Canal `json:"canal" validate:"required"`
	OpenTime  string      `json:"open_time" validate:"required,clock"`
	CloseTime string      `json:"close_time" validate:"required,clock"`
	Quota     int         `json:"quota" validate:"min=0"`
}

type createSLARequest struct {
	Label            string               `json:"label" validate:"max=120"`
	Cost             decimal.Decimal      `json:"cost"`
	GracePeriodHours int                  `json:"grace_period_hours" validate:"min=0"`
	Unit             enums.AllocationUnit `json:"unit"`
	Allocation       int                  `json:"allocation" validate:"min=0"`
}

type createPriorityRequest struct {
	Identifier enums.PriorityLevel `json:"identifier" validate:"required"`
	Label      string              `json:"label" validate:"max=120"`
	Cost       decimal.Decimal     `json:"cost"`
}

func (p createSegmentRequest) toInput() (capacitysvc.CreateSegmentInput, error) {
	open, err := validators.ParseClock(p.OpenTime)
	if err != nil {
		return capacitysvc.CreateSegmentInput{}, pkgerrors.Validation("open_time", err.Error())
	}
	closeAt, err := validators.ParseClock(p.CloseTime)
	if err != nil {
		return capacitysvc.CreateSegmentInput{}, pkgerrors.Validation("close_time", err.Error())
	}
	return capacitysvc.CreateSegmentInput{
		Canal:     p.Canal,
		OpenTime:  open,
		CloseTime: closeAt,
		Quota:     p.Quota,
	}, nil
}
