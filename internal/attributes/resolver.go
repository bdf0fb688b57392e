package attributes

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/booking"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

// ScheduleLocation returns the schedule's timezone attribute, or UTC when it
// is unset. A nil tx reads outside any transaction.
func (s *service) ScheduleLocation(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error) {
	values, err := s.repo.WithTx(tx).ValuesByIdentifier(ctx, scheduleTarget(scheduleID), []string{ScheduleTimezone})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schedule timezone")
	}
	row, ok := values[ScheduleTimezone]
	if !ok {
		return time.UTC, nil
	}
	v, ok := valueFromRow(enums.AttributeVarchar, row)
	if !ok || strings.TrimSpace(v.Varchar) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(v.Varchar))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load schedule timezone")
	}
	return loc, nil
}

// SchedulePolicy reads the lead time and daily cap of a schedule. Unset
// attributes leave the matching check disabled.
func (s *service) SchedulePolicy(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (booking.Policy, error) {
	values, err := s.repo.WithTx(tx).ValuesByIdentifier(ctx, scheduleTarget(scheduleID),
		[]string{ScheduleLeadTimeHours, ScheduleMaxDailyBookings})
	if err != nil {
		return booking.Policy{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schedule policy")
	}
	var policy booking.Policy
	if row, ok := values[ScheduleLeadTimeHours]; ok {
		if v, ok := valueFromRow(enums.AttributeInteger, row); ok && v.Integer > 0 {
			policy.LeadTime = time.Duration(v.Integer) * time.Hour
		}
	}
	if row, ok := values[ScheduleMaxDailyBookings]; ok {
		if v, ok := valueFromRow(enums.AttributeInteger, row); ok && v.Integer > 0 {
			policy.MaxDailyBookings = int(v.Integer)
		}
	}
	return policy, nil
}

func scheduleTarget(id uuid.UUID) Target {
	return Target{ContentType: enums.ContentSchedule, ObjectID: id}
}

func sortValues(views []ValueView) {
	slices.SortFunc(views, func(a, b ValueView) int {
		return strings.Compare(a.Identifier, b.Identifier)
	})
}
