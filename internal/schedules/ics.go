package schedules

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/angelmondragon/consultly-backend/internal/recurrence"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

const (
	icsProductID   = "-//Consultly//Availability//EN"
	defaultICSSlot = time.Hour
)

// ExportICS renders the expanded window as an iCalendar feed, one VEVENT per
// instant lasting slot.
func (s *service) ExportICS(ctx context.Context, scheduleID uuid.UUID, window recurrence.Window, slot time.Duration) ([]byte, error) {
	if slot < 0 {
		return nil, pkgerrors.Validation("slot", "slot must be positive")
	}
	if slot == 0 {
		slot = defaultICSSlot
	}
	schedule, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	availability, err := s.ExpandAvailability(ctx, scheduleID, window)
	if err != nil {
		return nil, err
	}
	return renderICS(schedule.Label, availability, slot, s.now().UTC()), nil
}

func renderICS(label string, availability *AvailabilityView, slot time.Duration, stamp time.Time) []byte {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(label)
	cal.SetXWRTimezone(availability.Timezone)

	for _, instant := range availability.Instants {
		event := cal.AddEvent(fmt.Sprintf("%s-%d@consultly", availability.ScheduleID, instant.Unix()))
		event.SetDtStampTime(stamp)
		event.SetStartAt(instant.UTC())
		event.SetEndAt(instant.Add(slot).UTC())
		event.SetSummary(label)
	}
	return []byte(cal.Serialize())
}
