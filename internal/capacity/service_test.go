package capacity

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/dbtest"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

func newService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := NewService(NewRepository(conn), client, logger.Nop())
	require.NoError(t, err)
	return svc, conn
}

func seedSchedule(t *testing.T, conn *gorm.DB, provider uuid.UUID) models.Schedule {
	t.Helper()
	schedule := models.Schedule{ProviderID: provider, Label: "Weekdays", IsActive: true}
	require.NoError(t, conn.Create(&schedule).Error)
	return schedule
}

func morning() CreateSegmentInput {
	return CreateSegmentInput{Canal: enums.CanalText, OpenTime: 9 * time.Hour, CloseTime: 12 * time.Hour, Quota: 2}
}

func TestCreateSegmentValidates(t *testing.T) {
	svc, conn := newService(t)
	provider := uuid.New()
	schedule := seedSchedule(t, conn, provider)
	ctx := context.Background()

	_, err := svc.CreateSegment(ctx, provider, schedule.ID, CreateSegmentInput{
		Canal: "fax", OpenTime: 12 * time.Hour, CloseTime: 9 * time.Hour,
	})
	require.Error(t, err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "canal")
	require.Contains(t, details, "close_time")
	require.Contains(t, details, "quota")

	_, err = svc.CreateSegment(ctx, uuid.New(), schedule.ID, morning())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.CreateSegment(ctx, provider, uuid.New(), morning())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	view, err := svc.CreateSegment(ctx, provider, schedule.ID, morning())
	require.NoError(t, err)
	require.Equal(t, "09:00:00", view.OpenTime)
	require.Equal(t, "12:00:00", view.CloseTime)
}

func TestCreateSLADerivesLabelAndUnit(t *testing.T) {
	svc, conn := newService(t)
	provider := uuid.New()
	schedule := seedSchedule(t, conn, provider)
	ctx := context.Background()
	segment, err := svc.CreateSegment(ctx, provider, schedule.ID, morning())
	require.NoError(t, err)

	sla, err := svc.CreateSLA(ctx, provider, segment.ID, CreateSLAInput{
		Cost:             decimal.RequireFromString("15"),
		GracePeriodHours: 24,
	})
	require.NoError(t, err)
	require.Equal(t, "24h / 15.00", sla.Label)
	require.Equal(t, enums.UnitReplies, sla.Unit)

	_, err = svc.CreateSLA(ctx, provider, segment.ID, CreateSLAInput{
		Cost: decimal.RequireFromString("15"),
		Unit: enums.UnitMinutes,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateSLA(ctx, provider, segment.ID, CreateSLAInput{Cost: decimal.RequireFromString("-1")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreatePriorityIsUniquePerSLA(t *testing.T) {
	svc, conn := newService(t)
	provider := uuid.New()
	schedule := seedSchedule(t, conn, provider)
	ctx := context.Background()
	segment, err := svc.CreateSegment(ctx, provider, schedule.ID, morning())
	require.NoError(t, err)
	sla, err := svc.CreateSLA(ctx, provider, segment.ID, CreateSLAInput{Cost: decimal.RequireFromString("10")})
	require.NoError(t, err)

	priority, err := svc.CreatePriority(ctx, provider, sla.ID, CreatePriorityInput{
		Identifier: enums.PriorityHigh,
		Cost:       decimal.RequireFromString("5.50"),
	})
	require.NoError(t, err)
	require.Equal(t, "high", priority.Label)

	_, err = svc.CreatePriority(ctx, provider, sla.ID, CreatePriorityInput{
		Identifier: enums.PriorityHigh,
		Cost:       decimal.RequireFromString("1"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	full, err := svc.GetSegment(ctx, segment.ID)
	require.NoError(t, err)
	require.Len(t, full.SLAs, 1)
	require.Len(t, full.SLAs[0].Priorities, 1)
}

func TestSegmentStatusAndReserve(t *testing.T) {
	svc, conn := newService(t)
	provider := uuid.New()
	schedule := seedSchedule(t, conn, provider)
	ctx := context.Background()
	segment, err := svc.CreateSegment(ctx, provider, schedule.ID, morning())
	require.NoError(t, err)

	status, err := svc.SegmentStatus(ctx, segment.ID)
	require.NoError(t, err)
	require.True(t, status.IsOpen)

	tickets := []models.Ticket{
		{SegmentID: segment.ID, Status: enums.TicketOpen, ReservationItemID: uuid.New()},
		{SegmentID: segment.ID, Status: enums.TicketOpen, ReservationItemID: uuid.New()},
	}
	require.NoError(t, conn.Create(&tickets).Error)

	status, err = svc.SegmentStatus(ctx, segment.ID)
	require.NoError(t, err)
	require.False(t, status.IsOpen)
	require.EqualValues(t, 2, status.OpenTickets)

	_, err = svc.Reserve(ctx, conn, segment.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeCapacityExceeded, typed.Code())
	require.Equal(t, pkgerrors.ReasonSegmentFull, typed.Reason())

	require.NoError(t, conn.Model(&models.Ticket{}).Where("id = ?", tickets[0].ID).Update("status", enums.TicketClosed).Error)
	reserved, err := svc.Reserve(ctx, conn, segment.ID)
	require.NoError(t, err)
	require.Equal(t, segment.ID, reserved.ID)
}

func TestReservationTotalCost(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	reservationID := uuid.New()

	seed := func(cost string, itemStatus enums.ReservationItemStatus, assignStatus enums.AssignStatus) {
		item := models.ReservationItem{
			ReservationID: reservationID,
			IssueID:       uuid.New(),
			ScheduleID:    uuid.New(),
			SegmentID:     uuid.New(),
			SLAID:         uuid.New(),
			PriorityID:    uuid.New(),
			Datetime:      time.Now().Add(time.Hour),
			Status:        itemStatus,
			TotalCost:     decimal.RequireFromString(cost),
		}
		require.NoError(t, conn.Create(&item).Error)
		require.NoError(t, conn.Create(&models.Assign{
			ReservationItemID: item.ID,
			IssueID:           item.IssueID,
			ReservationID:     reservationID,
			ClientID:          uuid.New(),
			ConsultantID:      uuid.New(),
			Status:            assignStatus,
		}).Error)
	}
	seed("10.50", enums.ReservationItemPush, enums.AssignWaiting)
	seed("4.25", enums.ReservationItemPush, enums.AssignWaiting)
	seed("99.00", enums.ReservationItemPull, enums.AssignWaiting)
	seed("20.00", enums.ReservationItemPush, enums.AssignAccept)

	waiting, err := svc.ReservationTotalCost(ctx, reservationID, enums.AssignWaiting)
	require.NoError(t, err)
	require.EqualValues(t, 2, waiting.Items)
	require.True(t, waiting.TotalCost.Equal(decimal.RequireFromString("14.75")), waiting.TotalCost.String())

	accepted, err := svc.ReservationTotalCost(ctx, reservationID, enums.AssignAccept)
	require.NoError(t, err)
	require.True(t, accepted.TotalCost.Equal(decimal.RequireFromString("20")))

	_, err = svc.ReservationTotalCost(ctx, reservationID, enums.AssignReject)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestItemTotalCost(t *testing.T) {
	sla := models.SLA{Cost: decimal.RequireFromString("12.40")}
	priority := models.Priority{Cost: decimal.RequireFromString("2.60")}
	require.True(t, ItemTotalCost(sla, priority).Equal(decimal.RequireFromString("15")))
}

func TestWithinBand(t *testing.T) {
	segment := models.Segment{
		OpenTime:  datatypes.NewTime(9, 0, 0, 0),
		CloseTime: datatypes.NewTime(12, 0, 0, 0),
	}
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	require.True(t, WithinBand(segment, time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC), nil))
	require.False(t, WithinBand(segment, time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC), nil), "close is exclusive")
	require.True(t, WithinBand(segment, time.Date(2024, 1, 8, 14, 30, 0, 0, time.UTC), ny))
	require.False(t, WithinBand(segment, time.Date(2024, 1, 8, 9, 30, 0, 0, time.UTC), ny))
}
