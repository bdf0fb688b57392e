package schedules

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/recurrence"
	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/dbtest"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

type memoryCache struct {
	mu    sync.Mutex
	items map[CacheKey]string
	hits  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[CacheKey]string{}}
}

func (c *memoryCache) Get(_ context.Context, key CacheKey) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.items[key]
	if ok {
		c.hits++
	}
	return value, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key CacheKey, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

type fixedLocation struct {
	loc *time.Location
}

func (f fixedLocation) ScheduleLocation(context.Context, *gorm.DB, uuid.UUID) (*time.Location, error) {
	return f.loc, nil
}

type fixture struct {
	svc Service
	db  *gorm.DB
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	return newFixtureOn(t, client, conn, opts...)
}

func newFixtureOn(t *testing.T, client *dbpkg.Client, conn *gorm.DB, opts ...Option) fixture {
	t.Helper()
	var mu sync.Mutex
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	})}, opts...)
	svc, err := NewService(NewRepository(conn), client, Config{
		MaxActiveSchedules: 6,
		MaxExpandInstants:  100,
		MaxExpandRange:     400 * 24 * time.Hour,
		CacheTTL:           time.Minute,
	}, logger.Nop(), opts...)
	require.NoError(t, err)
	return fixture{svc: svc, db: conn}
}

func intPtr(v int) *int { return &v }

func weeklyMondays(provider uuid.UUID) CreateScheduleInput {
	return CreateScheduleInput{
		ProviderID: provider,
		Label:      "Monday mornings",
		Term: recurrence.Term{
			Dtstart:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			Frequency: enums.FrequencyWeekly,
			Count:     intPtr(4),
		},
		Rules: []recurrence.Rule{{
			Identifier: enums.RuleByWeekday,
			Mode:       enums.RuleModeInclusion,
			Values:     []recurrence.Value{recurrence.Varchar("MO")},
		}},
	}
}

var january2024 = recurrence.Window{
	Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC),
}

func formatted(instants []time.Time) []string {
	out := make([]string, 0, len(instants))
	for _, instant := range instants {
		out = append(out, instant.UTC().Format(time.RFC3339))
	}
	return out
}

func TestCreateScheduleStoresTermAndRules(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.CreateSchedule(context.Background(), weeklyMondays(uuid.New()))
	require.NoError(t, err)

	require.True(t, view.IsActive)
	require.NotNil(t, view.Term)
	require.Equal(t, enums.TermDirectionRecurrence, view.Term.Direction)
	require.Equal(t, 1, view.Term.Interval)
	require.Len(t, view.Rules, 1)
	require.Equal(t, enums.RuleValueVarchar, view.Rules[0].ValueType)
	require.Equal(t, "MO", *view.Rules[0].Values[0].Varchar)
	require.Nil(t, view.Rules[0].Values[0].Integer)
}

func TestCreateScheduleRejectsInvalidRule(t *testing.T) {
	f := newFixture(t)
	input := weeklyMondays(uuid.New())
	input.Rules = []recurrence.Rule{{
		Identifier: enums.RuleByHour,
		Mode:       enums.RuleModeInclusion,
		Values:     []recurrence.Value{recurrence.Integer(25)},
	}}

	_, err := f.svc.CreateSchedule(context.Background(), input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	require.Equal(t, pkgerrors.ReasonInvalidRule, typed.Reason())

	var count int64
	require.NoError(t, f.db.Model(&models.Schedule{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateScheduleEnforcesActiveLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	for i := 0; i < 6; i++ {
		_, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
		require.NoError(t, err)
	}

	_, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
	require.Error(t, err)
	require.Equal(t, pkgerrors.ReasonMaxSchedulesExceeded, pkgerrors.As(err).Reason())

	inactive := weeklyMondays(provider)
	inactive.Inactive = true
	view, err := f.svc.CreateSchedule(ctx, inactive)
	require.NoError(t, err)

	active := true
	_, err = f.svc.UpdateSchedule(ctx, view.ID, provider, UpdateScheduleInput{IsActive: &active})
	require.Equal(t, pkgerrors.ReasonMaxSchedulesExceeded, pkgerrors.As(err).Reason())

	_, err = f.svc.CreateSchedule(ctx, weeklyMondays(uuid.New()))
	require.NoError(t, err, "limit is per provider")
}

func TestConcurrentCreatesRespectActiveLimit(t *testing.T) {
	createsRespectActiveLimit(t, newFixture(t))
}

// createsRespectActiveLimit races more creates than the limit allows, from
// an empty provider so there is no existing row to lock. On the sqlite
// fixture the transactions run one at a time.
func createsRespectActiveLimit(t *testing.T, f fixture) {
	t.Helper()
	provider := uuid.New()
	const attempts = 10

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateSchedule(context.Background(), weeklyMondays(provider))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.Equal(t, pkgerrors.ReasonMaxSchedulesExceeded, pkgerrors.As(err).Reason())
	}
	require.Equal(t, 6, succeeded)

	var active int64
	require.NoError(t, f.db.Model(&models.Schedule{}).Where("provider_id = ? AND is_active = ?", provider, true).Count(&active).Error)
	require.Equal(t, int64(6), active)
}

func TestExpandAvailabilityWeeklyMondays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(uuid.New()))
	require.NoError(t, err)

	availability, err := f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	require.Equal(t, []string{
		"2024-01-01T09:00:00Z",
		"2024-01-08T09:00:00Z",
		"2024-01-15T09:00:00Z",
		"2024-01-22T09:00:00Z",
	}, formatted(availability.Instants))
	require.False(t, availability.Truncated)
	require.Equal(t, "UTC", availability.Timezone)
}

func TestExpandAvailabilityRejectsOversizedWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(uuid.New()))
	require.NoError(t, err)

	_, err = f.svc.ExpandAvailability(ctx, view.ID, recurrence.Window{
		Start: january2024.Start,
		End:   january2024.Start.Add(500 * 24 * time.Hour),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.ExpandAvailability(ctx, view.ID, recurrence.Window{Start: january2024.End, End: january2024.Start})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInactiveScheduleHasNoAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := weeklyMondays(uuid.New())
	input.Inactive = true
	view, err := f.svc.CreateSchedule(ctx, input)
	require.NoError(t, err)

	availability, err := f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	require.Empty(t, availability.Instants)
}

func TestRulesChangeAvailabilityAndCache(t *testing.T) {
	cache := newMemoryCache()
	f := newFixture(t, WithCache(cache))
	ctx := context.Background()
	provider := uuid.New()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
	require.NoError(t, err)

	_, err = f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	_, err = f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)

	updated, err := f.svc.AddRule(ctx, view.ID, provider, recurrence.Rule{
		Identifier: enums.RuleInstant,
		Mode:       enums.RuleModeExclusion,
		Values:     []recurrence.Value{recurrence.Datetime(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC))},
	})
	require.NoError(t, err)
	require.Len(t, updated.Rules, 2)

	availability, err := f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits, "edit must invalidate cached windows")
	require.Equal(t, []string{
		"2024-01-01T09:00:00Z",
		"2024-01-15T09:00:00Z",
		"2024-01-22T09:00:00Z",
	}, formatted(availability.Instants))

	var exclusionID uuid.UUID
	for _, rule := range updated.Rules {
		if rule.Identifier == enums.RuleInstant {
			exclusionID = rule.ID
		}
	}
	_, err = f.svc.RemoveRule(ctx, view.ID, provider, exclusionID)
	require.NoError(t, err)

	availability, err = f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	require.Len(t, availability.Instants, 4)

	_, err = f.svc.RemoveRule(ctx, view.ID, provider, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAddRuleRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
	require.NoError(t, err)

	_, err = f.svc.AddRule(ctx, view.ID, provider, recurrence.Rule{
		Identifier: enums.RuleByWeekday,
		Mode:       enums.RuleModeInclusion,
		Values:     []recurrence.Value{recurrence.Varchar("TU")},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMutationsRequireOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(uuid.New()))
	require.NoError(t, err)

	label := "stolen"
	_, err = f.svc.UpdateSchedule(ctx, view.ID, uuid.New(), UpdateScheduleInput{Label: &label})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.True(t, pkgerrors.IsCode(f.svc.DeleteSchedule(ctx, view.ID, uuid.New()), pkgerrors.CodeForbidden))
}

func TestUpdateScheduleTerm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
	require.NoError(t, err)

	term := recurrence.Term{
		Dtstart:   time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		Frequency: enums.FrequencyWeekly,
		Count:     intPtr(2),
	}
	label := "Two Mondays"
	updated, err := f.svc.UpdateSchedule(ctx, view.ID, provider, UpdateScheduleInput{Label: &label, Term: &term})
	require.NoError(t, err)
	require.Equal(t, "Two Mondays", updated.Label)
	require.Equal(t, 2, *updated.Term.Count)

	availability, err := f.svc.ExpandAvailability(ctx, view.ID, january2024)
	require.NoError(t, err)
	require.Len(t, availability.Instants, 2)

	_, err = f.svc.UpdateSchedule(ctx, view.ID, provider, UpdateScheduleInput{Term: &recurrence.Term{
		Dtstart:   term.Dtstart,
		Frequency: enums.FrequencyWeekly,
	}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "open-ended terms are rejected")
}

func TestDeleteScheduleCascadesAndGuardsBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSchedule(ctx, view.ID, provider))
	_, err = f.svc.GetSchedule(ctx, view.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	for _, model := range []any{&models.ScheduleTerm{}, &models.Rule{}, &models.RuleValue{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	booked, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
	require.NoError(t, err)
	require.NoError(t, f.db.Create(&models.ReservationItem{
		ReservationID: uuid.New(),
		IssueID:       uuid.New(),
		ScheduleID:    booked.ID,
		SegmentID:     uuid.New(),
		SLAID:         uuid.New(),
		PriorityID:    uuid.New(),
		Datetime:      time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		Status:        enums.ReservationItemPush,
	}).Error)
	require.True(t, pkgerrors.IsCode(f.svc.DeleteSchedule(ctx, booked.ID, provider), pkgerrors.CodeStateConflict))
}

func TestListSchedulesPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	provider := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateSchedule(ctx, weeklyMondays(provider))
		require.NoError(t, err)
	}

	page, err := f.svc.ListSchedules(ctx, ListParams{ProviderID: provider, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	_, err = f.svc.ListSchedules(ctx, ListParams{ProviderID: provider, Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestIsAvailableUsesScheduleLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	f := newFixture(t, WithLocationResolver(fixedLocation{loc: ny}))
	ctx := context.Background()

	input := CreateScheduleInput{
		ProviderID: uuid.New(),
		Label:      "Daily",
		Term: recurrence.Term{
			Dtstart:   time.Date(2024, 3, 8, 9, 0, 0, 0, ny),
			Frequency: enums.FrequencyDaily,
			Count:     intPtr(4),
		},
	}
	view, err := f.svc.CreateSchedule(ctx, input)
	require.NoError(t, err)

	ok, err := f.svc.IsAvailable(ctx, f.db, view.ID, time.Date(2024, 3, 11, 9, 0, 0, 0, ny))
	require.NoError(t, err)
	require.True(t, ok, "wall clock is kept across the DST change")

	ok, err = f.svc.IsAvailable(ctx, f.db, view.ID, time.Date(2024, 3, 11, 10, 0, 0, 0, ny))
	require.NoError(t, err)
	require.False(t, ok)

	availability, err := f.svc.ExpandAvailability(ctx, view.ID, recurrence.Window{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "America/New_York", availability.Timezone)
	require.Len(t, availability.Instants, 4)
}

func TestExportICS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.svc.CreateSchedule(ctx, weeklyMondays(uuid.New()))
	require.NoError(t, err)

	body, err := f.svc.ExportICS(ctx, view.ID, january2024, 30*time.Minute)
	require.NoError(t, err)
	text := string(body)
	require.Contains(t, text, "BEGIN:VCALENDAR")
	require.Equal(t, 4, strings.Count(text, "BEGIN:VEVENT"))
	require.Contains(t, text, "DTSTART:20240108T090000Z")
	require.Contains(t, text, "DTEND:20240108T093000Z")
	require.Contains(t, text, "Monday mornings")
}
