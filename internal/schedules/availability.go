package schedules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/recurrence"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
)

// ExpandAvailability lists the schedule's instants inside window. Inactive
// schedules expand to nothing. Reads take no locks.
func (s *service) ExpandAvailability(ctx context.Context, scheduleID uuid.UUID, window recurrence.Window) (*AvailabilityView, error) {
	if err := s.validateWindow(window); err != nil {
		return nil, err
	}
	schedule, err := s.repo.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, scheduleLookupError(err)
	}
	loc, err := s.location(ctx, nil, scheduleID)
	if err != nil {
		return nil, err
	}

	view := &AvailabilityView{
		ScheduleID: scheduleID,
		Timezone:   loc.String(),
		Start:      window.Start.In(loc),
		End:        window.End.In(loc),
		Instants:   []time.Time{},
	}
	if !schedule.IsActive || schedule.Term == nil {
		return view, nil
	}

	key := s.cacheKey(schedule, loc, window)
	if cached, ok := s.readCache(ctx, key); ok {
		return cached, nil
	}

	it, err := recurrence.NewIterator(recurrence.TermFromModel(*schedule.Term), recurrence.RulesFromModels(schedule.Term.Rules), loc)
	if err != nil {
		return nil, invalidRule(err)
	}
	result, err := recurrence.Expand(ctx, it, window, s.cfg.MaxExpandInstants)
	if err != nil {
		return nil, expandError(err)
	}
	view.Instants = result.Instants
	view.Truncated = result.Truncated

	s.writeCache(ctx, key, view)
	return view, nil
}

// IsAvailable reports whether instant is one of the schedule's expanded
// instants. It reads through tx so callers can check inside a booking
// transaction.
func (s *service) IsAvailable(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, instant time.Time) (bool, error) {
	repo := s.repo.WithTx(tx)
	schedule, err := repo.FindByID(ctx, scheduleID)
	if err != nil {
		return false, scheduleLookupError(err)
	}
	if !schedule.IsActive || schedule.Term == nil {
		return false, nil
	}
	loc, err := s.location(ctx, tx, scheduleID)
	if err != nil {
		return false, err
	}
	it, err := recurrence.NewIterator(recurrence.TermFromModel(*schedule.Term), recurrence.RulesFromModels(schedule.Term.Rules), loc)
	if err != nil {
		return false, invalidRule(err)
	}
	ok, err := recurrence.Contains(ctx, it, instant)
	if err != nil {
		return false, expandError(err)
	}
	return ok, nil
}

func (s *service) validateWindow(window recurrence.Window) error {
	if window.Start.IsZero() || window.End.IsZero() {
		return pkgerrors.Validation("window", "start and end required")
	}
	if window.End.Before(window.Start) {
		return pkgerrors.Validation("window", "end must not be before start")
	}
	if s.cfg.MaxExpandRange > 0 && window.End.Sub(window.Start) > s.cfg.MaxExpandRange {
		return pkgerrors.Validation("window", fmt.Sprintf("window may span at most %s", s.cfg.MaxExpandRange))
	}
	return nil
}

// ScheduleLocation is the location instants of the schedule are expanded in.
// It falls back to UTC when no resolver is configured.
func (s *service) ScheduleLocation(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error) {
	return s.location(ctx, tx, scheduleID)
}

func (s *service) location(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error) {
	if s.locations == nil {
		return time.UTC, nil
	}
	loc, err := s.locations.ScheduleLocation(ctx, tx, scheduleID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return time.UTC, nil
	}
	return loc, nil
}

// cacheKey versions entries by the schedule's updated_at so any rule or term
// change misses the old entry.
func (s *service) cacheKey(schedule *models.Schedule, loc *time.Location, window recurrence.Window) CacheKey {
	return CacheKey{
		ScheduleID: schedule.ID,
		Version:    schedule.UpdatedAt.UnixNano(),
		Window: fmt.Sprintf("%s:%d:%d:%d", loc.String(),
			window.Start.Unix(), window.End.Unix(), s.cfg.MaxExpandInstants),
	}
}

func (s *service) readCache(ctx context.Context, key CacheKey) (*AvailabilityView, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logg.Warn(s.logg.WithError(s.logg.WithField(ctx, "schedule_id", key.ScheduleID.String()), err), "availability cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var view AvailabilityView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, false
	}
	return &view, true
}

func (s *service) writeCache(ctx context.Context, key CacheKey, view *AvailabilityView) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(raw), s.cfg.CacheTTL); err != nil {
		s.logg.Warn(s.logg.WithError(s.logg.WithField(ctx, "schedule_id", key.ScheduleID.String()), err), "availability cache write failed")
	}
}

func expandError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expand availability")
}
