package schedules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/recurrence"
	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/pagination"
)

// Service exposes schedule management and availability expansion.
type Service interface {
	CreateSchedule(ctx context.Context, input CreateScheduleInput) (*ScheduleView, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*ScheduleView, error)
	ListSchedules(ctx context.Context, params ListParams) (*ListResult, error)
	UpdateSchedule(ctx context.Context, id, providerID uuid.UUID, input UpdateScheduleInput) (*ScheduleView, error)
	DeleteSchedule(ctx context.Context, id, providerID uuid.UUID) error
	AddRule(ctx context.Context, scheduleID, providerID uuid.UUID, rule recurrence.Rule) (*ScheduleView, error)
	RemoveRule(ctx context.Context, scheduleID, providerID, ruleID uuid.UUID) (*ScheduleView, error)
	ExpandAvailability(ctx context.Context, scheduleID uuid.UUID, window recurrence.Window) (*AvailabilityView, error)
	ExportICS(ctx context.Context, scheduleID uuid.UUID, window recurrence.Window, slot time.Duration) ([]byte, error)
	IsAvailable(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, instant time.Time) (bool, error)
	ScheduleLocation(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error)
}

// Config holds the limits the service enforces.
type Config struct {
	MaxActiveSchedules int
	MaxExpandInstants  int
	MaxExpandRange     time.Duration
	CacheTTL           time.Duration
}

// Option customises optional collaborators.
type Option func(*service)

// WithCache enables caching of expanded availability.
func WithCache(cache AvailabilityCache) Option {
	return func(s *service) { s.cache = cache }
}

// WithLocationResolver sets the per-schedule time zone lookup.
func WithLocationResolver(resolver LocationResolver) Option {
	return func(s *service) { s.locations = resolver }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	repo      Repository
	tx        txRunner
	cfg       Config
	logg      *logger.Logger
	cache     AvailabilityCache
	locations LocationResolver
	now       func() time.Time
}

// NewService wires the schedules service.
func NewService(repo Repository, tx txRunner, cfg Config, logg *logger.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("schedules repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.MaxActiveSchedules <= 0 {
		return nil, fmt.Errorf("max active schedules must be positive")
	}
	if cfg.MaxExpandInstants <= 0 {
		cfg.MaxExpandInstants = recurrence.DefaultMaxInstants
	}
	s := &service{
		repo: repo,
		tx:   tx,
		cfg:  cfg,
		logg: logg,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*ScheduleView, error) {
	if input.ProviderID == uuid.Nil {
		return nil, pkgerrors.Validation("provider_id", "provider id required")
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, pkgerrors.Validation("label", "label required")
	}
	if err := recurrence.Validate(input.Term, input.Rules); err != nil {
		return nil, invalidRule(err)
	}

	term := input.Term.Normalize()
	schedule := &models.Schedule{
		ProviderID: input.ProviderID,
		Label:      label,
		IsActive:   !input.Inactive,
		SortOrder:  input.SortOrder,
		Term:       termModel(term),
	}
	for _, rule := range input.Rules {
		schedule.Term.Rules = append(schedule.Term.Rules, rule.Normalize().ToModel())
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if schedule.IsActive {
			if err := s.ensureActiveSlot(ctx, repo, input.ProviderID); err != nil {
				return err
			}
		}
		if err := repo.Create(ctx, schedule); err != nil {
			return dbpkg.MapError(err, "create schedule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"schedule_id": schedule.ID.String(),
		"provider_id": schedule.ProviderID.String(),
	})
	s.logg.Info(logCtx, "schedule created")
	return s.GetSchedule(ctx, schedule.ID)
}

// ensureActiveSlot serializes activations per provider and rejects a new one
// once the limit is reached. Creates and re-activations both go through it.
func (s *service) ensureActiveSlot(ctx context.Context, repo Repository, providerID uuid.UUID) error {
	active, err := repo.LockActiveByProvider(ctx, providerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock provider schedules")
	}
	if len(active) >= s.cfg.MaxActiveSchedules {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("provider already has %d active schedules", len(active))).
			WithReason(pkgerrors.ReasonMaxSchedulesExceeded)
	}
	return nil
}

func (s *service) GetSchedule(ctx context.Context, id uuid.UUID) (*ScheduleView, error) {
	schedule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, scheduleLookupError(err)
	}
	view := newScheduleView(*schedule)
	return &view, nil
}

func (s *service) ListSchedules(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.ProviderID == uuid.Nil {
		return nil, pkgerrors.Validation("provider_id", "provider id required")
	}
	query := listParams{
		ProviderID: params.ProviderID,
		ActiveOnly: params.ActiveOnly,
		Limit:      params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list schedules")
	}
	result := &ListResult{Items: make([]ScheduleView, 0, len(rows))}
	for _, row := range rows {
		result.Items = append(result.Items, newScheduleView(row))
	}
	if next != nil {
		result.Cursor = next.Encode()
	}
	return result, nil
}

func (s *service) UpdateSchedule(ctx context.Context, id, providerID uuid.UUID, input UpdateScheduleInput) (*ScheduleView, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		schedule, err := s.ownedForUpdate(ctx, repo, id, providerID)
		if err != nil {
			return err
		}

		updates := map[string]any{"updated_at": s.now().UTC()}
		if input.Label != nil {
			label := strings.TrimSpace(*input.Label)
			if label == "" {
				return pkgerrors.Validation("label", "label required")
			}
			updates["label"] = label
		}
		if input.SortOrder != nil {
			updates["sort_order"] = *input.SortOrder
		}
		if input.IsActive != nil {
			if *input.IsActive && !schedule.IsActive {
				if err := s.ensureActiveSlot(ctx, repo, providerID); err != nil {
					return err
				}
			}
			updates["is_active"] = *input.IsActive
		}
		if input.Term != nil {
			rules := recurrence.RulesFromModels(schedule.Term.Rules)
			if err := recurrence.Validate(*input.Term, rules); err != nil {
				return invalidRule(err)
			}
			term := termModel(input.Term.Normalize())
			if err := repo.UpdateTerm(ctx, schedule.Term.ID, map[string]any{
				"dtstart":          term.Dtstart,
				"dtuntil":          term.Dtuntil,
				"frequency":        term.Frequency,
				"repeat_interval":  term.Interval,
				"occurrence_count": term.Count,
				"wkst":             term.Wkst,
				"direction":        term.Direction,
			}); err != nil {
				return dbpkg.MapError(err, "update schedule term")
			}
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return dbpkg.MapError(err, "update schedule")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, id)
}

func (s *service) DeleteSchedule(ctx context.Context, id, providerID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.ownedForUpdate(ctx, repo, id, providerID); err != nil {
			return err
		}
		booked, err := repo.CountReservationItems(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reservation items")
		}
		if booked > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "schedule has reservation items")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete schedule")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "schedule_id", id.String()), "schedule deleted")
	return nil
}

func (s *service) AddRule(ctx context.Context, scheduleID, providerID uuid.UUID, rule recurrence.Rule) (*ScheduleView, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		schedule, err := s.ownedForUpdate(ctx, repo, scheduleID, providerID)
		if err != nil {
			return err
		}
		rules := append(recurrence.RulesFromModels(schedule.Term.Rules), rule)
		if err := recurrence.Validate(recurrence.TermFromModel(*schedule.Term), rules); err != nil {
			return invalidRule(err)
		}
		row := rule.Normalize().ToModel()
		row.TermID = schedule.Term.ID
		if err := repo.CreateRule(ctx, &row); err != nil {
			return dbpkg.MapError(err, "create rule")
		}
		return dbpkg.MapError(repo.Touch(ctx, scheduleID, s.now().UTC()), "touch schedule")
	})
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, scheduleID)
}

func (s *service) RemoveRule(ctx context.Context, scheduleID, providerID, ruleID uuid.UUID) (*ScheduleView, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		schedule, err := s.ownedForUpdate(ctx, repo, scheduleID, providerID)
		if err != nil {
			return err
		}
		removed, err := repo.DeleteRule(ctx, schedule.Term.ID, ruleID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete rule")
		}
		if !removed {
			return pkgerrors.New(pkgerrors.CodeNotFound, "rule not found")
		}
		return dbpkg.MapError(repo.Touch(ctx, scheduleID, s.now().UTC()), "touch schedule")
	})
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, scheduleID)
}

func (s *service) ownedForUpdate(ctx context.Context, repo Repository, id, providerID uuid.UUID) (*models.Schedule, error) {
	schedule, err := repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, scheduleLookupError(err)
	}
	if schedule.ProviderID != providerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "schedule belongs to another provider")
	}
	if schedule.Term == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "schedule has no term")
	}
	return schedule, nil
}

func termModel(term recurrence.Term) *models.ScheduleTerm {
	m := &models.ScheduleTerm{
		Dtstart:   term.Dtstart.UTC(),
		Frequency: term.Frequency,
		Interval:  term.Interval,
		Count:     term.Count,
		Wkst:      term.Wkst,
		Direction: term.Direction,
	}
	if term.Dtuntil != nil {
		until := term.Dtuntil.UTC()
		m.Dtuntil = &until
	}
	return m
}

func invalidRule(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.WithReason(pkgerrors.ReasonInvalidRule)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rule").WithReason(pkgerrors.ReasonInvalidRule)
}

func scheduleLookupError(err error) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schedule")
}
