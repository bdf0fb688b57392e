package capacity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/validation"
	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

const day = 24 * time.Hour

// Service exposes segment, SLA and priority management plus quota checks.
type Service interface {
	CreateSegment(ctx context.Context, providerID, scheduleID uuid.UUID, input CreateSegmentInput) (*SegmentView, error)
	GetSegment(ctx context.Context, id uuid.UUID) (*SegmentView, error)
	ListSegments(ctx context.Context, scheduleID uuid.UUID) ([]SegmentView, error)
	CreateSLA(ctx context.Context, providerID, segmentID uuid.UUID, input CreateSLAInput) (*SLAView, error)
	CreatePriority(ctx context.Context, providerID, slaID uuid.UUID, input CreatePriorityInput) (*PriorityView, error)
	SegmentStatus(ctx context.Context, segmentID uuid.UUID) (*Status, error)
	ReservationTotalCost(ctx context.Context, reservationID uuid.UUID, status enums.AssignStatus) (*Total, error)
	Reserve(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) (*models.Segment, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService wires the capacity service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("capacity repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) CreateSegment(ctx context.Context, providerID, scheduleID uuid.UUID, input CreateSegmentInput) (*SegmentView, error) {
	errs := validation.FieldErrors{}
	if !input.Canal.IsValid() {
		errs.Addf("canal", "unknown canal %q", input.Canal)
	}
	if input.OpenTime < 0 || input.OpenTime >= day {
		errs.Add("open_time", "must be within the day")
	}
	if input.CloseTime <= 0 || input.CloseTime > day {
		errs.Add("close_time", "must be within the day")
	}
	if input.CloseTime <= input.OpenTime {
		errs.Add("close_time", "must be after open_time")
	}
	if input.Quota < 1 {
		errs.Add("quota", "must be at least 1")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	segment := &models.Segment{
		ScheduleID: scheduleID,
		Canal:      input.Canal,
		OpenTime:   datatypes.Time(input.OpenTime),
		CloseTime:  datatypes.Time(input.CloseTime),
		Quota:      input.Quota,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.requireOwner(ctx, repo, scheduleID, providerID); err != nil {
			return err
		}
		return dbpkg.MapError(repo.CreateSegment(ctx, segment), "create segment")
	})
	if err != nil {
		return nil, err
	}
	view := newSegmentView(*segment)
	return &view, nil
}

func (s *service) GetSegment(ctx context.Context, id uuid.UUID) (*SegmentView, error) {
	segment, err := s.repo.FindSegment(ctx, id)
	if err != nil {
		return nil, lookupError(err, "segment")
	}
	view := newSegmentView(*segment)
	return &view, nil
}

func (s *service) ListSegments(ctx context.Context, scheduleID uuid.UUID) ([]SegmentView, error) {
	rows, err := s.repo.ListSegments(ctx, scheduleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list segments")
	}
	views := make([]SegmentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newSegmentView(row))
	}
	return views, nil
}

func (s *service) CreateSLA(ctx context.Context, providerID, segmentID uuid.UUID, input CreateSLAInput) (*SLAView, error) {
	errs := validation.FieldErrors{}
	if input.Cost.IsNegative() {
		errs.Add("cost", "must not be negative")
	}
	if input.GracePeriodHours < 0 {
		errs.Add("grace_period_hours", "must not be negative")
	}
	if input.Allocation < 0 {
		errs.Add("allocation", "must not be negative")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var sla *models.SLA
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		segment, err := repo.FindSegment(ctx, segmentID)
		if err != nil {
			return lookupError(err, "segment")
		}
		if err := s.requireOwner(ctx, repo, segment.ScheduleID, providerID); err != nil {
			return err
		}

		unit := input.Unit
		expected := enums.UnitForCanal(segment.Canal)
		if unit == "" {
			unit = expected
		}
		if unit != expected {
			return pkgerrors.Validation("unit", fmt.Sprintf("%s segments allocate %s", segment.Canal, expected))
		}
		label := strings.TrimSpace(input.Label)
		if label == "" {
			label = DefaultSLALabel(input.GracePeriodHours, input.Cost)
		}

		sla = &models.SLA{
			SegmentID:        segment.ID,
			Label:            label,
			Cost:             input.Cost.Round(2),
			GracePeriodHours: input.GracePeriodHours,
			Unit:             unit,
			Allocation:       input.Allocation,
		}
		return dbpkg.MapError(repo.CreateSLA(ctx, sla), "create sla")
	})
	if err != nil {
		return nil, err
	}
	view := newSLAView(*sla)
	return &view, nil
}

func (s *service) CreatePriority(ctx context.Context, providerID, slaID uuid.UUID, input CreatePriorityInput) (*PriorityView, error) {
	errs := validation.FieldErrors{}
	if !input.Identifier.IsValid() {
		errs.Addf("identifier", "unknown priority %q", input.Identifier)
	}
	if input.Cost.IsNegative() {
		errs.Add("cost", "must not be negative")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var priority *models.Priority
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sla, err := repo.FindSLA(ctx, slaID)
		if err != nil {
			return lookupError(err, "sla")
		}
		segment, err := repo.FindSegment(ctx, sla.SegmentID)
		if err != nil {
			return lookupError(err, "segment")
		}
		if err := s.requireOwner(ctx, repo, segment.ScheduleID, providerID); err != nil {
			return err
		}
		label := strings.TrimSpace(input.Label)
		if label == "" {
			label = string(input.Identifier)
		}
		priority = &models.Priority{
			SLAID:      sla.ID,
			Identifier: input.Identifier,
			Label:      label,
			Cost:       input.Cost.Round(2),
		}
		return dbpkg.MapError(repo.CreatePriority(ctx, priority), "create priority")
	})
	if err != nil {
		return nil, err
	}
	view := newPriorityView(*priority)
	return &view, nil
}

// SegmentStatus recomputes is_open from the current open-ticket count.
func (s *service) SegmentStatus(ctx context.Context, segmentID uuid.UUID) (*Status, error) {
	segment, err := s.repo.FindSegment(ctx, segmentID)
	if err != nil {
		return nil, lookupError(err, "segment")
	}
	open, err := s.repo.CountOpenTickets(ctx, segmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open tickets")
	}
	return &Status{
		SegmentID:   segment.ID,
		Quota:       segment.Quota,
		OpenTickets: open,
		IsOpen:      int64(segment.Quota) > open,
	}, nil
}

func (s *service) ReservationTotalCost(ctx context.Context, reservationID uuid.UUID, status enums.AssignStatus) (*Total, error) {
	if status != enums.AssignWaiting && status != enums.AssignAccept {
		return nil, pkgerrors.Validation("assign_status", "must be WAITING or ACCEPT")
	}
	total, count, err := s.repo.SumReservationItems(ctx, reservationID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reservation items")
	}
	return &Total{
		ReservationID: reservationID,
		AssignStatus:  status,
		Items:         count,
		TotalCost:     total,
	}, nil
}

// Reserve locks the segment row inside tx and fails with CodeCapacityExceeded
// when its open tickets already fill the quota. The caller must create the
// ticket in the same transaction.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) (*models.Segment, error) {
	repo := s.repo.WithTx(tx)
	segment, err := repo.FindSegmentForUpdate(ctx, segmentID)
	if err != nil {
		return nil, lookupError(err, "segment")
	}
	open, err := repo.CountOpenTickets(ctx, segmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count open tickets")
	}
	if open >= int64(segment.Quota) {
		return nil, pkgerrors.New(pkgerrors.CodeCapacityExceeded, "segment is full").
			WithDetails(map[string]any{"quota": segment.Quota, "open_tickets": open}).
			WithReason(pkgerrors.ReasonSegmentFull)
	}
	return segment, nil
}

func (s *service) requireOwner(ctx context.Context, repo Repository, scheduleID, providerID uuid.UUID) error {
	owner, err := repo.FindScheduleProvider(ctx, scheduleID)
	if err != nil {
		return lookupError(err, "schedule")
	}
	if owner != providerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "schedule belongs to another provider")
	}
	return nil
}

// ItemTotalCost is the price of one reservation item.
func ItemTotalCost(sla models.SLA, priority models.Priority) decimal.Decimal {
	return sla.Cost.Add(priority.Cost)
}

// WithinBand reports whether instant, read as wall clock in loc, falls in
// the segment's [open, close) band.
func WithinBand(segment models.Segment, instant time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := instant.In(loc)
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return offset >= time.Duration(segment.OpenTime) && offset < time.Duration(segment.CloseTime)
}

func lookupError(err error, entity string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
