package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds a booking repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateIssue(ctx context.Context, issue *models.Issue) error {
	return r.db.WithContext(ctx).Create(issue).Error
}

func (r *repository) FindIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *repository) LockIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var issue models.Issue
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("datetime, id") }).
		Where("id = ?", id).
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) LockReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) LockAssignsByReservation(ctx context.Context, reservationID uuid.UUID) ([]models.Assign, error) {
	var assigns []models.Assign
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("reservation_id = ?", reservationID).
		Order("id").
		Find(&assigns).Error
	return assigns, err
}

// DeleteReservation removes the reservation with its items, tickets and
// assigns. Children are deleted explicitly so sqlite behaves like postgres.
func (r *repository) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	items := db.Model(&models.ReservationItem{}).Select("id").Where("reservation_id = ?", id)
	if err := db.Where("reservation_item_id IN (?)", items).Delete(&models.Ticket{}).Error; err != nil {
		return err
	}
	if err := db.Where("reservation_id = ?", id).Delete(&models.Assign{}).Error; err != nil {
		return err
	}
	if err := db.Where("reservation_id = ?", id).Delete(&models.ReservationItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Reservation{}).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.ReservationItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.ReservationItem, error) {
	var item models.ReservationItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) LockItem(ctx context.Context, id uuid.UUID) (*models.ReservationItem, error) {
	var item models.ReservationItem
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateItemStatus(ctx context.Context, id uuid.UUID, status enums.ReservationItemStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ReservationItem{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// LockScheduleBookings serializes daily-limit checks across every segment of
// the schedule. The segment row lock only covers one segment.
func (r *repository) LockScheduleBookings(ctx context.Context, scheduleID uuid.UUID) error {
	return dbpkg.AdvisoryXactLock(r.db.WithContext(ctx), dbpkg.LockScopeScheduleBookings, scheduleID)
}

// CountScheduleBookings counts PUSH items on the schedule with a datetime in
// [from, to) whose ticket is still open.
func (r *repository) CountScheduleBookings(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	open := r.db.Model(&models.Ticket{}).Select("reservation_item_id").Where("status = ?", enums.TicketOpen)
	err := r.db.WithContext(ctx).
		Model(&models.ReservationItem{}).
		Where("schedule_id = ? AND status = ? AND datetime >= ? AND datetime < ?",
			scheduleID, enums.ReservationItemPush, from.UTC(), to.UTC()).
		Where("id IN (?)", open).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) CloseTickets(ctx context.Context, itemIDs []uuid.UUID, now time.Time) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("reservation_item_id IN ? AND status = ?", itemIDs, enums.TicketOpen).
		Updates(map[string]any{"status": enums.TicketClosed, "closed_at": now.UTC()}).Error
}

func (r *repository) CreateAssign(ctx context.Context, assign *models.Assign) error {
	return r.db.WithContext(ctx).Create(assign).Error
}

func (r *repository) FindAssign(ctx context.Context, id uuid.UUID) (*models.Assign, error) {
	var assign models.Assign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&assign).Error; err != nil {
		return nil, err
	}
	return &assign, nil
}

func (r *repository) LockAssign(ctx context.Context, id uuid.UUID) (*models.Assign, error) {
	var assign models.Assign
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&assign).Error; err != nil {
		return nil, err
	}
	return &assign, nil
}

// LockOpenAssignsByConsultant locks every WAITING or ACCEPT assign of the
// consultant, ordered by id so concurrent accepts take locks in one order.
func (r *repository) LockOpenAssignsByConsultant(ctx context.Context, consultantID uuid.UUID) ([]models.Assign, error) {
	var assigns []models.Assign
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("consultant_id = ? AND status IN ?", consultantID,
			[]enums.AssignStatus{enums.AssignWaiting, enums.AssignAccept}).
		Order("id").
		Find(&assigns).Error
	return assigns, err
}

func (r *repository) LockAssignsByItem(ctx context.Context, itemID uuid.UUID) ([]models.Assign, error) {
	var assigns []models.Assign
	err := dbpkg.ForUpdate(r.db.WithContext(ctx)).
		Where("reservation_item_id = ?", itemID).
		Order("id").
		Find(&assigns).Error
	return assigns, err
}

func (r *repository) HasAcceptedAssign(ctx context.Context, issueID, excludeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assign{}).
		Where("issue_id = ? AND status = ? AND id <> ?", issueID, enums.AssignAccept, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateAssignStatus(ctx context.Context, ids []uuid.UUID, status enums.AssignStatus, decidedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	updates := map[string]any{"status": status, "decided_at": decidedAt.UTC()}
	if status == enums.AssignAccept {
		updates["accepted_at"] = decidedAt.UTC()
	}
	return r.db.WithContext(ctx).
		Model(&models.Assign{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

// ClaimExpiredAssigns locks WAITING assigns whose item datetime is before
// cutoff. Rows held by another worker are skipped.
func (r *repository) ClaimExpiredAssigns(ctx context.Context, cutoff time.Time, limit int) ([]models.Assign, error) {
	var assigns []models.Assign
	past := r.db.Model(&models.ReservationItem{}).Select("id").Where("datetime < ?", cutoff.UTC())
	err := dbpkg.ForUpdateSkipLocked(r.db.WithContext(ctx)).
		Where("status = ? AND reservation_item_id IN (?)", enums.AssignWaiting, past).
		Order("created_at, id").
		Limit(limit).
		Find(&assigns).Error
	return assigns, err
}

func (r *repository) CreateAssigned(ctx context.Context, assigned *models.Assigned) error {
	return r.db.WithContext(ctx).Create(assigned).Error
}

func (r *repository) LockAssigned(ctx context.Context, id uuid.UUID) (*models.Assigned, error) {
	var assigned models.Assigned
	if err := dbpkg.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&assigned).Error; err != nil {
		return nil, err
	}
	return &assigned, nil
}

func (r *repository) AssignedAssignIDs(ctx context.Context, assignIDs []uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := make(map[uuid.UUID]struct{})
	if len(assignIDs) == 0 {
		return out, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Assigned{}).
		Where("assign_id IN ?", assignIDs).
		Pluck("assign_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *repository) ExistsAssigned(ctx context.Context, assignID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assigned{}).
		Where("assign_id = ?", assignID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CloseAssigned(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Assigned{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": enums.TicketClosed, "closed_at": now.UTC()}).Error
}

func (r *repository) FindSegment(ctx context.Context, id uuid.UUID) (*models.Segment, error) {
	var segment models.Segment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&segment).Error; err != nil {
		return nil, err
	}
	return &segment, nil
}

func (r *repository) FindSLA(ctx context.Context, id uuid.UUID) (*models.SLA, error) {
	var sla models.SLA
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sla).Error; err != nil {
		return nil, err
	}
	return &sla, nil
}

func (r *repository) FindPriority(ctx context.Context, id uuid.UUID) (*models.Priority, error) {
	var priority models.Priority
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&priority).Error; err != nil {
		return nil, err
	}
	return &priority, nil
}
