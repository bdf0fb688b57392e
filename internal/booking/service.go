package booking

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/validation"
	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/outbox"
)

const (
	maxIssueTopics = 10
	numberAttempts = 3
)

// Service drives the issue → reservation → item → assign → assigned chain.
type Service interface {
	CreateIssue(ctx context.Context, input CreateIssueInput) (*IssueView, error)
	GetIssue(ctx context.Context, id uuid.UUID, actor Actor) (*IssueView, error)
	CreateReservation(ctx context.Context, input CreateReservationInput) (*ReservationView, error)
	GetReservation(ctx context.Context, id uuid.UUID, actor Actor) (*ReservationView, error)
	DeleteReservation(ctx context.Context, id uuid.UUID, actor Actor) error
	CreateReservationItem(ctx context.Context, input CreateItemInput) (*ItemResult, error)
	PullReservationItem(ctx context.Context, itemID uuid.UUID, actor Actor) (*ItemView, error)
	TransitionAssign(ctx context.Context, input TransitionInput) (*TransitionResult, error)
	CreateAssigned(ctx context.Context, input CreateAssignedInput) (*AssignedView, error)
	CloseAssigned(ctx context.Context, assignedID uuid.UUID, actor Actor) (*AssignedView, error)
	ExpireWaitingAssigns(ctx context.Context, grace time.Duration, limit int) (int, error)
}

// Option customises the booking service.
type Option func(*service)

// WithNotifier sets the collaborator told about accepted assigns.
func WithNotifier(n Notifier) Option {
	return func(s *service) { s.notifier = n }
}

// WithPolicyResolver enables per-schedule lead time and daily limits.
func WithPolicyResolver(p PolicyResolver) Option {
	return func(s *service) { s.policies = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	repo         Repository
	tx           txRunner
	capacity     CapacityReserver
	availability AvailabilityChecker
	outbox       outboxPublisher
	logg         *logger.Logger
	notifier     Notifier
	policies     PolicyResolver
	now          func() time.Time
	numbers      func(prefix string) string
}

// NewService wires the booking workflow.
func NewService(repo Repository, tx txRunner, capacity CapacityReserver, availability AvailabilityChecker, outbox outboxPublisher, logg *logger.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("booking repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if capacity == nil {
		return nil, fmt.Errorf("capacity reserver required")
	}
	if availability == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &service{
		repo:         repo,
		tx:           tx,
		capacity:     capacity,
		availability: availability,
		outbox:       outbox,
		logg:         logg,
		now:          time.Now,
		numbers:      randomNumber,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) CreateIssue(ctx context.Context, input CreateIssueInput) (*IssueView, error) {
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	errs := validation.FieldErrors{}
	description := strings.TrimSpace(input.Description)
	errs.Required("description", description)
	topics := make([]string, 0, len(input.Topics))
	for i, topic := range input.Topics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			errs.Addf(fmt.Sprintf("topics[%d]", i), "topic must not be empty")
			continue
		}
		topics = append(topics, topic)
	}
	if len(input.Topics) > maxIssueTopics {
		errs.Addf("topics", "at most %d topics allowed", maxIssueTopics)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode topics")
	}

	var issue models.Issue
	err = s.withUniqueNumber(ctx, "ISS", func(tx *gorm.DB, number string) error {
		issue = models.Issue{
			ClientID:    input.ClientID,
			Number:      number,
			Topics:      datatypes.JSON(raw),
			Description: description,
		}
		return s.repo.WithTx(tx).CreateIssue(ctx, &issue)
	})
	if err != nil {
		return nil, dbpkg.MapError(err, "create issue")
	}
	view := newIssueView(issue)
	return &view, nil
}

func (s *service) GetIssue(ctx context.Context, id uuid.UUID, actor Actor) (*IssueView, error) {
	issue, err := s.repo.FindIssue(ctx, id)
	if err != nil {
		return nil, lookupError(err, "issue")
	}
	if issue.ClientID != actor.UserID && !actor.isAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "issue belongs to another client")
	}
	view := newIssueView(*issue)
	return &view, nil
}

func (s *service) CreateReservation(ctx context.Context, input CreateReservationInput) (*ReservationView, error) {
	if input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ConsultantID == uuid.Nil {
		return nil, pkgerrors.Validation("consultant_id", "consultant is required")
	}
	if input.ConsultantID == input.ClientID {
		return nil, pkgerrors.Validation("consultant_id", "consultant must differ from client")
	}

	var reservation models.Reservation
	err := s.withUniqueNumber(ctx, "RSV", func(tx *gorm.DB, number string) error {
		reservation = models.Reservation{
			ClientID:     input.ClientID,
			ConsultantID: input.ConsultantID,
			Number:       number,
		}
		return s.repo.WithTx(tx).CreateReservation(ctx, &reservation)
	})
	if err != nil {
		return nil, dbpkg.MapError(err, "create reservation")
	}
	view := newReservationView(reservation)
	return &view, nil
}

func (s *service) GetReservation(ctx context.Context, id uuid.UUID, actor Actor) (*ReservationView, error) {
	reservation, err := s.repo.FindReservation(ctx, id)
	if err != nil {
		return nil, lookupError(err, "reservation")
	}
	if !canSeeReservation(*reservation, actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another user")
	}
	view := newReservationView(*reservation)
	return &view, nil
}

// DeleteReservation removes the whole chain while no assign has ever been
// accepted.
func (s *service) DeleteReservation(ctx context.Context, id uuid.UUID, actor Actor) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		reservation, err := repo.LockReservation(ctx, id)
		if err != nil {
			return lookupError(err, "reservation")
		}
		if reservation.ClientID != actor.UserID && !actor.isAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another client")
		}
		assigns, err := repo.LockAssignsByReservation(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock reservation assigns")
		}
		if everAccepted(assigns) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation has an accepted assign").
				WithReason(pkgerrors.ReasonItemFrozen)
		}
		if err := repo.DeleteReservation(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservation")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "reservation_id", id.String()), "reservation deleted")
	return nil
}

// withUniqueNumber retries fn with a fresh number when the insert collides.
// Each attempt runs in its own transaction since postgres aborts a
// transaction on the first failed statement.
func (s *service) withUniqueNumber(ctx context.Context, prefix string, fn func(tx *gorm.DB, number string) error) error {
	var err error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		number := s.numbers(prefix)
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error { return fn(tx, number) })
		if err == nil || !dbpkg.IsUniqueViolation(err, "") {
			return err
		}
	}
	return err
}

func randomNumber(prefix string) string {
	id := uuid.New()
	return prefix + "-" + strings.ToUpper(hex.EncodeToString(id[:5]))
}

func hasStatus(assigns []models.Assign, statuses ...enums.AssignStatus) bool {
	for _, assign := range assigns {
		for _, status := range statuses {
			if assign.Status == status {
				return true
			}
		}
	}
	return false
}

// everAccepted reports whether any assign reached ACCEPT, including ones a
// later accept cancelled as siblings.
func everAccepted(assigns []models.Assign) bool {
	for _, assign := range assigns {
		if assign.AcceptedAt != nil || assign.Status == enums.AssignAccept {
			return true
		}
	}
	return false
}

// itemFrozen reports whether a decision fixed the item's status. REJECT is
// terminal, so its current status is enough.
func itemFrozen(assigns []models.Assign) bool {
	return everAccepted(assigns) || hasStatus(assigns, enums.AssignReject)
}

func canSeeReservation(r models.Reservation, actor Actor) bool {
	return actor.isAdmin() || r.ClientID == actor.UserID || r.ConsultantID == actor.UserID
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}

func lookupError(err error, entity string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
