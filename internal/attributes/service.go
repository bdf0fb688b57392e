package attributes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/internal/booking"
	dbpkg "github.com/angelmondragon/consultly-backend/pkg/db"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/consultly-backend/pkg/errors"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
)

// Service manages typed extension attributes on schedule and booking rows.
type Service interface {
	DefineAttribute(ctx context.Context, input DefineInput) (*AttributeView, error)
	ListAttributes(ctx context.Context, contentType enums.ContentType) ([]AttributeView, error)
	EnsureDefaults(ctx context.Context) error
	SetValue(ctx context.Context, actor booking.Actor, target Target, identifier string, value Value) (*ValueView, error)
	GetValues(ctx context.Context, target Target) ([]ValueView, error)
	DeleteValue(ctx context.Context, actor booking.Actor, target Target, identifier string) error
	ScheduleLocation(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (*time.Location, error)
	SchedulePolicy(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (booking.Policy, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService wires the attribute service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("attribute repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) DefineAttribute(ctx context.Context, input DefineInput) (*AttributeView, error) {
	input.Identifier = strings.TrimSpace(input.Identifier)
	input.Label = strings.TrimSpace(input.Label)
	if err := validateDefinition(input); err != nil {
		return nil, err
	}
	if input.Label == "" {
		input.Label = input.Identifier
	}
	attr := models.Attribute{
		ContentType: input.ContentType,
		Identifier:  input.Identifier,
		Type:        input.Type,
		Label:       input.Label,
	}
	if err := s.repo.CreateAttribute(ctx, &attr); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "attribute already defined").
				WithDetails(map[string]any{"content_type": input.ContentType, "identifier": input.Identifier})
		}
		return nil, dbpkg.MapError(err, "create attribute")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"content_type": string(attr.ContentType),
		"identifier":   attr.Identifier,
	})
	s.logg.Info(logCtx, "attribute defined")
	view := newAttributeView(attr)
	return &view, nil
}

func (s *service) ListAttributes(ctx context.Context, contentType enums.ContentType) ([]AttributeView, error) {
	if !contentType.IsValid() {
		return nil, pkgerrors.Validation("content_type", fmt.Sprintf("unknown content type %q", contentType))
	}
	attrs, err := s.repo.ListAttributes(ctx, contentType)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list attributes")
	}
	views := make([]AttributeView, 0, len(attrs))
	for _, attr := range attrs {
		views = append(views, newAttributeView(attr))
	}
	return views, nil
}

// EnsureDefaults defines the well-known schedule attributes that are not yet
// present. It is safe to call on every boot.
func (s *service) EnsureDefaults(ctx context.Context) error {
	for contentType, identifiers := range wellKnown {
		for identifier, attrType := range identifiers {
			_, err := s.repo.FindAttribute(ctx, contentType, identifier)
			if err == nil {
				continue
			}
			if !dbpkg.IsNotFound(err) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute")
			}
			_, err = s.DefineAttribute(ctx, DefineInput{
				ContentType: contentType,
				Identifier:  identifier,
				Type:        attrType,
				Label:       strings.ReplaceAll(identifier, "_", " "),
			})
			if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				return err
			}
		}
	}
	return nil
}

func (s *service) SetValue(ctx context.Context, actor booking.Actor, target Target, identifier string, value Value) (*ValueView, error) {
	if err := validateTarget(target); err != nil {
		return nil, err
	}
	var view ValueView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.authorize(ctx, repo, actor, target); err != nil {
			return err
		}
		attr, err := repo.FindAttribute(ctx, target.ContentType, identifier)
		if err != nil {
			return lookupError(err, "attribute")
		}
		if err := validateValue(target.ContentType, attr.Identifier, attr.Type, value); err != nil {
			return err
		}

		row := models.AttributeValue{
			AttributeID: attr.ID,
			ContentType: target.ContentType,
			ObjectID:    target.ObjectID,
		}
		value.apply(&row)
		if err := repo.UpsertValue(ctx, &row); err != nil {
			return dbpkg.MapError(err, "save attribute value")
		}
		stored, err := repo.FindValue(ctx, attr.ID, target.ObjectID)
		if err != nil {
			return lookupError(err, "attribute value")
		}
		view = newValueView(*attr, *stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"content_type": string(target.ContentType),
		"object_id":    target.ObjectID.String(),
		"identifier":   identifier,
	})
	s.logg.Debug(logCtx, "attribute value set")
	return &view, nil
}

func (s *service) GetValues(ctx context.Context, target Target) ([]ValueView, error) {
	if err := validateTarget(target); err != nil {
		return nil, err
	}
	if _, err := s.repo.TargetOwner(ctx, target); err != nil {
		return nil, lookupError(err, string(target.ContentType))
	}
	rows, err := s.repo.ListValues(ctx, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list attribute values")
	}
	views := make([]ValueView, 0, len(rows))
	for _, row := range rows {
		if row.Attribute == nil {
			continue
		}
		views = append(views, newValueView(*row.Attribute, row))
	}
	sortValues(views)
	return views, nil
}

func (s *service) DeleteValue(ctx context.Context, actor booking.Actor, target Target, identifier string) error {
	if err := validateTarget(target); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.authorize(ctx, repo, actor, target); err != nil {
			return err
		}
		attr, err := repo.FindAttribute(ctx, target.ContentType, identifier)
		if err != nil {
			return lookupError(err, "attribute")
		}
		deleted, err := repo.DeleteValue(ctx, attr.ID, target.ObjectID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete attribute value")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "attribute value not found")
		}
		return nil
	})
}

// authorize resolves the target and requires the actor to own it.
func (s *service) authorize(ctx context.Context, repo Repository, actor booking.Actor, target Target) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	owner, err := repo.TargetOwner(ctx, target)
	if err != nil {
		return lookupError(err, string(target.ContentType))
	}
	if owner != actor.UserID && actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, string(target.ContentType)+" belongs to another user")
	}
	return nil
}

func validateTarget(target Target) error {
	if !target.ContentType.IsValid() {
		return pkgerrors.Validation("content_type", fmt.Sprintf("unknown content type %q", target.ContentType))
	}
	if target.ObjectID == uuid.Nil {
		return pkgerrors.Validation("object_id", "object id is required")
	}
	return nil
}

func lookupError(err error, entity string) error {
	if dbpkg.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
