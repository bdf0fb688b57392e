package attributes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds an attribute repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAttribute(ctx context.Context, attr *models.Attribute) error {
	return r.db.WithContext(ctx).Create(attr).Error
}

func (r *repository) FindAttribute(ctx context.Context, contentType enums.ContentType, identifier string) (*models.Attribute, error) {
	var attr models.Attribute
	err := r.db.WithContext(ctx).
		Where("content_type = ? AND identifier = ?", contentType, identifier).
		First(&attr).Error
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

func (r *repository) ListAttributes(ctx context.Context, contentType enums.ContentType) ([]models.Attribute, error) {
	var attrs []models.Attribute
	err := r.db.WithContext(ctx).
		Where("content_type = ?", contentType).
		Order("identifier").
		Find(&attrs).Error
	return attrs, err
}

// UpsertValue inserts or replaces the value of one attribute on one object.
// Every value column is overwritten so a type change never leaves a stale
// column behind.
func (r *repository) UpsertValue(ctx context.Context, value *models.AttributeValue) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attribute_id"}, {Name: "object_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"varchar_value",
				"integer_value",
				"boolean_value",
				"date_value",
				"datetime_value",
				"updated_at",
			}),
		}).
		Omit("Attribute").
		Create(value).Error
}

func (r *repository) FindValue(ctx context.Context, attributeID, objectID uuid.UUID) (*models.AttributeValue, error) {
	var value models.AttributeValue
	err := r.db.WithContext(ctx).
		Preload("Attribute").
		Where("attribute_id = ? AND object_id = ?", attributeID, objectID).
		First(&value).Error
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (r *repository) ListValues(ctx context.Context, target Target) ([]models.AttributeValue, error) {
	var values []models.AttributeValue
	err := r.db.WithContext(ctx).
		Preload("Attribute").
		Where("content_type = ? AND object_id = ?", target.ContentType, target.ObjectID).
		Find(&values).Error
	return values, err
}

// ValuesByIdentifier returns the values set on target keyed by attribute
// identifier. Identifiers without a value are absent from the map.
func (r *repository) ValuesByIdentifier(ctx context.Context, target Target, identifiers []string) (map[string]models.AttributeValue, error) {
	out := make(map[string]models.AttributeValue, len(identifiers))
	if len(identifiers) == 0 {
		return out, nil
	}
	attrIDs := r.db.Model(&models.Attribute{}).
		Select("id").
		Where("content_type = ? AND identifier IN ?", target.ContentType, identifiers)

	var values []models.AttributeValue
	err := r.db.WithContext(ctx).
		Preload("Attribute").
		Where("object_id = ? AND attribute_id IN (?)", target.ObjectID, attrIDs).
		Find(&values).Error
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		if value.Attribute == nil {
			continue
		}
		out[value.Attribute.Identifier] = value
	}
	return out, nil
}

func (r *repository) DeleteValue(ctx context.Context, attributeID, objectID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("attribute_id = ? AND object_id = ?", attributeID, objectID).
		Delete(&models.AttributeValue{})
	return res.RowsAffected > 0, res.Error
}

// TargetOwner resolves the user that owns target. Schedules and segments
// belong to a provider; issues and reservations to a client.
func (r *repository) TargetOwner(ctx context.Context, target Target) (uuid.UUID, error) {
	db := r.db.WithContext(ctx)
	var owner struct {
		OwnerID uuid.UUID
	}
	var err error
	switch target.ContentType {
	case enums.ContentSchedule:
		err = db.Model(&models.Schedule{}).
			Select("provider_id AS owner_id").
			Where("id = ?", target.ObjectID).
			Take(&owner).Error
	case enums.ContentSegment:
		err = db.Model(&models.Segment{}).
			Select("schedules.provider_id AS owner_id").
			Joins("JOIN schedules ON schedules.id = segments.schedule_id").
			Where("segments.id = ?", target.ObjectID).
			Take(&owner).Error
	case enums.ContentIssue:
		err = db.Model(&models.Issue{}).
			Select("client_id AS owner_id").
			Where("id = ?", target.ObjectID).
			Take(&owner).Error
	case enums.ContentReservation:
		err = db.Model(&models.Reservation{}).
			Select("client_id AS owner_id").
			Where("id = ?", target.ObjectID).
			Take(&owner).Error
	default:
		return uuid.Nil, fmt.Errorf("unsupported content type %q", target.ContentType)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return owner.OwnerID, nil
}
