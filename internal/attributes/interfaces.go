package attributes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
)

// Repository defines persistence for attribute definitions and values.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAttribute(ctx context.Context, attr *models.Attribute) error
	FindAttribute(ctx context.Context, contentType enums.ContentType, identifier string) (*models.Attribute, error)
	ListAttributes(ctx context.Context, contentType enums.ContentType) ([]models.Attribute, error)
	UpsertValue(ctx context.Context, value *models.AttributeValue) error
	FindValue(ctx context.Context, attributeID, objectID uuid.UUID) (*models.AttributeValue, error)
	ListValues(ctx context.Context, target Target) ([]models.AttributeValue, error)
	ValuesByIdentifier(ctx context.Context, target Target, identifiers []string) (map[string]models.AttributeValue, error)
	DeleteValue(ctx context.Context, attributeID, objectID uuid.UUID) (bool, error)
	TargetOwner(ctx context.Context, target Target) (uuid.UUID, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
