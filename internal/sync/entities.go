package sync

import (
	"context"
	"errors"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrEntityNotFound is returned when an operation targets a missing entity.
var ErrEntityNotFound = errors.New("entity not found")

// EntityStore gives the engine CRUD access to the entities client
// operations may target. Quantity is not writable through this interface;
// stock changes go through the quantity store only.
type EntityStore interface {
	GetItem(ctx context.Context, businessID, itemID uuid.UUID) (*models.Item, error)
	CreateItem(ctx context.Context, item *models.Item) error
	SaveItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, businessID, itemID uuid.UUID) (bool, error)

	GetTag(ctx context.Context, businessID, tagID uuid.UUID) (*models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error
	SaveTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, businessID, tagID uuid.UUID) (bool, error)

	GetBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error)
	SaveBusiness(ctx context.Context, business *models.Business) error
}

// GormEntityStore implements EntityStore against PostgreSQL.
type GormEntityStore struct {
	db *gorm.DB
}

// NewGormEntityStore creates a new entity store
func NewGormEntityStore(db *gorm.DB) *GormEntityStore {
	return &GormEntityStore{db: db}
}

// GetItem returns an item scoped to a business.
func (s *GormEntityStore) GetItem(ctx context.Context, businessID, itemID uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", itemID, businessID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new item.
func (s *GormEntityStore) CreateItem(ctx context.Context, item *models.Item) error {
	return s.db.WithContext(ctx).Create(item).Error
}

// SaveItem persists item changes. Quantity and version are excluded; the
// quantity store owns them.
func (s *GormEntityStore) SaveItem(ctx context.Context, item *models.Item) error {
	return s.db.WithContext(ctx).Model(item).
		Omit("quantity", "version", "created_at").
		Select("*").
		Updates(item).Error
}

// DeleteItem soft-deletes an item. Returns false when the item was absent.
func (s *GormEntityStore) DeleteItem(ctx context.Context, businessID, itemID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", itemID, businessID).
		Delete(&models.Item{})
	return res.RowsAffected > 0, res.Error
}

// GetTag returns a tag scoped to a business.
func (s *GormEntityStore) GetTag(ctx context.Context, businessID, tagID uuid.UUID) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", tagID, businessID).
		First(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// CreateTag inserts a new tag.
func (s *GormEntityStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	return s.db.WithContext(ctx).Create(tag).Error
}

// SaveTag persists tag changes.
func (s *GormEntityStore) SaveTag(ctx context.Context, tag *models.Tag) error {
	return s.db.WithContext(ctx).Save(tag).Error
}

// DeleteTag soft-deletes a tag. Returns false when the tag was absent.
func (s *GormEntityStore) DeleteTag(ctx context.Context, businessID, tagID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", tagID, businessID).
		Delete(&models.Tag{})
	return res.RowsAffected > 0, res.Error
}

// GetBusiness returns a business by id.
func (s *GormEntityStore) GetBusiness(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	err := s.db.WithContext(ctx).First(&business, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return &business, nil
}

// SaveBusiness persists business changes.
func (s *GormEntityStore) SaveBusiness(ctx context.Context, business *models.Business) error {
	return s.db.WithContext(ctx).Save(business).Error
}
