package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/damsblt/helvetiforma-sub002/internal/apperr"
	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

type ContentRepository interface {
	Upsert(ctx context.Context, item *model.ContentItem) error
	FindByID(ctx context.Context, id string) (*model.ContentItem, error)
	FindBySlug(ctx context.Context, slug string) (*model.ContentItem, error)
}

type contentRepoImpl struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepoImpl{
		db: db,
	}
}

func (r *contentRepoImpl) Upsert(ctx context.Context, item *model.ContentItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(item).Error
}

func (r *contentRepoImpl) FindByID(ctx context.Context, id string) (*model.ContentItem, error) {
	var item model.ContentItem
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content item %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}

func (r *contentRepoImpl) FindBySlug(ctx context.Context, slug string) (*model.ContentItem, error) {
	var item model.ContentItem
	err := r.db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("content slug %s: %w", slug, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &item, nil
}
