package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/damsblt/helvetiforma-sub002/internal/model"
)

type CallbackEventRepository interface {
	// Find returns (nil, nil) when the payment reference has not been
	// processed yet.
	Find(ctx context.Context, paymentReference string) (*model.CallbackEvent, error)
	MarkProcessed(ctx context.Context, event *model.CallbackEvent) error
}

type callbackEventRepoImpl struct {
	db *gorm.DB
}

func NewCallbackEventRepository(db *gorm.DB) CallbackEventRepository {
	return &callbackEventRepoImpl{db: db}
}

func (r *callbackEventRepoImpl) Find(ctx context.Context, paymentReference string) (*model.CallbackEvent, error) {
	var event model.CallbackEvent
	err := r.db.WithContext(ctx).
		Where("payment_reference = ?", paymentReference).
		First(&event).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &event, nil
}

func (r *callbackEventRepoImpl) MarkProcessed(ctx context.Context, event *model.CallbackEvent) error {
	event.ProcessedAt = time.Now()
	// first writer wins; a concurrent redelivery must not overwrite the
	// recorded result
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
}
