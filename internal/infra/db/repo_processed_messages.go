package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedMessageRepo is the Postgres-backed idempotency ledger.
type ProcessedMessageRepo struct {
	db *gorm.DB
}

func NewProcessedMessageRepo(db *gorm.DB) *ProcessedMessageRepo {
	return &ProcessedMessageRepo{db: db}
}

func (r *ProcessedMessageRepo) Seen(ctx context.Context, id string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var model ProcessedMessageModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Record inserts the delivery id; a conflicting insert is a no-op, keeping
// the ledger write-once per key.
func (r *ProcessedMessageRepo) Record(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := ProcessedMessageModel{ID: id, CreatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}
