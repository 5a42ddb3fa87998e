package db

import (
	"context"
	"strings"

	"conveyor/internal/domain"

	"gorm.io/gorm"
)

// AnnotationRecordRepo persists annotation run metadata.
type AnnotationRecordRepo struct {
	db *gorm.DB
}

func NewAnnotationRecordRepo(db *gorm.DB) *AnnotationRecordRepo {
	return &AnnotationRecordRepo{db: db}
}

func (r *AnnotationRecordRepo) Create(ctx context.Context, rec domain.AnnotationRecord) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AnnotationRecordModel{
		TaskID:          rec.TaskID,
		BucketName:      rec.BucketName,
		BucketDir:       rec.BucketDir,
		ImageName:       rec.ImageName,
		AnnotationName:  rec.AnnotationName,
		AnnotationTypes: strings.Join(rec.AnnotationTypes, ","),
		CreatedAt:       rec.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListByTask returns the annotation rows recorded for one task.
func (r *AnnotationRecordRepo) ListByTask(ctx context.Context, taskID string) ([]domain.AnnotationRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AnnotationRecordModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AnnotationRecord, 0, len(models))
	for _, m := range models {
		rec := domain.AnnotationRecord{
			TaskID:         m.TaskID,
			BucketName:     m.BucketName,
			BucketDir:      m.BucketDir,
			ImageName:      m.ImageName,
			AnnotationName: m.AnnotationName,
			CreatedAt:      m.CreatedAt,
		}
		if m.AnnotationTypes != "" {
			rec.AnnotationTypes = strings.Split(m.AnnotationTypes, ",")
		}
		out = append(out, rec)
	}
	return out, nil
}
