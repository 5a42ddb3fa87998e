package db

import "time"

// ProcessedMessageModel is one admitted delivery id. The primary key makes
// the ledger write-once at the database level.
type ProcessedMessageModel struct {
	ID        string `gorm:"primaryKey;size:256"`
	CreatedAt time.Time
}

func (ProcessedMessageModel) TableName() string { return "processed_messages" }

// AnnotationRecordModel is the bookkeeping row for one annotation run.
type AnnotationRecordModel struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	TaskID          string `gorm:"size:64;index"`
	BucketName      string `gorm:"size:256"`
	BucketDir       string `gorm:"size:256"`
	ImageName       string `gorm:"size:256"`
	AnnotationName  string `gorm:"size:256"`
	AnnotationTypes string `gorm:"size:1024"`
	CreatedAt       time.Time
}

func (AnnotationRecordModel) TableName() string { return "annotation_records" }
