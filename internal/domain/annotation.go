package domain

import "time"

// AnnotationRecord is the bookkeeping row written after an annotation run:
// where the input image and the produced annotation document live.
type AnnotationRecord struct {
	TaskID          string
	BucketName      string
	BucketDir       string
	ImageName       string
	AnnotationName  string
	AnnotationTypes []string
	CreatedAt       time.Time
}
