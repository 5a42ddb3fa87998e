package usecase

import (
	"context"
	"time"

	"conveyor/internal/domain"
)

// Publisher puts an envelope on a named channel. Delivery is at-least-once;
// ordering across channels is not guaranteed.
type Publisher interface {
	Publish(ctx context.Context, channel domain.Channel, env domain.Envelope) error
}

// Ledger is the external key store backing the idempotency gate. Record is
// write-once per key; recording an already-recorded id is a no-op.
type Ledger interface {
	Seen(ctx context.Context, id string) (bool, error)
	Record(ctx context.Context, id string) error
}

// ObjectStore is the durable working area for in-flight task data.
type ObjectStore interface {
	// Fetch retrieves an externally referenced payload. The returned status
	// is the upstream HTTP status when the source responded, 0 otherwise.
	Fetch(ctx context.Context, url string) (data []byte, status int, err error)
	FetchObject(ctx context.Context, bucket, object string) ([]byte, error)
	Store(ctx context.Context, bucket, object string, data []byte, contentType string) error
	SignDownload(ctx context.Context, bucket, object string, ttl time.Duration) (string, error)
}

// Runner executes the opaque external job from a stage-specific argument set
// and returns its normalized structured output.
type Runner interface {
	Run(ctx context.Context, args map[string]string) (map[string]any, error)
}

// Secrets resolves named secret material at compute time.
type Secrets interface {
	Access(ctx context.Context, name string) (string, error)
}

// CallbackPoster delivers a terminal JSON response to the caller's URL.
type CallbackPoster interface {
	Post(ctx context.Context, url string, body any) error
}

// AnnotationRecords persists annotation run metadata.
type AnnotationRecords interface {
	Create(ctx context.Context, rec domain.AnnotationRecord) error
}
