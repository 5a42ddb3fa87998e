package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"conveyor/internal/domain"
)

// AnnotationImageName is the fixed working-area name for an annotation input.
const AnnotationImageName = "image.png"

// Transfer materializes the externally referenced input into the task's
// working area, keyed by task id and dataset reference.
type Transfer struct {
	store ObjectStore
	bus   Publisher
	log   *slog.Logger
}

func NewTransfer(store ObjectStore, bus Publisher, log *slog.Logger) *Transfer {
	if log == nil {
		log = slog.Default()
	}
	return &Transfer{store: store, bus: bus, log: log}
}

// Handle fetches the source payload and stores it under
// <task_id>/input_data[/<dataset_reference>]/<file>. Fetch and store failures
// are distinguished for the error taxonomy; both route to fault.
func (t *Transfer) Handle(ctx context.Context, env domain.Envelope) error {
	fileName, contentType := InputFile(env.TaskType, env.InputDataType)

	data, status, err := t.store.Fetch(ctx, env.SignedFileURL)
	if err != nil {
		cause := domain.FetchError(status, fmt.Errorf("fetch %s: %w", env.SignedFileURL, err))
		return publishFault(ctx, t.bus, t.log, env, domain.StageTransfer, cause)
	}

	object := InputObjectPath(env.TaskID, env.DatasetReference, fileName)
	if err := t.store.Store(ctx, env.BucketName, object, data, contentType); err != nil {
		cause := domain.StoreError(fmt.Errorf("store %s: %w", object, err))
		return publishFault(ctx, t.bus, t.log, env, domain.StageTransfer, cause)
	}

	t.log.Info("input transferred",
		slog.String("task_id", env.TaskID),
		slog.String("object", object),
		slog.Int("bytes", len(data)))

	channel := domain.NextChannel(domain.StageTransfer, env.TaskType)
	if err := t.bus.Publish(ctx, channel, env); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// InputFile derives the working-area file name and content type. Annotation
// tasks carry a single binary image; everything else is structured data named
// after its encoding.
func InputFile(kind domain.TaskKind, inputDataType string) (name, contentType string) {
	if kind.IsAnnotation() {
		return AnnotationImageName, "image/png"
	}
	if inputDataType == "" {
		inputDataType = "json"
	}
	name = "data." + inputDataType
	if inputDataType == "csv" {
		return name, "text/csv"
	}
	return name, "application/json"
}

// InputObjectPath builds the composite working-area key. The dataset segment
// keeps multiple datasets of one task apart.
func InputObjectPath(taskID, datasetReference, fileName string) string {
	if datasetReference != "" {
		return path.Join(taskID, "input_data", datasetReference, fileName)
	}
	return path.Join(taskID, "input_data", fileName)
}
