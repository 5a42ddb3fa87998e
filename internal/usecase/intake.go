package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"conveyor/internal/domain"

	"github.com/google/uuid"
)

// DefaultDatasetReference is used when the caller does not name a dataset.
const DefaultDatasetReference = "used_dataset"

// InferenceParams is the validated input for an inference task.
type InferenceParams struct {
	SignedFileURL    string
	OutputURL        string
	DatasetReference string
	ModelID          string
	InputDataType    string
	CSVDataConfig    map[string]any
	Explainability   []string
}

// TrainingParams is the validated input for a training task.
type TrainingParams struct {
	SignedFileURL    string
	OutputURL        string
	DatasetReference string
	SourceModelID    string
	InputDataType    string
	CSVDataConfig    map[string]any
	Explainability   []string
}

// AnnotationParams is the validated input for an annotation task.
type AnnotationParams struct {
	SignedFileURL string
	OutputURL     string
}

// Intake admits external requests into the pipeline: it assigns the task id,
// resolves the task kind, builds the first envelope snapshot and deposits it
// on the intake channel.
type Intake struct {
	projectID string
	bucket    string
	bus       Publisher
	log       *slog.Logger
}

func NewIntake(projectID, bucket string, bus Publisher, log *slog.Logger) *Intake {
	if log == nil {
		log = slog.Default()
	}
	return &Intake{projectID: projectID, bucket: bucket, bus: bus, log: log}
}

// InitiateInference starts an inference task and returns the accepted
// envelope. The task id is assigned here and never regenerated.
func (i *Intake) InitiateInference(ctx context.Context, p InferenceParams) (domain.Envelope, error) {
	if err := validateDataset(p.DatasetReference); err != nil {
		return domain.Envelope{}, err
	}
	env := domain.Envelope{
		ProjectID:        i.projectID,
		TaskID:           newTaskID(),
		SignedFileURL:    p.SignedFileURL,
		BucketName:       i.bucket,
		TaskType:         domain.ResolveTaskKind(domain.TaskInference, p.Explainability),
		OutputURL:        p.OutputURL,
		InputDataType:    defaultDataType(p.InputDataType),
		CSVDataConfig:    p.CSVDataConfig,
		Explainability:   p.Explainability,
		DatasetReference: p.DatasetReference,
		ModelID:          p.ModelID,
	}
	return i.publish(ctx, env)
}

// InitiateTraining starts a training task. The optional source model seeds
// the run; the trained model id comes back in the results.
func (i *Intake) InitiateTraining(ctx context.Context, p TrainingParams) (domain.Envelope, error) {
	if err := validateDataset(p.DatasetReference); err != nil {
		return domain.Envelope{}, err
	}
	env := domain.Envelope{
		ProjectID:        i.projectID,
		TaskID:           newTaskID(),
		SignedFileURL:    p.SignedFileURL,
		BucketName:       i.bucket,
		TaskType:         domain.ResolveTaskKind(domain.TaskTraining, p.Explainability),
		OutputURL:        p.OutputURL,
		InputDataType:    defaultDataType(p.InputDataType),
		CSVDataConfig:    p.CSVDataConfig,
		Explainability:   p.Explainability,
		DatasetReference: p.DatasetReference,
		ModelID:          p.SourceModelID,
	}
	return i.publish(ctx, env)
}

// InitiateAnnotation starts an annotation task over a single image resource.
func (i *Intake) InitiateAnnotation(ctx context.Context, p AnnotationParams) (domain.Envelope, error) {
	env := domain.Envelope{
		ProjectID:     i.projectID,
		TaskID:        newTaskID(),
		SignedFileURL: p.SignedFileURL,
		BucketName:    i.bucket,
		TaskType:      domain.TaskAnnotation,
		OutputURL:     p.OutputURL,
		InputDataType: "json",
	}
	return i.publish(ctx, env)
}

func (i *Intake) publish(ctx context.Context, env domain.Envelope) (domain.Envelope, error) {
	channel := domain.NextChannel(domain.StageIntake, env.TaskType)
	if err := i.bus.Publish(ctx, channel, env); err != nil {
		return domain.Envelope{}, fmt.Errorf("publish intake envelope: %w", err)
	}
	i.log.Info("task admitted",
		slog.String("task_id", env.TaskID),
		slog.String("task_type", string(env.TaskType)),
		slog.String("channel", string(channel)))
	return env, nil
}

func validateDataset(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("%w: invalid dataset reference %q", domain.ErrMalformedEnvelope, ref)
	}
	return nil
}

func defaultDataType(t string) string {
	if t == "" {
		return "json"
	}
	return t
}

func newTaskID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
