package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"conveyor/internal/domain"
)

// PredictionSampleSize bounds inline prediction lists before they travel to
// emit. Results at or above the threshold keep only the leading entries under
// a renamed key.
const PredictionSampleSize = 10

// Secret names the annotation runner needs.
const (
	SecretVisionAPIKey   = "GOOGLE_VISION_API_KEY"
	SecretVisionEngineID = "GOOGLE_VISION_ENGINE_ID"
	SecretVisionKeyJSON  = "GOOGLE_VISION_KEY_JSON"
)

const annotationFileName = "annotations.json"

// Compute builds the stage-specific argument set, invokes the external job
// runner and normalizes its output into the envelope's results. Redelivered
// messages are collapsed by the idempotency gate before any work starts.
type Compute struct {
	gate    *Gate
	runner  Runner
	store   ObjectStore
	secrets Secrets
	records AnnotationRecords
	bus     Publisher
	log     *slog.Logger
	now     func() time.Time
}

func NewCompute(gate *Gate, runner Runner, store ObjectStore, secrets Secrets, records AnnotationRecords, bus Publisher, log *slog.Logger) *Compute {
	if log == nil {
		log = slog.Default()
	}
	return &Compute{
		gate:    gate,
		runner:  runner,
		store:   store,
		secrets: secrets,
		records: records,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}
}

// Handle processes one compute-start delivery. A duplicate delivery is a
// successful no-op: the original delivery owns the downstream publish.
func (c *Compute) Handle(ctx context.Context, env domain.Envelope, deliveryID string) error {
	if c.gate.Admit(ctx, deliveryID, env.ProjectID) == AdmissionDuplicate {
		c.log.Warn("duplicate delivery skipped",
			slog.String("task_id", env.TaskID),
			slog.String("delivery_id", deliveryID))
		return nil
	}

	var (
		results map[string]any
		err     error
	)
	if env.TaskType.IsAnnotation() {
		results, err = c.annotate(ctx, env)
	} else {
		results, err = c.runPipeline(ctx, env)
	}
	if err != nil {
		return publishFault(ctx, c.bus, c.log, env, domain.StageCompute, err)
	}

	next, err := env.WithResults(results)
	if err != nil {
		return publishFault(ctx, c.bus, c.log, env, domain.StageCompute, domain.ContractViolation(err))
	}

	channel := domain.NextChannel(domain.StageCompute, env.TaskType)
	if err := c.bus.Publish(ctx, channel, next); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	c.log.Info("compute finished",
		slog.String("task_id", env.TaskID),
		slog.String("task_type", string(env.TaskType)))
	return nil
}

func (c *Compute) runPipeline(ctx context.Context, env domain.Envelope) (map[string]any, error) {
	args, err := PipelineArgs(env)
	if err != nil {
		return nil, domain.ComputeError(err)
	}
	results, err := c.runner.Run(ctx, args)
	if err != nil {
		return nil, domain.ComputeError(fmt.Errorf("job runner: %w", err))
	}
	return SamplePredictions(results, PredictionSampleSize), nil
}

func (c *Compute) annotate(ctx context.Context, env domain.Envelope) (map[string]any, error) {
	imagePath := InputObjectPath(env.TaskID, env.DatasetReference, AnnotationImageName)
	if _, err := c.store.FetchObject(ctx, env.BucketName, imagePath); err != nil {
		return nil, domain.FetchError(0, fmt.Errorf("fetch annotation input %s: %w", imagePath, err))
	}

	if c.secrets == nil {
		return nil, domain.ComputeError(errors.New("no secret source configured for annotation"))
	}
	args := map[string]string{
		"bucket_name":      env.BucketName,
		"bucket_dir":       env.TaskID,
		"input_image_file": imagePath,
	}
	for arg, secret := range map[string]string{
		"google_api_key":   SecretVisionAPIKey,
		"google_engine_id": SecretVisionEngineID,
		"key_json":         SecretVisionKeyJSON,
	} {
		value, err := c.secrets.Access(ctx, secret)
		if err != nil {
			return nil, domain.ComputeError(fmt.Errorf("access secret %s: %w", secret, err))
		}
		args[arg] = value
	}

	output, err := c.runner.Run(ctx, args)
	if err != nil {
		return nil, domain.ComputeError(fmt.Errorf("annotation runner: %w", err))
	}
	annotations, err := json.Marshal(output["annotation"])
	if err != nil {
		return nil, domain.ComputeError(fmt.Errorf("encode annotations: %w", err))
	}

	annotationPath := InputObjectPath(env.TaskID, "", annotationFileName)
	if err := c.store.Store(ctx, env.BucketName, annotationPath, annotations, "application/json"); err != nil {
		return nil, domain.StoreError(fmt.Errorf("store %s: %w", annotationPath, err))
	}
	if c.records != nil {
		rec := domain.AnnotationRecord{
			TaskID:          env.TaskID,
			BucketName:      env.BucketName,
			BucketDir:       env.TaskID,
			ImageName:       AnnotationImageName,
			AnnotationName:  annotationFileName,
			AnnotationTypes: []string{"reverse_image_search"},
			CreatedAt:       c.now(),
		}
		if err := c.records.Create(ctx, rec); err != nil {
			// Bookkeeping only; the annotation itself succeeded.
			c.log.Warn("failed to persist annotation record",
				slog.String("task_id", env.TaskID),
				slog.String("error", err.Error()))
		}
	}

	return map[string]any{"annotation": string(annotations)}, nil
}

// PipelineArgs builds the job runner argument set from the envelope.
func PipelineArgs(env domain.Envelope) (map[string]string, error) {
	args := map[string]string{
		"bucket_name":     env.BucketName,
		"bucket_dir":      env.TaskID,
		"task_name":       string(env.TaskType),
		"dataset_name":    env.DatasetReference,
		"input_data_type": env.InputDataType,
	}
	if env.ModelID != "" {
		args["model_id"] = env.ModelID
	}
	if env.InputDataType == "csv" {
		cfg, err := json.Marshal(env.CSVDataConfig)
		if err != nil {
			return nil, fmt.Errorf("encode csv config: %w", err)
		}
		args["csv_data_config"] = string(cfg)
	}
	if len(env.Explainability) > 0 {
		args["explainability"] = strings.Join(env.Explainability, " ")
	}
	return args, nil
}

// SamplePredictions truncates an inline inference prediction list of size or
// larger to its first size entries under the key "sampled_predictions". All
// sibling keys are preserved; smaller lists pass through untouched. The input
// maps are not mutated.
func SamplePredictions(results map[string]any, size int) map[string]any {
	inference, ok := results["inference"].(map[string]any)
	if !ok {
		return results
	}
	predictions, ok := inference["predictions"].([]any)
	if !ok || len(predictions) < size {
		return results
	}

	sampledInference := make(map[string]any, len(inference))
	for k, v := range inference {
		sampledInference[k] = v
	}
	delete(sampledInference, "predictions")
	sampledInference["sampled_predictions"] = predictions[:size]

	out := make(map[string]any, len(results))
	for k, v := range results {
		out[k] = v
	}
	out["inference"] = sampledInference
	return out
}
