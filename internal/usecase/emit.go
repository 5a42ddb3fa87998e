package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conveyor/internal/domain"
)

// SignedURLTTL is the validity window of the retrievable links in a success
// response.
const SignedURLTTL = 12 * time.Hour

// CallbackResponse is the caller-facing terminal message posted to the
// output URL.
type CallbackResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type inferenceData struct {
	Predictions  string  `json:"predictions"`
	Metrics      *string `json:"metrics"`
	Explanations *string `json:"explanations"`
}

type trainingData struct {
	ModelID      any     `json:"model_id"`
	Explanations *string `json:"explanations"`
}

type annotationData struct {
	Annotation any    `json:"annotation"`
	TraceID    string `json:"trace_id"`
}

// Emit turns internal results into the caller-facing response contract and
// delivers it. Storage references become time-bounded links; missing optional
// fields surface as explicit nulls, never omitted keys.
type Emit struct {
	store    ObjectStore
	callback CallbackPoster
	bus      Publisher
	log      *slog.Logger
}

func NewEmit(store ObjectStore, callback CallbackPoster, bus Publisher, log *slog.Logger) *Emit {
	if log == nil {
		log = slog.Default()
	}
	return &Emit{store: store, callback: callback, bus: bus, log: log}
}

// Handle consumes one compute-done envelope. A result carrying none of the
// known markers is a contract violation and is routed to fault rather than
// delivered as a malformed success.
func (e *Emit) Handle(ctx context.Context, env domain.Envelope) error {
	response, err := e.buildResponse(ctx, env)
	if err != nil {
		return publishFault(ctx, e.bus, e.log, env, domain.StageEmit, err)
	}

	if err := e.callback.Post(ctx, env.OutputURL, response); err != nil {
		cause := domain.DeliveryError(0, fmt.Errorf("post callback %s: %w", env.OutputURL, err))
		return publishFault(ctx, e.bus, e.log, env, domain.StageEmit, cause)
	}
	e.log.Info("result delivered",
		slog.String("task_id", env.TaskID),
		slog.String("output_url", env.OutputURL))

	channel := domain.NextChannel(domain.StageEmit, env.TaskType)
	if err := e.bus.Publish(ctx, channel, env); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (e *Emit) buildResponse(ctx context.Context, env domain.Envelope) (CallbackResponse, error) {
	results := env.Results
	if inference, ok := results["inference"].(map[string]any); ok {
		data, err := e.inferenceResponse(ctx, inference)
		if err != nil {
			return CallbackResponse{}, err
		}
		return CallbackResponse{Status: "success", Data: data}, nil
	}
	if training, ok := results["training"].(map[string]any); ok {
		data, err := e.trainingResponse(ctx, training)
		if err != nil {
			return CallbackResponse{}, err
		}
		return CallbackResponse{Status: "success", Data: data}, nil
	}
	if annotation, ok := results["annotation"]; ok {
		return CallbackResponse{
			Status: "success",
			Data:   annotationData{Annotation: annotation, TraceID: env.TaskID},
		}, nil
	}
	return CallbackResponse{}, domain.ContractViolation(fmt.Errorf("unrecognized result shape for task %s", env.TaskID))
}

func (e *Emit) inferenceResponse(ctx context.Context, inference map[string]any) (inferenceData, error) {
	bucket, ok := inference["bucket_name"].(string)
	if !ok {
		return inferenceData{}, domain.ContractViolation(fmt.Errorf("inference result missing bucket_name"))
	}
	ref, ok := inference["predictions"].(string)
	if !ok {
		return inferenceData{}, domain.ContractViolation(fmt.Errorf("inference result missing predictions reference"))
	}
	predictions, err := e.store.SignDownload(ctx, bucket, ref, SignedURLTTL)
	if err != nil {
		return inferenceData{}, domain.StoreError(fmt.Errorf("sign predictions url: %w", err))
	}

	metrics, err := e.optionalSignedURL(ctx, bucket, inference, "metrics")
	if err != nil {
		return inferenceData{}, err
	}
	explanations, err := e.optionalSignedURL(ctx, bucket, inference, "explanations")
	if err != nil {
		return inferenceData{}, err
	}
	return inferenceData{Predictions: predictions, Metrics: metrics, Explanations: explanations}, nil
}

func (e *Emit) trainingResponse(ctx context.Context, training map[string]any) (trainingData, error) {
	modelID, ok := training["model_id"]
	if !ok || modelID == nil {
		return trainingData{}, domain.ContractViolation(fmt.Errorf("training result missing model_id"))
	}
	bucket, _ := training["bucket_name"].(string)
	explanations, err := e.optionalSignedURL(ctx, bucket, training, "explanations")
	if err != nil {
		return trainingData{}, err
	}
	return trainingData{ModelID: modelID, Explanations: explanations}, nil
}

// optionalSignedURL signs the referenced object when the key is present and
// non-empty; an absent reference yields nil, which serializes as null.
func (e *Emit) optionalSignedURL(ctx context.Context, bucket string, m map[string]any, key string) (*string, error) {
	ref, ok := m[key].(string)
	if !ok || ref == "" {
		return nil, nil
	}
	url, err := e.store.SignDownload(ctx, bucket, ref, SignedURLTTL)
	if err != nil {
		return nil, domain.StoreError(fmt.Errorf("sign %s url: %w", key, err))
	}
	return &url, nil
}
