package domain

import (
	"fmt"
)

// Envelope is the canonical task record passed between pipeline stages. Every
// stage receives a snapshot and produces a new snapshot; in-flight copies are
// never shared.
type Envelope struct {
	ProjectID        string         `json:"project_id"`
	TaskID           string         `json:"task_id"`
	SignedFileURL    string         `json:"signed_file_url"`
	BucketName       string         `json:"bucket_name"`
	TaskType         TaskKind       `json:"task_type"`
	OutputURL        string         `json:"output_url"`
	InputDataType    string         `json:"input_data_type"`
	CSVDataConfig    map[string]any `json:"csv_data_config"`
	Explainability   []string       `json:"explainability"`
	DatasetReference string         `json:"dataset_reference"`
	ModelID          string         `json:"model_id"`
	Results          map[string]any `json:"results"`
	ErrorMessage     string         `json:"error_message"`
	ErrorCode        int            `json:"error_code"`
}

// Validate checks the fields every stage depends on. Task kind must be a
// member of the closed enum; the two URLs and identifiers must be present.
func (e Envelope) Validate() error {
	if e.TaskID == "" {
		return fmt.Errorf("%w: task_id is required", ErrMalformedEnvelope)
	}
	if e.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrMalformedEnvelope)
	}
	if !e.TaskType.Valid() {
		return fmt.Errorf("%w: unknown task_type %q", ErrMalformedEnvelope, e.TaskType)
	}
	if e.SignedFileURL == "" {
		return fmt.Errorf("%w: signed_file_url is required", ErrMalformedEnvelope)
	}
	if e.OutputURL == "" {
		return fmt.Errorf("%w: output_url is required", ErrMalformedEnvelope)
	}
	return nil
}

// HasFault reports whether the envelope is on the fault path. A faulted
// envelope never re-enters the main pipeline.
func (e Envelope) HasFault() bool {
	return e.ErrorMessage != "" || e.ErrorCode != 0
}

// Faulted returns a copy carrying the fault fields for the given stage
// failure. Results accumulated so far are dropped; exactly one of result or
// fault may be active.
func (e Envelope) Faulted(stage Stage, err error) Envelope {
	out := e
	out.Results = nil
	out.ErrorMessage = fmt.Sprintf("Error in %s. %v", stage, err)
	out.ErrorCode = FaultCode(err)
	return out
}

// WithResults returns a copy carrying the compute output. Attaching results
// to an already-faulted envelope is refused.
func (e Envelope) WithResults(results map[string]any) (Envelope, error) {
	if e.HasFault() {
		return e, ErrFaultSet
	}
	out := e
	out.Results = results
	return out, nil
}
