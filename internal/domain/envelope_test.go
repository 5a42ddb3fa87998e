package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolveTaskKind_UpgradesOnExplainability(t *testing.T) {
	cases := []struct {
		base           TaskKind
		explainability []string
		want           TaskKind
	}{
		{TaskInference, nil, TaskInference},
		{TaskInference, []string{}, TaskInference},
		{TaskInference, []string{"shap"}, TaskInferenceExplainability},
		{TaskTraining, []string{"shap", "lime"}, TaskTrainingExplainability},
		{TaskTraining, nil, TaskTraining},
		{TaskAnnotation, []string{"shap"}, TaskAnnotation},
	}
	for _, tc := range cases {
		got := ResolveTaskKind(tc.base, tc.explainability)
		if got != tc.want {
			t.Fatalf("ResolveTaskKind(%s, %v) = %s, want %s", tc.base, tc.explainability, got, tc.want)
		}
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	env := Envelope{
		ProjectID:        "proj-dev",
		TaskID:           "abc123",
		SignedFileURL:    "https://example.com/input.json",
		BucketName:       "api-input-dev",
		TaskType:         TaskInferenceExplainability,
		OutputURL:        "https://callback.example.com/result",
		InputDataType:    "csv",
		CSVDataConfig:    map[string]any{"delimiter": ",", "header": true},
		Explainability:   []string{"shap"},
		DatasetReference: "used_dataset",
		ModelID:          "model-7",
	}

	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(env, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, env)
	}
}

func TestEnvelope_RoundTripPreservesNullOptionals(t *testing.T) {
	env := Envelope{
		ProjectID:     "proj-dev",
		TaskID:        "abc123",
		SignedFileURL: "https://example.com/img.png",
		TaskType:      TaskAnnotation,
		OutputURL:     "https://callback.example.com/result",
	}

	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.CSVDataConfig != nil || decoded.Results != nil || decoded.Explainability != nil {
		t.Fatalf("expected nil optionals after round trip, got %+v", decoded)
	}
	if !reflect.DeepEqual(env, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, env)
	}
}

func TestEnvelope_EncodeIsDeterministic(t *testing.T) {
	env := Envelope{
		ProjectID:     "proj-dev",
		TaskID:        "abc123",
		SignedFileURL: "https://example.com/input.json",
		TaskType:      TaskInference,
		OutputURL:     "https://callback.example.com/result",
		CSVDataConfig: map[string]any{"b": 1, "a": 2, "c": 3},
	}
	first, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 20; i++ {
		next, err := env.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if string(first) != string(next) {
			t.Fatalf("encoding not deterministic:\n%s\n%s", first, next)
		}
	}
}

func TestDecodePush(t *testing.T) {
	env := Envelope{
		ProjectID:     "proj-dev",
		TaskID:        "abc123",
		SignedFileURL: "https://example.com/img.png",
		TaskType:      TaskAnnotation,
		OutputURL:     "https://callback.example.com/result",
	}
	body, err := EncodePush(env, "42")
	if err != nil {
		t.Fatalf("encode push: %v", err)
	}

	decoded, messageID, err := DecodePush(body)
	if err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if messageID != "42" {
		t.Fatalf("expected message id 42, got %q", messageID)
	}
	if !reflect.DeepEqual(env, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, env)
	}
}

func TestDecodePush_MalformedIsRejected(t *testing.T) {
	cases := map[string][]byte{
		"not json":        []byte("not json"),
		"empty data":      []byte(`{"message":{"data":"","message_id":"1"}}`),
		"bad base64":      []byte(`{"message":{"data":"%%%","message_id":"1"}}`),
		"invalid payload": []byte(`{"message":{"data":"bm90IGpzb24=","message_id":"1"}}`),
	}
	for name, body := range cases {
		if _, _, err := DecodePush(body); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("%s: expected ErrMalformedEnvelope, got %v", name, err)
		}
	}
}

func TestDecodeEnvelope_RejectsUnknownTaskType(t *testing.T) {
	raw := []byte(`{"project_id":"p","task_id":"t","signed_file_url":"https://x/in","output_url":"https://cb/x","task_type":"SOMETHING_ELSE"}`)
	if _, err := DecodeEnvelope(raw); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
}

func TestEnvelope_FaultContainment(t *testing.T) {
	env := Envelope{
		ProjectID:     "proj-dev",
		TaskID:        "abc123",
		SignedFileURL: "https://example.com/input.json",
		TaskType:      TaskInference,
		OutputURL:     "https://callback.example.com/result",
		Results:       map[string]any{"inference": map[string]any{}},
	}

	faulted := env.Faulted(StageCompute, ComputeError(errors.New("job exploded")))
	if !faulted.HasFault() {
		t.Fatalf("expected fault to be set")
	}
	if faulted.Results != nil {
		t.Fatalf("faulted envelope must not carry results, got %v", faulted.Results)
	}
	if faulted.ErrorCode != 500 {
		t.Fatalf("expected error code 500, got %d", faulted.ErrorCode)
	}

	if _, err := faulted.WithResults(map[string]any{"inference": map[string]any{}}); !errors.Is(err, ErrFaultSet) {
		t.Fatalf("expected ErrFaultSet, got %v", err)
	}

	// The original snapshot is untouched.
	if env.HasFault() {
		t.Fatalf("source envelope mutated by Faulted")
	}
}

func TestEnvelope_FaultCodeMirrorsFetchFailure(t *testing.T) {
	env := Envelope{
		ProjectID:     "proj-dev",
		TaskID:        "abc123",
		SignedFileURL: "https://unreachable.example.com/input.json",
		TaskType:      TaskInference,
		OutputURL:     "https://callback.example.com/result",
	}
	faulted := env.Faulted(StageTransfer, FetchError(404, errors.New("source returned 404")))
	if faulted.ErrorCode != 404 {
		t.Fatalf("expected error code 404, got %d", faulted.ErrorCode)
	}
}
