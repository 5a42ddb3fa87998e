package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"conveyor/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, v any) *http.Response {
	body, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestLocal_Run(t *testing.T) {
	local, err := NewLocal("http://runner.local")
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	local.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/run" {
				t.Fatalf("path = %s", r.URL.Path)
			}
			var args map[string]string
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				t.Fatalf("decode args: %v", err)
			}
			if args["task_name"] != "task123" {
				t.Fatalf("task_name = %q", args["task_name"])
			}
			return jsonResponse(http.StatusOK, map[string]any{
				"inference": map[string]any{"predictions": "task123/predictions.json"},
			}), nil
		}),
	}

	out, err := local.Run(context.Background(), map[string]string{"task_name": "task123"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := out["inference"]; !ok {
		t.Fatalf("missing inference key: %v", out)
	}
}

func TestLocal_RunNon200(t *testing.T) {
	local, _ := NewLocal("http://runner.local")
	local.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, map[string]string{"error": "boom"}), nil
		}),
	}
	if _, err := local.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func newTestManaged(t *testing.T, transport roundTripFunc) *Managed {
	t.Helper()
	m, err := NewManaged(config.Config{
		ManagedJobEndpoint:  "http://jobs.local",
		GCPAccessToken:      "tok",
		ManagedPollInterval: time.Millisecond,
		ManagedPollTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("new managed: %v", err)
	}
	m.httpClient = &http.Client{Transport: transport}
	return m
}

func TestManaged_RunPollsToCompletion(t *testing.T) {
	polls := 0
	m := newTestManaged(t, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodPost {
			return jsonResponse(http.StatusOK, map[string]string{"name": "job-42"}), nil
		}
		if !strings.HasSuffix(r.URL.Path, "/v1/jobs/job-42") {
			t.Fatalf("poll path = %s", r.URL.Path)
		}
		polls++
		if polls < 3 {
			return jsonResponse(http.StatusOK, map[string]any{"name": "job-42", "state": "RUNNING"}), nil
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"name":  "job-42",
			"state": "SUCCEEDED",
			"task_details": []map[string]any{
				{"metadata": map[string]any{
					"output": map[string]any{"training": map[string]any{"model_id": "m-1"}},
				}},
			},
		}), nil
	})

	out, err := m.Run(context.Background(), map[string]string{"task_name": "t1"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if polls != 3 {
		t.Fatalf("polls = %d, want 3", polls)
	}
	if _, ok := out["training"]; !ok {
		t.Fatalf("missing training output: %v", out)
	}
}

func TestManaged_RunSucceededWithoutOutput(t *testing.T) {
	m := newTestManaged(t, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodPost {
			return jsonResponse(http.StatusOK, map[string]string{"name": "job-7"}), nil
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"name":         "job-7",
			"state":        "SUCCEEDED",
			"task_details": []map[string]any{{"metadata": map[string]any{}}},
		}), nil
	})

	if _, err := m.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for succeeded run without output")
	}
}

func TestManaged_RunFailedJob(t *testing.T) {
	m := newTestManaged(t, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodPost {
			return jsonResponse(http.StatusOK, map[string]string{"name": "job-8"}), nil
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"name": "job-8", "state": "FAILED", "error": "oom",
		}), nil
	})

	_, err := m.Run(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "oom") {
		t.Fatalf("err = %v, want failure containing job error", err)
	}
}

func TestManaged_OutputAsJSONString(t *testing.T) {
	m := newTestManaged(t, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodPost {
			return jsonResponse(http.StatusOK, map[string]string{"name": "job-9"}), nil
		}
		return jsonResponse(http.StatusOK, map[string]any{
			"name":  "job-9",
			"state": "SUCCEEDED",
			"task_details": []map[string]any{
				{"metadata": map[string]any{"output": `{"annotation":{"boxes":[]}}`}},
			},
		}), nil
	})

	out, err := m.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := out["annotation"]; !ok {
		t.Fatalf("missing annotation output: %v", out)
	}
}
