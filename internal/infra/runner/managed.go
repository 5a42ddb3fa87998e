package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conveyor/internal/config"
)

// Managed submits the job to an external job service and polls the returned
// handle until the run reaches a terminal state. The job's structured output
// travels back as metadata on the final task detail.
type Managed struct {
	endpoint     string
	token        string
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
}

func NewManaged(cfg config.Config) (*Managed, error) {
	if cfg.ManagedJobEndpoint == "" {
		return nil, errors.New("managed job endpoint is required")
	}
	return &Managed{
		endpoint:     strings.TrimRight(cfg.ManagedJobEndpoint, "/"),
		token:        cfg.GCPAccessToken,
		pollInterval: cfg.ManagedPollInterval,
		pollTimeout:  cfg.ManagedPollTimeout,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type jobStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
	Tasks []struct {
		Metadata map[string]any `json:"metadata"`
	} `json:"task_details"`
}

func (m *Managed) Run(ctx context.Context, args map[string]string) (map[string]any, error) {
	handle, err := m.submit(ctx, args)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.pollTimeout)
	for {
		status, err := m.poll(ctx, handle)
		if err != nil {
			return nil, err
		}
		switch status.State {
		case "SUCCEEDED":
			return extractOutput(status)
		case "FAILED", "CANCELLED":
			return nil, fmt.Errorf("managed job %s: %s", strings.ToLower(status.State), status.Error)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("managed job timed out after %s", m.pollTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

func (m *Managed) submit(ctx context.Context, args map[string]string) (string, error) {
	payload, err := json.Marshal(map[string]any{"args": args})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/v1/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("job submit failed: status %d", resp.StatusCode)
	}

	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", err
	}
	if created.Name == "" {
		return "", errors.New("job service returned no handle")
	}
	return created.Name, nil
}

func (m *Managed) poll(ctx context.Context, handle string) (jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint+"/v1/jobs/"+handle, nil)
	if err != nil {
		return jobStatus{}, err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return jobStatus{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jobStatus{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return jobStatus{}, fmt.Errorf("job poll failed: status %d", resp.StatusCode)
	}

	var status jobStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return jobStatus{}, err
	}
	return status, nil
}

// extractOutput digs the job's structured output out of the terminal task
// metadata. A succeeded run with no output is still a failure for us.
func extractOutput(status jobStatus) (map[string]any, error) {
	for _, task := range status.Tasks {
		raw, ok := task.Metadata["output"]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case map[string]any:
			return v, nil
		case string:
			var out map[string]any
			if err := json.Unmarshal([]byte(v), &out); err != nil {
				return nil, fmt.Errorf("managed job output is not valid JSON: %w", err)
			}
			return out, nil
		}
	}
	return nil, errors.New("managed job succeeded but produced no output")
}
