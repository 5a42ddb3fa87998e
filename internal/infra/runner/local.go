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
)

// Local invokes the job executable behind a plain HTTP endpoint and returns
// its JSON output directly. Used in local mode and by integration setups.
type Local struct {
	endpoint   string
	httpClient *http.Client
}

func NewLocal(endpoint string) (*Local, error) {
	if endpoint == "" {
		return nil, errors.New("runner endpoint is required")
	}
	return &Local{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (l *Local) Run(ctx context.Context, args map[string]string) (map[string]any, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/run", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runner failed: status %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("runner returned invalid output: %w", err)
	}
	return out, nil
}
