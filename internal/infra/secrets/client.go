package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"conveyor/internal/config"
)

// Client resolves secret versions over the Secret Manager REST surface.
type Client struct {
	endpoint   string
	projectID  string
	token      string
	httpClient *http.Client
}

func New(endpoint, projectID, token string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		projectID:  projectID,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func NewFromConfig(cfg config.Config) (*Client, error) {
	if cfg.GCPProjectID == "" || cfg.GCPAccessToken == "" {
		return nil, errors.New("GCP_PROJECT_ID and GCP_ACCESS_TOKEN are required")
	}
	return New(cfg.SecretManagerEndpoint, cfg.GCPProjectID, cfg.GCPAccessToken), nil
}

// Access returns the latest version of the named secret.
func (c *Client) Access(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", errors.New("secret name is required")
	}
	path := fmt.Sprintf("/v1/projects/%s/secrets/%s/versions/latest:access", c.projectID, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("secret manager failed: status %d", resp.StatusCode)
	}

	var parsed struct {
		Payload struct {
			Data string `json:"data"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Payload.Data == "" {
		return "", errors.New("secret payload missing")
	}
	raw, err := base64.StdEncoding.DecodeString(parsed.Payload.Data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
