package bus

import (
	"bytes"
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
	"conveyor/internal/domain"
)

// PubSub publishes envelopes to broker topics over the REST surface. Each
// channel name is a topic; subscriptions push back into the stage endpoints.
type PubSub struct {
	endpoint   string
	projectID  string
	token      string
	httpClient *http.Client
}

func NewPubSub(cfg config.Config) (*PubSub, error) {
	if cfg.GCPProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID is required for the pubsub bus")
	}
	return &PubSub{
		endpoint:   strings.TrimRight(cfg.PubSubEndpoint, "/"),
		projectID:  cfg.GCPProjectID,
		token:      cfg.GCPAccessToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, channel domain.Channel, env domain.Envelope) error {
	raw, err := env.Encode()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"messages": []map[string]string{
			{"data": base64.StdEncoding.EncodeToString(raw)},
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/projects/%s/topics/%s:publish", p.endpoint, p.projectID, channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("publish to %s failed: status %d", channel, resp.StatusCode)
	}
	return nil
}
