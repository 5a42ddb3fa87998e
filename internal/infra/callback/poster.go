package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Poster delivers terminal responses to caller-supplied URLs.
type Poster struct {
	httpClient *http.Client
}

func NewPoster() *Poster {
	return &Poster{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Poster) Post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback rejected: status %d", resp.StatusCode)
	}
	return nil
}
