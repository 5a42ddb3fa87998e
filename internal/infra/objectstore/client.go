package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"conveyor/internal/config"
)

// Client talks to a GCS-compatible storage surface plus a sidecar URL signing
// service. All calls go over plain HTTP with a bearer token.
type Client struct {
	storageEndpoint string
	signerEndpoint  string
	token           string
	httpClient      *http.Client
}

func New(storageEndpoint, signerEndpoint, token string) *Client {
	return &Client{
		storageEndpoint: strings.TrimRight(storageEndpoint, "/"),
		signerEndpoint:  strings.TrimRight(signerEndpoint, "/"),
		token:           token,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
	}
}

func NewFromConfig(cfg config.Config) *Client {
	return New(cfg.StorageEndpoint, cfg.SignerEndpoint, cfg.GCPAccessToken)
}

// Fetch retrieves an arbitrary external URL. The status return is the upstream
// HTTP status when a response arrived, 0 on transport failure.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("fetch failed: status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}

// FetchObject downloads one object from a bucket.
func (c *Client) FetchObject(ctx context.Context, bucket, object string) ([]byte, error) {
	if bucket == "" || object == "" {
		return nil, errors.New("bucket and object are required")
	}
	path := fmt.Sprintf("/storage/v1/b/%s/o/%s?alt=media", url.PathEscape(bucket), url.PathEscape(object))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.storageEndpoint+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("object download failed: status %d", resp.StatusCode)
	}
	return body, nil
}

// Store uploads data to bucket/object with a media upload.
func (c *Client) Store(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	if bucket == "" || object == "" {
		return errors.New("bucket and object are required")
	}
	path := fmt.Sprintf("/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		url.PathEscape(bucket), url.QueryEscape(object))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.storageEndpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("object upload failed: status %d", resp.StatusCode)
	}
	return nil
}

// SignDownload asks the signing service for a time-limited download URL. The
// service responds with the URL as a plain-text body.
func (c *Client) SignDownload(ctx context.Context, bucket, object string, ttl time.Duration) (string, error) {
	if c.signerEndpoint == "" {
		return "", errors.New("signer endpoint not configured")
	}
	q := url.Values{}
	q.Set("bucket", bucket)
	q.Set("object", object)
	q.Set("ttl", ttl.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.signerEndpoint+"/sign?"+q.Encode(), nil)
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
		return "", fmt.Errorf("sign failed: status %d", resp.StatusCode)
	}
	signed := strings.TrimSpace(string(body))
	if signed == "" {
		return "", errors.New("signer returned empty url")
	}
	return signed, nil
}
