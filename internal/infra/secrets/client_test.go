package secrets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestClient_Access(t *testing.T) {
	const token = "token-123"
	client := New("https://secretmanager.example", "project-1", token)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				t.Fatalf("unexpected auth header: %s", r.Header.Get("Authorization"))
			}
			if r.URL.Path != "/v1/projects/project-1/secrets/API_KEY/versions/latest:access" {
				t.Fatalf("unexpected path: %s", r.URL.Path)
			}
			resp := map[string]any{
				"payload": map[string]string{
					"data": base64.StdEncoding.EncodeToString([]byte("hunter2")),
				},
			}
			body, _ := json.Marshal(resp)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader(body)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	value, err := client.Access(context.Background(), "API_KEY")
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if value != "hunter2" {
		t.Fatalf("value = %q", value)
	}
}

func TestClient_AccessErrors(t *testing.T) {
	client := New("https://secretmanager.example", "project-1", "token")
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(bytes.NewReader(nil)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if _, err := client.Access(context.Background(), "MISSING"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
	if _, err := client.Access(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
