// Package backend talks to the generation service that produces animation
// artifacts. Requests to Cloud Run deployments are authenticated with an
// identity token minted for the service URL; plain deployments are called
// directly.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"animbridge/pkg/config"
	"animbridge/pkg/logger"
)

// ErrNotConfigured is returned when no backend URL is set.
var ErrNotConfigured = &ConfigError{Reason: "backend service URL is not configured"}

// ConfigError marks a misconfiguration that no retry can fix.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return e.Reason }

// StatusError is a non-2xx backend response. It carries the HTTP status so
// the retry layer can classify it.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) StatusCode() int { return e.Status }

// GenerateRequest is the body sent to the generation endpoint.
type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	ThreadID string `json:"thread_id,omitempty"`
}

// GenerateResponse is the backend's terminal answer for one generation run.
// GenerationStatus is "completed", "conversation" or "error"; Message carries
// the agent's text reply when there is one.
type GenerateResponse struct {
	SignedURL        string `json:"signed_url"`
	GenerationStatus string `json:"generation_status"`
	Message          string `json:"message,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Succeeded reports whether the run produced an artifact.
func (r GenerateResponse) Succeeded() bool {
	return r.GenerationStatus == "completed" && r.SignedURL != ""
}

// Client calls the generation backend.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New builds a Client from config. When the backend is a Cloud Run service
// (or an explicit audience is set), the HTTP client attaches Google identity
// tokens with the service URL as audience.
func New(ctx context.Context, cfg config.BackendConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(cfg.URL, "/")
	timeout := time.Duration(cfg.Timeout)
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	audience := cfg.Audience
	if audience == "" && strings.Contains(base, ".run.app") {
		audience = base
	}

	httpc := &http.Client{Timeout: timeout}
	if audience != "" {
		c, err := idtoken.NewClient(ctx, audience)
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("identity token client for %s: %v", audience, err)}
		}
		c.Timeout = timeout
		httpc = c
		logger.Info("backend_auth_enabled", "audience", audience)
	}
	return &Client{baseURL: base, httpc: httpc}, nil
}

// Generate runs one synchronous generation call. Non-2xx responses come back
// as *StatusError; the caller decides whether to retry.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("marshal generate request: %w", err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return GenerateResponse{}, err
	}
	hr.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(hr)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return GenerateResponse{}, &StatusError{Status: resp.StatusCode, Body: string(b)}
	}

	var out GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return GenerateResponse{}, fmt.Errorf("decode backend response: %w", err)
	}
	return out, nil
}

// Artifact streams the rendered artifact behind a signed URL, using the
// backend's credentials. The caller must close the body.
func (c *Client) Artifact(ctx context.Context, url string) (io.ReadCloser, string, error) {
	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpc.Do(hr)
	if err != nil {
		return nil, "", fmt.Errorf("artifact request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, "", &StatusError{Status: resp.StatusCode, Body: string(b)}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "model/gltf-binary"
	}
	return resp.Body, ct, nil
}
