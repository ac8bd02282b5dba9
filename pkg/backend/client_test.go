package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"animbridge/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), config.BackendConfig{URL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestGenerateSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "a bouncing ball" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(GenerateResponse{
			SignedURL:        "https://storage.example/scene.glb",
			GenerationStatus: "completed",
		})
	})

	resp, err := c.Generate(context.Background(), GenerateRequest{Prompt: "a bouncing ball"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Succeeded() {
		t.Fatalf("response not successful: %+v", resp)
	}
	if resp.SignedURL != "https://storage.example/scene.glb" {
		t.Errorf("signed url = %q", resp.SignedURL)
	}
}

func TestGenerateStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := c.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *StatusError", err)
	}
	if se.StatusCode() != http.StatusServiceUnavailable {
		t.Errorf("status = %d", se.StatusCode())
	}
}

func TestMissingURLIsConfigError(t *testing.T) {
	_, err := New(context.Background(), config.BackendConfig{})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("got %v, want *ConfigError", err)
	}
}

func TestArtifactStream(t *testing.T) {
	payload := []byte("glTF-binary-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "model/gltf-binary")
		w.Write(payload)
	}))
	defer srv.Close()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	body, ct, err := c.Artifact(context.Background(), srv.URL+"/scene.glb")
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	if ct != "model/gltf-binary" {
		t.Errorf("content type = %q", ct)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("artifact bytes = %q", got)
	}
}

func TestArtifactNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, _, err := c.Artifact(context.Background(), srv.URL+"/missing.glb")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *StatusError", err)
	}
	if se.StatusCode() != http.StatusNotFound {
		t.Errorf("status = %d", se.StatusCode())
	}
}
