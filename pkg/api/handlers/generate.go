package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"animbridge/pkg/backend"
	"animbridge/pkg/logger"
	"animbridge/pkg/retry"
	"animbridge/pkg/telemetry"
	"animbridge/pkg/utils"
	"animbridge/pkg/validation"
)

// RegisterGenerate registers the synchronous, non-streaming generation
// endpoint.
func (h *H) RegisterGenerate(r *mux.Router) {
	r.HandleFunc("/generate", h.generate).Methods(http.MethodPost)
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	SignedURL        string `json:"signed_url"`
	GenerationStatus string `json:"generation_status"`
	Error            string `json:"error,omitempty"`
}

// generate runs one blocking generation with no thread bookkeeping. Backend
// failures that survive all retries come back as a JSON error body, not a
// transport error, so simple clients can render them.
func (h *H) generate(w http.ResponseWriter, r *http.Request) {
	if h.Backend == nil {
		http.Error(w, `{"error":"backend service is not configured"}`, http.StatusInternalServerError)
		return
	}
	if h.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePrompt(req.Prompt); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	resp, err := retry.Do(r.Context(), h.Retry, func(ctx context.Context) (backend.GenerateResponse, error) {
		return h.Backend.Generate(ctx, backend.GenerateRequest{Prompt: req.Prompt})
	}, func(a retry.Attempt) {
		telemetry.ObserveRetry()
		logger.Warn("generate_retry", "attempt", a.Attempt, "max", a.MaxAttempts, "error", a.LastErr)
	})
	if err != nil {
		var ce *backend.ConfigError
		if errors.As(err, &ce) {
			http.Error(w, `{"error":"`+ce.Error()+`"}`, http.StatusInternalServerError)
			return
		}
		telemetry.ObserveBackendCall("failed")
		_ = utils.JSONWrite(w, http.StatusOK, generateResponse{
			GenerationStatus: "error",
			Error:            err.Error(),
		})
		return
	}
	telemetry.ObserveBackendCall(resp.GenerationStatus)
	_ = utils.JSONWrite(w, http.StatusOK, generateResponse{
		SignedURL:        resp.SignedURL,
		GenerationStatus: resp.GenerationStatus,
		Error:            resp.Error,
	})
}
