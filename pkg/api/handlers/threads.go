package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"animbridge/pkg/backend"
	"animbridge/pkg/config"
	"animbridge/pkg/logger"
	"animbridge/pkg/models"
	"animbridge/pkg/orchestrator"
	"animbridge/pkg/retry"
	"animbridge/pkg/store"
	"animbridge/pkg/stream"
	"animbridge/pkg/telemetry"
	"animbridge/pkg/utils"
	"animbridge/pkg/validation"
)

// NewThreadID is the sentinel path id that mints a fresh thread.
const NewThreadID = "new"

// H bundles the dependencies of the HTTP surface.
type H struct {
	Store store.ThreadStore
	Orch  *orchestrator.Orchestrator
	// Backend is used for the artifact proxy and the synchronous generate
	// endpoint; nil when no backend is configured.
	Backend *backend.Client
	// Retry tunes the backoff around the synchronous generate endpoint.
	Retry retry.Config
	// Retention drives the on-demand purge admin route.
	Retention config.RetentionConfig
	// MaxBody caps request body size on the POST routes; zero means no limit.
	MaxBody int64
}

// RegisterThreads registers the thread routes. The /thread/all purge route
// must come before the {id} routes so "all" is never treated as an id.
func (h *H) RegisterThreads(r *mux.Router) {
	r.HandleFunc("/thread/all", h.deleteAllThreads).Methods(http.MethodDelete)
	r.HandleFunc("/thread/{id}", h.postThread).Methods(http.MethodPost)
	r.HandleFunc("/thread/{id}", h.getThread).Methods(http.MethodGet)
	r.HandleFunc("/thread/{id}", h.deleteThread).Methods(http.MethodDelete)
	r.HandleFunc("/thread/{id}/artifact", h.getArtifact).Methods(http.MethodGet)
}

// threadRequest is the body of POST /thread/{id}.
type threadRequest struct {
	Messages []models.Message `json:"messages"`
}

// postThread appends the client's messages to a thread (minting one when the
// id is "new") and streams the generation run back as server-sent events.
// The stream always terminates with exactly one end event.
func (h *H) postThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	var req threadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, `{"error":"no messages provided"}`, http.StatusBadRequest)
		return
	}
	for i := range req.Messages {
		if req.Messages[i].Role == "" {
			req.Messages[i].Role = models.RoleHuman
		}
		if err := validation.ValidateMessage(req.Messages[i]); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
	}
	prompt, err := validation.LatestHumanPrompt(req.Messages)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	if h.Orch == nil || h.Orch.Gen == nil {
		http.Error(w, `{"error":"backend service is not configured"}`, http.StatusInternalServerError)
		return
	}

	created := false
	if id == NewThreadID {
		id = utils.GenThreadID()
		created = true
		if err := h.Store.Create(models.Thread{ID: id, Status: models.StatusInitialized}); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	} else if _, err := h.Store.Get(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"Thread not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	for i := range req.Messages {
		m := req.Messages[i]
		if m.ID == "" {
			m.ID = utils.GenMessageID()
		}
		if m.TS == 0 {
			m.TS = time.Now().UTC().UnixNano()
		}
		if err := h.Store.AppendMessage(id, m); err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
			return
		}
	}

	// Headers must be set before the first SSE flush.
	w.Header().Set("X-Thread-ID", id)
	if created {
		w.Header().Set("Location", "/thread/"+id)
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}
	telemetry.StreamOpened()
	defer telemetry.StreamClosed()
	defer func() { _ = sw.End() }()

	emit := func(ev models.StreamEvent) error {
		telemetry.ObserveStreamEvent(ev.Type)
		return sw.Send(ev)
	}
	if err := h.Orch.Run(r.Context(), id, prompt, emit); err != nil {
		logger.Warn("generation_run_failed", "thread", id, "error", err)
	}
}

// getThread returns the full thread. Reads are side-effect free.
func (h *H) getThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, err := h.Store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"Thread not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, t)
}

func (h *H) deleteThread(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Store.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"Thread not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *H) deleteAllThreads(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.DeleteAll()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	logger.Info("threads_purged_via_api", "count", n)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

// getArtifact proxies the thread's rendered artifact through the backend
// credentials, so browsers never see the signed URL.
func (h *H) getArtifact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, err := h.Store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"Thread not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if t.ArtifactURL == "" {
		http.Error(w, `{"error":"thread has no artifact"}`, http.StatusNotFound)
		return
	}
	if h.Backend == nil {
		http.Error(w, `{"error":"backend service is not configured"}`, http.StatusInternalServerError)
		return
	}
	body, ct, err := h.Backend.Artifact(r.Context(), t.ArtifactURL)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			http.Error(w, `{"error":"artifact fetch failed"}`, http.StatusBadGateway)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadGateway)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", ct)
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("artifact_proxy_interrupted", "thread", id, "error", err)
	}
}
