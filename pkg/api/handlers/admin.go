package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"animbridge/internal/retention"
	"animbridge/pkg/logger"
	"animbridge/pkg/utils"
)

// RegisterAdmin registers operator-facing routes on an /admin subrouter.
// The caller is expected to gate that subrouter behind admin auth.
func (h *H) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/health", h.adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/threads", h.adminListThreads).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.adminStats).Methods(http.MethodGet)
	r.HandleFunc("/retention/run", h.adminRetentionRun).Methods(http.MethodPost)
}

func (h *H) adminHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.Store.Ready() {
		status = "degraded"
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": status})
}

// adminListThreads returns metadata for every thread, messages excluded.
func (h *H) adminListThreads(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Store.List()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"threads": ts, "count": len(ts)})
}

// adminStats aggregates thread counts by lifecycle status.
func (h *H) adminStats(w http.ResponseWriter, r *http.Request) {
	ts, err := h.Store.List()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	byStatus := map[string]int{}
	for _, t := range ts {
		byStatus[t.Status]++
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"threads":   len(ts),
		"by_status": byStatus,
	})
}

// adminRetentionRun triggers one purge pass outside the cron schedule.
func (h *H) adminRetentionRun(w http.ResponseWriter, r *http.Request) {
	if h.Retention.MaxAge.Duration() <= 0 {
		http.Error(w, `{"error":"retention max_age is not configured"}`, http.StatusBadRequest)
		return
	}
	if err := retention.RunOnce(h.Retention, h.Store); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	logger.Info("retention_run_triggered_via_api", "dry_run", h.Retention.DryRun)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"success": true})
}
