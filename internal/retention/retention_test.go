package retention

import (
	"testing"
	"time"

	"animbridge/pkg/config"
	"animbridge/pkg/models"
	"animbridge/pkg/store"
)

func TestRunOncePurgesIdleThreads(t *testing.T) {
	s := store.NewMemory()
	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()
	if err := s.Create(models.Thread{ID: "stale", Status: models.StatusCompleted, CreatedTS: old}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(models.Thread{ID: "busy", Status: models.StatusGenerating, CreatedTS: old}); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(models.Thread{ID: "fresh", Status: models.StatusCompleted}); err != nil {
		t.Fatal(err)
	}

	cfg := config.RetentionConfig{Enabled: true, MaxAge: config.Duration(24 * time.Hour)}
	if err := RunOnce(cfg, s); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Get("stale"); err != store.ErrNotFound {
		t.Errorf("stale thread survived: %v", err)
	}
	if _, err := s.Get("busy"); err != nil {
		t.Errorf("generating thread was purged: %v", err)
	}
	if _, err := s.Get("fresh"); err != nil {
		t.Errorf("fresh thread was purged: %v", err)
	}
}

func TestRunOnceDryRunDeletesNothing(t *testing.T) {
	s := store.NewMemory()
	old := time.Now().UTC().Add(-48 * time.Hour).UnixNano()
	if err := s.Create(models.Thread{ID: "stale", Status: models.StatusCompleted, CreatedTS: old}); err != nil {
		t.Fatal(err)
	}
	cfg := config.RetentionConfig{Enabled: true, MaxAge: config.Duration(24 * time.Hour), DryRun: true}
	if err := RunOnce(cfg, s); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("stale"); err != nil {
		t.Errorf("dry run deleted a thread: %v", err)
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	s := store.NewMemory()
	cfg := config.RetentionConfig{Enabled: true, Cron: "not a cron", MaxAge: config.Duration(time.Hour)}
	if _, err := Start(t.Context(), cfg, s); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
