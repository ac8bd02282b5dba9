package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"animbridge/pkg/models"
)

func openStores(t *testing.T) map[string]ThreadStore {
	t.Helper()
	pb, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = pb.Close() })
	return map[string]ThreadStore{
		"pebble": pb,
		"memory": NewMemory(),
	}
}

func TestThreadRoundTrip(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			th := models.Thread{
				ID:     "t1",
				Status: models.StatusInitialized,
				Messages: []models.Message{
					{ID: "m1", Role: models.RoleHuman, Content: "a bouncing ball"},
				},
			}
			if err := s.Create(th); err != nil {
				t.Fatal(err)
			}
			if err := s.AppendMessage("t1", models.Message{ID: "m2", Role: models.RoleAI, Content: "done"}); err != nil {
				t.Fatal(err)
			}

			got, err := s.Get("t1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != models.StatusInitialized {
				t.Errorf("status = %q", got.Status)
			}
			if len(got.Messages) != 2 {
				t.Fatalf("got %d messages, want 2", len(got.Messages))
			}
			if got.Messages[0].ID != "m1" || got.Messages[1].ID != "m2" {
				t.Errorf("messages out of order: %q, %q", got.Messages[0].ID, got.Messages[1].ID)
			}

			// Reads must not mutate the thread.
			again, err := s.Get("t1")
			if err != nil {
				t.Fatal(err)
			}
			if len(again.Messages) != len(got.Messages) || again.Status != got.Status {
				t.Error("repeated reads disagree")
			}
		})
	}
}

func TestStatusAndArtifactUpdates(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Create(models.Thread{ID: "t1", Status: models.StatusInitialized}); err != nil {
				t.Fatal(err)
			}
			if err := s.SetStatus("t1", models.StatusCompleted); err != nil {
				t.Fatal(err)
			}
			if err := s.SetArtifact("t1", "https://storage.example/scene.glb"); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get("t1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != models.StatusCompleted {
				t.Errorf("status = %q", got.Status)
			}
			if got.ArtifactURL != "https://storage.example/scene.glb" {
				t.Errorf("artifact = %q", got.ArtifactURL)
			}
			if got.UpdatedTS < got.CreatedTS {
				t.Error("updated timestamp not advanced")
			}
		})
	}
}

func TestUnknownThread(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get = %v, want ErrNotFound", err)
			}
			if err := s.AppendMessage("missing", models.Message{Role: models.RoleHuman, Content: "x"}); !errors.Is(err, ErrNotFound) {
				t.Errorf("AppendMessage = %v, want ErrNotFound", err)
			}
			if err := s.SetStatus("missing", models.StatusError); !errors.Is(err, ErrNotFound) {
				t.Errorf("SetStatus = %v, want ErrNotFound", err)
			}
			if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteRemovesMessages(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Create(models.Thread{ID: "t1", Status: models.StatusInitialized}); err != nil {
				t.Fatal(err)
			}
			if err := s.AppendMessage("t1", models.Message{Role: models.RoleHuman, Content: "x"}); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete("t1"); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get("t1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete = %v, want ErrNotFound", err)
			}
			// Recreating the id must not resurrect old messages.
			if err := s.Create(models.Thread{ID: "t1", Status: models.StatusInitialized}); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get("t1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Messages) != 0 {
				t.Fatalf("recreated thread has %d stale messages", len(got.Messages))
			}
		})
	}
}

func TestDeleteAll(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if err := s.Create(models.Thread{ID: fmt.Sprintf("t%d", i), Status: models.StatusInitialized}); err != nil {
					t.Fatal(err)
				}
			}
			n, err := s.DeleteAll()
			if err != nil {
				t.Fatal(err)
			}
			if n != 3 {
				t.Fatalf("deleted %d, want 3", n)
			}
			ts, err := s.List()
			if err != nil {
				t.Fatal(err)
			}
			if len(ts) != 0 {
				t.Fatalf("%d threads remain after purge", len(ts))
			}
		})
	}
}

func TestConcurrentAppendsAllSurvive(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Create(models.Thread{ID: "t1", Status: models.StatusInitialized}); err != nil {
				t.Fatal(err)
			}
			const n = 30
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = s.AppendMessage("t1", models.Message{
						ID:      fmt.Sprintf("m%d", i),
						Role:    models.RoleHuman,
						Content: "x",
					})
				}(i)
			}
			wg.Wait()
			got, err := s.Get("t1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Messages) != n {
				t.Fatalf("got %d messages, want %d", len(got.Messages), n)
			}
		})
	}
}

func TestListReturnsMetadataOnly(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			th := models.Thread{
				ID:       "t1",
				Status:   models.StatusCompleted,
				Messages: []models.Message{{Role: models.RoleHuman, Content: "x"}},
			}
			if err := s.Create(th); err != nil {
				t.Fatal(err)
			}
			ts, err := s.List()
			if err != nil {
				t.Fatal(err)
			}
			if len(ts) != 1 {
				t.Fatalf("got %d threads, want 1", len(ts))
			}
			if len(ts[0].Messages) != 0 {
				t.Error("list should not inline messages")
			}
			if ts[0].Status != models.StatusCompleted {
				t.Errorf("status = %q", ts[0].Status)
			}
		})
	}
}
