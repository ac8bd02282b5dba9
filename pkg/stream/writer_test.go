package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"animbridge/pkg/models"
)

func decodeFrames(t *testing.T, body string) []models.StreamEvent {
	t.Helper()
	var evs []models.StreamEvent
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("frame missing data prefix: %q", frame)
		}
		var ev models.StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("decode frame %q: %v", payload, err)
		}
		evs = append(evs, ev)
	}
	return evs
}

func TestWriterFramesAndOrdering(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Send(models.StatusEvent("Generating animation...")); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(models.MessageEvent(models.Message{Role: models.RoleAI, Content: "done"})); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(models.DataEvent("https://storage.example/scene.glb")); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	evs := decodeFrames(t, rec.Body.String())
	want := []string{models.EventStatus, models.EventMessage, models.EventData, models.EventEnd}
	if len(evs) != len(want) {
		t.Fatalf("got %d events, want %d", len(evs), len(want))
	}
	for i, tag := range want {
		if evs[i].Type != tag {
			t.Errorf("event %d type = %q, want %q", i, evs[i].Type, tag)
		}
	}
	if evs[2].Data.SignedURL != "https://storage.example/scene.glb" {
		t.Errorf("data payload = %+v", evs[2].Data)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	if err := w.Send(models.StatusEvent("late")); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("send after end = %v, want ErrStreamClosed", err)
	}

	evs := decodeFrames(t, rec.Body.String())
	ends := 0
	for _, ev := range evs {
		if ev.Type == models.EventEnd {
			ends++
		}
	}
	if ends != 1 {
		t.Fatalf("end event written %d times, want 1", ends)
	}
	if w.Sent() != 1 {
		t.Fatalf("sent = %d, want 1", w.Sent())
	}
}

func TestConcurrentSendsStaySerialized(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Send(models.StatusEvent("working"))
		}()
	}
	wg.Wait()
	if err := w.End(); err != nil {
		t.Fatal(err)
	}
	evs := decodeFrames(t, rec.Body.String())
	if len(evs) != 21 {
		t.Fatalf("got %d events, want 21", len(evs))
	}
	if evs[len(evs)-1].Type != models.EventEnd {
		t.Fatalf("last event = %q, want end", evs[len(evs)-1].Type)
	}
}

func TestWriterRequiresFlusher(t *testing.T) {
	_, err := NewWriter(plainWriter{httptest.NewRecorder()})
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("got %v, want ErrStreamingUnsupported", err)
	}
}

type plainWriter struct{ rec *httptest.ResponseRecorder }

func (p plainWriter) Header() http.Header         { return p.rec.Header() }
func (p plainWriter) Write(b []byte) (int, error) { return p.rec.Write(b) }
func (p plainWriter) WriteHeader(code int)        { p.rec.WriteHeader(code) }
