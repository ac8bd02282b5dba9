package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStatusEventWireShape(t *testing.T) {
	b, err := json.Marshal(StatusEvent("Generating animation..."))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"status","data":{"status":"Generating animation..."}}`
	if string(b) != want {
		t.Errorf("wire = %s", b)
	}
}

func TestErrorEventWireShape(t *testing.T) {
	b, err := json.Marshal(ErrorEvent("backend unavailable"))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"error","error":"backend unavailable"}`
	if string(b) != want {
		t.Errorf("wire = %s", b)
	}
}

func TestEndEventHasNoPayload(t *testing.T) {
	b, err := json.Marshal(EndEvent())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"end"}` {
		t.Errorf("wire = %s", b)
	}
}

func TestDataEventRoundTrip(t *testing.T) {
	b, err := json.Marshal(DataEvent("https://storage.example/scene.glb"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"signed_url"`) {
		t.Fatalf("wire = %s", b)
	}
	var ev StreamEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventData || ev.Data.SignedURL != "https://storage.example/scene.glb" {
		t.Errorf("decoded = %+v", ev)
	}
}

func TestMessageEventRoundTrip(t *testing.T) {
	m := Message{ID: "m1", Role: RoleAI, Content: "done", Metadata: &MessageMeta{SceneID: "s1"}}
	b, err := json.Marshal(MessageEvent(m))
	if err != nil {
		t.Fatal(err)
	}
	var ev StreamEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Message == nil || ev.Message.ID != "m1" || ev.Message.Metadata.SceneID != "s1" {
		t.Errorf("decoded = %+v", ev.Message)
	}
}

func TestUnknownEventTypeRejected(t *testing.T) {
	var ev StreamEvent
	err := json.Unmarshal([]byte(`{"type":"surprise"}`), &ev)
	if err == nil {
		t.Fatal("unknown tag accepted")
	}
	if _, err := json.Marshal(StreamEvent{Type: "surprise"}); err == nil {
		t.Fatal("unknown tag marshalled")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusInitialized, StatusGenerating, StatusRendering, StatusCompleted, StatusError, StatusConversation} {
		if !ValidStatus(s) {
			t.Errorf("%q should be valid", s)
		}
	}
	if ValidStatus("unknown") {
		t.Error("unknown status accepted")
	}
}
