package models

import (
	"encoding/json"
	"fmt"
)

// Stream event tags. A stream carries any number of status/message/data/state
// events followed by exactly one end event; error may appear at most once
// before end.
const (
	EventStatus  = "status"
	EventMessage = "message"
	EventData    = "data"
	EventError   = "error"
	EventState   = "state"
	EventEnd     = "end"
)

// StreamEvent is one record on the event stream. Exactly the fields for the
// given Type are populated; events are transient and never persisted.
type StreamEvent struct {
	Type string `json:"type"`
	// Status text for "status" events.
	Status string `json:"-"`
	// Message for "message" events.
	Message *Message `json:"-"`
	// Data payload for "data" events (artifact reference).
	Data *ArtifactData `json:"-"`
	// Error text for "error" events.
	Error string `json:"-"`
	// State snapshot for "state" events.
	State *Thread `json:"-"`
}

// ArtifactData is the payload of a "data" event.
type ArtifactData struct {
	SignedURL string `json:"signed_url"`
}

// StatusEvent builds a "status" event.
func StatusEvent(status string) StreamEvent {
	return StreamEvent{Type: EventStatus, Status: status}
}

// MessageEvent builds a "message" event.
func MessageEvent(m Message) StreamEvent {
	return StreamEvent{Type: EventMessage, Message: &m}
}

// DataEvent builds a "data" event carrying the artifact URL.
func DataEvent(signedURL string) StreamEvent {
	return StreamEvent{Type: EventData, Data: &ArtifactData{SignedURL: signedURL}}
}

// ErrorEvent builds an "error" event.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Error: msg}
}

// StateEvent builds a "state" event with a thread snapshot.
func StateEvent(t Thread) StreamEvent {
	return StreamEvent{Type: EventState, State: &t}
}

// EndEvent builds the terminal "end" event.
func EndEvent() StreamEvent {
	return StreamEvent{Type: EventEnd}
}

type statusPayload struct {
	Status string `json:"status"`
}

// wireEvent is the JSON shape sent to clients: a discriminator tag plus a
// type-specific payload, matching what streaming UIs parse.
type wireEvent struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// MarshalJSON encodes the event in its wire shape.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	w := wireEvent{Type: e.Type}
	var payload any
	switch e.Type {
	case EventStatus:
		payload = statusPayload{Status: e.Status}
	case EventMessage:
		payload = e.Message
	case EventData:
		payload = e.Data
	case EventState:
		payload = e.State
	case EventError:
		w.Error = e.Error
	case EventEnd:
		// no payload
	default:
		return nil, fmt.Errorf("unknown stream event type: %q", e.Type)
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		w.Data = b
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes an event from its wire shape. Unknown tags are
// rejected rather than passed through.
func (e *StreamEvent) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	ev := StreamEvent{Type: w.Type}
	switch w.Type {
	case EventStatus:
		var p statusPayload
		if err := json.Unmarshal(w.Data, &p); err != nil {
			return err
		}
		ev.Status = p.Status
	case EventMessage:
		var m Message
		if err := json.Unmarshal(w.Data, &m); err != nil {
			return err
		}
		ev.Message = &m
	case EventData:
		var d ArtifactData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		ev.Data = &d
	case EventState:
		var t Thread
		if err := json.Unmarshal(w.Data, &t); err != nil {
			return err
		}
		ev.State = &t
	case EventError:
		ev.Error = w.Error
	case EventEnd:
	default:
		return fmt.Errorf("unknown stream event type: %q", w.Type)
	}
	*e = ev
	return nil
}
