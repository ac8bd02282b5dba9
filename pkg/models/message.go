package models

// Message roles.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	TS      int64  `json:"ts,omitempty"`
	// Metadata carries optional scene bookkeeping from the generation backend.
	Metadata *MessageMeta `json:"metadata,omitempty"`
}

type MessageMeta struct {
	SceneID           string   `json:"scene_id,omitempty"`
	ModifiedObjectIDs []string `json:"modified_object_ids,omitempty"`
	ActionKind        string   `json:"action_kind,omitempty"`
}
