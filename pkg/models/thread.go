package models

// Thread statuses. A thread moves through the generation lifecycle and
// terminates in completed, error or conversation; a follow-up request on the
// same thread starts the cycle again.
const (
	StatusInitialized  = "initialized"
	StatusGenerating   = "generating"
	StatusRendering    = "rendering"
	StatusCompleted    = "completed"
	StatusError        = "error"
	StatusConversation = "conversation"
)

type Thread struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
	Status   string    `json:"status"`
	// ArtifactURL is the signed URL of the rendered artifact; set only when
	// Status is "completed".
	ArtifactURL string `json:"artifact_url,omitempty"`
	// Created/Updated timestamps (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// ValidStatus reports whether s is one of the known thread statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusInitialized, StatusGenerating, StatusRendering,
		StatusCompleted, StatusError, StatusConversation:
		return true
	}
	return false
}
