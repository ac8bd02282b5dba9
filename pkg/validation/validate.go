package validation

import (
	"errors"
	"fmt"
	"strings"

	"animbridge/pkg/models"
)

// MaxPromptLen caps the size of a single message body; oversized prompts are
// rejected before any backend call.
const MaxPromptLen = 8192

// ValidateMessage checks an incoming message for a known role and a usable
// body.
func ValidateMessage(m models.Message) error {
	var errs []string
	if m.Role != models.RoleHuman && m.Role != models.RoleAI {
		errs = append(errs, fmt.Sprintf("unknown role: %q", m.Role))
	}
	if strings.TrimSpace(m.Content) == "" {
		errs = append(errs, "content is required")
	}
	if len(m.Content) > MaxPromptLen {
		errs = append(errs, fmt.Sprintf("content exceeds %d bytes", MaxPromptLen))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidatePrompt checks a bare prompt string for the synchronous generate
// path.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("no prompt provided")
	}
	if len(prompt) > MaxPromptLen {
		return fmt.Errorf("prompt exceeds %d bytes", MaxPromptLen)
	}
	return nil
}

// LatestHumanPrompt returns the content of the last human-role message, or
// an error when the batch contains none.
func LatestHumanPrompt(msgs []models.Message) (string, error) {
	var prompt string
	for _, m := range msgs {
		if m.Role == models.RoleHuman {
			prompt = m.Content
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("no human message provided")
	}
	return prompt, nil
}
