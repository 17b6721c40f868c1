package shared

import (
	"strings"

	"github.com/runoshun/git-delegate/internal/domain"
)

// ValidateMessage returns the message sent to an agent with surrounding
// whitespace trimmed, or domain.ErrEmptyMessage when nothing is left.
func ValidateMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", domain.ErrEmptyMessage
	}
	return trimmed, nil
}
