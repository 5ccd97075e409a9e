package providers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContextOverflow marks a request rejected because the transcript no
// longer fits the model's context window.
var ErrContextOverflow = errors.New("context window exceeded")

// APIError is a non-2xx reply from the chat completions endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completions request failed:\n  Status: %d\n  Body:   %s", e.Status, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrContextOverflow && isContextOverflowText(e.Body)
}

var contextOverflowMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"context window",
	"too many tokens",
	"reduce the length of the messages",
}

func isContextOverflowText(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range contextOverflowMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsContextOverflow reports whether err means the transcript must be reset.
func IsContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextOverflow) {
		return true
	}
	return isContextOverflowText(err.Error())
}
