// Package llm abstracts the streaming chat backends the tutor can explain
// through. Two real backends are supported, a local Ollama server and an
// OpenAI-compatible endpoint, plus a scripted mock for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrBackendUnavailable wraps transport-level failures: the backend could not
// be reached at all, as opposed to reaching it and getting an error status.
var ErrBackendUnavailable = errors.New("llm: backend unavailable")

// Message is one chat turn sent to a backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Streamer is implemented by every chat backend. ChatStream invokes
// onFragment for each content delta in arrival order and returns after the
// stream completes. A non-nil error from onFragment aborts the stream and is
// returned unchanged, so callers can cancel mid-stream without losing the
// cause.
type Streamer interface {
	Name() string
	ChatStream(ctx context.Context, messages []Message, onFragment func(string) error) error
}

// StatusError is returned when the backend answered with a non-2xx status.
// It is distinct from ErrBackendUnavailable so callers can tell "server is
// down" from "server rejected the request".
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: %s returned status %d: %s", e.Backend, e.Code, e.Body)
}
