package llm

import (
	"context"
	"strings"
	"sync"
)

// MockStreamer is a scripted backend for tests and offline runs. It replays
// configured fragments and records every message batch it was asked to
// stream.
type MockStreamer struct {
	mu sync.Mutex

	// Fragments are emitted in order on each call. When empty, the reply is
	// a single fragment echoing the last user message.
	Fragments []string
	// Err, when set, is returned before any fragment is emitted.
	Err error

	calls [][]Message
}

func (m *MockStreamer) Name() string { return "mock" }

func (m *MockStreamer) ChatStream(ctx context.Context, messages []Message, onFragment func(string) error) error {
	m.mu.Lock()
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)
	m.calls = append(m.calls, snapshot)
	fragments := m.Fragments
	err := m.Err
	m.mu.Unlock()

	if err != nil {
		return err
	}

	if len(fragments) == 0 {
		last := ""
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == RoleUser {
				last = messages[i].Content
				break
			}
		}
		fragments = []string{"Echo: " + last}
	}

	for _, frag := range fragments {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := onFragment(frag); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns every message batch streamed so far.
func (m *MockStreamer) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastCall returns the most recent message batch, or nil.
func (m *MockStreamer) LastCall() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// PromptContains reports whether any message of the last call contains the
// given substring. Convenience for asserting injected context.
func (m *MockStreamer) PromptContains(substr string) bool {
	for _, msg := range m.LastCall() {
		if strings.Contains(msg.Content, substr) {
			return true
		}
	}
	return false
}
