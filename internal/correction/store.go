// Package correction implements the user-taught correction memory: an
// append-only, durably persisted set of pattern-to-explanation overrides that
// survive process restarts.
package correction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mathtutor/internal/evaluate"
)

// ErrInvalidCorrection is returned when a correction carries no replacement
// text.
var ErrInvalidCorrection = errors.New("correction: empty explanation")

// Entry is one stored correction. AutoApply is true only when the user
// supplied a non-empty pattern; pattern-less corrections are kept for audit
// but never applied automatically.
type Entry struct {
	Pattern     string    `json:"pattern"`
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
	AutoApply   bool      `json:"auto_apply"`
}

// Store is the shared correction memory. Record calls are serialized; Lookup
// calls run concurrently. Entries are append-only; a later entry with the same
// pattern wins at lookup time because lookup scans most-recent-first.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
	logger  *zap.Logger
}

// Open loads the store from path. A missing or corrupt file initializes an
// empty store rather than failing: lost corrections are recoverable by the
// user, a refused boot is not.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("correction: store path required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}
	s.load()
	return s, nil
}

func (s *Store) load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
}

func (s *Store) loadLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("correction store unreadable, starting empty",
				zap.String("path", s.path), zap.Error(err))
		}
		s.entries = nil
		return
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("correction store corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		s.entries = nil
		return
	}
	s.entries = entries
	s.logger.Debug("correction store loaded",
		zap.String("path", s.path), zap.Int("entries", len(entries)))
}

// Record appends a correction and durably rewrites the full entry set before
// returning, so a crash immediately afterwards cannot lose it.
func (s *Store) Record(pattern, explanation string) (Entry, error) {
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return Entry{}, ErrInvalidCorrection
	}
	pattern = strings.TrimSpace(pattern)

	entry := Entry{
		Pattern:     pattern,
		Explanation: explanation,
		CreatedAt:   time.Now().UTC(),
		AutoApply:   pattern != "",
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if err := s.flushLocked(); err != nil {
		// Roll back the in-memory append so memory and disk stay in step.
		s.entries = s.entries[:len(s.entries)-1]
		return Entry{}, fmt.Errorf("correction: persist failed: %w", err)
	}

	s.logger.Info("correction recorded",
		zap.String("pattern", pattern),
		zap.Bool("auto_apply", entry.AutoApply))
	return entry, nil
}

// flushLocked writes the full entry set atomically: temp file, fsync, rename.
func (s *Store) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".corrections-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Lookup scans auto-applying entries most-recently-created first and returns
// the first whose pattern occurs, case-insensitively, in the candidate text
// or in the supplied result's value. Substring matching is deliberate: it is
// deterministic and cannot fail from a broken pattern compilation, at the
// cost of over-matching on short generic patterns.
func (s *Store) Lookup(candidate string, result *evaluate.Result) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lowerText := strings.ToLower(candidate)
	lowerValue := ""
	if result != nil {
		lowerValue = strings.ToLower(result.Value)
	}

	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !e.AutoApply {
			continue
		}
		pat := strings.ToLower(e.Pattern)
		if strings.Contains(lowerText, pat) {
			return e, true
		}
		if lowerValue != "" && strings.Contains(lowerValue, pat) {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a snapshot of all stored corrections, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Path returns the persisted file location.
func (s *Store) Path() string { return s.path }
