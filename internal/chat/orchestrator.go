// Package chat drives a tutoring conversation: it routes each user turn
// through expression recognition, sandboxed evaluation and the correction
// memory, then streams a model explanation grounded on the computed result.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mathtutor/internal/correction"
	"mathtutor/internal/evaluate"
	"mathtutor/internal/llm"
	"mathtutor/internal/recognize"
	"mathtutor/internal/sandbox"
	"mathtutor/internal/store"
)

// State is the orchestrator's per-session processing phase. It is observable
// for diagnostics; transitions happen under the session lock.
type State int

const (
	StateIdle State = iota
	StateEvaluating
	StateCheckingCorrections
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEvaluating:
		return "evaluating"
	case StateCheckingCorrections:
		return "checking-corrections"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// fallbackReply is appended as a synthetic assistant turn when the model
// backend fails after evaluation already succeeded.
const fallbackReply = "Entschuldigung, die Erklärung ist gerade nicht verfügbar. Das berechnete Ergebnis lautet: %s"

const fallbackReplyNoResult = "Entschuldigung, ich kann gerade nicht antworten. Bitte versuche es gleich noch einmal."

// Reply is the outcome of one handled turn.
type Reply struct {
	// Text is the full assistant reply, also delivered via fragments.
	Text string
	// Result is the sandbox result when the turn contained an expression.
	Result *evaluate.Result
	// Correction is the matched stored correction, if any.
	Correction *correction.Entry
	// Synthetic is true when Text was produced locally because the backend
	// failed.
	Synthetic bool
}

type session struct {
	mu      sync.Mutex
	state   State
	history []llm.Message
}

// Orchestrator coordinates one conversation per session ID. Turns within a
// session are serialized; different sessions run concurrently.
type Orchestrator struct {
	registry    *evaluate.Registry
	sandbox     *sandbox.Sandbox
	corrections *correction.Store
	backend     llm.Streamer
	persist     *store.SessionStore
	logger      *zap.Logger
	evalTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// Options configures an Orchestrator. Persist may be nil to keep sessions
// in memory only.
type Options struct {
	Registry    *evaluate.Registry
	Sandbox     *sandbox.Sandbox
	Corrections *correction.Store
	Backend     llm.Streamer
	Persist     *store.SessionStore
	Logger      *zap.Logger
	EvalTimeout time.Duration
}

// New builds an Orchestrator from Options.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.EvalTimeout
	if timeout <= 0 {
		timeout = sandbox.DefaultTimeout
	}
	return &Orchestrator{
		registry:    opts.Registry,
		sandbox:     opts.Sandbox,
		corrections: opts.Corrections,
		backend:     opts.Backend,
		persist:     opts.Persist,
		logger:      logger,
		evalTimeout: timeout,
	}
}

func (o *Orchestrator) session(id string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions == nil {
		o.sessions = make(map[string]*session)
	}
	s, ok := o.sessions[id]
	if !ok {
		s = &session{}
		o.sessions[id] = s
	}
	return s
}

// SessionState reports the session's current phase.
func (o *Orchestrator) SessionState(id string) State {
	s := o.session(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a snapshot of the session's in-memory turn log.
func (o *Orchestrator) History(id string) []llm.Message {
	s := o.session(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// HandleTurn processes one user message. onFragment receives the assistant
// reply incrementally in arrival order; it may be nil. A cancelled turn
// leaves the session history untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, text string, onFragment func(string) error) (Reply, error) {
	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() { s.state = StateIdle }()

	if directive, ok := correction.ParseDirective(text); ok {
		return o.handleTeaching(ctx, s, sessionID, text, directive, onFragment)
	}

	// Phase 1: recognize and evaluate inside the sandbox.
	var result *evaluate.Result
	expr := recognize.Recognize(text)
	if expr.Category != recognize.Unknown {
		s.state = StateEvaluating
		ev, ok := o.registry.Select(expr)
		if ok {
			r := o.sandbox.Run(ctx, ev, expr, o.evalTimeout)
			result = &r
		} else {
			r := evaluate.Failure(evaluate.ErrUnrecognized, "kein Auswertungswerkzeug für diese Eingabe")
			result = &r
		}
		o.logger.Debug("turn evaluated",
			zap.String("session", sessionID),
			zap.Stringer("category", expr.Category),
			zap.Stringer("status", result.Status))
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	// Phase 2: look for an applicable stored correction.
	s.state = StateCheckingCorrections
	var matched *correction.Entry
	if o.corrections != nil {
		if entry, ok := o.corrections.Lookup(text, result); ok {
			matched = &entry
			o.logger.Info("stored correction applied",
				zap.String("session", sessionID),
				zap.String("pattern", entry.Pattern))
		}
	}

	// Phase 3: compose the prompt and stream the explanation.
	s.state = StateStreaming
	messages := o.compose(s, text, result, matched)

	reply, err := o.stream(ctx, messages, onFragment)
	switch {
	case err == nil:
		s.append(sessionID, o.persist, o.logger, llm.Message{Role: llm.RoleUser, Content: text})
		s.append(sessionID, o.persist, o.logger, llm.Message{Role: llm.RoleAssistant, Content: reply})
		return Reply{Text: reply, Result: result, Correction: matched}, nil

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		o.logger.Info("turn cancelled mid-stream", zap.String("session", sessionID))
		return Reply{}, err

	default:
		// Backend failed: keep the conversation coherent with a synthetic
		// assistant turn carrying whatever we computed locally.
		o.logger.Warn("backend failed, answering synthetically",
			zap.String("session", sessionID), zap.Error(err))
		synthetic := fallbackReplyNoResult
		if result != nil && result.Status == evaluate.StatusOk {
			synthetic = fmt.Sprintf(fallbackReply, result.Value)
		}
		if onFragment != nil {
			if ferr := onFragment(synthetic); ferr != nil {
				return Reply{}, ferr
			}
		}
		s.append(sessionID, o.persist, o.logger, llm.Message{Role: llm.RoleUser, Content: text})
		s.append(sessionID, o.persist, o.logger, llm.Message{Role: llm.RoleAssistant, Content: synthetic})
		return Reply{Text: synthetic, Result: result, Correction: matched, Synthetic: true}, nil
	}
}

// handleTeaching records a correction directive and answers directly, without
// a model round trip.
func (o *Orchestrator) handleTeaching(ctx context.Context, s *session, sessionID, text string, d correction.Directive, onFragment func(string) error) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	var ack string
	if d.Explanation == "" {
		ack = correctionUsage
	} else if o.corrections != nil {
		if _, err := o.corrections.Record(d.Pattern, d.Explanation); err != nil {
			return Reply{}, fmt.Errorf("chat: record correction: %w", err)
		}
		ack = correctionAck(d)
	} else {
		ack = correctionAck(d)
	}

	if onFragment != nil {
		if err := onFragment(ack); err != nil {
			return Reply{}, err
		}
	}
	s.append(sessionID, o.persist, o.logger, llm.Message{Role: llm.RoleUser, Content: text})
	s.append(sessionID, o.persist, o.logger, llm.Message{Role: llm.RoleAssistant, Content: ack})
	return Reply{Text: ack}, nil
}

// compose builds the message list for the backend: system prompt, prior
// history, the user turn, then the authoritative context blocks. The
// correction block comes last so it outranks the tool result.
func (o *Orchestrator) compose(s *session, text string, result *evaluate.Result, matched *correction.Entry) []llm.Message {
	messages := make([]llm.Message, 0, len(s.history)+4)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, s.history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: text})
	if result != nil {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: toolContext(*result)})
	}
	if matched != nil {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: correctionContext(*matched)})
	}
	return messages
}

// stream runs the backend producer and the fragment consumer concurrently,
// preserving fragment order, and returns the assembled reply.
func (o *Orchestrator) stream(ctx context.Context, messages []llm.Message, onFragment func(string) error) (string, error) {
	fragments := make(chan string, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(fragments)
		return o.backend.ChatStream(gctx, messages, func(frag string) error {
			select {
			case fragments <- frag:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	var reply []byte
	g.Go(func() error {
		for frag := range fragments {
			reply = append(reply, frag...)
			if onFragment != nil {
				if err := onFragment(frag); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	return string(reply), nil
}

// append records a turn in memory and, when persistence is configured, in the
// session store. Persistence failures are logged, not fatal: the conversation
// keeps going.
func (s *session) append(sessionID string, persist *store.SessionStore, logger *zap.Logger, msg llm.Message) {
	s.history = append(s.history, msg)
	if persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := persist.EnsureSession(ctx, sessionID); err != nil {
		logger.Warn("session persistence failed",
			zap.String("session", sessionID), zap.Error(err))
		return
	}
	if err := persist.AppendTurn(ctx, sessionID, msg.Role, msg.Content); err != nil {
		logger.Warn("turn persistence failed",
			zap.String("session", sessionID), zap.Error(err))
	}
}
