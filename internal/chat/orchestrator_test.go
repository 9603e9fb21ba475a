package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"mathtutor/internal/correction"
	"mathtutor/internal/evaluate"
	"mathtutor/internal/llm"
	"mathtutor/internal/sandbox"
	"mathtutor/internal/store"
)

func newTestOrchestrator(t *testing.T, backend llm.Streamer) (*Orchestrator, *correction.Store) {
	t.Helper()
	corrections, err := correction.Open(filepath.Join(t.TempDir(), "corrections.json"), nil)
	require.NoError(t, err)

	interp := sandbox.NewInterp()
	orch := New(Options{
		Registry:    evaluate.NewRegistry(interp.EvalArithmetic, 0, nil),
		Sandbox:     sandbox.New(nil),
		Corrections: corrections,
		Backend:     backend,
	})
	return orch, corrections
}

func TestOrchestrator_ArithmeticTurnInjectsToolResult(t *testing.T) {
	mock := &llm.MockStreamer{Fragments: []string{"Drei plus vier ", "ergibt sieben."}}
	orch, _ := newTestOrchestrator(t, mock)

	var streamed []string
	reply, err := orch.HandleTurn(context.Background(), "s1", "was ist 3 plus 4", func(frag string) error {
		streamed = append(streamed, frag)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Drei plus vier ergibt sieben.", reply.Text)
	assert.Equal(t, reply.Text, strings.Join(streamed, ""))

	require.NotNil(t, reply.Result)
	assert.Equal(t, evaluate.StatusOk, reply.Result.Status)
	assert.Equal(t, "7", reply.Result.Value)

	// The computed value goes to the model as authoritative context. The
	// system prompt also mentions the word Werkzeugergebnis, so assert on the
	// full context-block header.
	assert.True(t, mock.PromptContains("Werkzeugergebnis (maßgeblich): 7"))

	history := orch.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
	assert.Equal(t, StateIdle, orch.SessionState("s1"))
}

func TestOrchestrator_NonMathTurnSkipsEvaluation(t *testing.T) {
	mock := &llm.MockStreamer{}
	orch, _ := newTestOrchestrator(t, mock)

	reply, err := orch.HandleTurn(context.Background(), "s1", "Wie geht es dir?", nil)
	require.NoError(t, err)
	assert.Nil(t, reply.Result)
	assert.False(t, mock.PromptContains("Werkzeugergebnis (maßgeblich)"))
	assert.False(t, mock.PromptContains("Werkzeughinweis"))
}

func TestOrchestrator_TeachingTurn(t *testing.T) {
	mock := &llm.MockStreamer{}
	orch, corrections := newTestOrchestrator(t, mock)

	reply, err := orch.HandleTurn(context.Background(), "s1",
		"Korrektur: 1/3 => 1/3 bleibt als Bruch stehen", nil)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "merke")

	// Teaching never reaches the model.
	assert.Empty(t, mock.Calls())
	require.Len(t, corrections.Entries(), 1)

	// The stored correction now outranks the tool result on matching turns.
	reply, err = orch.HandleTurn(context.Background(), "s1", "erkläre mir 1/3 mal 3", nil)
	require.NoError(t, err)
	require.NotNil(t, reply.Correction)
	assert.True(t, mock.PromptContains("1/3 bleibt als Bruch stehen"))
	assert.True(t, mock.PromptContains("Vorrang"))
}

func TestOrchestrator_TeachingUsageHint(t *testing.T) {
	mock := &llm.MockStreamer{}
	orch, corrections := newTestOrchestrator(t, mock)

	reply, err := orch.HandleTurn(context.Background(), "s1", "Korrektur:", nil)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Korrektur: <Muster>")
	assert.Empty(t, corrections.Entries())
}

func TestOrchestrator_BackendFailureYieldsSyntheticTurn(t *testing.T) {
	mock := &llm.MockStreamer{Err: llm.ErrBackendUnavailable}
	orch, _ := newTestOrchestrator(t, mock)

	var streamed []string
	reply, err := orch.HandleTurn(context.Background(), "s1", "was ist 3 plus 4", func(frag string) error {
		streamed = append(streamed, frag)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, reply.Synthetic)
	assert.Contains(t, reply.Text, "7")
	assert.Equal(t, reply.Text, strings.Join(streamed, ""))

	// The synthetic reply still lands in history so the session stays coherent.
	history := orch.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, reply.Text, history[1].Content)
}

func TestOrchestrator_CancelledTurnAppendsNothing(t *testing.T) {
	t.Run("cancelled before the turn", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &llm.MockStreamer{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := orch.HandleTurn(ctx, "s1", "was ist 3 plus 4", nil)
		require.Error(t, err)
		assert.Empty(t, orch.History("s1"))
	})

	t.Run("cancelled mid-stream", func(t *testing.T) {
		mock := &llm.MockStreamer{Fragments: []string{"eins", "zwei", "drei"}}
		orch, _ := newTestOrchestrator(t, mock)

		ctx, cancel := context.WithCancel(context.Background())
		_, err := orch.HandleTurn(ctx, "s1", "was ist 3 plus 4", func(frag string) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, orch.History("s1"))
	})
}

func TestOrchestrator_SessionsAreIsolated(t *testing.T) {
	mock := &llm.MockStreamer{Fragments: []string{"ok"}}
	orch, _ := newTestOrchestrator(t, mock)

	_, err := orch.HandleTurn(context.Background(), "a", "was ist 1 plus 1", nil)
	require.NoError(t, err)
	_, err = orch.HandleTurn(context.Background(), "b", "was ist 2 plus 2", nil)
	require.NoError(t, err)

	assert.Len(t, orch.History("a"), 2)
	assert.Len(t, orch.History("b"), 2)

	// Session b's prompt carries no turns from session a.
	for _, msg := range mock.LastCall() {
		assert.NotContains(t, msg.Content, "1 plus 1")
	}
}

func TestOrchestrator_HistoryFlowsIntoFollowUpPrompt(t *testing.T) {
	mock := &llm.MockStreamer{Fragments: []string{"antwort"}}
	orch, _ := newTestOrchestrator(t, mock)

	_, err := orch.HandleTurn(context.Background(), "s1", "was ist 3 plus 4", nil)
	require.NoError(t, err)
	_, err = orch.HandleTurn(context.Background(), "s1", "und warum?", nil)
	require.NoError(t, err)

	assert.True(t, mock.PromptContains("was ist 3 plus 4"))
	assert.True(t, mock.PromptContains("und warum?"))
}

func TestOrchestrator_PersistenceFailureIsLoggedNotFatal(t *testing.T) {
	sessions, err := store.OpenSessions(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	// A closed store makes every persistence call fail.
	require.NoError(t, sessions.Close())

	corrections, err := correction.Open(filepath.Join(t.TempDir(), "corrections.json"), nil)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	mock := &llm.MockStreamer{Fragments: []string{"ok"}}
	interp := sandbox.NewInterp()
	orch := New(Options{
		Registry:    evaluate.NewRegistry(interp.EvalArithmetic, 0, nil),
		Sandbox:     sandbox.New(nil),
		Corrections: corrections,
		Backend:     mock,
		Persist:     sessions,
		Logger:      zap.New(core),
	})

	_, err = orch.HandleTurn(context.Background(), "s1", "was ist 3 plus 4", nil)
	require.NoError(t, err)
	assert.Len(t, orch.History("s1"), 2)
	assert.NotZero(t, logs.FilterMessage("session persistence failed").Len())
}
