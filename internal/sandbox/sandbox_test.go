package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"mathtutor/internal/evaluate"
	"mathtutor/internal/recognize"
)

// fakeEvaluator lets each test script the evaluator behavior.
type fakeEvaluator struct {
	name string
	fn   func(ctx context.Context) evaluate.Result
}

func (f *fakeEvaluator) Name() string { return f.name }

func (f *fakeEvaluator) CanHandle(expr recognize.Expression) bool { return true }

func (f *fakeEvaluator) Evaluate(ctx context.Context, expr recognize.Expression) evaluate.Result {
	return f.fn(ctx)
}

func TestSandbox_PassesThroughResult(t *testing.T) {
	s := New(nil)
	ev := &fakeEvaluator{name: "ok", fn: func(ctx context.Context) evaluate.Result {
		return evaluate.Ok("42")
	}}

	res := s.Run(context.Background(), ev, recognize.Expression{}, time.Second)
	require.Equal(t, evaluate.StatusOk, res.Status)
	assert.Equal(t, "42", res.Value)
}

func TestSandbox_TimeoutFiresPromptly(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(zaptest.NewLogger(t))
	ev := &fakeEvaluator{name: "hang", fn: func(ctx context.Context) evaluate.Result {
		<-ctx.Done()
		return evaluate.Failure(evaluate.ErrEvaluationFailed, "spät")
	}}

	start := time.Now()
	res := s.Run(context.Background(), ev, recognize.Expression{}, 50*time.Millisecond)
	took := time.Since(start)

	assert.Equal(t, evaluate.StatusTimeout, res.Status)
	assert.Equal(t, evaluate.ErrTimeout, res.Kind)
	assert.Less(t, took, time.Second, "timeout must fire near the configured deadline")
}

func TestSandbox_PanicRecovered(t *testing.T) {
	s := New(nil)
	ev := &fakeEvaluator{name: "boom", fn: func(ctx context.Context) evaluate.Result {
		panic("kaputt")
	}}

	res := s.Run(context.Background(), ev, recognize.Expression{}, time.Second)
	assert.Equal(t, evaluate.StatusError, res.Status)
	assert.Equal(t, evaluate.ErrEvaluationFailed, res.Kind)
	assert.Contains(t, res.Detail, "boom")
}

func TestSandbox_ParentCancellation(t *testing.T) {
	s := New(nil)
	ev := &fakeEvaluator{name: "hang", fn: func(ctx context.Context) evaluate.Result {
		<-ctx.Done()
		return evaluate.Failure(evaluate.ErrEvaluationFailed, "spät")
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := s.Run(ctx, ev, recognize.Expression{}, time.Minute)
	assert.Equal(t, evaluate.StatusError, res.Status)
	assert.Equal(t, evaluate.ErrEvaluationFailed, res.Kind)
}

func TestSandbox_ZeroTimeoutUsesDefault(t *testing.T) {
	s := New(nil)
	ev := &fakeEvaluator{name: "ok", fn: func(ctx context.Context) evaluate.Result {
		deadline, ok := ctx.Deadline()
		if !ok {
			return evaluate.Failure(evaluate.ErrEvaluationFailed, "keine Frist gesetzt")
		}
		if time.Until(deadline) > DefaultTimeout {
			return evaluate.Failure(evaluate.ErrEvaluationFailed, "Frist zu lang")
		}
		return evaluate.Ok("ok")
	}}

	res := s.Run(context.Background(), ev, recognize.Expression{}, 0)
	require.Equal(t, evaluate.StatusOk, res.Status, "detail: %s", res.Detail)
}
