// Package sandbox wraps evaluator calls with the two guards every evaluation
// runs under: a wall-clock deadline and a restricted execution namespace.
// Internal failures never escape as faults; they are mapped to typed results.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mathtutor/internal/evaluate"
	"mathtutor/internal/recognize"
)

// DefaultTimeout bounds a single evaluation when the caller does not
// configure one.
const DefaultTimeout = 5 * time.Second

// Sandbox runs evaluators under a deadline. It is re-entrant: concurrent Run
// calls for different sessions share no mutable state.
type Sandbox struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{logger: logger}
}

// Run invokes ev.Evaluate under a wall-clock deadline. If the deadline
// elapses first the call is abandoned and a Timeout result is returned; the
// worker goroutine writes its late result into a buffered channel so it can
// always finish without blocking. A panic inside the evaluator is recovered
// and mapped to an EvaluationFailed result.
func (s *Sandbox) Run(ctx context.Context, ev evaluate.Evaluator, expr recognize.Expression, timeout time.Duration) evaluate.Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan evaluate.Result, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("evaluator panicked",
					zap.String("evaluator", ev.Name()),
					zap.Any("panic", r))
				results <- evaluate.Failure(evaluate.ErrEvaluationFailed,
					fmt.Sprintf("interner Fehler im Auswerter %s", ev.Name()))
			}
		}()
		results <- ev.Evaluate(ctx, expr)
	}()

	select {
	case res := <-results:
		s.logger.Debug("evaluation finished",
			zap.String("evaluator", ev.Name()),
			zap.String("status", res.Status.String()),
			zap.Duration("took", time.Since(start)))
		return res
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("evaluation timed out",
				zap.String("evaluator", ev.Name()),
				zap.Duration("timeout", timeout))
			return evaluate.Timeout(
				fmt.Sprintf("Auswertung nach %s abgebrochen", timeout))
		}
		return evaluate.Failure(evaluate.ErrEvaluationFailed, "Auswertung abgebrochen")
	}
}
