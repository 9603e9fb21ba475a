package evaluate

import (
	"context"

	"go.uber.org/zap"

	"mathtutor/internal/recognize"
)

// Registry holds evaluators in registration order. The order is an escalation
// policy: cheap deterministic evaluators are tried before expensive symbolic
// and high-precision ones, which bounds average-case latency.
type Registry struct {
	evaluators []Evaluator
	logger     *zap.Logger
}

// ChainFunc evaluates a multi-operator arithmetic chain inside a restricted
// interpreter. Injected by the caller so the arithmetic evaluator stays free
// of interpreter wiring.
type ChainFunc func(ctx context.Context, expr string) (string, error)

// NewRegistry builds the default registry: Arithmetic, Symbolic, Numeric.
func NewRegistry(chain ChainFunc, maxPrecision int, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		evaluators: []Evaluator{
			NewArithmetic(chain),
			NewSymbolic(),
			NewNumeric(maxPrecision),
		},
		logger: logger,
	}
}

// Evaluators returns the registered strategies in dispatch order.
func (r *Registry) Evaluators() []Evaluator {
	return r.evaluators
}

// Select returns the first evaluator whose CanHandle accepts the expression.
func (r *Registry) Select(expr recognize.Expression) (Evaluator, bool) {
	for _, ev := range r.evaluators {
		if ev.CanHandle(expr) {
			return ev, true
		}
	}
	return nil, false
}

// Dispatch runs the first matching evaluator directly, without sandbox
// guards. Callers that need a timeout wrap the selected evaluator in the
// sandbox instead.
func (r *Registry) Dispatch(ctx context.Context, expr recognize.Expression) Result {
	ev, ok := r.Select(expr)
	if !ok {
		r.logger.Debug("no evaluator matched",
			zap.String("category", expr.Category.String()))
		return Failure(ErrUnrecognized, "kein Auswertungswerkzeug für diese Eingabe")
	}
	r.logger.Debug("dispatching expression",
		zap.String("evaluator", ev.Name()),
		zap.String("normalized", expr.NormalizedText))
	return ev.Evaluate(ctx, expr)
}
