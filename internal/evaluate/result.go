// Package evaluate holds the evaluator strategies for recognized mathematical
// expressions and the ordered registry that dispatches between them.
package evaluate

import (
	"context"

	"mathtutor/internal/recognize"
)

// Status is the outcome class of an evaluation.
type Status int

const (
	StatusOk Status = iota
	StatusError
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// ErrKind classifies evaluation failures. All evaluator failures are recovered
// into a typed Result; none propagate as faults.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrUnrecognized
	ErrDivisionByZero
	ErrNotSolvable
	ErrPrecisionTooHigh
	ErrEvaluationFailed
	ErrTimeout
)

func (k ErrKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrUnrecognized:
		return "unrecognized"
	case ErrDivisionByZero:
		return "division_by_zero"
	case ErrNotSolvable:
		return "not_solvable"
	case ErrPrecisionTooHigh:
		return "precision_too_high"
	case ErrTimeout:
		return "timeout"
	default:
		return "evaluation_failed"
	}
}

// Result is the typed outcome of one evaluation. A Result with StatusOk always
// carries a non-empty Value. Read-only once produced.
type Result struct {
	Status Status
	Value  string   // canonical textual form, never a raw float
	Steps  []string // ordered explanation fragments for the tutor prompt
	Kind   ErrKind
	Detail string // human-readable error detail, folded into the explanation
}

// Ok builds a successful result.
func Ok(value string, steps ...string) Result {
	return Result{Status: StatusOk, Value: value, Steps: steps}
}

// Failure builds a typed error result.
func Failure(kind ErrKind, detail string) Result {
	return Result{Status: StatusError, Kind: kind, Detail: detail}
}

// Timeout builds the deadline-exceeded result. Only the sandbox produces it.
func Timeout(detail string) Result {
	return Result{Status: StatusTimeout, Kind: ErrTimeout, Detail: detail}
}

// Evaluator is the shared capability every strategy implements.
type Evaluator interface {
	Name() string
	CanHandle(expr recognize.Expression) bool
	Evaluate(ctx context.Context, expr recognize.Expression) Result
}
