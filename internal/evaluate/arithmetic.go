package evaluate

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"mathtutor/internal/recognize"
)

var (
	reBinary = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*([+\-*/])\s*(-?\d+(?:\.\d+)?)\s*$`)
	reChain  = regexp.MustCompile(`^[\d+\-*/()., ]+$`)
)

// ArithmeticEvaluator handles plain two-operand arithmetic exactly, using
// rational arithmetic so decimal inputs never lose precision in display.
// Longer operator chains are delegated to an injected restricted interpreter.
type ArithmeticEvaluator struct {
	chain ChainFunc
}

func NewArithmetic(chain ChainFunc) *ArithmeticEvaluator {
	return &ArithmeticEvaluator{chain: chain}
}

func (e *ArithmeticEvaluator) Name() string { return "arithmetic" }

func (e *ArithmeticEvaluator) CanHandle(expr recognize.Expression) bool {
	return expr.Category == recognize.Arithmetic
}

func (e *ArithmeticEvaluator) Evaluate(ctx context.Context, expr recognize.Expression) Result {
	if m := reBinary.FindStringSubmatch(expr.NormalizedText); m != nil {
		return e.evalBinary(m[1], m[2], m[3])
	}
	if e.chain != nil && reChain.MatchString(expr.NormalizedText) {
		return e.evalChain(ctx, expr.NormalizedText)
	}
	return Failure(ErrEvaluationFailed,
		fmt.Sprintf("kein arithmetischer Ausdruck: %q", expr.NormalizedText))
}

func (e *ArithmeticEvaluator) evalBinary(aStr, op, bStr string) Result {
	a, okA := new(big.Rat).SetString(aStr)
	b, okB := new(big.Rat).SetString(bStr)
	if !okA || !okB {
		return Failure(ErrEvaluationFailed, "Operanden nicht lesbar")
	}

	out := new(big.Rat)
	switch op {
	case "+":
		out.Add(a, b)
	case "-":
		out.Sub(a, b)
	case "*":
		out.Mul(a, b)
	case "/":
		if b.Sign() == 0 {
			return Failure(ErrDivisionByZero, "Division durch Null ist nicht definiert")
		}
		out.Quo(a, b)
	default:
		return Failure(ErrEvaluationFailed, "unbekannter Operator "+op)
	}

	value := FormatRat(out)
	step := fmt.Sprintf("%s %s %s = %s", aStr, op, bStr, value)
	return Ok(value, step)
}

func (e *ArithmeticEvaluator) evalChain(ctx context.Context, expr string) Result {
	// Literal "/0" is rejected up front so it surfaces as the typed error
	// rather than an interpreter fault.
	compact := strings.ReplaceAll(expr, " ", "")
	if divByLiteralZero(compact) {
		return Failure(ErrDivisionByZero, "Division durch Null ist nicht definiert")
	}

	value, err := e.chain(ctx, expr)
	if err != nil {
		return Failure(ErrEvaluationFailed, err.Error())
	}
	return Ok(value, fmt.Sprintf("%s = %s", strings.TrimSpace(expr), value))
}

// divByLiteralZero reports whether the compacted expression divides by the
// literal zero value (0, 0.0, 00 ...), as opposed to e.g. /0.5.
func divByLiteralZero(compact string) bool {
	for i := 0; i < len(compact); i++ {
		if compact[i] != '/' {
			continue
		}
		j := i + 1
		for j < len(compact) && (compact[j] == '0' || compact[j] == '.') {
			j++
		}
		if j == i+1 {
			continue // not followed by a digit at all
		}
		seg := compact[i+1 : j]
		if j < len(compact) && compact[j] >= '1' && compact[j] <= '9' {
			continue // e.g. /0.5
		}
		allZero := true
		for _, c := range seg {
			if c != '0' && c != '.' {
				allZero = false
				break
			}
		}
		if allZero {
			return true
		}
	}
	return false
}

// FormatRat renders a rational exactly: integers without a fraction part,
// terminating decimals as decimals, everything else as a reduced fraction.
func FormatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	if scale, ok := decimalScale(r); ok {
		s := r.FloatString(scale)
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
		return s
	}
	return r.RatString()
}

// decimalScale returns the number of fractional digits needed to write r as a
// terminating decimal, when the reduced denominator is of the form 2^a * 5^b.
func decimalScale(r *big.Rat) (int, bool) {
	den := new(big.Int).Set(r.Denom())
	two := big.NewInt(2)
	five := big.NewInt(5)
	zero := new(big.Int)
	a, b := 0, 0
	for new(big.Int).Mod(den, two).Cmp(zero) == 0 {
		den.Div(den, two)
		a++
	}
	for new(big.Int).Mod(den, five).Cmp(zero) == 0 {
		den.Div(den, five)
		b++
	}
	if den.Cmp(big.NewInt(1)) != 0 {
		return 0, false
	}
	if b > a {
		return b, true
	}
	return a, true
}
