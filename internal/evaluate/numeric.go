package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"mathtutor/internal/recognize"
)

// DefaultPrecision is the digit count used when the user does not ask for a
// specific one.
const DefaultPrecision = 50

// DefaultPrecisionCeiling bounds adversarially large digit requests. Requests
// above the ceiling are rejected instead of computed.
const DefaultPrecisionCeiling = 10000

var (
	reNumRoot     = regexp.MustCompile(`(?i)(?:√\s*|sqrt\s*\(?\s*|wurzel\s+(?:aus|von)\s+)(\d+(?:\.\d+)?)`)
	reNumDigits   = regexp.MustCompile(`(?i)\b(\d+)\s*(?:digits?|stellen|nachkommastellen)\b`)
	reNumFraction = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*(\d+(?:\.\d+)?)`)
	reNumPlain    = regexp.MustCompile(`\d+\.\d+|\d+`)
)

// NumericEvaluator computes values that need arbitrary precision: square
// roots of non-negative rationals and exact fractions, rendered to a
// requested number of significant digits.
type NumericEvaluator struct {
	ceiling int
}

func NewNumeric(ceiling int) *NumericEvaluator {
	if ceiling <= 0 {
		ceiling = DefaultPrecisionCeiling
	}
	return &NumericEvaluator{ceiling: ceiling}
}

func (e *NumericEvaluator) Name() string { return "numeric" }

func (e *NumericEvaluator) CanHandle(expr recognize.Expression) bool {
	return expr.Category == recognize.Numeric
}

func (e *NumericEvaluator) Evaluate(ctx context.Context, expr recognize.Expression) Result {
	digits := DefaultPrecision
	if m := reNumDigits.FindStringSubmatch(expr.RawText); m != nil {
		n, err := strconv.Atoi(m[1])
		if errors.Is(err, strconv.ErrRange) {
			// A digit count too large for int is certainly above the ceiling.
			return Failure(ErrPrecisionTooHigh,
				fmt.Sprintf("%s Stellen überschreiten das Limit von %d", m[1], e.ceiling))
		}
		if err != nil || n <= 0 {
			return Failure(ErrEvaluationFailed, "ungültige Stellenangabe")
		}
		digits = n
	}
	if digits > e.ceiling {
		return Failure(ErrPrecisionTooHigh,
			fmt.Sprintf("%d Stellen überschreiten das Limit von %d", digits, e.ceiling))
	}

	// math/big precision is in bits; ~3.33 bits per decimal digit plus slack
	// for guard digits.
	prec := uint(digits)*4 + 64

	if m := reNumRoot.FindStringSubmatch(expr.NormalizedText); m != nil {
		return e.evalRoot(m[1], digits, prec)
	}
	if m := reNumFraction.FindStringSubmatch(expr.NormalizedText); m != nil {
		return e.evalFraction(m[1], m[2], digits, prec)
	}
	if m := reNumPlain.FindString(stripDigitRequest(expr.NormalizedText)); m != "" {
		f, _, err := big.ParseFloat(m, 10, prec, big.ToNearestEven)
		if err != nil {
			return Failure(ErrEvaluationFailed, err.Error())
		}
		value := formatFloat(f, digits)
		return Ok(value, fmt.Sprintf("%s mit %d Stellen: %s", m, digits, value))
	}

	return Failure(ErrEvaluationFailed,
		fmt.Sprintf("kein numerisch auswertbarer Ausdruck: %q", expr.NormalizedText))
}

func (e *NumericEvaluator) evalRoot(operand string, digits int, prec uint) Result {
	x, _, err := big.ParseFloat(operand, 10, prec, big.ToNearestEven)
	if err != nil {
		return Failure(ErrEvaluationFailed, err.Error())
	}
	if x.Sign() < 0 {
		return Failure(ErrNotSolvable, "Wurzel aus einer negativen Zahl ist nicht reell")
	}
	root := new(big.Float).SetPrec(prec).Sqrt(x)
	value := formatFloat(root, digits)
	return Ok(value,
		fmt.Sprintf("√%s auf %d Stellen: %s", operand, digits, value))
}

func (e *NumericEvaluator) evalFraction(numStr, denStr string, digits int, prec uint) Result {
	num, _, err := big.ParseFloat(numStr, 10, prec, big.ToNearestEven)
	if err != nil {
		return Failure(ErrEvaluationFailed, err.Error())
	}
	den, _, err := big.ParseFloat(denStr, 10, prec, big.ToNearestEven)
	if err != nil {
		return Failure(ErrEvaluationFailed, err.Error())
	}
	if den.Sign() == 0 {
		return Failure(ErrDivisionByZero, "Division durch Null ist nicht definiert")
	}
	q := new(big.Float).SetPrec(prec).Quo(num, den)
	value := formatFloat(q, digits)
	return Ok(value,
		fmt.Sprintf("%s/%s auf %d Stellen: %s", numStr, denStr, digits, value))
}

// stripDigitRequest removes the "auf N Stellen" style suffix so the digit
// count itself is not mistaken for the operand.
func stripDigitRequest(text string) string {
	return reNumDigits.ReplaceAllString(text, "")
}

// formatFloat renders exactly the requested count of significant decimal
// digits.
func formatFloat(f *big.Float, digits int) string {
	return f.Text('g', digits)
}
