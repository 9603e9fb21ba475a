package evaluate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathtutor/internal/recognize"
)

func numExpr(text string) recognize.Expression {
	return recognize.Expression{
		RawText:        text,
		NormalizedText: text,
		Category:       recognize.Numeric,
	}
}

// significantDigits counts digits without sign and decimal point.
func significantDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func TestNumeric_SquareRoot(t *testing.T) {
	ev := NewNumeric(0)

	t.Run("sqrt 2 with requested digits", func(t *testing.T) {
		res := ev.Evaluate(context.Background(), numExpr("√2 auf 30 Stellen"))
		require.Equal(t, StatusOk, res.Status, "detail: %s", res.Detail)
		assert.True(t, strings.HasPrefix(res.Value, "1.4142135623730950488"),
			"got %s", res.Value)
		assert.Equal(t, 30, significantDigits(res.Value))
	})

	t.Run("default digit count", func(t *testing.T) {
		res := ev.Evaluate(context.Background(), numExpr("wurzel aus 2"))
		require.Equal(t, StatusOk, res.Status)
		assert.Equal(t, DefaultPrecision, significantDigits(res.Value))
	})

	t.Run("sqrt function notation", func(t *testing.T) {
		res := ev.Evaluate(context.Background(), numExpr("sqrt(9)"))
		require.Equal(t, StatusOk, res.Status)
		assert.True(t, strings.HasPrefix(res.Value, "3"), "got %s", res.Value)
	})
}

func TestNumeric_Fraction(t *testing.T) {
	ev := NewNumeric(0)

	res := ev.Evaluate(context.Background(), numExpr("1/7 auf 20 Stellen"))
	require.Equal(t, StatusOk, res.Status, "detail: %s", res.Detail)
	assert.True(t, strings.HasPrefix(res.Value, "0.1428571428571428571"), "got %s", res.Value)
}

func TestNumeric_FractionDivisionByZero(t *testing.T) {
	res := NewNumeric(0).Evaluate(context.Background(), numExpr("1/0 auf 10 Stellen"))
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, ErrDivisionByZero, res.Kind)
}

func TestNumeric_PrecisionCeiling(t *testing.T) {
	t.Run("request above ceiling fails fast", func(t *testing.T) {
		res := NewNumeric(100).Evaluate(context.Background(), numExpr("√2 auf 101 Stellen"))
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, ErrPrecisionTooHigh, res.Kind)
		assert.Contains(t, res.Detail, "101")
	})

	t.Run("request at ceiling succeeds", func(t *testing.T) {
		res := NewNumeric(100).Evaluate(context.Background(), numExpr("√2 auf 100 Stellen"))
		assert.Equal(t, StatusOk, res.Status)
	})

	t.Run("default ceiling applies when zero", func(t *testing.T) {
		ev := NewNumeric(0)
		res := ev.Evaluate(context.Background(), numExpr("√2 auf 20000 Stellen"))
		assert.Equal(t, ErrPrecisionTooHigh, res.Kind)
	})

	t.Run("digit request beyond int range is above ceiling", func(t *testing.T) {
		res := NewNumeric(0).Evaluate(context.Background(),
			numExpr("√2 auf 99999999999999999999 Stellen"))
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, ErrPrecisionTooHigh, res.Kind)
	})
}

func TestNumeric_Unparseable(t *testing.T) {
	res := NewNumeric(0).Evaluate(context.Background(), numExpr("hohe Genauigkeit bitte"))
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, ErrEvaluationFailed, res.Kind)
}
