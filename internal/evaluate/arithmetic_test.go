package evaluate

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathtutor/internal/recognize"
)

func arithExpr(normalized string) recognize.Expression {
	return recognize.Expression{
		RawText:        normalized,
		NormalizedText: normalized,
		Category:       recognize.Arithmetic,
	}
}

func TestArithmetic_Binary(t *testing.T) {
	ev := NewArithmetic(nil)
	ctx := context.Background()

	cases := []struct {
		in   string
		want string
	}{
		{"3 + 4", "7"},
		{"10 - 3", "7"},
		{"6 * 7", "42"},
		{"20 / 4", "5"},
		{"7 / 2", "3.5"},
		{"1.5 + 2.5", "4"},
		{"0.1 + 0.2", "0.3"},
		{"-3 + 5", "2"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			res := ev.Evaluate(ctx, arithExpr(tc.in))
			require.Equal(t, StatusOk, res.Status, "detail: %s", res.Detail)
			assert.Equal(t, tc.want, res.Value)
			require.Len(t, res.Steps, 1)
			assert.Contains(t, res.Steps[0], tc.want)
		})
	}
}

func TestArithmetic_ExactDecimals(t *testing.T) {
	// 0.1 + 0.2 must be exactly 0.3, not a float64 artifact.
	ev := NewArithmetic(nil)
	res := ev.Evaluate(context.Background(), arithExpr("0.1 + 0.2"))
	require.Equal(t, StatusOk, res.Status)
	assert.Equal(t, "0.3", res.Value)
}

func TestArithmetic_DivisionByZero(t *testing.T) {
	ev := NewArithmetic(nil)

	t.Run("binary", func(t *testing.T) {
		res := ev.Evaluate(context.Background(), arithExpr("5 / 0"))
		assert.Equal(t, StatusError, res.Status)
		assert.Equal(t, ErrDivisionByZero, res.Kind)
		assert.Contains(t, res.Detail, "Division durch Null")
	})

	t.Run("chain rejected before interpreter", func(t *testing.T) {
		called := false
		chain := func(ctx context.Context, expr string) (string, error) {
			called = true
			return "", nil
		}
		res := NewArithmetic(chain).Evaluate(context.Background(), arithExpr("1 + 2 / 0"))
		assert.Equal(t, ErrDivisionByZero, res.Kind)
		assert.False(t, called, "interpreter must not run for a literal /0")
	})

	t.Run("division by 0.5 is allowed", func(t *testing.T) {
		res := ev.Evaluate(context.Background(), arithExpr("1 / 0.5"))
		require.Equal(t, StatusOk, res.Status)
		assert.Equal(t, "2", res.Value)
	})
}

func TestArithmetic_ChainDelegation(t *testing.T) {
	chain := func(ctx context.Context, expr string) (string, error) {
		assert.Equal(t, "2 + 3 * 4", expr)
		return "14", nil
	}
	res := NewArithmetic(chain).Evaluate(context.Background(), arithExpr("2 + 3 * 4"))
	require.Equal(t, StatusOk, res.Status)
	assert.Equal(t, "14", res.Value)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "2 + 3 * 4 = 14", res.Steps[0])
}

func TestArithmetic_ChainError(t *testing.T) {
	chain := func(ctx context.Context, expr string) (string, error) {
		return "", fmt.Errorf("kaputt")
	}
	res := NewArithmetic(chain).Evaluate(context.Background(), arithExpr("1 + 2 + 3"))
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, ErrEvaluationFailed, res.Kind)
}

func TestArithmetic_NoChainConfigured(t *testing.T) {
	res := NewArithmetic(nil).Evaluate(context.Background(), arithExpr("1 + 2 + 3"))
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, ErrEvaluationFailed, res.Kind)
}

func TestFormatRat(t *testing.T) {
	cases := []struct {
		num, den int64
		want     string
	}{
		{7, 1, "7"},
		{7, 2, "3.5"},
		{3, 10, "0.3"},
		{1, 3, "1/3"},
		{-3, 4, "-0.75"},
		{1, 7, "1/7"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatRat(big.NewRat(tc.num, tc.den)))
		})
	}
}

func TestDivByLiteralZero(t *testing.T) {
	assert.True(t, divByLiteralZero("1/0"))
	assert.True(t, divByLiteralZero("1/0.0"))
	assert.True(t, divByLiteralZero("2+3/00"))
	assert.False(t, divByLiteralZero("1/0.5"))
	assert.False(t, divByLiteralZero("1/5"))
	assert.False(t, divByLiteralZero("10/2"))
}
