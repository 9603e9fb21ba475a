package sandbox

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Interp evaluates multi-operator arithmetic chains inside a yaegi
// interpreter. The interpreter sees a strict character whitelist, so the code
// it runs can only ever be an arithmetic expression: no identifiers, no
// imports, no access to the surrounding process, filesystem or network.
type Interp struct{}

func NewInterp() *Interp { return &Interp{} }

var chainAllowed = func() map[rune]bool {
	m := make(map[rune]bool)
	for _, r := range "0123456789+-*/(). " {
		m[r] = true
	}
	return m
}()

// EvalArithmetic runs expr in a fresh restricted interpreter and returns the
// formatted numeric result. A fresh interpreter per call keeps Run re-entrant.
func (ip *Interp) EvalArithmetic(ctx context.Context, expr string) (string, error) {
	for _, r := range expr {
		if !chainAllowed[r] {
			return "", fmt.Errorf("unzulässiges Zeichen %q im Ausdruck", string(r))
		}
	}

	// Integer literals are widened to floats so division keeps its
	// mathematical meaning ("7/2" must be 3.5, not Go's truncating 3).
	floated := widenIntLiterals(expr)

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return "", fmt.Errorf("interpreter init: %w", err)
	}

	done := make(chan struct{})
	var val reflect.Value
	var evalErr error
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				evalErr = fmt.Errorf("auswertung fehlgeschlagen: %v", r)
			}
		}()
		val, evalErr = i.Eval(floated)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if evalErr != nil {
		return "", evalErr
	}
	if !val.IsValid() || val.Kind() != reflect.Float64 {
		return "", fmt.Errorf("unerwartetes Ergebnis")
	}

	f := val.Float()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("Ergebnis ist nicht definiert")
	}
	return formatChainResult(f), nil
}

// widenIntLiterals appends ".0" to every bare integer literal.
func widenIntLiterals(expr string) string {
	var b strings.Builder
	i := 0
	for i < len(expr) {
		c := expr[i]
		if c >= '0' && c <= '9' {
			j := i
			for j < len(expr) && expr[j] >= '0' && expr[j] <= '9' {
				j++
			}
			b.WriteString(expr[i:j])
			if j >= len(expr) || expr[j] != '.' {
				b.WriteString(".0")
				i = j
				continue
			}
			// consume the fractional part as-is
			b.WriteByte('.')
			j++
			for j < len(expr) && expr[j] >= '0' && expr[j] <= '9' {
				b.WriteByte(expr[j])
				j++
			}
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// formatChainResult renders whole results as integers, everything else as a
// shortest-form float.
func formatChainResult(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
