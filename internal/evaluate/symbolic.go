package evaluate

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"mathtutor/internal/recognize"
)

// SymbolicEvaluator parses single-variable polynomial equations and
// expressions. Linear and quadratic equations are solved exactly with
// rational arithmetic; quadratic roots fall back to a decimal approximation
// when the discriminant is not a perfect square. Non-equation input is
// simplified to canonical polynomial form.
type SymbolicEvaluator struct{}

func NewSymbolic() *SymbolicEvaluator { return &SymbolicEvaluator{} }

func (e *SymbolicEvaluator) Name() string { return "symbolic" }

func (e *SymbolicEvaluator) CanHandle(expr recognize.Expression) bool {
	return expr.Category == recognize.Algebraic
}

func (e *SymbolicEvaluator) Evaluate(ctx context.Context, expr recognize.Expression) Result {
	text := strings.TrimSpace(expr.NormalizedText)

	lhs, rhs, isEquation := splitEquation(text)
	if !isEquation {
		poly, err := parsePoly(text)
		if err != nil {
			return Failure(ErrNotSolvable, err.Error())
		}
		value := poly.format()
		return Ok(value, fmt.Sprintf("Vereinfacht: %s", value))
	}

	left, err := parsePoly(lhs)
	if err != nil {
		return Failure(ErrNotSolvable, err.Error())
	}
	right, err := parsePoly(rhs)
	if err != nil {
		return Failure(ErrNotSolvable, err.Error())
	}
	poly, err := left.sub(right)
	if err != nil {
		return Failure(ErrNotSolvable, err.Error())
	}

	return solvePoly(poly)
}

func splitEquation(text string) (lhs, rhs string, ok bool) {
	idx := strings.Index(text, "=")
	if idx < 0 {
		return "", "", false
	}
	return text[:idx], text[idx+1:], true
}

// poly is a sparse polynomial over the rationals in one variable.
type poly struct {
	coeffs   map[int]*big.Rat
	variable string
}

func newPoly() *poly {
	return &poly{coeffs: make(map[int]*big.Rat)}
}

func (p *poly) add(deg int, c *big.Rat) {
	if cur, ok := p.coeffs[deg]; ok {
		cur.Add(cur, c)
	} else {
		p.coeffs[deg] = new(big.Rat).Set(c)
	}
}

func (p *poly) degree() int {
	max := 0
	for d, c := range p.coeffs {
		if c.Sign() != 0 && d > max {
			max = d
		}
	}
	return max
}

func (p *poly) coeff(deg int) *big.Rat {
	if c, ok := p.coeffs[deg]; ok {
		return c
	}
	return new(big.Rat)
}

func (p *poly) sub(q *poly) (*poly, error) {
	if p.variable != "" && q.variable != "" && p.variable != q.variable {
		return nil, fmt.Errorf("mehrere Variablen (%s, %s) werden nicht unterstützt", p.variable, q.variable)
	}
	out := newPoly()
	out.variable = p.variable
	if out.variable == "" {
		out.variable = q.variable
	}
	for d, c := range p.coeffs {
		out.add(d, c)
	}
	for d, c := range q.coeffs {
		out.add(d, new(big.Rat).Neg(c))
	}
	return out, nil
}

// format renders the polynomial with descending degrees and implicit
// multiplication, e.g. "x^2 - 5x + 6".
func (p *poly) format() string {
	degs := make([]int, 0, len(p.coeffs))
	for d, c := range p.coeffs {
		if c.Sign() != 0 {
			degs = append(degs, d)
		}
	}
	if len(degs) == 0 {
		return "0"
	}
	sort.Sort(sort.Reverse(sort.IntSlice(degs)))

	v := p.variable
	if v == "" {
		v = "x"
	}

	var b strings.Builder
	for i, d := range degs {
		c := p.coeffs[d]
		neg := c.Sign() < 0
		abs := new(big.Rat).Abs(c)

		if i == 0 {
			if neg {
				b.WriteString("-")
			}
		} else if neg {
			b.WriteString(" - ")
		} else {
			b.WriteString(" + ")
		}

		coeffStr := FormatRat(abs)
		switch {
		case d == 0:
			b.WriteString(coeffStr)
		case coeffStr == "1":
			b.WriteString(monomial(v, d))
		default:
			b.WriteString(coeffStr)
			b.WriteString(monomial(v, d))
		}
	}
	return b.String()
}

func monomial(v string, deg int) string {
	if deg == 1 {
		return v
	}
	return fmt.Sprintf("%s^%d", v, deg)
}

// parsePoly tokenizes a polynomial side: signed terms of the form
// [coeff][*][var][^exp] with implicit multiplication allowed ("5x").
func parsePoly(text string) (*poly, error) {
	p := newPoly()
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, fmt.Errorf("leerer Ausdruck")
	}

	i := 0
	n := len(s)
	for i < n {
		for i < n && s[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}

		sign := 1
		for i < n && (s[i] == '+' || s[i] == '-' || s[i] == ' ') {
			if s[i] == '-' {
				sign = -sign
			}
			i++
		}
		if i >= n {
			return nil, fmt.Errorf("Ausdruck endet mit einem Operator")
		}

		start := i
		for i < n && (isDigit(s[i]) || s[i] == '.') {
			i++
		}
		coeffStr := s[start:i]

		for i < n && (s[i] == ' ' || s[i] == '*') {
			i++
		}

		varName := ""
		if i < n && isLetter(s[i]) {
			varName = string(s[i])
			i++
		}

		deg := 0
		if varName != "" {
			deg = 1
			j := i
			for j < n && s[j] == ' ' {
				j++
			}
			if j < n && s[j] == '^' {
				j++
				for j < n && s[j] == ' ' {
					j++
				}
				expStart := j
				for j < n && isDigit(s[j]) {
					j++
				}
				if expStart == j {
					return nil, fmt.Errorf("Exponent fehlt nach ^")
				}
				fmt.Sscanf(s[expStart:j], "%d", &deg)
				i = j
			}
		}

		if coeffStr == "" && varName == "" {
			if i >= n {
				return nil, fmt.Errorf("Ausdruck endet mit einem Operator")
			}
			return nil, fmt.Errorf("unerwartetes Zeichen %q", string(s[i]))
		}

		coeff := big.NewRat(1, 1)
		if coeffStr != "" {
			c, ok := new(big.Rat).SetString(coeffStr)
			if !ok {
				return nil, fmt.Errorf("Koeffizient %q nicht lesbar", coeffStr)
			}
			coeff = c
		}
		if sign < 0 {
			coeff.Neg(coeff)
		}

		if varName != "" {
			if p.variable == "" {
				p.variable = varName
			} else if p.variable != varName {
				return nil, fmt.Errorf("mehrere Variablen (%s, %s) werden nicht unterstützt", p.variable, varName)
			}
		}
		p.add(deg, coeff)
	}
	return p, nil
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// solvePoly solves poly = 0 for degree <= 2.
func solvePoly(p *poly) Result {
	v := p.variable
	if v == "" {
		v = "x"
	}
	steps := []string{fmt.Sprintf("Normalform: %s = 0", p.format())}

	switch p.degree() {
	case 0:
		if p.coeff(0).Sign() == 0 {
			return Failure(ErrNotSolvable, "Identität 0 = 0: unendlich viele Lösungen")
		}
		return Failure(ErrNotSolvable, "widersprüchliche Gleichung: keine Lösung")

	case 1:
		// a*x + b = 0 -> x = -b/a
		a, b := p.coeff(1), p.coeff(0)
		x := new(big.Rat).Quo(new(big.Rat).Neg(b), a)
		value := fmt.Sprintf("%s = %s", v, FormatRat(x))
		steps = append(steps, fmt.Sprintf("Lineare Gleichung: %s", value))
		return Ok(value, steps...)

	case 2:
		return solveQuadratic(p, v, steps)

	default:
		return Failure(ErrNotSolvable,
			fmt.Sprintf("Polynome vom Grad %d werden nicht symbolisch gelöst", p.degree()))
	}
}

func solveQuadratic(p *poly, v string, steps []string) Result {
	a, b, c := p.coeff(2), p.coeff(1), p.coeff(0)

	// disc = b^2 - 4ac
	disc := new(big.Rat).Mul(b, b)
	disc.Sub(disc, new(big.Rat).Mul(new(big.Rat).Mul(big.NewRat(4, 1), a), c))
	steps = append(steps, fmt.Sprintf("Diskriminante: %s", FormatRat(disc)))

	if disc.Sign() < 0 {
		return Failure(ErrNotSolvable, "negative Diskriminante: keine reellen Lösungen")
	}

	twoA := new(big.Rat).Mul(big.NewRat(2, 1), a)
	negB := new(big.Rat).Neg(b)

	if root, exact := ratSqrt(disc); exact {
		x1 := new(big.Rat).Quo(new(big.Rat).Add(negB, root), twoA)
		x2 := new(big.Rat).Quo(new(big.Rat).Sub(negB, root), twoA)
		if x1.Cmp(x2) > 0 {
			x1, x2 = x2, x1
		}
		var value string
		if x1.Cmp(x2) == 0 {
			value = fmt.Sprintf("%s = %s", v, FormatRat(x1))
		} else {
			value = fmt.Sprintf("%s = %s, %s = %s", v, FormatRat(x1), v, FormatRat(x2))
		}
		steps = append(steps, fmt.Sprintf("Lösungen: %s", value))
		return Ok(value, steps...)
	}

	// Irrational roots: decimal approximation.
	const prec = 96
	sq := new(big.Float).SetPrec(prec).Sqrt(new(big.Float).SetPrec(prec).SetRat(disc))
	negBF := new(big.Float).SetPrec(prec).SetRat(negB)
	twoAF := new(big.Float).SetPrec(prec).SetRat(twoA)
	x1 := new(big.Float).Quo(new(big.Float).Add(negBF, sq), twoAF)
	x2 := new(big.Float).Quo(new(big.Float).Sub(negBF, sq), twoAF)
	if x1.Cmp(x2) > 0 {
		x1, x2 = x2, x1
	}
	value := fmt.Sprintf("%s ≈ %s, %s ≈ %s", v, x1.Text('g', 12), v, x2.Text('g', 12))
	steps = append(steps, fmt.Sprintf("Lösungen (gerundet): %s", value))
	return Ok(value, steps...)
}

// ratSqrt returns the exact rational square root of r when both numerator and
// denominator are perfect squares.
func ratSqrt(r *big.Rat) (*big.Rat, bool) {
	if r.Sign() < 0 {
		return nil, false
	}
	num := new(big.Int).Sqrt(r.Num())
	den := new(big.Int).Sqrt(r.Denom())
	if new(big.Int).Mul(num, num).Cmp(r.Num()) != 0 {
		return nil, false
	}
	if new(big.Int).Mul(den, den).Cmp(r.Denom()) != 0 {
		return nil, false
	}
	return new(big.Rat).SetFrac(num, den), true
}
