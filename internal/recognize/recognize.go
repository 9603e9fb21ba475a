// Package recognize scans raw user text for computable mathematical content
// and classifies it into an evaluation category. Detection is a pure function
// of the input; no state is kept between calls.
package recognize

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is the coarse classification that drives evaluator selection.
type Category int

const (
	Unknown Category = iota
	Arithmetic
	Algebraic
	Numeric
)

func (c Category) String() string {
	switch c {
	case Arithmetic:
		return "arithmetic"
	case Algebraic:
		return "algebraic"
	case Numeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Expression is the recognizer's output: the raw turn text, a normalized form
// suitable for parsing, and the detected category. Immutable once produced.
type Expression struct {
	RawText        string
	NormalizedText string
	Category       Category
}

var (
	reSolveWord = regexp.MustCompile(`(?i)\b(solve|löse|lösen?)\b`)
	// A variable is any letter carrying an exponent, a coefficient, or sitting
	// next to an equality sign. Bare words do not count.
	reVarExponent = regexp.MustCompile(`\b[a-zA-Z]\s*\^\s*\d`)
	reCoeffVar    = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*\*?\s*[a-zA-Z]\b`)
	reVarAtEquals = regexp.MustCompile(`\b[a-zA-Z]\b[^=]*=|=[^=]*\b[a-zA-Z]\b`)
	reEquals      = regexp.MustCompile(`[^=<>!]=[^=]`)

	rePrecisionWord = regexp.MustCompile(`(?i)\bhigh\s+precision\b|\bhoher?\s+pr[äa]zision\b|\bgenauigkeit\b`)
	reDigitRequest  = regexp.MustCompile(`(?i)\b(\d+)\s*(digits?|stellen|nachkommastellen)\b`)
	reRoot          = regexp.MustCompile(`(?i)√\s*\d|\bsqrt\s*\(?\s*\d|\bwurzel\s+(?:aus|von)\s+\d`)

	reArithChain = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*[+\-*/]\s*\d+(?:\.\d+)?)+`)
	reArithParen = regexp.MustCompile(`\(\s*\d+(?:\.\d+)?(?:\s*[+\-*/]\s*\d+(?:\.\d+)?)+\s*\)`)

	// Verbalized arithmetic, German command forms and in-sentence operator
	// words in both languages.
	reAddiere      = regexp.MustCompile(`(?i)\baddiere\s+(\d+(?:[.,]\d+)?)\s+(?:und|zu|mit)\s+(\d+(?:[.,]\d+)?)`)
	reSubtrahiere  = regexp.MustCompile(`(?i)\bsubtrahiere\s+(\d+(?:[.,]\d+)?)\s+von\s+(\d+(?:[.,]\d+)?)`)
	reMultipliziere = regexp.MustCompile(`(?i)\bmultipliziere\s+(\d+(?:[.,]\d+)?)\s+(?:mit|und)\s+(\d+(?:[.,]\d+)?)`)
	reTeile        = regexp.MustCompile(`(?i)\bteile\s+(\d+(?:[.,]\d+)?)\s+durch\s+(\d+(?:[.,]\d+)?)`)
	reOperatorWord = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s+(plus|minus|mal|times|multipliziert\s+mit|geteilt\s+durch|divided\s+by)\s+(\d+(?:[.,]\d+)?)`)
)

var operatorWords = map[string]string{
	"plus":              "+",
	"minus":             "-",
	"mal":               "*",
	"times":             "*",
	"multipliziert mit": "*",
	"geteilt durch":     "/",
	"divided by":        "/",
}

// Recognize classifies text into exactly one Expression. Category Unknown
// means no mathematical content was detected; that is not an error.
//
// Pattern families are tried most specific first: algebraic markers, then
// high-precision markers, then bare or verbalized arithmetic. When a string
// matches both algebraic and arithmetic patterns, algebraic wins as long as a
// variable is present; a bare "=" with no variable to solve for falls through
// to arithmetic.
func Recognize(text string) Expression {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Expression{RawText: text, NormalizedText: "", Category: Unknown}
	}

	if isAlgebraic(trimmed) {
		return Expression{
			RawText:        text,
			NormalizedText: extractAlgebraic(trimmed),
			Category:       Algebraic,
		}
	}

	if isNumeric(trimmed) {
		return Expression{
			RawText:        text,
			NormalizedText: trimmed,
			Category:       Numeric,
		}
	}

	if norm, ok := extractArithmetic(trimmed); ok {
		return Expression{
			RawText:        text,
			NormalizedText: norm,
			Category:       Arithmetic,
		}
	}

	return Expression{RawText: text, NormalizedText: trimmed, Category: Unknown}
}

// hasVariable reports whether the text contains something solvable: a letter
// with an exponent, a coefficient-letter pair, or a letter adjacent to "=".
func hasVariable(text string) bool {
	return reVarExponent.MatchString(text) ||
		reCoeffVar.MatchString(text) ||
		reVarAtEquals.MatchString(text)
}

func isAlgebraic(text string) bool {
	if reSolveWord.MatchString(text) && (hasVariable(text) || reEquals.MatchString(text)) {
		return true
	}
	if reVarExponent.MatchString(text) {
		return true
	}
	// Equality sign alone is ambiguous: with no variable present there is
	// nothing to solve for, so arithmetic gets first shot instead.
	if reEquals.MatchString(text) && hasVariable(text) {
		return true
	}
	return false
}

func isNumeric(text string) bool {
	return rePrecisionWord.MatchString(text) ||
		reDigitRequest.MatchString(text) ||
		reRoot.MatchString(text)
}

// extractAlgebraic strips command words so the symbolic parser sees only the
// equation or expression body.
func extractAlgebraic(text string) string {
	s := reSolveWord.ReplaceAllString(text, "")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "!")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// extractArithmetic pulls the arithmetic payload out of the text and rewrites
// verbalized German/English operator forms into canonical "a <op> b" shape.
func extractArithmetic(text string) (string, bool) {
	// Parenthesized and chained forms first; longest match wins so the most
	// complete expression is kept.
	if m := reArithParen.FindString(text); m != "" {
		return strings.TrimSpace(m), true
	}
	if ms := reArithChain.FindAllString(text, -1); len(ms) > 0 {
		best := ms[0]
		for _, m := range ms[1:] {
			if len(m) > len(best) {
				best = m
			}
		}
		return strings.TrimSpace(best), true
	}

	type verbalForm struct {
		re   *regexp.Regexp
		op   string
		swap bool
	}
	forms := []verbalForm{
		{reAddiere, "+", false},
		{reSubtrahiere, "-", true}, // "subtrahiere a von b" means b - a
		{reMultipliziere, "*", false},
		{reTeile, "/", false},
	}
	for _, f := range forms {
		if m := f.re.FindStringSubmatch(text); m != nil {
			a, b := decimalize(m[1]), decimalize(m[2])
			if f.swap {
				a, b = b, a
			}
			return fmt.Sprintf("%s %s %s", a, f.op, b), true
		}
	}

	if m := reOperatorWord.FindStringSubmatch(text); m != nil {
		word := strings.ToLower(strings.Join(strings.Fields(m[2]), " "))
		if op, ok := operatorWords[word]; ok {
			return fmt.Sprintf("%s %s %s", decimalize(m[1]), op, decimalize(m[3])), true
		}
	}

	return "", false
}

// decimalize converts German decimal commas to dots.
func decimalize(n string) string {
	return strings.ReplaceAll(n, ",", ".")
}
