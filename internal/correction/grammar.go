package correction

import "strings"

// correctionPrefixes are the turn prefixes that mark a user message as a
// teaching turn rather than a question. Matching is case-sensitive.
var correctionPrefixes = []string{"Korrektur:", "Korrigiere:"}

// Directive is a parsed teaching turn.
type Directive struct {
	// Pattern is the trigger text to match future inputs against. Empty when
	// the user gave an explanation without the "pattern => replacement" form.
	Pattern string
	// Explanation is the replacement or clarification text.
	Explanation string
}

// ParseDirective recognizes the correction grammar:
//
//	Korrektur: <pattern> => <replacement>
//	Korrigiere: <free-form explanation>
//
// The boolean reports whether the message is a teaching turn at all. A
// recognized turn with an empty body still returns true so the caller can
// answer with a usage hint instead of routing the text to an evaluator.
func ParseDirective(message string) (Directive, bool) {
	trimmed := strings.TrimSpace(message)

	var body string
	matched := false
	for _, prefix := range correctionPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			body = strings.TrimSpace(trimmed[len(prefix):])
			matched = true
			break
		}
	}
	if !matched {
		return Directive{}, false
	}

	if pat, repl, ok := strings.Cut(body, "=>"); ok {
		return Directive{
			Pattern:     strings.TrimSpace(pat),
			Explanation: strings.TrimSpace(repl),
		}, true
	}
	return Directive{Explanation: body}, true
}
