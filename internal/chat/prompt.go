package chat

import (
	"fmt"
	"strings"

	"mathtutor/internal/correction"
	"mathtutor/internal/evaluate"
)

// systemPrompt frames the assistant as a German math tutor. Computed values
// arrive separately as authoritative context; the model explains, it does not
// recompute.
const systemPrompt = `Du bist ein geduldiger Mathematik-Tutor. Du erklärst Rechenwege
Schritt für Schritt auf Deutsch, klar und freundlich.

Regeln:
- Wenn ein Werkzeugergebnis mitgeliefert wird, ist es maßgeblich. Übernimm den
  Wert unverändert und erkläre nur den Rechenweg dorthin.
- Wenn eine Korrektur des Nutzers mitgeliefert wird, hat sie Vorrang vor allem
  anderen. Gib die korrigierte Aussage wieder.
- Erfinde keine Zahlen. Rechne nicht selbst nach.
- Antworte kurz und in ganzen Sätzen.`

// toolContext renders a sandbox result as an authoritative context block for
// the model.
func toolContext(r evaluate.Result) string {
	var b strings.Builder
	switch r.Status {
	case evaluate.StatusOk:
		fmt.Fprintf(&b, "Werkzeugergebnis (maßgeblich): %s\n", r.Value)
		if len(r.Steps) > 0 {
			b.WriteString("Rechenweg:\n")
			for _, step := range r.Steps {
				fmt.Fprintf(&b, "- %s\n", step)
			}
		}
	case evaluate.StatusTimeout:
		fmt.Fprintf(&b, "Werkzeughinweis: Die Auswertung wurde abgebrochen (%s). Erkläre dem Nutzer, dass die Berechnung zu lange dauerte.\n", r.Detail)
	default:
		fmt.Fprintf(&b, "Werkzeughinweis: Die Auswertung ist fehlgeschlagen: %s. Erkläre dem Nutzer das Problem, ohne selbst zu rechnen.\n", r.Detail)
	}
	return strings.TrimRight(b.String(), "\n")
}

// correctionContext renders a matched user correction. It outranks the tool
// result, so it is injected after it.
func correctionContext(e correction.Entry) string {
	return fmt.Sprintf("Vom Nutzer gelernte Korrektur (hat Vorrang): %s", e.Explanation)
}

// correctionAck is the direct reply to a teaching turn; no model call is made.
func correctionAck(d correction.Directive) string {
	if d.Pattern != "" {
		return fmt.Sprintf("Verstanden. Ich merke mir: bei %q gilt ab jetzt %q.", d.Pattern, d.Explanation)
	}
	return "Verstanden. Ich habe mir die Korrektur gemerkt."
}

// correctionUsage is returned when a teaching turn carries no content.
const correctionUsage = `So bringst du mir eine Korrektur bei:
Korrektur: <Muster> => <richtige Erklärung>
oder
Korrigiere: <freie Erklärung>`
