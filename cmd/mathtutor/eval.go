package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mathtutor/internal/evaluate"
	"mathtutor/internal/recognize"
)

func runEval(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	expr := recognize.Recognize(text)
	fmt.Printf("Kategorie: %s\n", expr.Category)
	if expr.Category == recognize.Unknown {
		return fmt.Errorf("keine mathematische Eingabe erkannt")
	}

	registry, sb := newRegistry()
	ev, ok := registry.Select(expr)
	if !ok {
		return fmt.Errorf("kein Auswertungswerkzeug für diese Eingabe")
	}
	fmt.Printf("Werkzeug:  %s\n", ev.Name())

	result := sb.Run(cmd.Context(), ev, expr, cfg.EvalTimeout())
	switch result.Status {
	case evaluate.StatusOk:
		fmt.Printf("Ergebnis:  %s\n", result.Value)
		for _, step := range result.Steps {
			fmt.Printf("  %s\n", step)
		}
		return nil
	default:
		return fmt.Errorf("%s: %s", result.Kind, result.Detail)
	}
}
