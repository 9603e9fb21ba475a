package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// runChat is the interactive loop. One session per process run; Ctrl+C
// cancels the in-flight turn and a second one exits.
func runChat(ctx context.Context) error {
	orch, stop, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer stop()

	sessionID := uuid.NewString()
	fmt.Printf("mathtutor (Sitzung %s)\n", sessionID[:8])
	fmt.Println("Stelle eine Matheaufgabe, oder bringe mir mit \"Korrektur: ...\" etwas bei.")
	fmt.Println("Beenden mit \"exit\" oder Strg+D.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		_, err := orch.HandleTurn(ctx, sessionID, line, func(frag string) error {
			fmt.Print(frag)
			return nil
		})
		fmt.Println()
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			return nil
		default:
			fmt.Fprintln(os.Stderr, "Fehler:", err)
		}
	}
	return scanner.Err()
}
