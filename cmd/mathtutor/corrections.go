package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runCorrectionsList(cmd *cobra.Command, args []string) error {
	st, err := openCorrections()
	if err != nil {
		return err
	}

	entries := st.Entries()
	if len(entries) == 0 {
		fmt.Println("Keine Korrekturen gespeichert.")
		return nil
	}
	for i, e := range entries {
		marker := " "
		if e.AutoApply {
			marker = "*"
		}
		fmt.Printf("%3d %s [%s] %q => %s\n",
			i+1, marker, e.CreatedAt.Format("2006-01-02 15:04"), e.Pattern, e.Explanation)
	}
	return nil
}

func runCorrectionsAdd(cmd *cobra.Command, args []string) error {
	st, err := openCorrections()
	if err != nil {
		return err
	}
	entry, err := st.Record(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Gespeichert: %q => %s\n", entry.Pattern, entry.Explanation)
	return nil
}
