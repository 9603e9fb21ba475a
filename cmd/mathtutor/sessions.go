package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mathtutor/internal/store"
)

func openSessions() (*store.SessionStore, error) {
	if cfg.Sessions.DBPath == "" {
		return nil, fmt.Errorf("session persistence is disabled (sessions.db_path is empty)")
	}
	return store.OpenSessions(cfg.Sessions.DBPath, logger)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("Keine Sitzungen gespeichert.")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%s  %s  %d Nachrichten\n",
			info.ID, info.CreatedAt.Format("2006-01-02 15:04"), info.TurnCount)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openSessions()
	if err != nil {
		return err
	}
	defer st.Close()

	turns, err := st.LoadTurns(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Println("Sitzung nicht gefunden oder leer.")
		return nil
	}
	for _, t := range turns {
		fmt.Printf("[%s] %s\n", t.Role, t.Content)
	}
	return nil
}
