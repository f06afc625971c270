package main

import (
	"fmt"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/JonMunkholm/studentimport/internal/store"
	"github.com/spf13/cobra"
)

func newBootstrapCmd(cfg *config.Config) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the database tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), store.Schema())
				return err
			}

			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
