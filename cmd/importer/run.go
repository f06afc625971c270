package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/JonMunkholm/studentimport/internal/core"
	"github.com/spf13/cobra"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		ext      string
		ownerID  string
		importID string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Import one spreadsheet synchronously and print the summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if ext == "" {
				ext = filepath.Ext(path)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			run, runErr := a.dispatcher.RunSync(cmd.Context(), core.Job{
				ImportID:  importID,
				FilePath:  path,
				FileName:  filepath.Base(path),
				Extension: ext,
				OwnerID:   ownerID,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(run); err != nil {
					return err
				}
			} else {
				printSummary(out, run)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "", "file format: csv, xlsx or xls (default: from the file name)")
	cmd.Flags().StringVar(&ownerID, "owner", "cli", "owner recorded on the import run")
	cmd.Flags().StringVar(&importID, "id", "", "import ID (default: generated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

func printSummary(w io.Writer, run *core.ImportRun) {
	fmt.Fprintf(w, "import %s: %s (%d/%d rows, %d attempt(s))\n",
		run.ID, run.Status, run.ProcessedRows, run.TotalRows, run.Attempts)
	if run.LastError != "" {
		fmt.Fprintf(w, "  error: %s\n", run.LastError)
	}
	for _, kind := range core.Kinds {
		created := run.Counters.Get(kind, true)
		updated := run.Counters.Get(kind, false)
		if created+updated > 0 {
			fmt.Fprintf(w, "  %-14s created %d, updated %d\n", kind, created, updated)
		}
	}
	for _, e := range run.Errors {
		fmt.Fprintf(w, "  row %d: %s\n", e.Row, e.Reason)
	}
}
