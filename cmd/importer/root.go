package main

import (
	"log/slog"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/JonMunkholm/studentimport/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var (
		envFile string
		cfg     *config.Config
	)

	cmd := &cobra.Command{
		Use:           "importer",
		Short:         "Bulk import of postgraduate students and supervisors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is normal outside development.
			envLoaded := godotenv.Load(envFile) == nil

			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(loaded.Logging.Level, loaded.Logging.Format)
			slog.Debug("configuration loaded", "env_file", envLoaded, "config", loaded.String())

			*cfg = *loaded
			return nil
		},
	}
	cfg = &config.Config{}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(newServeCmd(cfg))
	cmd.AddCommand(newRunCmd(cfg))
	cmd.AddCommand(newBootstrapCmd(cfg))
	return cmd
}
