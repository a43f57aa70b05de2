package main

import (
	"fmt"
	"os"

	"github.com/dom/nutrition-practice/internal/config"
	"github.com/dom/nutrition-practice/internal/logger"
	"github.com/dom/nutrition-practice/internal/repository/postgres"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nutrition-practice",
		Short:         "Nutrition practice API and notification worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Serve(withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also deliver notifications in this process")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued notifications and run the maintenance sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.RunWorker()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.SetupDefault(os.Stdout, cfg.Environment)

			// Opening the connection migrates the schema
			db, err := postgres.NewConnection(cfg.DatabaseURL, postgres.LogLevel(cfg.Environment))
			if err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			log.Info("database schema is up to date")
			return nil
		},
	}
}
