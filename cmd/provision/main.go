package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"foodlik/config"
	"foodlik/db"
	"foodlik/logging"
	"foodlik/prompt"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "provision",
		Short: "Drop and recreate the foodlik database, apply its schema and load the seed data",
		Long: `provision connects to the administrative database, grants CREATEDB to the user, drops the target
database if it exists and creates it again. It then applies the schema file and loads the categories and
products seed files. Existing data in the target database is destroyed unless --backup is set.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			creds := prompt.Credentials{User: cfg.User, Password: cfg.Password}
			if err := prompt.NewStdio().Complete(&creds, !cfg.NoInput); err != nil {
				return err
			}
			cfg.User, cfg.Password = creds.User, creds.Password

			logger, err := logging.New(cfg.Debug)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := db.NewProvisioner(cfg, logger).Run(ctx); err != nil {
				logger.Errorf("provisioning failed: %v", err)
				return err
			}
			return nil
		},
	}

	config.RegisterFlags(rootCmd.Flags())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}
