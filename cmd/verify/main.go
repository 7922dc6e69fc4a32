package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"foodlik/config"
	"foodlik/db"
	"foodlik/logging"
	"foodlik/prompt"
	"foodlik/seed"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "verify",
		Short:        "Check that a provisioned foodlik database matches its seed files",
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

			ds, err := seed.Load(cfg.CategoriesPath(), cfg.ProductsPath())
			if err != nil {
				return err
			}

			dbConn, err := db.OpenPostgres(cfg.TargetDSN(), cfg.Debug)
			if err != nil {
				return err
			}
			sqlDB, err := dbConn.DB()
			if err != nil {
				return err
			}
			defer func() {
				if err := sqlDB.Close(); err != nil {
					logger.Warnf("failed to close database: %v", err)
				}
			}()

			store := db.NewSQLStore(dbConn)
			if err := store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("database %s is not reachable: %w", cfg.Database, err)
			}

			report, err := db.Verify(store, ds)
			if err != nil {
				return err
			}
			logger.Infof("expected %d categories, %d products, %d links; found %d, %d, %d",
				report.Expected.Categories, report.Expected.Products, report.Expected.Links,
				report.Actual.Categories, report.Actual.Products, report.Actual.Links)
			if report.OK() {
				logger.Infof("database %s matches the seed data", cfg.Database)
				return nil
			}
			for _, problem := range report.Problems {
				fmt.Fprintln(os.Stdout, problem)
			}
			return fmt.Errorf("database %s differs from the seed data: %d problems", cfg.Database, len(report.Problems))
		},
	}

	config.RegisterFlags(rootCmd.Flags())
	// provisioning-only flags
	for _, name := range []string{config.SchemaKey, config.SeedKey, config.BackupKey, config.MaxBackupsKey, config.AdminDatabaseKey} {
		_ = rootCmd.Flags().MarkHidden(name)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}
