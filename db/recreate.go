package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const backupTimeLayout = "20060102_150405"

// adminConn is the subset of *pgx.Conn used on the administrative database. Statements run outside any
// transaction since CREATE DATABASE and DROP DATABASE cannot run inside one.
type adminConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecreateOptions describe how the target database is replaced.
type RecreateOptions struct {
	User     string
	Database string
	// Backup copies an existing target to <Database>_bak_<timestamp> before dropping it.
	Backup     bool
	MaxBackups int
	Now        func() time.Time
}

// Recreate connects to the administrative database at adminDSN, grants CREATEDB to the user, then drops and
// creates the target database. Any data in the target is destroyed unless a backup was requested.
func Recreate(ctx context.Context, adminDSN string, opts RecreateOptions, log *zap.SugaredLogger) error {
	connConfig, err := pgx.ParseConfig(adminDSN)
	if err != nil {
		return fmt.Errorf("failed to create connection config: %w", err)
	}
	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", connConfig.Database, err)
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			log.Warnf("failed to close admin connection: %v", err)
		}
	}()

	return recreate(ctx, conn, opts, log)
}

func recreate(ctx context.Context, conn adminConn, opts RecreateOptions, log *zap.SugaredLogger) error {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	target := quoteIdent(opts.Database)

	if _, err := conn.Exec(ctx, fmt.Sprintf("ALTER USER %s CREATEDB", quoteIdent(opts.User))); err != nil {
		return fmt.Errorf("failed to grant CREATEDB to %s: %w", opts.User, err)
	}

	if opts.Backup {
		if err := backupDatabase(ctx, conn, opts, log); err != nil {
			return err
		}
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", target)); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", opts.Database, err)
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", target)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", opts.Database, err)
	}
	log.Infof("database %s created", opts.Database)
	return nil
}

func backupDatabase(ctx context.Context, conn adminConn, opts RecreateOptions, log *zap.SugaredLogger) error {
	var exists bool
	err := conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", opts.Database).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}
	if !exists {
		log.Debugf("database %s does not exist yet, nothing to back up", opts.Database)
		return nil
	}

	backup := backupName(opts.Database, opts.Now())
	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", quoteIdent(backup), quoteIdent(opts.Database)))
	if err != nil {
		return fmt.Errorf("failed to create DB backup: %w", err)
	}
	log.Infof("existing database backed up to %s", backup)

	var names []string
	prefix := backupPrefix(opts.Database)
	err = conn.QueryRow(ctx,
		"SELECT COALESCE(array_agg(datname::text ORDER BY datname), '{}') FROM pg_database WHERE left(datname, length($1)) = $1",
		prefix).Scan(&names)
	if err != nil {
		log.Warnf("failed to list database backups: %v", err)
		return nil
	}
	for _, name := range backupsToPrune(names, opts.Database, opts.MaxBackups) {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", quoteIdent(name))); err != nil {
			log.Warnf("failed to remove old backup %s: %v", name, err)
			continue
		}
		log.Infof("removed old backup: %s", name)
	}
	return nil
}

func backupPrefix(database string) string {
	return database + "_bak_"
}

func backupName(database string, t time.Time) string {
	return backupPrefix(database) + t.Format(backupTimeLayout)
}

// backupsToPrune returns the oldest backups of database beyond the max most recent ones. Names that do not carry
// a backup timestamp are never returned.
func backupsToPrune(names []string, database string, max int) []string {
	prefix := backupPrefix(database)
	var backups []string
	for _, n := range names {
		if len(n) <= len(prefix) || n[:len(prefix)] != prefix {
			continue
		}
		if _, err := time.Parse(backupTimeLayout, n[len(prefix):]); err != nil {
			continue
		}
		backups = append(backups, n)
	}
	if len(backups) <= max {
		return nil
	}
	sort.Strings(backups)
	return backups[:len(backups)-max]
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
