package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"foodlik/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeAdminConn records every statement and answers the two catalog queries issued by recreate.
type fakeAdminConn struct {
	statements []string
	exists     bool
	databases  []string
	failOn     string
}

func (c *fakeAdminConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	c.statements = append(c.statements, sql)
	if c.failOn != "" && strings.HasPrefix(sql, c.failOn) {
		return pgconn.CommandTag{}, errors.New("permission denied")
	}
	return pgconn.CommandTag{}, nil
}

func (c *fakeAdminConn) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	return fakeRow{scan: func(dest ...any) error {
		switch d := dest[0].(type) {
		case *bool:
			*d = c.exists
		case *[]string:
			*d = c.databases
		default:
			return fmt.Errorf("unexpected scan target %T for %q", dest[0], sql)
		}
		return nil
	}}
}

func TestRecreate(t *testing.T) {
	conn := &fakeAdminConn{exists: true}
	err := recreate(context.Background(), conn, RecreateOptions{User: "chef", Database: "foodlik"}, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.Equal(t, []string{
		`ALTER USER "chef" CREATEDB`,
		`DROP DATABASE IF EXISTS "foodlik"`,
		`CREATE DATABASE "foodlik"`,
	}, conn.statements)
}

func TestRecreateQuotesIdentifiers(t *testing.T) {
	conn := &fakeAdminConn{}
	opts := RecreateOptions{User: `chef"; DROP ROLE postgres; --`, Database: "food lik"}
	require.NoError(t, recreate(context.Background(), conn, opts, zap.NewNop().Sugar()))

	assert.Equal(t, `ALTER USER "chef""; DROP ROLE postgres; --" CREATEDB`, conn.statements[0])
	assert.Equal(t, `CREATE DATABASE "food lik"`, conn.statements[2])
}

func TestRecreateStopsOnFailure(t *testing.T) {
	t.Run("grant fails", func(t *testing.T) {
		conn := &fakeAdminConn{failOn: "ALTER USER"}
		err := recreate(context.Background(), conn, RecreateOptions{User: "chef", Database: "foodlik"}, zap.NewNop().Sugar())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CREATEDB")
		assert.Len(t, conn.statements, 1)
	})

	t.Run("drop fails", func(t *testing.T) {
		conn := &fakeAdminConn{failOn: "DROP DATABASE"}
		err := recreate(context.Background(), conn, RecreateOptions{User: "chef", Database: "foodlik"}, zap.NewNop().Sugar())
		require.Error(t, err)
		assert.Len(t, conn.statements, 2)
	})
}

func TestRecreateWithBackup(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)
	opts := RecreateOptions{
		User:       "chef",
		Database:   "foodlik",
		Backup:     true,
		MaxBackups: 2,
		Now:        func() time.Time { return now },
	}

	t.Run("copies the existing database and prunes old backups", func(t *testing.T) {
		conn := &fakeAdminConn{
			exists: true,
			databases: []string{
				"foodlik_bak_20260101_080000",
				"foodlik_bak_20260301_080000",
				"foodlik_bak_20260601_080000",
				"foodlik_bak_20261019_123000",
			},
		}
		require.NoError(t, recreate(context.Background(), conn, opts, zap.NewNop().Sugar()))

		assert.Equal(t, []string{
			`ALTER USER "chef" CREATEDB`,
			`CREATE DATABASE "foodlik_bak_20261019_123000" TEMPLATE "foodlik"`,
			`DROP DATABASE IF EXISTS "foodlik_bak_20260101_080000"`,
			`DROP DATABASE IF EXISTS "foodlik_bak_20260301_080000"`,
			`DROP DATABASE IF EXISTS "foodlik"`,
			`CREATE DATABASE "foodlik"`,
		}, conn.statements)
	})

	t.Run("nothing to back up", func(t *testing.T) {
		conn := &fakeAdminConn{exists: false}
		require.NoError(t, recreate(context.Background(), conn, opts, zap.NewNop().Sugar()))

		assert.Equal(t, []string{
			`ALTER USER "chef" CREATEDB`,
			`DROP DATABASE IF EXISTS "foodlik"`,
			`CREATE DATABASE "foodlik"`,
		}, conn.statements)
	})

	t.Run("failed backup keeps the database", func(t *testing.T) {
		conn := &fakeAdminConn{exists: true, failOn: "CREATE DATABASE"}
		err := recreate(context.Background(), conn, opts, zap.NewNop().Sugar())
		require.Error(t, err)
		for _, stmt := range conn.statements {
			assert.NotContains(t, stmt, "DROP DATABASE")
		}
	})
}

func TestBackupsToPrune(t *testing.T) {
	names := []string{
		"foodlik_bak_20260601_080000",
		"foodlik_bak_20260101_080000",
		"foodlik_bak_manual",
		"foodlik2_bak_20250101_080000",
		"foodlik_bak_20260301_080000",
	}

	assert.Equal(t, []string{"foodlik_bak_20260101_080000"}, backupsToPrune(names, "foodlik", 2))
	assert.Nil(t, backupsToPrune(names, "foodlik", 3))
	assert.Equal(t, []string{
		"foodlik_bak_20260101_080000",
		"foodlik_bak_20260301_080000",
		"foodlik_bak_20260601_080000",
	}, backupsToPrune(names, "foodlik", 0))
}

func TestBackupName(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "foodlik_bak_20260102_030405", backupName("foodlik", ts))

	longest := strings.Repeat("f", config.MaxBackupDatabaseLen)
	assert.Len(t, backupName(longest, ts), config.MaxIdentifierLen)
}
