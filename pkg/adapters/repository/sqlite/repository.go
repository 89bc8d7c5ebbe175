package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wadjakorntonsri/trimrr/pkg/adapters/repository/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Dialect is the sqlstore dialect for both local SQLite and libsql.
var Dialect = sqlstore.Dialect{
	Name:                  "sqlite",
	Placeholder:           sq.Question,
	IsUniqueViolation:     isUniqueViolation,
	IsForeignKeyViolation: isForeignKeyViolation,
}

// NewSQLiteRepository opens dbURL, applies migrations and returns the store.
// libsql:// and wss:// URLs go through the Turso driver, everything else is
// a local file or in-memory database.
func NewSQLiteRepository(ctx context.Context, dbURL string, logger *slog.Logger) (*sqlstore.Store, error) {
	driverName := "sqlite"
	dsn := dbURL
	if isRemote(dbURL) {
		driverName = "libsql"
	} else {
		dsn = withPragmas(dbURL)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// One connection serialises writers, so concurrent inserts race on the
	// UNIQUE constraint instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	if driverName == "libsql" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
		}
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrations: %w", err)
	}
	if err := sqlstore.Migrate(ctx, db, goose.DialectSQLite3, migrations, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	return sqlstore.New(db, Dialect), nil
}

func isRemote(dbURL string) bool {
	return strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://")
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func isUniqueViolation(err error) bool {
	return hasConstraintCode(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) ||
		hasMessage(err, "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return hasConstraintCode(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) ||
		hasMessage(err, "FOREIGN KEY constraint failed")
}

func hasConstraintCode(err error, codes ...int) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	for _, c := range codes {
		if sqliteErr.Code() == c {
			return true
		}
	}
	return false
}

// libsql only hands back the message
func hasMessage(err error, msg string) bool {
	return err != nil && strings.Contains(err.Error(), msg)
}
