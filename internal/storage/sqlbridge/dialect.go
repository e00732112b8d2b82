package sqlbridge

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// Dialect captures the per-driver SQL the bridge cannot express portably.
type Dialect struct {
	driver           string
	tableExistsQuery string
	autoIncrementKey string
	uniqueViolation  func(error) bool
}

var dialects = map[string]Dialect{
	"pgx": {
		driver:           "pgx",
		tableExistsQuery: postgresTableExists,
		autoIncrementKey: "BIGSERIAL PRIMARY KEY",
		uniqueViolation:  isPgxUniqueViolation,
	},
	"postgres": {
		driver:           "postgres",
		tableExistsQuery: postgresTableExists,
		autoIncrementKey: "BIGSERIAL PRIMARY KEY",
		uniqueViolation:  isPQUniqueViolation,
	},
	"sqlite3": {
		driver:           "sqlite3",
		tableExistsQuery: `SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`,
		autoIncrementKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
		uniqueViolation:  isSQLiteUniqueViolation,
	},
}

const postgresTableExists = `SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`

// DialectFor returns the dialect registered for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// Driver returns the database/sql driver name.
func (d Dialect) Driver() string { return d.driver }

// AutoIncrementKey returns the column definition for a store-generated integer primary key.
func (d Dialect) AutoIncrementKey() string { return d.autoIncrementKey }

// IsUniqueViolation reports whether err is the driver's unique-constraint failure.
func (d Dialect) IsUniqueViolation(err error) bool {
	if err == nil || d.uniqueViolation == nil {
		return false
	}
	return d.uniqueViolation(err)
}

func isPgxUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isPQUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}

func isSQLiteUniqueViolation(err error) bool {
	var sqErr sqlite3.Error
	return errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
