// Package sqlbridge executes parameterized SQL against a pooled database,
// mapping result rows into string-valued documents.
//
// Every operation acquires its own connection from the pool and releases it
// before returning, so no connection is held across two calls.
package sqlbridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)

// PoolConfig sizes the underlying connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Bridge is the generic database access layer.
type Bridge struct {
	db      *sqlx.DB
	dialect Dialect
	log     logrus.FieldLogger
	metrics *Metrics
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger faults are reported to.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithMetrics records operation counts and latency into m.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// Open connects to the database, sizes the pool and verifies connectivity.
func Open(ctx context.Context, driver, dsn string, pool PoolConfig, opts ...Option) (*Bridge, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	b, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing pool. The dialect is chosen from db.DriverName().
func New(db *sqlx.DB, opts ...Option) (*Bridge, error) {
	d, err := DialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	b := &Bridge{db: db, dialect: d, log: discard}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Dialect returns the SQL dialect of the underlying driver.
func (b *Bridge) Dialect() Dialect { return b.dialect }

// Close releases the pool.
func (b *Bridge) Close() error {
	return b.db.Close()
}

// TableExists reports whether name is a table. Faults are logged and reported as false.
func (b *Bridge) TableExists(ctx context.Context, name string) bool {
	var found bool
	err := b.withConn(ctx, "table_exists", b.dialect.tableExistsQuery, func(conn *sqlx.Conn) error {
		rows, err := conn.QueryxContext(ctx, b.db.Rebind(b.dialect.tableExistsQuery), name)
		if err != nil {
			return err
		}
		defer rows.Close()
		found = rows.Next()
		return rows.Err()
	})
	if err != nil {
		return false
	}
	return found
}

// CreateTable runs ddl followed by every index statement in one transaction.
// Any failure rolls every statement back.
func (b *Bridge) CreateTable(ctx context.Context, ddl string, indexDDL ...string) error {
	stmts := append([]string{ddl}, indexDDL...)
	var failed string
	return b.withConn(ctx, "create_table", ddl, func(conn *sqlx.Conn) error {
		err := withTx(ctx, conn, func(tx *sqlx.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					failed = stmt
					return err
				}
			}
			return nil
		})
		if err != nil && failed != "" {
			return fmt.Errorf("statement %q: %w", failed, err)
		}
		return err
	})
}

// QueryOne returns the first row of query, or ErrNoRows when nothing matched.
func (b *Bridge) QueryOne(ctx context.Context, query string, params ...Param) (*Document, error) {
	var doc *Document
	err := b.withConn(ctx, "query_one", query, func(conn *sqlx.Conn) error {
		rows, err := conn.QueryxContext(ctx, b.db.Rebind(query), bind(params)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return ErrNoRows
		}
		doc, err = mapRow(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// QueryMany returns one document per row, in result order.
func (b *Bridge) QueryMany(ctx context.Context, query string, params ...Param) ([]*Document, error) {
	var docs []*Document
	err := b.withConn(ctx, "query_many", query, func(conn *sqlx.Conn) error {
		rows, err := conn.QueryxContext(ctx, b.db.Rebind(query), bind(params)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			doc, err := mapRow(rows)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// QueryExists reports whether query matched at least one row.
func (b *Bridge) QueryExists(ctx context.Context, query string, params ...Param) (bool, error) {
	var found bool
	err := b.withConn(ctx, "query_exists", query, func(conn *sqlx.Conn) error {
		rows, err := conn.QueryxContext(ctx, b.db.Rebind(query), bind(params)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		found = rows.Next()
		return rows.Err()
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Insert executes an INSERT and returns the store-generated key.
//
// With a RETURNING clause the first returned column is the key; otherwise the
// driver's last insert id is used. The key is invalid when none was generated.
func (b *Bridge) Insert(ctx context.Context, query string, params ...Param) (sql.NullInt64, error) {
	var key sql.NullInt64
	err := b.withConn(ctx, "insert", query, func(conn *sqlx.Conn) error {
		if returningClause.MatchString(query) {
			rows, err := conn.QueryxContext(ctx, b.db.Rebind(query), bind(params)...)
			if err != nil {
				return err
			}
			defer rows.Close()
			if rows.Next() {
				if err := rows.Scan(&key); err != nil {
					return err
				}
			}
			return rows.Err()
		}

		res, err := conn.ExecContext(ctx, b.db.Rebind(query), bind(params)...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
		if id, err := res.LastInsertId(); err == nil {
			key = sql.NullInt64{Int64: id, Valid: true}
		}
		return nil
	})
	if err != nil {
		return sql.NullInt64{}, err
	}
	return key, nil
}

// Update executes an UPDATE or DELETE and returns the affected row count.
func (b *Bridge) Update(ctx context.Context, query string, params ...Param) (int64, error) {
	var affected int64
	err := b.withConn(ctx, "update", query, func(conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, b.db.Rebind(query), bind(params)...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// withConn acquires a pooled connection for fn and releases it on every path.
// Faults are logged and returned as *QueryError; ErrNoRows passes through.
func (b *Bridge) withConn(ctx context.Context, op, query string, fn func(conn *sqlx.Conn) error) error {
	start := time.Now()

	conn, err := b.db.Connx(ctx)
	if err != nil {
		return b.fail(op, query, start, fmt.Errorf("acquire connection: %w", err))
	}
	defer conn.Close()

	if err := fn(conn); err != nil {
		if errors.Is(err, ErrNoRows) {
			b.metrics.observe(op, "no_rows", time.Since(start))
			return err
		}
		return b.fail(op, query, start, err)
	}
	b.metrics.observe(op, "ok", time.Since(start))
	return nil
}

func (b *Bridge) fail(op, query string, start time.Time, err error) error {
	qerr := &QueryError{Op: op, Query: query, Err: err, conflict: b.dialect.IsUniqueViolation(err)}
	entry := b.log.WithFields(logrus.Fields{"op": op, "query": query}).WithError(err)
	if qerr.conflict {
		b.metrics.observe(op, "conflict", time.Since(start))
		entry.Warn("unique constraint violated")
		return qerr
	}
	b.metrics.observe(op, "error", time.Since(start))
	entry.Error("database operation failed")
	return qerr
}
