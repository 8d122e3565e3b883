package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrCodeTaken means a generated station, unit, tray or inventory code was
// committed by another transaction between nextCode and the insert.
var ErrCodeTaken = errors.New("generated code already taken")

// maxTxAttempts bounds how often WithinTx reruns a callback that lost a code race.
const maxTxAttempts = 3

// Options configures a SQLStore.
type Options struct {
	Dialect         Dialect
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// conn carries every query so the same code runs on the pool or inside a
// transaction.
type conn struct {
	q queryer
	d Dialect
}

// SQLStore implements Store on top of sqlx.
type SQLStore struct {
	conn
	db  *sqlx.DB
	log *zap.Logger
}

// NewSQLStore opens the database, applies the schema and returns the store.
func NewSQLStore(ctx context.Context, opts Options, log *zap.Logger) (*SQLStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sqlx.Open(opts.Dialect.driverName(), opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.Dialect, err)
	}

	if opts.Dialect == DialectSQLite {
		// SQLite only supports 1 writer; a single connection also keeps
		// in-memory databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", opts.Dialect, err)
	}

	if opts.Dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := migrate(ctx, db, opts.Dialect); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("store initialized", zap.String("dialect", string(opts.Dialect)))
	return &SQLStore{
		conn: conn{q: db, d: opts.Dialect},
		db:   db,
		log:  log,
	}, nil
}

// SQLiteDSN builds a modernc DSN for a file path or ":memory:".
func SQLiteDSN(path string) string {
	return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

// Dialect reports the SQL flavour.
func (s *SQLStore) Dialect() Dialect {
	return s.d
}

// WithinTx runs fn in a transaction, rolling back on error or panic. When fn
// fails with ErrCodeTaken the whole callback is rerun on a fresh transaction
// so nextCode sees the competing row.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
		s.log.Warn("generated code collided, retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}

func (s *SQLStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{conn: conn{q: tx, d: s.d}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetStats returns row counts and ledger totals.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	for _, t := range []string{"tools", "inventory", "stations", "units", "trays", "tray_assignments", "tool_events"} {
		var count int64
		if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+t); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t, err)
		}
		stats[t] = count
	}

	var totals struct {
		Total     sql.NullInt64 `db:"total_quantity"`
		InStock   sql.NullInt64 `db:"in_stock"`
		Assigned  sql.NullInt64 `db:"assigned_quantity"`
		Available sql.NullInt64 `db:"available_quantity"`
		InUse     sql.NullInt64 `db:"in_use"`
		Damaged   sql.NullInt64 `db:"damaged"`
	}
	err := s.db.GetContext(ctx, &totals, `
		SELECT SUM(total_quantity) AS total_quantity, SUM(in_stock) AS in_stock,
			SUM(assigned_quantity) AS assigned_quantity, SUM(available_quantity) AS available_quantity,
			SUM(in_use) AS in_use, SUM(damaged) AS damaged
		FROM inventory`)
	if err != nil {
		return nil, fmt.Errorf("failed to sum inventory: %w", err)
	}
	stats["quantities"] = map[string]int64{
		"total_quantity":     totals.Total.Int64,
		"in_stock":           totals.InStock.Int64,
		"assigned_quantity":  totals.Assigned.Int64,
		"available_quantity": totals.Available.Int64,
		"in_use":             totals.InUse.Int64,
		"damaged":            totals.Damaged.Int64,
	}

	var lastEvent sql.NullTime
	if err := s.db.GetContext(ctx, &lastEvent, "SELECT MAX(created_at) FROM tool_events"); err == nil && lastEvent.Valid {
		stats["last_event_at"] = lastEvent.Time
	}
	stats["dialect"] = string(s.d)

	return stats, nil
}

// sqlTx implements Tx.
type sqlTx struct {
	conn
}

// insert runs an INSERT and returns the generated id. lib/pq does not
// implement LastInsertId, so postgres goes through RETURNING.
func (c conn) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if c.d == DialectPostgres {
		var id int64
		if err := c.q.QueryRowxContext(ctx, c.q.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := c.q.ExecContext(ctx, c.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// get wraps GetContext, mapping sql.ErrNoRows to found == false.
func (c conn) get(ctx context.Context, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := c.q.GetContext(ctx, dest, c.q.Rebind(query), args...)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c conn) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return c.q.SelectContext(ctx, dest, c.q.Rebind(query), args...)
}

// nextCode generates sequential codes such as INV001 or SS012 by reading the
// highest existing code with the same prefix. Two transactions can read the
// same value; the loser's insert fails with ErrCodeTaken and WithinTx retries.
func (c conn) nextCode(ctx context.Context, table, column, prefix string) (string, error) {
	var last string
	query := fmt.Sprintf(
		"SELECT %[1]s FROM %[2]s WHERE %[1]s LIKE ? ORDER BY LENGTH(%[1]s) DESC, %[1]s DESC LIMIT 1",
		column, table)
	found, err := c.get(ctx, &last, query, prefix+"%")
	if err != nil {
		return "", fmt.Errorf("failed to read last %s: %w", column, err)
	}

	next := 1
	if found {
		n, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("malformed %s %q: %w", column, last, err)
		}
		next = n + 1
	}
	return fmt.Sprintf("%s%03d", prefix, next), nil
}

// codeInsertError wraps a failed insert of a row carrying a nextCode value.
// A unique violation becomes ErrCodeTaken.
func codeInsertError(what string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to insert %s: %w: %v", what, ErrCodeTaken, err)
	}
	return fmt.Errorf("failed to insert %s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// utc normalizes timestamps before they reach the database so that ordering
// and comparisons are consistent across drivers.
func utc(t time.Time) time.Time {
	return t.UTC()
}

var (
	_ Store = (*SQLStore)(nil)
	_ Tx    = (*sqlTx)(nil)
)
