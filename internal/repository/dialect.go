package repository

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Dialect names the SQL flavour behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// ParseDialect maps config spellings onto a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

func (d Dialect) driverName() string {
	return string(d)
}

func (d Dialect) primaryKey() string {
	switch d {
	case DialectPostgres:
		return "BIGSERIAL PRIMARY KEY"
	case DialectMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func (d Dialect) timeType() string {
	switch d {
	case DialectPostgres:
		return "TIMESTAMPTZ"
	case DialectMySQL:
		return "DATETIME(6)"
	default:
		return "DATETIME"
	}
}

// forUpdate is appended to SELECTs that feed a read-modify-write. SQLite has
// no row locks; its single writer connection serializes transactions instead.
func (d Dialect) forUpdate() string {
	if d == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}

// likeOp is a case-insensitive LIKE.
func (d Dialect) likeOp() string {
	if d == DialectPostgres {
		return "ILIKE"
	}
	return "LIKE"
}

// containsCond is a case-insensitive substring match on column. Pair it with
// containsArg so % and _ in user input match themselves.
func (d Dialect) containsCond(column string) string {
	return column + " " + d.likeOp() + " ? ESCAPE '!'"
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsArg(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
