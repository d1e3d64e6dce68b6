package sqlstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers "postgres"
	_ "modernc.org/sqlite" // registers "sqlite"
)

const (
	pgMaxOpenConns    = 25
	pgMaxIdleConns    = 25
	pgConnMaxLifetime = 5 * time.Minute
	pgConnMaxIdleTime = 5 * time.Minute
)

// sqlitePragmas are appended to file DSNs. _txlock=immediate takes the write
// lock at BEGIN, so an upsert never upgrades a read lock mid-transaction.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// dialect holds what differs between the supported databases. Queries
// themselves are shared and go through sqlx.Rebind.
type dialect struct {
	name       string
	driverName string
	schema     []string
}

var sqliteDialect = dialect{
	name:       "sqlite",
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS snippets (
			id                TEXT PRIMARY KEY,
			owner_id          TEXT NOT NULL,
			name              TEXT NOT NULL,
			language          TEXT NOT NULL DEFAULT '',
			latest_version_id TEXT,
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL,
			UNIQUE (owner_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS snippet_versions (
			id         TEXT PRIMARY KEY,
			snippet_id TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snippet_versions_snippet
			ON snippet_versions (snippet_id, created_at)`,
	},
}

var postgresDialect = dialect{
	name:       "postgres",
	driverName: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS snippets (
			id                TEXT PRIMARY KEY,
			owner_id          TEXT NOT NULL,
			name              TEXT NOT NULL,
			language          TEXT NOT NULL DEFAULT '',
			latest_version_id TEXT,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL,
			UNIQUE (owner_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS snippet_versions (
			id         TEXT PRIMARY KEY,
			snippet_id TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snippet_versions_snippet
			ON snippet_versions (snippet_id, created_at)`,
	},
}

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pq":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("sqlstore: unsupported driver %q (want sqlite or postgres)", driver)
	}
}

// dsn returns the data source string handed to the driver.
func (d dialect) dsn(raw string) string {
	if d.name != "sqlite" || isMemory(raw) {
		return raw
	}
	if strings.Contains(raw, "?") {
		return raw + "&" + sqlitePragmas
	}
	return raw + "?" + sqlitePragmas
}

func (d dialect) configurePool(conn *sqlx.DB, raw string) {
	switch d.name {
	case "sqlite":
		// One writer at a time is all sqlite allows anyway. For :memory: it
		// is also required: every new connection would open a fresh, empty
		// database, so the single connection must never be recycled.
		conn.SetMaxOpenConns(1)
		if isMemory(raw) {
			conn.SetConnMaxLifetime(0)
			conn.SetConnMaxIdleTime(0)
		}
	case "postgres":
		conn.SetMaxOpenConns(pgMaxOpenConns)
		conn.SetMaxIdleConns(pgMaxIdleConns)
		conn.SetConnMaxLifetime(pgConnMaxLifetime)
		conn.SetConnMaxIdleTime(pgConnMaxIdleTime)
	}
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// DataDir returns the directory holding a sqlite database file, or "" when
// there is no local file (postgres or an in-memory database). Callers
// create it before Open on a fresh path.
func (c Config) DataDir() string {
	d, err := dialectFor(c.Driver)
	if err != nil || d.name != "sqlite" || isMemory(c.DSN) {
		return ""
	}
	path := strings.TrimPrefix(c.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return ""
	}
	return filepath.Dir(path)
}
