package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	_ "modernc.org/sqlite"
)

// Store is the durable backing for every record collection: projects, tree
// nodes, request definitions, environments, project settings and the run
// history. One sqlite database file holds all of them so multi-collection
// mutations can share a single transaction.
type Store struct {
	queries
	db *sql.DB
}

// Tx exposes the same collection operations as Store but bound to an open
// transaction. Writes issued through a Tx become visible all at once on
// commit and not at all on rollback.
type Tx struct {
	queries
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type queries struct {
	db dbtx
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	parent_id  TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	name       TEXT NOT NULL,
	sort_order INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project_id);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);

CREATE TABLE IF NOT EXISTS api_items (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	node_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	method     TEXT NOT NULL,
	url        TEXT NOT NULL,
	auth       TEXT NOT NULL,
	headers    TEXT NOT NULL,
	query      TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_api_items_project ON api_items(project_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_api_items_node ON api_items(node_id);

CREATE TABLE IF NOT EXISTS environments (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	variables  TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_environments_project ON environments(project_id);

CREATE TABLE IF NOT EXISTS project_settings (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL UNIQUE,
	global_headers TEXT NOT NULL,
	active_env_id  TEXT NOT NULL DEFAULT '',
	updated_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	node_id      TEXT NOT NULL,
	request_name TEXT NOT NULL,
	method       TEXT NOT NULL,
	url          TEXT NOT NULL,
	status       INTEGER,
	duration_ms  INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	body_snippet TEXT NOT NULL DEFAULT '',
	executed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_project ON history(project_id, executed_at DESC);
`

// Open creates the parent directory if needed, opens the database and applies
// the schema. The sqlite driver rejects concurrent writers, so the pool is
// capped at a single connection.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errdef.Wrap(errdef.CodeFilesystem, err, "create data dir")
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "open database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, errdef.Wrap(errdef.CodeStorage, err, "apply schema")
	}

	s := &Store{db: db}
	s.queries.db = db
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction. Any error (or panic) from fn rolls
// the whole batch back and leaves the store unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
			return
		}
		if commitErr := sqlTx.Commit(); commitErr != nil {
			err = errdef.Wrap(errdef.CodeStorage, commitErr, "commit transaction")
		}
	}()

	return fn(&Tx{queries: queries{db: sqlTx}})
}

func encodeJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errdef.Wrap(errdef.CodeStorage, err, "encode record field")
	}
	return string(data), nil
}

func decodeJSON(data string, v interface{}) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "decode record field")
	}
	return nil
}

// inPlaceholders renders "(?, ?, ...)" argument lists for bulk operations.
func inPlaceholders(n int) string {
	if n <= 0 {
		return "()"
	}
	buf := make([]byte, 0, n*3+1)
	buf = append(buf, '(')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',', ' ')
		}
		buf = append(buf, '?')
	}
	return string(append(buf, ')'))
}

func stringsToArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
