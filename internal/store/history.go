package store

import (
	"context"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
)

// HistoryEntry is one recorded request execution. Status mirrors
// RunResult.Status: nil when the call never reached an HTTP response.
type HistoryEntry struct {
	ID          string
	ProjectID   string
	NodeID      string
	RequestName string
	Method      string
	URL         string
	Status      *int
	DurationMs  int64
	Error       string
	BodySnippet string
	ExecutedAt  int64
}

func (q queries) InsertHistory(ctx context.Context, e HistoryEntry) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO history (id, project_id, node_id, request_name, method, url, status, duration_ms, error, body_snippet, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.NodeID, e.RequestName, e.Method, e.URL,
		e.Status, e.DurationMs, e.Error, e.BodySnippet, e.ExecutedAt,
	)
	return errdef.Wrap(errdef.CodeStorage, err, "insert history entry")
}

// ListHistoryByProject returns up to limit entries, newest first.
func (q queries) ListHistoryByProject(ctx context.Context, projectID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, project_id, node_id, request_name, method, url, status, duration_ms, error, body_snippet, executed_at
		 FROM history WHERE project_id = ? ORDER BY executed_at DESC, id DESC LIMIT ?`,
		projectID, limit)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "list history")
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.NodeID, &e.RequestName, &e.Method, &e.URL,
			&e.Status, &e.DurationMs, &e.Error, &e.BodySnippet, &e.ExecutedAt); err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "scan history entry")
		}
		out = append(out, e)
	}
	return out, errdef.Wrap(errdef.CodeStorage, rows.Err(), "list history")
}

// PruneHistory keeps the newest keep entries for a project and drops the rest.
func (q queries) PruneHistory(ctx context.Context, projectID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM history WHERE project_id = ? AND id NOT IN (
			SELECT id FROM history WHERE project_id = ? ORDER BY executed_at DESC, id DESC LIMIT ?
		)`,
		projectID, projectID, keep)
	return errdef.Wrap(errdef.CodeStorage, err, "prune history")
}
