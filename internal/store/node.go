package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
)

const nodeColumns = `id, project_id, parent_id, type, name, sort_order, created_at, updated_at`

func scanNode(row interface {
	Scan(dest ...interface{}) error
}) (model.TreeNode, error) {
	var n model.TreeNode
	err := row.Scan(&n.ID, &n.ProjectID, &n.ParentID, &n.Type, &n.Name, &n.SortOrder, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (q queries) InsertNode(ctx context.Context, n model.TreeNode) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ProjectID, n.ParentID, n.Type, n.Name, n.SortOrder, n.CreatedAt, n.UpdatedAt,
	)
	return errdef.Wrap(errdef.CodeStorage, err, "insert node")
}

func (q queries) GetNode(ctx context.Context, id string) (model.TreeNode, error) {
	n, err := scanNode(q.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TreeNode{}, errdef.New(errdef.CodeNotFound, "node %s not found", id)
	}
	if err != nil {
		return model.TreeNode{}, errdef.Wrap(errdef.CodeStorage, err, "get node")
	}
	return n, nil
}

// ListNodesByProject returns the project's full node list ordered by
// sortOrder, the flat parent-pointer view the tree engine works on.
func (q queries) ListNodesByProject(ctx context.Context, projectID string) ([]model.TreeNode, error) {
	return q.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE project_id = ? ORDER BY sort_order, created_at`, projectID)
}

// ListChildren returns direct children of a parent ("" selects project
// roots), ordered by sortOrder.
func (q queries) ListChildren(ctx context.Context, projectID, parentID string) ([]model.TreeNode, error) {
	return q.queryNodes(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE project_id = ? AND parent_id = ? ORDER BY sort_order, created_at`,
		projectID, parentID)
}

func (q queries) queryNodes(ctx context.Context, query string, args ...interface{}) ([]model.TreeNode, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "query nodes")
	}
	defer rows.Close()

	var out []model.TreeNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "scan node")
		}
		out = append(out, n)
	}
	return out, errdef.Wrap(errdef.CodeStorage, rows.Err(), "query nodes")
}

func (q queries) UpdateNodeName(ctx context.Context, id, name string, now int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE nodes SET name = ?, updated_at = ? WHERE id = ?`, name, now, id)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "rename node")
	}
	return requireRow(res, "node %s", id)
}

func (q queries) UpdateNodeOrder(ctx context.Context, id string, sortOrder int, now int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE nodes SET sort_order = ?, updated_at = ? WHERE id = ?`, sortOrder, now, id)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "reorder node")
	}
	return requireRow(res, "node %s", id)
}

// UpdateNodePlacement reassigns parent and sortOrder together, the write
// behind subtree moves.
func (q queries) UpdateNodePlacement(ctx context.Context, id, parentID string, sortOrder int, now int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE nodes SET parent_id = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
		parentID, sortOrder, now, id)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "move node")
	}
	return requireRow(res, "node %s", id)
}

func (q queries) TouchNode(ctx context.Context, id string, now int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE nodes SET updated_at = ? WHERE id = ?`, now, id)
	return errdef.Wrap(errdef.CodeStorage, err, "touch node")
}

func (q queries) DeleteNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE id IN `+inPlaceholders(len(ids)), stringsToArgs(ids)...)
	return errdef.Wrap(errdef.CodeStorage, err, "delete nodes")
}
