package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
)

func (q queries) InsertProject(ctx context.Context, p model.Project) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	return errdef.Wrap(errdef.CodeStorage, err, "insert project")
}

func (q queries) GetProject(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, errdef.New(errdef.CodeNotFound, "project %s not found", id)
	}
	if err != nil {
		return model.Project{}, errdef.Wrap(errdef.CodeStorage, err, "get project")
	}
	return p, nil
}

// ListProjects returns every project, most recently updated first.
func (q queries) ListProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "list projects")
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "scan project")
		}
		out = append(out, p)
	}
	return out, errdef.Wrap(errdef.CodeStorage, rows.Err(), "list projects")
}

func (q queries) UpdateProjectMeta(ctx context.Context, id, name, description string, now int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, description, now, id,
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "update project")
	}
	return requireRow(res, "project %s", id)
}

// TouchProject bumps a project's updatedAt, used by touch-propagation when a
// descendant request is saved.
func (q queries) TouchProject(ctx context.Context, id string, now int64) error {
	_, err := q.db.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, id)
	return errdef.Wrap(errdef.CodeStorage, err, "touch project")
}

// DeleteProjectCascade removes the project and every record owned by it.
// Callers run this inside WithTx so the cascade is all-or-nothing.
func (q queries) DeleteProjectCascade(ctx context.Context, id string) error {
	statements := []string{
		`DELETE FROM projects WHERE id = ?`,
		`DELETE FROM nodes WHERE project_id = ?`,
		`DELETE FROM api_items WHERE project_id = ?`,
		`DELETE FROM environments WHERE project_id = ?`,
		`DELETE FROM project_settings WHERE project_id = ?`,
		`DELETE FROM history WHERE project_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := q.db.ExecContext(ctx, stmt, id); err != nil {
			return errdef.Wrap(errdef.CodeStorage, err, "delete project records")
		}
	}
	return nil
}

func requireRow(res sql.Result, format string, args ...interface{}) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "rows affected")
	}
	if affected == 0 {
		return errdef.New(errdef.CodeNotFound, format+" not found", args...)
	}
	return nil
}
