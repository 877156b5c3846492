package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
)

func (q queries) InsertEnvironment(ctx context.Context, env model.Environment) error {
	variables, err := encodeJSON(env.Variables)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO environments (id, project_id, name, variables, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		env.ID, env.ProjectID, env.Name, variables, env.CreatedAt, env.UpdatedAt,
	)
	return errdef.Wrap(errdef.CodeStorage, err, "insert environment")
}

func (q queries) PutEnvironment(ctx context.Context, env model.Environment) error {
	variables, err := encodeJSON(env.Variables)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE environments SET name = ?, variables = ?, updated_at = ? WHERE id = ?`,
		env.Name, variables, env.UpdatedAt, env.ID,
	)
	if err != nil {
		return errdef.Wrap(errdef.CodeStorage, err, "update environment")
	}
	return requireRow(res, "environment %s", env.ID)
}

func (q queries) GetEnvironment(ctx context.Context, id string) (model.Environment, error) {
	var (
		env       model.Environment
		variables string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, project_id, name, variables, created_at, updated_at FROM environments WHERE id = ?`, id,
	).Scan(&env.ID, &env.ProjectID, &env.Name, &variables, &env.CreatedAt, &env.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Environment{}, errdef.New(errdef.CodeNotFound, "environment %s not found", id)
	}
	if err != nil {
		return model.Environment{}, errdef.Wrap(errdef.CodeStorage, err, "get environment")
	}
	if err := decodeJSON(variables, &env.Variables); err != nil {
		return model.Environment{}, err
	}
	return env, nil
}

func (q queries) ListEnvironmentsByProject(ctx context.Context, projectID string) ([]model.Environment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, project_id, name, variables, created_at, updated_at FROM environments WHERE project_id = ? ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "list environments")
	}
	defer rows.Close()

	var out []model.Environment
	for rows.Next() {
		var (
			env       model.Environment
			variables string
		)
		if err := rows.Scan(&env.ID, &env.ProjectID, &env.Name, &variables, &env.CreatedAt, &env.UpdatedAt); err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "scan environment")
		}
		if err := decodeJSON(variables, &env.Variables); err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, errdef.Wrap(errdef.CodeStorage, rows.Err(), "list environments")
}

func (q queries) DeleteEnvironment(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM environments WHERE id = ?`, id)
	return errdef.Wrap(errdef.CodeStorage, err, "delete environment")
}

// GetSettingsByProject returns the project's settings row when present; the
// envsvc layer auto-creates defaults on first read.
func (q queries) GetSettingsByProject(ctx context.Context, projectID string) (model.ProjectSettings, bool, error) {
	var (
		s       model.ProjectSettings
		headers string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, project_id, global_headers, active_env_id, updated_at FROM project_settings WHERE project_id = ?`,
		projectID,
	).Scan(&s.ID, &s.ProjectID, &headers, &s.ActiveEnvID, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProjectSettings{}, false, nil
	}
	if err != nil {
		return model.ProjectSettings{}, false, errdef.Wrap(errdef.CodeStorage, err, "get project settings")
	}
	if err := decodeJSON(headers, &s.GlobalHeaders); err != nil {
		return model.ProjectSettings{}, false, err
	}
	return s, true, nil
}

func (q queries) PutSettings(ctx context.Context, s model.ProjectSettings) error {
	headers, err := encodeJSON(s.GlobalHeaders)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO project_settings (id, project_id, global_headers, active_env_id, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET global_headers = excluded.global_headers,
		   active_env_id = excluded.active_env_id, updated_at = excluded.updated_at`,
		s.ID, s.ProjectID, headers, s.ActiveEnvID, s.UpdatedAt,
	)
	return errdef.Wrap(errdef.CodeStorage, err, "save project settings")
}
