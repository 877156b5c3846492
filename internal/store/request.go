package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/unkn0wn-root/apiuse/internal/errdef"
	"github.com/unkn0wn-root/apiuse/internal/model"
)

const requestColumns = `id, project_id, node_id, name, method, url, auth, headers, query, body, updated_at`

func (q queries) InsertRequest(ctx context.Context, def model.RequestDefinition) error {
	return q.writeRequest(ctx,
		`INSERT INTO api_items (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, def)
}

// PutRequest fully replaces a stored definition, keyed by id.
func (q queries) PutRequest(ctx context.Context, def model.RequestDefinition) error {
	return q.writeRequest(ctx,
		`INSERT OR REPLACE INTO api_items (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, def)
}

func (q queries) writeRequest(ctx context.Context, stmt string, def model.RequestDefinition) error {
	auth, err := encodeJSON(def.Auth)
	if err != nil {
		return err
	}
	headers, err := encodeJSON(def.Headers)
	if err != nil {
		return err
	}
	query, err := encodeJSON(def.Query)
	if err != nil {
		return err
	}
	body, err := encodeJSON(def.Body)
	if err != nil {
		return err
	}

	_, err = q.db.ExecContext(ctx, stmt,
		def.ID, def.ProjectID, def.NodeID, def.Name, def.Method, def.URL,
		auth, headers, query, body, def.UpdatedAt,
	)
	return errdef.Wrap(errdef.CodeStorage, err, "write request definition")
}

func (q queries) GetRequest(ctx context.Context, id string) (model.RequestDefinition, error) {
	return q.getRequestBy(ctx, `id`, id)
}

// GetRequestByNode looks up the single definition paired with a request node.
func (q queries) GetRequestByNode(ctx context.Context, nodeID string) (model.RequestDefinition, error) {
	return q.getRequestBy(ctx, `node_id`, nodeID)
}

func (q queries) getRequestBy(ctx context.Context, column, key string) (model.RequestDefinition, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM api_items WHERE `+column+` = ?`, key)
	def, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RequestDefinition{}, errdef.New(errdef.CodeNotFound, "request definition for %s not found", key)
	}
	if err != nil {
		return model.RequestDefinition{}, errdef.Wrap(errdef.CodeStorage, err, "get request definition")
	}
	return def, nil
}

func (q queries) ListRequestsByProject(ctx context.Context, projectID string) ([]model.RequestDefinition, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+requestColumns+` FROM api_items WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeStorage, err, "list request definitions")
	}
	defer rows.Close()

	var out []model.RequestDefinition
	for rows.Next() {
		def, err := scanRequest(rows)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeStorage, err, "scan request definition")
		}
		out = append(out, def)
	}
	return out, errdef.Wrap(errdef.CodeStorage, rows.Err(), "list request definitions")
}

func (q queries) UpdateRequestName(ctx context.Context, nodeID, name string, now int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE api_items SET name = ?, updated_at = ? WHERE node_id = ?`, name, now, nodeID)
	return errdef.Wrap(errdef.CodeStorage, err, "rename request definition")
}

// DeleteRequestsByNodes removes every definition paired with a node in ids,
// the request half of a cascading subtree delete.
func (q queries) DeleteRequestsByNodes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM api_items WHERE node_id IN `+inPlaceholders(len(ids)), stringsToArgs(ids)...)
	return errdef.Wrap(errdef.CodeStorage, err, "delete request definitions")
}

func scanRequest(row interface {
	Scan(dest ...interface{}) error
}) (model.RequestDefinition, error) {
	var (
		def                        model.RequestDefinition
		auth, headers, query, body string
	)
	if err := row.Scan(&def.ID, &def.ProjectID, &def.NodeID, &def.Name, &def.Method, &def.URL,
		&auth, &headers, &query, &body, &def.UpdatedAt); err != nil {
		return model.RequestDefinition{}, err
	}
	if err := decodeJSON(auth, &def.Auth); err != nil {
		return model.RequestDefinition{}, err
	}
	if err := decodeJSON(headers, &def.Headers); err != nil {
		return model.RequestDefinition{}, err
	}
	if err := decodeJSON(query, &def.Query); err != nil {
		return model.RequestDefinition{}, err
	}
	if err := decodeJSON(body, &def.Body); err != nil {
		return model.RequestDefinition{}, err
	}
	return def, nil
}
