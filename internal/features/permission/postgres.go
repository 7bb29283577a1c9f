package permission

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresGrantRepository is the SQL variant of the grant store,
// matching the relational layout the grant model originated from.
type PostgresGrantRepository struct {
	db *sql.DB
}

func NewPostgresGrantRepository(db *sql.DB) *PostgresGrantRepository {
	return &PostgresGrantRepository{db: db}
}

const documentColumns = "id, resource_path, resource_kind, assigned_to_type, assigned_to_id, permission, created_at, updated_at"
const systemColumns = "id, resource_type, resource_id, assigned_to_type, assigned_to_id, permission, created_at, updated_at"

func scanDocumentGrant(row interface{ Scan(...interface{}) error }) (*DocumentGrant, error) {
	var g DocumentGrant
	var assignedTo sql.NullString
	err := row.Scan(&g.ID, &g.ResourcePath, &g.ResourceKind, &g.AssignedToType, &assignedTo, &g.Permission, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.AssignedToID = assignedTo.String
	return &g, nil
}

func scanSystemGrant(row interface{ Scan(...interface{}) error }) (*SystemGrant, error) {
	var g SystemGrant
	var assignedTo sql.NullString
	err := row.Scan(&g.ID, &g.ResourceType, &g.ResourceID, &g.AssignedToType, &assignedTo, &g.Permission, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.AssignedToID = assignedTo.String
	return &g, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresGrantRepository) ListDocumentGrants(ctx context.Context) ([]DocumentGrant, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM document_grants")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []DocumentGrant
	for rows.Next() {
		g, err := scanDocumentGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

func (r *PostgresGrantRepository) ListSystemGrants(ctx context.Context) ([]SystemGrant, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+systemColumns+" FROM system_grants")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []SystemGrant
	for rows.Next() {
		g, err := scanSystemGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

func (r *PostgresGrantRepository) GetDocumentGrant(ctx context.Context, id string) (*DocumentGrant, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM document_grants WHERE id = $1", id)
	g, err := scanDocumentGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func (r *PostgresGrantRepository) GetSystemGrant(ctx context.Context, id string) (*SystemGrant, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+systemColumns+" FROM system_grants WHERE id = $1", id)
	g, err := scanSystemGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func (r *PostgresGrantRepository) InsertDocumentGrant(ctx context.Context, grant *DocumentGrant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_grants (id, resource_path, resource_kind, assigned_to_type, assigned_to_id, permission, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		grant.ID, grant.ResourcePath, grant.ResourceKind, grant.AssignedToType, nullable(grant.AssignedToID), grant.Permission, grant.CreatedAt, grant.UpdatedAt)
	return err
}

func (r *PostgresGrantRepository) InsertSystemGrant(ctx context.Context, grant *SystemGrant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_grants (id, resource_type, resource_id, assigned_to_type, assigned_to_id, permission, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		grant.ID, grant.ResourceType, grant.ResourceID, grant.AssignedToType, nullable(grant.AssignedToID), grant.Permission, grant.CreatedAt, grant.UpdatedAt)
	return err
}

func (r *PostgresGrantRepository) UpdateDocumentGrant(ctx context.Context, id string, grant *DocumentGrant) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE document_grants
		 SET resource_path = $2, resource_kind = $3, assigned_to_type = $4, assigned_to_id = $5, permission = $6, updated_at = $7
		 WHERE id = $1`,
		id, grant.ResourcePath, grant.ResourceKind, grant.AssignedToType, nullable(grant.AssignedToID), grant.Permission, grant.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresGrantRepository) UpdateSystemGrant(ctx context.Context, id string, grant *SystemGrant) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE system_grants
		 SET resource_type = $2, resource_id = $3, assigned_to_type = $4, assigned_to_id = $5, permission = $6, updated_at = $7
		 WHERE id = $1`,
		id, grant.ResourceType, grant.ResourceID, grant.AssignedToType, nullable(grant.AssignedToID), grant.Permission, grant.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresGrantRepository) DeleteDocumentGrant(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM document_grants WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresGrantRepository) DeleteSystemGrant(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM system_grants WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresGrantRepository) GrantsApplicableTo(ctx context.Context, userID string, groupIDs []string) ([]DocumentGrant, []SystemGrant, error) {
	docRows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM document_grants
		 WHERE (assigned_to_type = 'user' AND assigned_to_id = $1)
		    OR (assigned_to_type = 'group' AND assigned_to_id = ANY($2))
		    OR (assigned_to_type = 'all')`,
		userID, pq.Array(groupIDs))
	if err != nil {
		return nil, nil, err
	}
	defer docRows.Close()

	var docGrants []DocumentGrant
	for docRows.Next() {
		g, err := scanDocumentGrant(docRows)
		if err != nil {
			return nil, nil, err
		}
		docGrants = append(docGrants, *g)
	}
	if err := docRows.Err(); err != nil {
		return nil, nil, err
	}

	sysRows, err := r.db.QueryContext(ctx,
		`SELECT `+systemColumns+` FROM system_grants
		 WHERE (assigned_to_type = 'user' AND assigned_to_id = $1)
		    OR (assigned_to_type = 'group' AND assigned_to_id = ANY($2))
		    OR (assigned_to_type = 'all')`,
		userID, pq.Array(groupIDs))
	if err != nil {
		return nil, nil, err
	}
	defer sysRows.Close()

	var sysGrants []SystemGrant
	for sysRows.Next() {
		g, err := scanSystemGrant(sysRows)
		if err != nil {
			return nil, nil, err
		}
		sysGrants = append(sysGrants, *g)
	}
	return docGrants, sysGrants, sysRows.Err()
}

// EnsureIndexes creates the tables and assignee indexes if missing
func (r *PostgresGrantRepository) EnsureIndexes(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS document_grants (
			id TEXT PRIMARY KEY,
			resource_path TEXT NOT NULL,
			resource_kind TEXT NOT NULL,
			assigned_to_type TEXT NOT NULL,
			assigned_to_id TEXT,
			permission TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_grants (
			id TEXT PRIMARY KEY,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			assigned_to_type TEXT NOT NULL,
			assigned_to_id TEXT,
			permission TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_document_grants_assignee ON document_grants (assigned_to_type, assigned_to_id)`,
		`CREATE INDEX IF NOT EXISTS idx_system_grants_assignee ON system_grants (assigned_to_type, assigned_to_id)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
