package filetypes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Schema maps FileType predicate fields onto the file_types table
var Schema = &query.Schema{
	Table: "file_types",
	Alias: "ft",
	Columns: map[string]string{
		"id":             "id",
		"tenant_id":      "tenant_id",
		"name":           "name",
		"parent_id":      "parent_id",
		"attribute_type": "attribute_type",
	},
}

// Repository persists file types
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new file type repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// SelectColumns lists the file type columns read by ScanFileType, aliased ft
const SelectColumns = `ft.id, ft.tenant_id, ft.name, ft.parent_id, ft.attribute_type, ft.created_at`

// ScanFileType reads one row selected with SelectColumns
func ScanFileType(row interface{ Scan(...any) error }) (*models.FileType, error) {
	var ft models.FileType
	var parentID sql.NullInt64
	var attr sql.NullString
	if err := row.Scan(&ft.ID, &ft.TenantID, &ft.Name, &parentID, &attr, &ft.CreatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		id := parentID.Int64
		ft.ParentID = &id
	}
	if attr.Valid {
		parsed, err := models.ParseAttributeType(attr.String)
		if err != nil {
			return nil, err
		}
		ft.AttributeType = parsed
	}
	return &ft, nil
}

// List returns the file types of the tenant matching filter, ordered by name
func (r *Repository) List(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.FileType, error) {
	if query.IsFalse(filter) {
		return nil, nil
	}

	args := &query.Args{}
	where, err := query.Compile(query.And(query.Eq{Field: "tenant_id", Value: tc.ID}, filter), Schema, args)
	if err != nil {
		return nil, fmt.Errorf("failed to compile file type filter: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+SelectColumns+" FROM file_types ft WHERE "+where+" ORDER BY ft.name", args.Values...)
	if err != nil {
		return nil, fmt.Errorf("failed to list file types: %w", err)
	}
	defer rows.Close()

	var out []*models.FileType
	for rows.Next() {
		ft, err := ScanFileType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file type: %w", err)
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}

// Get returns one file type of the tenant
func (r *Repository) Get(ctx context.Context, tc *tenant.Tenant, id int64) (*models.FileType, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+SelectColumns+" FROM file_types ft WHERE ft.id = $1 AND ft.tenant_id = $2", id, tc.ID)
	ft, err := ScanFileType(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("filetypes.Get", "file type")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file type: %w", err)
	}
	return ft, nil
}

// Create inserts a file type. A parent must exist in the tenant and be
// top-level itself, which keeps the tree one level deep.
func (r *Repository) Create(ctx context.Context, tc *tenant.Tenant, ft *models.FileType) error {
	const op = "filetypes.Create"

	ft.Name = strings.TrimSpace(ft.Name)
	if ft.Name == "" {
		return apperrors.Validation(op, "name_required", "a file type needs a name")
	}
	if ft.AttributeType == "" {
		ft.AttributeType = models.AttributeNone
	}
	if _, err := models.ParseAttributeType(string(ft.AttributeType)); err != nil {
		return apperrors.Validation(op, "attribute_type", err.Error())
	}

	if ft.ParentID != nil {
		parent, err := r.Get(ctx, tc, *ft.ParentID)
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return apperrors.Validation(op, "parent_exists", "the parent file type does not exist")
		}
		if err != nil {
			return err
		}
		if !parent.IsTopLevel() {
			return apperrors.Validation(op, "nesting_depth", "file types can only be nested one level deep")
		}
	}

	ft.TenantID = tc.ID
	var parentID any
	if ft.ParentID != nil {
		parentID = *ft.ParentID
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO file_types (tenant_id, name, parent_id, attribute_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, tc.ID, ft.Name, parentID, string(ft.AttributeType)).Scan(&ft.ID, &ft.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create file type: %w", err)
	}
	return nil
}

// Delete removes a file type. It refuses while child types or files refer
// to it; with force, trashed files count too.
func (r *Repository) Delete(ctx context.Context, tc *tenant.Tenant, id int64, force bool) error {
	const op = "filetypes.Delete"

	if _, err := r.Get(ctx, tc, id); err != nil {
		return err
	}

	var children int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_types WHERE parent_id = $1 AND tenant_id = $2`, id, tc.ID,
	).Scan(&children); err != nil {
		return fmt.Errorf("failed to count child file types: %w", err)
	}
	if children > 0 {
		return apperrors.Conflict(op, fmt.Sprintf("file type has %d sub-types", children))
	}

	trashed := "AND deleted_at IS NULL"
	if force {
		trashed = ""
	}
	for _, table := range []string{"files", "documents"} {
		var n int
		err := r.db.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE tenant_id = $1 AND (file_type_id = $2 OR sub_file_type_id = $2) %s`,
			table, trashed), tc.ID, id).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to count %s using file type: %w", table, err)
		}
		if n > 0 {
			return apperrors.Conflict(op, fmt.Sprintf("file type is used by %d %s", n, table))
		}
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM file_types WHERE id = $1 AND tenant_id = $2`, id, tc.ID); err != nil {
		return fmt.Errorf("failed to delete file type: %w", err)
	}
	return nil
}
