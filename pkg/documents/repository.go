package documents

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/database"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Repository persists files and documents. Every method is scoped to the
// tenant it is given; multi-row mutations are all-or-nothing.
type Repository interface {
	// List returns the records matching filter with relations loaded
	List(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, filter query.Predicate, opts ListOptions) ([]*models.File, error)
	// Get returns one record within scope with relations loaded
	Get(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, id int64, scope Scope) (*models.File, error)
	// GetMany returns the records with the given ids within scope
	GetMany(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64, scope Scope) ([]*models.File, error)

	// Create inserts f and attaches its commodities, FBOs and varieties
	Create(ctx context.Context, tc *tenant.Tenant, f *models.File) error
	// Update writes f's attributes and replaces its attachments
	Update(ctx context.Context, tc *tenant.Tenant, f *models.File) error
	// UpdateContent points f at a new blob
	UpdateContent(ctx context.Context, tc *tenant.Tenant, f *models.File) error
	SetActive(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, id int64, active bool) error

	Trash(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64) error
	Restore(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64) error
	// Purge removes trashed rows permanently
	Purge(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64) error
}

// PostgresRepository implements Repository on PostgreSQL. Reads go to a
// replica when one is configured.
type PostgresRepository struct {
	db *database.Manager
}

// NewPostgresRepository creates a new repository
func NewPostgresRepository(db *database.Manager) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const assetSelect = `f.id, f.tenant_id, f.title, f.original_filename, f.file_path, f.file_size, f.mime_type,
	f.file_type_id, f.sub_file_type_id, f.company_id, f.is_public, f.is_active, f.expiry_date,
	f.season_year, f.metadata, f.container_number, f.quality_ref_number, f.quality_rating,
	f.uploaded_by, f.created_at, f.updated_at, f.deleted_at`

func scanAsset(kind models.AssetKind, row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{Kind: kind}
	var (
		fileType, subFileType, company sql.NullInt64
		expiry, deletedAt              sql.NullTime
		season                         sql.NullInt32
		container, qualityRef, rating  sql.NullString
	)
	err := row.Scan(
		&f.ID, &f.TenantID, &f.Title, &f.OriginalFilename, &f.FilePath, &f.FileSize, &f.MimeType,
		&fileType, &subFileType, &company, &f.IsPublic, &f.IsActive, &expiry,
		&season, &f.Metadata, &container, &qualityRef, &rating,
		&f.UploadedBy, &f.CreatedAt, &f.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	f.FileTypeID = nullInt64(fileType)
	f.SubFileTypeID = nullInt64(subFileType)
	f.CompanyID = nullInt64(company)
	if expiry.Valid {
		f.ExpiryDate = &expiry.Time
	}
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Time
	}
	if season.Valid {
		year := int(season.Int32)
		f.SeasonYear = &year
	}
	f.ContainerNumber = container.String
	f.QualityRefNumber = qualityRef.String
	f.QualityRating = models.QualityRating(rating.String)
	return f, nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List implements Repository.List
func (r *PostgresRepository) List(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, filter query.Predicate, opts ListOptions) ([]*models.File, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	where := query.And(query.Eq{Field: "tenant_id", Value: tc.ID}, filter, opts.Scope.Predicate())
	if query.IsFalse(where) {
		return nil, nil
	}

	schema := SchemaFor(kind)
	args := &query.Args{}
	clause, err := query.Compile(where, schema, args)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s filter: %w", kind, err)
	}
	if opts.Search != "" {
		p := args.Add("%" + escapeLike(opts.Search) + "%")
		clause += fmt.Sprintf(" AND (f.title ILIKE %s OR f.original_filename ILIKE %s)", p, p)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s f WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		assetSelect, schema.Table, clause, opts.orderBy("f"), args.Add(opts.Limit), args.Add(opts.Offset))

	return r.query(ctx, tc, kind, stmt, args.Values...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Get implements Repository.Get
func (r *PostgresRepository) Get(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, id int64, scope Scope) (*models.File, error) {
	files, err := r.GetMany(ctx, tc, kind, []int64{id}, scope)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.NotFound("documents.Get", string(kind))
	}
	return files[0], nil
}

// GetMany implements Repository.GetMany
func (r *PostgresRepository) GetMany(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64, scope Scope) ([]*models.File, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	schema := SchemaFor(kind)
	args := &query.Args{}
	clause, err := query.Compile(query.And(
		query.Eq{Field: "tenant_id", Value: tc.ID},
		scope.Predicate(),
	), schema, args)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s filter: %w", kind, err)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s f WHERE %s AND f.id = ANY(%s) ORDER BY f.id",
		assetSelect, schema.Table, clause, args.Add(pq.Array(ids)))

	return r.query(ctx, tc, kind, stmt, args.Values...)
}

func (r *PostgresRepository) query(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, stmt string, args ...any) ([]*models.File, error) {
	db := r.db.Replica()
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind.Plural(), err)
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		f, err := scanAsset(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", kind.Plural(), err)
	}
	if len(files) == 0 {
		return files, nil
	}

	if err := loadRelations(ctx, db, tc, kind, files); err != nil {
		return nil, err
	}
	return files, nil
}

// Create implements Repository.Create
func (r *PostgresRepository) Create(ctx context.Context, tc *tenant.Tenant, f *models.File) error {
	t := TablesFor(f.Kind)
	f.TenantID = tc.ID

	return database.WithTx(ctx, r.db.Primary(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (tenant_id, title, original_filename, file_path, file_size, mime_type,
				file_type_id, sub_file_type_id, company_id, is_public, is_active, expiry_date,
				season_year, metadata, container_number, quality_ref_number, quality_rating, uploaded_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id, created_at, updated_at
		`, t.Assets),
			tc.ID, f.Title, f.OriginalFilename, f.FilePath, f.FileSize, f.MimeType,
			nullable(f.FileTypeID), nullable(f.SubFileTypeID), nullable(f.CompanyID), f.IsPublic, f.IsActive, nullable(f.ExpiryDate),
			nullable(f.SeasonYear), f.Metadata, nullString(f.ContainerNumber), nullString(f.QualityRefNumber), nullString(string(f.QualityRating)), f.UploadedBy,
		).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", f.Kind, err)
		}
		return attachAll(ctx, tx, tc, t, f)
	})
}

// Update implements Repository.Update
func (r *PostgresRepository) Update(ctx context.Context, tc *tenant.Tenant, f *models.File) error {
	t := TablesFor(f.Kind)

	return database.WithTx(ctx, r.db.Primary(), func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`
			UPDATE %s SET title = $1, file_type_id = $2, sub_file_type_id = $3, company_id = $4,
				is_public = $5, expiry_date = $6, season_year = $7, metadata = $8,
				container_number = $9, quality_ref_number = $10, quality_rating = $11, updated_at = NOW()
			WHERE id = $12 AND tenant_id = $13 AND deleted_at IS NULL
			RETURNING updated_at
		`, t.Assets),
			f.Title, nullable(f.FileTypeID), nullable(f.SubFileTypeID), nullable(f.CompanyID),
			f.IsPublic, nullable(f.ExpiryDate), nullable(f.SeasonYear), f.Metadata,
			nullString(f.ContainerNumber), nullString(f.QualityRefNumber), nullString(string(f.QualityRating)),
			f.ID, tc.ID,
		).Scan(&f.UpdatedAt)
		if err == sql.ErrNoRows {
			return apperrors.NotFound("documents.Update", string(f.Kind))
		}
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", f.Kind, err)
		}

		for _, table := range []string{t.Commodities, t.Fbos, t.Varieties} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, t.ForeignKey), f.ID); err != nil {
				return fmt.Errorf("failed to detach %s: %w", table, err)
			}
		}
		return attachAll(ctx, tx, tc, t, f)
	})
}

// attachAll links f to its commodities, FBOs and varieties. Every id must
// belong to the tenant.
func attachAll(ctx context.Context, tx *sql.Tx, tc *tenant.Tenant, t Tables, f *models.File) error {
	links := []struct {
		join, column, target, rule string
		ids                        []int64
	}{
		{t.Commodities, "commodity_id", "commodities", "commodities_exist", f.CommodityIDs()},
		{t.Fbos, "fbo_id", "fbos", "fbos_exist", f.FboIDs()},
		{t.Varieties, "variety_id", "varieties", "varieties_exist", f.VarietyIDs()},
	}
	for _, l := range links {
		if len(l.ids) == 0 {
			continue
		}
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s, %s)
			SELECT $1, x.id FROM %s x WHERE x.id = ANY($2) AND x.tenant_id = $3
		`, l.join, t.ForeignKey, l.column, l.target), f.ID, pq.Array(l.ids), tc.ID)
		if err != nil {
			return fmt.Errorf("failed to attach %s: %w", l.target, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to attach %s: %w", l.target, err)
		}
		if int(n) != len(l.ids) {
			return apperrors.Validation("documents.attach", l.rule, fmt.Sprintf("some selected %s do not exist", l.target))
		}
	}
	return nil
}

// UpdateContent implements Repository.UpdateContent
func (r *PostgresRepository) UpdateContent(ctx context.Context, tc *tenant.Tenant, f *models.File) error {
	res, err := r.db.Primary().ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET file_path = $1, original_filename = $2, file_size = $3, mime_type = $4, updated_at = NOW()
		WHERE id = $5 AND tenant_id = $6 AND deleted_at IS NULL
	`, TablesFor(f.Kind).Assets), f.FilePath, f.OriginalFilename, f.FileSize, f.MimeType, f.ID, tc.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s content: %w", f.Kind, err)
	}
	return expectRows(res, 1, "documents.UpdateContent", f.Kind)
}

// SetActive implements Repository.SetActive
func (r *PostgresRepository) SetActive(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, id int64, active bool) error {
	res, err := r.db.Primary().ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s SET is_active = $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL
	`, TablesFor(kind).Assets), active, id, tc.ID)
	if err != nil {
		return fmt.Errorf("failed to update %s state: %w", kind, err)
	}
	return expectRows(res, 1, "documents.SetActive", kind)
}

// Trash implements Repository.Trash
func (r *PostgresRepository) Trash(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64) error {
	return r.bulk(ctx, tc, kind, ids, "documents.Trash",
		"UPDATE %s SET deleted_at = NOW() WHERE tenant_id = $1 AND id = ANY($2) AND deleted_at IS NULL")
}

// Restore implements Repository.Restore
func (r *PostgresRepository) Restore(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64) error {
	return r.bulk(ctx, tc, kind, ids, "documents.Restore",
		"UPDATE %s SET deleted_at = NULL WHERE tenant_id = $1 AND id = ANY($2) AND deleted_at IS NOT NULL")
}

// Purge implements Repository.Purge. Attachments go with the row
// (ON DELETE CASCADE).
func (r *PostgresRepository) Purge(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64) error {
	return r.bulk(ctx, tc, kind, ids, "documents.Purge",
		"DELETE FROM %s WHERE tenant_id = $1 AND id = ANY($2) AND deleted_at IS NOT NULL")
}

// bulk runs stmt for all ids in one transaction and rolls back unless
// every id was affected
func (r *PostgresRepository) bulk(ctx context.Context, tc *tenant.Tenant, kind models.AssetKind, ids []int64, op, stmt string) error {
	if len(ids) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db.Primary(), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(stmt, TablesFor(kind).Assets), tc.ID, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return expectRows(res, len(ids), op, kind)
	})
}

func expectRows(res sql.Result, want int, op string, kind models.AssetKind) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if int(n) != want {
		return apperrors.NotFound(op, string(kind))
	}
	return nil
}
