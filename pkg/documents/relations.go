package documents

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/docvault/pkg/filetypes"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// loadRelations fills the file types, commodities, FBOs and varieties of
// files with one query per relation.
func loadRelations(ctx context.Context, db *sql.DB, tc *tenant.Tenant, kind models.AssetKind, files []*models.File) error {
	t := TablesFor(kind)
	ids := make([]int64, len(files))
	byID := make(map[int64]*models.File, len(files))
	for i, f := range files {
		ids[i] = f.ID
		byID[f.ID] = f
	}

	if err := loadFileTypes(ctx, db, tc, files); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT j.%s, c.id, c.tenant_id, c.name, c.sort_order, c.is_active
		FROM %s j JOIN commodities c ON c.id = j.commodity_id
		WHERE j.%s = ANY($1) AND c.tenant_id = $2
		ORDER BY c.sort_order, c.name
	`, t.ForeignKey, t.Commodities, t.ForeignKey), pq.Array(ids), tc.ID)
	if err != nil {
		return fmt.Errorf("failed to load commodities: %w", err)
	}
	err = eachRow(rows, func() error {
		var owner int64
		var c models.Commodity
		if err := rows.Scan(&owner, &c.ID, &c.TenantID, &c.Name, &c.SortOrder, &c.IsActive); err != nil {
			return err
		}
		byID[owner].Commodities = append(byID[owner].Commodities, c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load commodities: %w", err)
	}

	rows, err = db.QueryContext(ctx, fmt.Sprintf(`
		SELECT j.%s, b.id, b.tenant_id, b.code, b.name, b.type, b.is_active
		FROM %s j JOIN fbos b ON b.id = j.fbo_id
		WHERE j.%s = ANY($1) AND b.tenant_id = $2
		ORDER BY b.code
	`, t.ForeignKey, t.Fbos, t.ForeignKey), pq.Array(ids), tc.ID)
	if err != nil {
		return fmt.Errorf("failed to load fbos: %w", err)
	}
	err = eachRow(rows, func() error {
		var owner int64
		var b models.Fbo
		var fboType string
		if err := rows.Scan(&owner, &b.ID, &b.TenantID, &b.Code, &b.Name, &fboType, &b.IsActive); err != nil {
			return err
		}
		b.Type = models.FboType(fboType)
		byID[owner].Fbos = append(byID[owner].Fbos, b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load fbos: %w", err)
	}

	rows, err = db.QueryContext(ctx, fmt.Sprintf(`
		SELECT j.%s, v.id, v.tenant_id, v.name, v.commodity_id
		FROM %s j JOIN varieties v ON v.id = j.variety_id
		WHERE j.%s = ANY($1) AND v.tenant_id = $2
		ORDER BY v.name
	`, t.ForeignKey, t.Varieties, t.ForeignKey), pq.Array(ids), tc.ID)
	if err != nil {
		return fmt.Errorf("failed to load varieties: %w", err)
	}
	err = eachRow(rows, func() error {
		var owner int64
		var v models.Variety
		var commodity sql.NullInt64
		if err := rows.Scan(&owner, &v.ID, &v.TenantID, &v.Name, &commodity); err != nil {
			return err
		}
		v.CommodityID = nullInt64(commodity)
		byID[owner].Varieties = append(byID[owner].Varieties, v)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load varieties: %w", err)
	}
	return nil
}

func loadFileTypes(ctx context.Context, db *sql.DB, tc *tenant.Tenant, files []*models.File) error {
	seen := make(map[int64]bool)
	var ids []int64
	for _, f := range files {
		for _, id := range []*int64{f.FileTypeID, f.SubFileTypeID} {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT "+filetypes.SelectColumns+" FROM file_types ft WHERE ft.id = ANY($1) AND ft.tenant_id = $2",
		pq.Array(ids), tc.ID)
	if err != nil {
		return fmt.Errorf("failed to load file types: %w", err)
	}
	types := make(map[int64]*models.FileType, len(ids))
	err = eachRow(rows, func() error {
		ft, err := filetypes.ScanFileType(rows)
		if err != nil {
			return err
		}
		types[ft.ID] = ft
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load file types: %w", err)
	}

	for _, f := range files {
		if f.FileTypeID != nil {
			f.FileType = types[*f.FileTypeID]
		}
		if f.SubFileTypeID != nil {
			f.SubFileType = types[*f.SubFileTypeID]
		}
	}
	return nil
}

func eachRow(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}
