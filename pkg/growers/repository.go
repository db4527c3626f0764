package growers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/database"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

// Repository persists growers, FBOs, commodities and user assignments
type Repository struct {
	db *database.Manager
}

// NewRepository creates a new grower repository
func NewRepository(db *database.Manager) *Repository {
	return &Repository{db: db}
}

// compile AND-s the tenant scope into filter and renders it against schema.
// ok is false when nothing can match.
func compile(tc *tenant.Tenant, filter query.Predicate, schema *query.Schema) (where string, args *query.Args, ok bool, err error) {
	p := query.And(query.Eq{Field: "tenant_id", Value: tc.ID}, filter)
	if query.IsFalse(p) {
		return "", nil, false, nil
	}
	args = &query.Args{}
	where, err = query.Compile(p, schema, args)
	if err != nil {
		return "", nil, false, fmt.Errorf("failed to compile %s filter: %w", schema.Table, err)
	}
	return where, args, true, nil
}

// ListGrowers returns the growers matching filter, ordered by name
func (r *Repository) ListGrowers(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.Grower, error) {
	where, args, ok, err := compile(tc, filter, GrowerSchema)
	if err != nil || !ok {
		return []*models.Grower{}, err
	}

	rows, err := r.db.Replica().QueryContext(ctx, `
		SELECT g.id, g.tenant_id, g.name, g.grower_number, g.contact_name, g.email, g.phone, g.address
		FROM growers g
		WHERE `+where+`
		ORDER BY g.name, g.id
	`, args.Values...)
	if err != nil {
		return nil, fmt.Errorf("failed to list growers: %w", err)
	}
	defer rows.Close()

	out := []*models.Grower{}
	for rows.Next() {
		var g models.Grower
		var contact, email, phone, address sql.NullString
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.GrowerNumber, &contact, &email, &phone, &address); err != nil {
			return nil, fmt.Errorf("failed to scan grower: %w", err)
		}
		g.ContactName, g.Email, g.Phone, g.Address = contact.String, email.String, phone.String, address.String
		out = append(out, &g)
	}
	return out, rows.Err()
}

// Exists reports whether grower id belongs to the tenant
func (r *Repository) Exists(ctx context.Context, tc *tenant.Tenant, id int64) (bool, error) {
	var exists bool
	err := r.db.Replica().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM growers WHERE id = $1 AND tenant_id = $2)`, id, tc.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grower: %w", err)
	}
	return exists, nil
}

// ListFbos returns the FBOs matching filter with their linked grower ids.
// Soft-deleted FBOs are never returned.
func (r *Repository) ListFbos(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.Fbo, error) {
	where, args, ok, err := compile(tc, filter, FboSchema)
	if err != nil || !ok {
		return []*models.Fbo{}, err
	}

	db := r.db.Replica()
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.tenant_id, b.code, b.name, b.type, b.is_active
		FROM fbos b
		WHERE `+where+` AND b.deleted_at IS NULL
		ORDER BY b.code, b.id
	`, args.Values...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fbos: %w", err)
	}
	defer rows.Close()

	out := []*models.Fbo{}
	byID := make(map[int64]*models.Fbo)
	var ids []int64
	for rows.Next() {
		var b models.Fbo
		var fboType string
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Code, &b.Name, &fboType, &b.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan fbo: %w", err)
		}
		b.Type = models.FboType(fboType)
		out = append(out, &b)
		byID[b.ID] = &b
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fbos: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	links, err := db.QueryContext(ctx,
		`SELECT fbo_id, grower_id FROM fbo_grower WHERE fbo_id = ANY($1) ORDER BY grower_id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load fbo growers: %w", err)
	}
	defer links.Close()
	for links.Next() {
		var fboID, growerID int64
		if err := links.Scan(&fboID, &growerID); err != nil {
			return nil, fmt.Errorf("failed to scan fbo grower: %w", err)
		}
		byID[fboID].GrowerIDs = append(byID[fboID].GrowerIDs, growerID)
	}
	return out, links.Err()
}

// ListCommodities returns the commodities matching filter in display order
func (r *Repository) ListCommodities(ctx context.Context, tc *tenant.Tenant, filter query.Predicate) ([]*models.Commodity, error) {
	where, args, ok, err := compile(tc, filter, CommoditySchema)
	if err != nil || !ok {
		return []*models.Commodity{}, err
	}

	rows, err := r.db.Replica().QueryContext(ctx, `
		SELECT c.id, c.tenant_id, c.name, c.sort_order, c.is_active
		FROM commodities c
		WHERE `+where+`
		ORDER BY c.sort_order, c.name
	`, args.Values...)
	if err != nil {
		return nil, fmt.Errorf("failed to list commodities: %w", err)
	}
	defer rows.Close()

	out := []*models.Commodity{}
	for rows.Next() {
		var c models.Commodity
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.SortOrder, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan commodity: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Assign links a user to a grower and returns the user's grower number
// afterwards. Assigning again refreshes the assignment time, which makes
// the grower the user's current one.
func (r *Repository) Assign(ctx context.Context, tc *tenant.Tenant, userID, growerID int64) (string, error) {
	var number string
	err := database.WithTx(ctx, r.db.Primary(), func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, tc, userID); err != nil {
			return err
		}

		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM growers WHERE id = $1 AND tenant_id = $2)`, growerID, tc.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check grower: %w", err)
		}
		if !exists {
			return apperrors.NotFound("growers.Assign", "grower")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO grower_user (user_id, grower_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id, grower_id) DO UPDATE SET created_at = NOW()
		`, userID, growerID)
		if err != nil {
			return fmt.Errorf("failed to assign grower: %w", err)
		}

		number, err = syncGrowerNumber(ctx, tx, userID)
		return err
	})
	return number, err
}

// Unassign removes a user's grower and returns the user's grower number
// afterwards, which falls back to the most recently assigned remaining
// grower or empty.
func (r *Repository) Unassign(ctx context.Context, tc *tenant.Tenant, userID, growerID int64) (string, error) {
	var number string
	err := database.WithTx(ctx, r.db.Primary(), func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, tc, userID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM grower_user
			WHERE user_id = $1 AND grower_id = $2
				AND grower_id IN (SELECT id FROM growers WHERE tenant_id = $3)
		`, userID, growerID, tc.ID)
		if err != nil {
			return fmt.Errorf("failed to unassign grower: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to unassign grower: %w", err)
		}
		if n == 0 {
			return apperrors.NotFound("growers.Unassign", "grower assignment")
		}

		number, err = syncGrowerNumber(ctx, tx, userID)
		return err
	})
	return number, err
}

// lockUser serializes assignment changes of one user
func lockUser(ctx context.Context, tx *sql.Tx, tc *tenant.Tenant, userID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = $1 AND tenant_id = $2 FOR UPDATE`, userID, tc.ID).Scan(&id)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("growers.assignment", "user")
	}
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

// syncGrowerNumber caches the number of the most recently assigned grower
// on the user row
func syncGrowerNumber(ctx context.Context, tx *sql.Tx, userID int64) (string, error) {
	var number sql.NullString
	err := tx.QueryRowContext(ctx, `
		UPDATE users SET grower_number = (
			SELECT g.grower_number
			FROM grower_user gu JOIN growers g ON g.id = gu.grower_id
			WHERE gu.user_id = $1
			ORDER BY gu.created_at DESC, gu.grower_id DESC
			LIMIT 1
		)
		WHERE id = $1
		RETURNING grower_number
	`, userID).Scan(&number)
	if err != nil {
		return "", fmt.Errorf("failed to update grower number: %w", err)
	}
	return number.String, nil
}
