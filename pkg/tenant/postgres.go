package tenant

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// PostgresResolver implements Resolver using PostgreSQL
type PostgresResolver struct {
	db *sql.DB
}

// NewPostgresResolver creates a new PostgresResolver
func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

const tenantColumns = `id, slug, name, timezone, currency, status, settings`

// GetTenant retrieves a tenant by ID
func (r *PostgresResolver) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return r.scan(r.db.QueryRowContext(ctx, query, id))
}

// GetTenantBySlug retrieves a tenant by slug
func (r *PostgresResolver) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return r.scan(r.db.QueryRowContext(ctx, query, slug))
}

func (r *PostgresResolver) scan(row *sql.Row) (*Tenant, error) {
	t := &Tenant{}
	var timezone, currency sql.NullString
	var settingsJSON []byte

	err := row.Scan(&t.ID, &t.Slug, &t.Name, &timezone, &currency, &t.Status, &settingsJSON)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("tenant.Get", "tenant")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	t.Timezone = timezone.String
	t.Currency = currency.String
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &t.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tenant settings: %w", err)
		}
	}

	return t, nil
}
