package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

// Loader loads the principal for a user of a tenant
type Loader interface {
	LoadPrincipal(ctx context.Context, tenantID, userID int64) (*Principal, error)
}

// Store handles RBAC data persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadPrincipal reads the user row, role permissions, group permissions and
// grower/commodity assignments in a fixed number of queries.
func (s *Store) LoadPrincipal(ctx context.Context, tenantID, userID int64) (*Principal, error) {
	p := &Principal{UserID: userID, TenantID: tenantID}

	var companyID, propertyID sql.NullInt64
	var growerNumber sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT company_id, property_id, grower_number
		FROM users
		WHERE id = $1 AND tenant_id = $2
	`, userID, tenantID).Scan(&companyID, &propertyID, &growerNumber)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("rbac.LoadPrincipal", "user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if companyID.Valid {
		id := companyID.Int64
		p.CompanyID = &id
	}
	if propertyID.Valid {
		id := propertyID.Int64
		p.PropertyID = &id
	}
	p.GrowerNumber = growerNumber.String

	if err := s.loadRoles(ctx, p); err != nil {
		return nil, err
	}
	if err := s.loadGroups(ctx, p); err != nil {
		return nil, err
	}

	p.GrowerIDs, err = s.loadIDs(ctx, `SELECT grower_id FROM grower_user WHERE user_id = $1 ORDER BY grower_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grower assignments: %w", err)
	}
	p.CommodityIDs, err = s.loadIDs(ctx, `SELECT commodity_id FROM commodity_user WHERE user_id = $1 ORDER BY commodity_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commodity assignments: %w", err)
	}

	return p, nil
}

func (s *Store) loadRoles(ctx context.Context, p *Principal) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name, perm.name
		FROM role_user ru
		JOIN roles r ON r.id = ru.role_id
		LEFT JOIN permission_role pr ON pr.role_id = r.id
		LEFT JOIN permissions perm ON perm.id = pr.permission_id
		WHERE ru.user_id = $1
		ORDER BY r.name
	`, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	seenRoles := make(map[Role]bool)
	for rows.Next() {
		var roleName string
		var permName sql.NullString
		if err := rows.Scan(&roleName, &permName); err != nil {
			return fmt.Errorf("failed to scan role: %w", err)
		}
		role := Role(roleName)
		if !seenRoles[role] {
			seenRoles[role] = true
			p.Roles = append(p.Roles, role)
		}
		if perm, ok := ParsePermission(permName.String); ok {
			p.Permissions = append(p.Permissions, perm)
		}
	}

	return rows.Err()
}

func (s *Store) loadGroups(ctx context.Context, p *Principal) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.display_name, g.is_active, perm.name
		FROM user_group_user gu
		JOIN user_groups g ON g.id = gu.user_group_id
		LEFT JOIN permission_user_group pg ON pg.user_group_id = g.id
		LEFT JOIN permissions perm ON perm.id = pg.permission_id
		WHERE gu.user_id = $1 AND g.tenant_id = $2
		ORDER BY g.id
	`, p.UserID, p.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load groups: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]int)
	for rows.Next() {
		var g Group
		var permName sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &g.DisplayName, &g.IsActive, &permName); err != nil {
			return fmt.Errorf("failed to scan group: %w", err)
		}
		i, ok := index[g.ID]
		if !ok {
			i = len(p.Groups)
			index[g.ID] = i
			p.Groups = append(p.Groups, g)
		}
		if perm, ok := ParsePermission(permName.String); ok {
			p.Groups[i].Permissions = append(p.Groups[i].Permissions, perm)
		}
	}

	return rows.Err()
}

func (s *Store) loadIDs(ctx context.Context, query string, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
