package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// assetTables creates one asset table (files or documents) with its join
// tables. Attachments are removed with the row.
func assetTables(table, fk, commodities, fbos, varieties string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id BIGSERIAL PRIMARY KEY,
			tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			original_filename VARCHAR(255) NOT NULL,
			file_path TEXT NOT NULL,
			file_size BIGINT NOT NULL DEFAULT 0,
			mime_type VARCHAR(255) NOT NULL,
			file_type_id BIGINT REFERENCES file_types(id),
			sub_file_type_id BIGINT REFERENCES file_types(id),
			company_id BIGINT,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expiry_date TIMESTAMP,
			season_year INT,
			metadata JSONB NOT NULL DEFAULT '{}',
			container_number VARCHAR(64),
			quality_ref_number VARCHAR(64),
			quality_rating VARCHAR(16),
			uploaded_by BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_tenant_deleted ON %[1]s(tenant_id, deleted_at);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_uploaded_by ON %[1]s(uploaded_by);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_file_type_id ON %[1]s(file_type_id);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_grower ON %[1]s((metadata->>'grower_id'));

		CREATE TABLE IF NOT EXISTS %[3]s (
			%[2]s BIGINT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
			commodity_id BIGINT NOT NULL REFERENCES commodities(id) ON DELETE CASCADE,
			PRIMARY KEY (%[2]s, commodity_id)
		);

		CREATE TABLE IF NOT EXISTS %[4]s (
			%[2]s BIGINT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
			fbo_id BIGINT NOT NULL REFERENCES fbos(id) ON DELETE CASCADE,
			PRIMARY KEY (%[2]s, fbo_id)
		);

		CREATE TABLE IF NOT EXISTS %[5]s (
			%[2]s BIGINT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
			variety_id BIGINT NOT NULL REFERENCES varieties(id) ON DELETE CASCADE,
			PRIMARY KEY (%[2]s, variety_id)
		);
	`, table, fk, commodities, fbos, varieties)
}

// GetMigrations returns all docvault migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants and users tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id BIGSERIAL PRIMARY KEY,
					slug VARCHAR(63) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
					currency VARCHAR(3) NOT NULL DEFAULT 'USD',
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					settings JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					name VARCHAR(255) NOT NULL DEFAULT '',
					company_id BIGINT,
					property_id BIGINT,
					grower_number VARCHAR(64),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, email)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create roles, permissions and user groups",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(64) NOT NULL UNIQUE
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(128) NOT NULL UNIQUE
				);

				CREATE TABLE IF NOT EXISTS role_user (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, user_id)
				);

				CREATE TABLE IF NOT EXISTS permission_role (
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (permission_id, role_id)
				);

				CREATE TABLE IF NOT EXISTS user_groups (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(128) NOT NULL,
					display_name VARCHAR(255) NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					UNIQUE(tenant_id, name)
				);

				CREATE TABLE IF NOT EXISTS user_group_user (
					user_group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					PRIMARY KEY (user_group_id, user_id)
				);

				CREATE TABLE IF NOT EXISTS permission_user_group (
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					user_group_id BIGINT NOT NULL REFERENCES user_groups(id) ON DELETE CASCADE,
					PRIMARY KEY (permission_id, user_group_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create master data tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS growers (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					grower_number VARCHAR(64) NOT NULL,
					contact_name VARCHAR(255),
					email VARCHAR(255),
					phone VARCHAR(64),
					address TEXT,
					UNIQUE(tenant_id, grower_number)
				);

				CREATE TABLE IF NOT EXISTS fbos (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					code VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL DEFAULT '',
					type VARCHAR(16) NOT NULL CHECK (type IN ('PUC', 'PHC', 'OTHER')),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					deleted_at TIMESTAMP,
					UNIQUE(tenant_id, code)
				);

				CREATE TABLE IF NOT EXISTS commodities (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					sort_order INT NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT TRUE
				);

				CREATE TABLE IF NOT EXISTS varieties (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					commodity_id BIGINT REFERENCES commodities(id) ON DELETE SET NULL
				);

				CREATE TABLE IF NOT EXISTS fbo_grower (
					fbo_id BIGINT NOT NULL REFERENCES fbos(id) ON DELETE CASCADE,
					grower_id BIGINT NOT NULL REFERENCES growers(id) ON DELETE CASCADE,
					PRIMARY KEY (fbo_id, grower_id)
				);

				CREATE TABLE IF NOT EXISTS commodity_grower (
					commodity_id BIGINT NOT NULL REFERENCES commodities(id) ON DELETE CASCADE,
					grower_id BIGINT NOT NULL REFERENCES growers(id) ON DELETE CASCADE,
					PRIMARY KEY (commodity_id, grower_id)
				);

				CREATE TABLE IF NOT EXISTS grower_user (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					grower_id BIGINT NOT NULL REFERENCES growers(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, grower_id)
				);

				CREATE TABLE IF NOT EXISTS commodity_user (
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					commodity_id BIGINT NOT NULL REFERENCES commodities(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, commodity_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create file_types table",
			SQL: `
				CREATE TABLE IF NOT EXISTS file_types (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					parent_id BIGINT REFERENCES file_types(id),
					attribute_type VARCHAR(32),
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_file_types_parent_id ON file_types(parent_id);
			`,
		},
		{
			Version:     5,
			Description: "Create files tables",
			SQL:         assetTables("files", "file_id", "commodity_file", "fbo_file", "file_variety"),
		},
		{
			Version:     6,
			Description: "Create documents tables",
			SQL:         assetTables("documents", "document_id", "commodity_document", "fbo_document", "document_variety"),
		},
		{
			Version:     7,
			Description: "Create activity_log table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_log (
					id BIGSERIAL PRIMARY KEY,
					timestamp TIMESTAMP NOT NULL DEFAULT NOW(),
					event_type VARCHAR(64) NOT NULL,
					status VARCHAR(16) NOT NULL,
					tenant_id BIGINT NOT NULL,
					user_id BIGINT,
					resource_type VARCHAR(32),
					resource_ids BIGINT[],
					request_id VARCHAR(64),
					message TEXT,
					metadata JSONB,
					changes JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_activity_log_tenant_time ON activity_log(tenant_id, timestamp DESC);
				CREATE INDEX IF NOT EXISTS idx_activity_log_event_type ON activity_log(event_type);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS docvault_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		log := logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO docvault_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("Migration completed")
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM docvault_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
