// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings, plus an optional YAML access rules file.
//
// # Configuration Structure
//
// Server settings:
//
//	DOCVAULT_HOST="0.0.0.0"
//	DOCVAULT_PORT="8080"
//	DOCVAULT_HEALTH_PORT="9090"
//	DOCVAULT_READ_TIMEOUT="15s"
//	DOCVAULT_WRITE_TIMEOUT="60s"
//	DOCVAULT_HIDE_FORBIDDEN="false"  # answer denied requests with 404
//
// Database settings:
//
//	DOCVAULT_DATABASE_URL="postgres://localhost/docvault?sslmode=disable"
//	DOCVAULT_DATABASE_REPLICA_URLS="postgres://replica1/docvault,postgres://replica2/docvault"
//	DOCVAULT_DATABASE_MAX_CONNS="20"
//	DOCVAULT_DATABASE_MIN_CONNS="2"
//
// Storage settings:
//
//	DOCVAULT_STORAGE_TYPE="filesystem"  # filesystem, s3
//	DOCVAULT_FILESYSTEM_ROOT="/var/lib/docvault"
//	DOCVAULT_S3_BUCKET="docvault-files"
//	DOCVAULT_S3_REGION="us-east-1"
//	DOCVAULT_S3_ENDPOINT="http://minio:9000"
//	DOCVAULT_MAX_UPLOAD_SIZE="15728640"
//	DOCVAULT_MAX_REPLACE_SIZE="52428800"
//	DOCVAULT_STORAGE_SCAN_BUDGET="30s"
//
// Principal cache settings:
//
//	DOCVAULT_CACHE_ENABLED="true"
//	DOCVAULT_CACHE_SIZE="10000"
//	DOCVAULT_CACHE_TTL="1m"
//	DOCVAULT_REDIS_URL="redis://localhost:6379"  # shared cache between replicas
//
// Observability settings:
//
//	DOCVAULT_LOG_LEVEL="info"
//	DOCVAULT_METRICS_ENABLED="true"
//	DOCVAULT_OTEL_ENABLED="false"
//	DOCVAULT_OTEL_ENDPOINT="localhost:4317"
//
// # Access Rules File
//
// DOCVAULT_ACCESS_RULES_FILE points at a YAML file:
//
//	grower_restricted_file_types:
//	  attribute_types: [grower]
//	customer_excluded_file_types:
//	  attribute_types: [grower]
//	  names: ["Internal audit"]
//	legacy_unassigned_super_user: true
//	limits:
//	  max_upload_size: 15728640
//	  max_replace_size: 52428800
//
// Absent keys keep their defaults. A selector that is present replaces the
// default selector entirely. Unknown keys are an error.
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	builder := access.NewBuilder(cfg.AccessConfig(), filetypes.NewResolver())
//	resolver := rbac.NewResolver(loader, cfg.RBACOptions())
package config
