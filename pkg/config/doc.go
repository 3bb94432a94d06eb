// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates warden configuration from WARDEN_ environment
// variables with sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	WARDEN_HOST="0.0.0.0"
//	WARDEN_PORT="8080"
//	WARDEN_SHUTDOWN_TIMEOUT="30s"
//
// Catalog settings (empty path means the built-in roles):
//
//	WARDEN_CATALOG_PATH="/etc/warden/roles.yaml"
//	WARDEN_CATALOG_WATCH="true"
//
// Directory settings:
//
//	WARDEN_DIRECTORY_TYPE="postgres"  # memory, postgres
//	WARDEN_POSTGRES_URL="postgres://localhost/warden"
//	WARDEN_DIRECTORY_SEED="/etc/warden/seed.yaml"
//	WARDEN_DIRECTORY_SYNC_SCHEDULE="@every 30s"
//
// Cache settings:
//
//	WARDEN_CACHE_ENABLED="true"
//	WARDEN_CACHE_BACKEND="redis"  # memory, redis
//	WARDEN_CACHE_TTL="5m"
//	WARDEN_REDIS_URL="redis://localhost:6379/0"
//
// Audit settings:
//
//	WARDEN_AUDIT_QUEUE_SIZE="4096"
//	WARDEN_AUDIT_FILE_DIR="/var/log/warden"
//	WARDEN_AUDIT_DB="true"
//
// Observability settings:
//
//	WARDEN_LOG_LEVEL="info"  # debug, info, warn, error
//	WARDEN_METRICS_ENABLED="true"
//	WARDEN_OTEL_ENABLED="true"
//	WARDEN_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr())
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - cmd/warden: Wires every component from this configuration
package config
