package config

// EnvPrefix namespaces all envconfig lookups.
const EnvPrefix = "DOCUFLAT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

// Exported env keys so tests and tooling can set configuration without
// duplicating string literals.
const (
	EnvAppEnv    = "DOCUFLAT_APP_ENV"
	EnvPort      = "DOCUFLAT_APP_PORT"
	EnvDBDSN     = "DOCUFLAT_DB_DSN"
	EnvRedisURL  = "DOCUFLAT_REDIS_URL"
	EnvJWTSecret = "DOCUFLAT_JWT_SECRET"
	EnvJWTIssuer = "DOCUFLAT_JWT_ISSUER"

	EnvStorageBackend  = "DOCUFLAT_STORAGE_BACKEND"
	EnvStorageLocalDir = "DOCUFLAT_STORAGE_LOCAL_DIR"
	EnvGCSBucket       = "DOCUFLAT_GCS_BUCKET"
	EnvGCPProjectID    = "DOCUFLAT_GCP_PROJECT_ID"

	EnvMaxUploadBytes  = "DOCUFLAT_MAX_UPLOAD_BYTES"
	EnvGeometryPython  = "DOCUFLAT_GEOMETRY_PYTHON"
	EnvGeometryTimeout = "DOCUFLAT_GEOMETRY_TIMEOUT"

	EnvPubSubDocumentsTopic = "DOCUFLAT_PUBSUB_DOCUMENTS_TOPIC"
)
