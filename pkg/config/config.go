package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App             AppConfig
	DB              DBConfig
	Redis           RedisConfig
	JWT             JWTConfig
	GCP             GCPConfig
	GCS             GCSConfig
	Storage         StorageConfig
	Uploads         UploadsConfig
	Geometry        GeometryConfig
	PubSub          PubSubConfig
	UploadRateLimit UploadRateLimitConfig
	FeatureFlags    FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DOCUFLAT_APP_ENV" required:"true"`
	Port         string `envconfig:"DOCUFLAT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DOCUFLAT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DOCUFLAT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DOCUFLAT_DB_DSN" required:"true"`
	Driver string `envconfig:"DOCUFLAT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"DOCUFLAT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DOCUFLAT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DOCUFLAT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DOCUFLAT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DOCUFLAT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DOCUFLAT_REDIS_ADDR"`
	Password     string        `envconfig:"DOCUFLAT_REDIS_PASSWORD"`
	DB           int           `envconfig:"DOCUFLAT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DOCUFLAT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DOCUFLAT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DOCUFLAT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DOCUFLAT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DOCUFLAT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"DOCUFLAT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"DOCUFLAT_JWT_ISSUER" required:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DOCUFLAT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DOCUFLAT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DOCUFLAT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"DOCUFLAT_GCS_BUCKET"`
	PublicBase string `envconfig:"DOCUFLAT_GCS_PUBLIC_BASE"`
}

// StorageConfig selects where artifact bytes live.
type StorageConfig struct {
	Backend  string `envconfig:"DOCUFLAT_STORAGE_BACKEND" default:"local"`
	LocalDir string `envconfig:"DOCUFLAT_STORAGE_LOCAL_DIR" default:"uploads"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(s.Backend) {
	case StorageBackendLocal, StorageBackendGCS:
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

type UploadsConfig struct {
	MaxUploadBytes int64  `envconfig:"DOCUFLAT_MAX_UPLOAD_BYTES" default:"10485760"`
	TempDir        string `envconfig:"DOCUFLAT_UPLOAD_TEMP_DIR" default:""`
}

// GeometryConfig locates the sidecar scripts used for detection and warping.
type GeometryConfig struct {
	Python      string        `envconfig:"DOCUFLAT_GEOMETRY_PYTHON" default:"python3"`
	DetectPath  string        `envconfig:"DOCUFLAT_GEOMETRY_DETECT_SCRIPT" default:"scripts/geometry/detect_document_contour.py"`
	RectifyPath string        `envconfig:"DOCUFLAT_GEOMETRY_WARP_SCRIPT" default:"scripts/geometry/warp_document.py"`
	CallTimeout time.Duration `envconfig:"DOCUFLAT_GEOMETRY_TIMEOUT" default:"30s"`
}

type PubSubConfig struct {
	DocumentsTopic string `envconfig:"DOCUFLAT_PUBSUB_DOCUMENTS_TOPIC"`
}

type UploadRateLimitConfig struct {
	Window    time.Duration `envconfig:"DOCUFLAT_UPLOAD_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"DOCUFLAT_UPLOAD_RATE_LIMIT_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DOCUFLAT_AUTO_MIGRATE" default:"false"`
}
