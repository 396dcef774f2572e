package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Log         LogConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Versions    VersionsConfig
	Audit       AuditConfig
	Alert       AlertConfig
	Retention   RetentionConfig
	Policy      PolicyConfig
	Telemetry   TelemetryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds settings for verifying access tokens issued by the firm's
// identity service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// StorageConfig holds object storage and content policy settings.
type StorageConfig struct {
	Provider         string   `mapstructure:"provider"`
	Region           string   `mapstructure:"region"`
	Bucket           string   `mapstructure:"bucket"`
	Endpoint         string   `mapstructure:"endpoint"`
	AccessKey        string   `mapstructure:"access_key"`
	SecretKey        string   `mapstructure:"secret_key"`
	UseSSL           bool     `mapstructure:"use_ssl"`
	MaxFileSizeMB    int64    `mapstructure:"max_file_size_mb"`
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
}

// MaxFileSizeBytes returns the upload ceiling in bytes.
func (s *StorageConfig) MaxFileSizeBytes() int64 {
	return s.MaxFileSizeMB * 1024 * 1024
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig holds the idempotency token store connection.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IdempotencyConfig controls replay protection for mutations.
type IdempotencyConfig struct {
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
}

// VersionsConfig controls version-chain reads.
type VersionsConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// AuditConfig controls the audit recorder.
type AuditConfig struct {
	AppendRetries int           `mapstructure:"append_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	PageSize      int           `mapstructure:"page_size"`
}

// AlertConfig holds operator alert delivery settings.
type AlertConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	Recipients  []string `mapstructure:"recipients"`
}

// RetentionConfig holds the retention sweep settings.
type RetentionConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// PolicyConfig points at the role -> permission policy file. Empty uses the
// built-in policy.
type PolicyConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Protocol    string `mapstructure:"protocol"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration from environment variables with the FIRMDOCS_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIRMDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "firmdocs")
	v.SetDefault("db.password", "firmdocs_secret")
	v.SetDefault("db.name", "firmdocs_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "firmdocs")

	// Storage defaults
	v.SetDefault("storage.provider", "s3")
	v.SetDefault("storage.region", "ap-south-1")
	v.SetDefault("storage.bucket", "firmdocs-documents")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.max_file_size_mb", 25)
	v.SetDefault("storage.allowed_mime_types", "application/pdf,image/jpeg,image/png,"+
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document,"+
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet,text/csv")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "text")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Idempotency defaults
	v.SetDefault("idempotency.token_ttl", "24h")
	v.SetDefault("idempotency.duplicate_window", "2m")

	v.SetDefault("versions.page_size", 50)

	// Audit defaults
	v.SetDefault("audit.append_retries", 3)
	v.SetDefault("audit.retry_backoff", "50ms")
	v.SetDefault("audit.page_size", 100)

	// Alert defaults
	v.SetDefault("alert.provider", "noop")
	v.SetDefault("alert.region", "ap-south-1")
	v.SetDefault("alert.from_address", "alerts@firmdocs.local")
	v.SetDefault("alert.recipients", "")

	// Retention defaults
	v.SetDefault("retention.enabled", false)
	v.SetDefault("retention.interval", "1h")
	v.SetDefault("retention.batch_size", 50)

	// Policy defaults
	v.SetDefault("policy.path", "")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.service_name", "firmdocs")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                  "FIRMDOCS_SERVER_PORT",
		"server.read_timeout":          "FIRMDOCS_SERVER_READ_TIMEOUT",
		"server.write_timeout":         "FIRMDOCS_SERVER_WRITE_TIMEOUT",
		"server.environment":           "FIRMDOCS_SERVER_ENVIRONMENT",
		"server.cors_origins":          "FIRMDOCS_SERVER_CORS_ORIGINS",
		"db.host":                      "FIRMDOCS_DB_HOST",
		"db.port":                      "FIRMDOCS_DB_PORT",
		"db.user":                      "FIRMDOCS_DB_USER",
		"db.password":                  "FIRMDOCS_DB_PASSWORD",
		"db.name":                      "FIRMDOCS_DB_NAME",
		"db.sslmode":                   "FIRMDOCS_DB_SSLMODE",
		"db.max_open":                  "FIRMDOCS_DB_MAX_OPEN",
		"db.max_idle":                  "FIRMDOCS_DB_MAX_IDLE",
		"jwt.secret":                   "FIRMDOCS_JWT_SECRET",
		"jwt.issuer":                   "FIRMDOCS_JWT_ISSUER",
		"storage.provider":             "FIRMDOCS_STORAGE_PROVIDER",
		"storage.region":               "FIRMDOCS_STORAGE_REGION",
		"storage.bucket":               "FIRMDOCS_STORAGE_BUCKET",
		"storage.endpoint":             "FIRMDOCS_STORAGE_ENDPOINT",
		"storage.access_key":           "FIRMDOCS_STORAGE_ACCESS_KEY",
		"storage.secret_key":           "FIRMDOCS_STORAGE_SECRET_KEY",
		"storage.use_ssl":              "FIRMDOCS_STORAGE_USE_SSL",
		"storage.max_file_size_mb":     "FIRMDOCS_STORAGE_MAX_FILE_SIZE_MB",
		"storage.allowed_mime_types":   "FIRMDOCS_STORAGE_ALLOWED_MIME_TYPES",
		"log.level":                    "FIRMDOCS_LOG_LEVEL",
		"log.format":                   "FIRMDOCS_LOG_FORMAT",
		"redis.enabled":                "FIRMDOCS_REDIS_ENABLED",
		"redis.addr":                   "FIRMDOCS_REDIS_ADDR",
		"redis.password":               "FIRMDOCS_REDIS_PASSWORD",
		"redis.db":                     "FIRMDOCS_REDIS_DB",
		"idempotency.token_ttl":        "FIRMDOCS_IDEMPOTENCY_TOKEN_TTL",
		"idempotency.duplicate_window": "FIRMDOCS_IDEMPOTENCY_DUPLICATE_WINDOW",
		"audit.append_retries":         "FIRMDOCS_AUDIT_APPEND_RETRIES",
		"audit.retry_backoff":          "FIRMDOCS_AUDIT_RETRY_BACKOFF",
		"audit.page_size":              "FIRMDOCS_AUDIT_PAGE_SIZE",
		"versions.page_size":           "FIRMDOCS_VERSIONS_PAGE_SIZE",
		"alert.provider":               "FIRMDOCS_ALERT_PROVIDER",
		"alert.region":                 "FIRMDOCS_ALERT_REGION",
		"alert.from_address":           "FIRMDOCS_ALERT_FROM_ADDRESS",
		"alert.recipients":             "FIRMDOCS_ALERT_RECIPIENTS",
		"retention.enabled":            "FIRMDOCS_RETENTION_ENABLED",
		"retention.interval":           "FIRMDOCS_RETENTION_INTERVAL",
		"retention.batch_size":         "FIRMDOCS_RETENTION_BATCH_SIZE",
		"policy.path":                  "FIRMDOCS_POLICY_PATH",
		"telemetry.enabled":            "FIRMDOCS_TELEMETRY_ENABLED",
		"telemetry.protocol":           "FIRMDOCS_TELEMETRY_PROTOCOL",
		"telemetry.service_name":       "FIRMDOCS_TELEMETRY_SERVICE_NAME",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if FIRMDOCS_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("FIRMDOCS_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		CORSOrigins:  splitList(v.GetString("server.cors_origins")),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.Storage = StorageConfig{
		Provider:         strings.ToLower(v.GetString("storage.provider")),
		Region:           v.GetString("storage.region"),
		Bucket:           v.GetString("storage.bucket"),
		Endpoint:         v.GetString("storage.endpoint"),
		AccessKey:        v.GetString("storage.access_key"),
		SecretKey:        v.GetString("storage.secret_key"),
		UseSSL:           v.GetBool("storage.use_ssl"),
		MaxFileSizeMB:    v.GetInt64("storage.max_file_size_mb"),
		AllowedMimeTypes: splitList(v.GetString("storage.allowed_mime_types")),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("redis.enabled"),
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
	cfg.Idempotency = IdempotencyConfig{
		TokenTTL:        v.GetDuration("idempotency.token_ttl"),
		DuplicateWindow: v.GetDuration("idempotency.duplicate_window"),
	}
	cfg.Versions = VersionsConfig{PageSize: v.GetInt("versions.page_size")}
	cfg.Audit = AuditConfig{
		AppendRetries: v.GetInt("audit.append_retries"),
		RetryBackoff:  v.GetDuration("audit.retry_backoff"),
		PageSize:      v.GetInt("audit.page_size"),
	}
	cfg.Alert = AlertConfig{
		Provider:    strings.ToLower(v.GetString("alert.provider")),
		Region:      v.GetString("alert.region"),
		FromAddress: v.GetString("alert.from_address"),
		Recipients:  splitList(v.GetString("alert.recipients")),
	}
	cfg.Retention = RetentionConfig{
		Enabled:   v.GetBool("retention.enabled"),
		Interval:  v.GetDuration("retention.interval"),
		BatchSize: v.GetInt("retention.batch_size"),
	}
	cfg.Policy = PolicyConfig{
		Path: v.GetString("policy.path"),
	}
	cfg.Telemetry = TelemetryConfig{
		Enabled:     v.GetBool("telemetry.enabled"),
		Protocol:    v.GetString("telemetry.protocol"),
		ServiceName: v.GetString("telemetry.service_name"),
	}

	if cfg.Storage.Provider != "s3" && cfg.Storage.Provider != "minio" {
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Storage.Provider)
	}
	if cfg.Audit.AppendRetries < 1 {
		return nil, fmt.Errorf("audit.append_retries must be at least 1, got %d", cfg.Audit.AppendRetries)
	}
	if cfg.Versions.PageSize < 1 {
		return nil, fmt.Errorf("versions.page_size must be at least 1, got %d", cfg.Versions.PageSize)
	}

	return cfg, nil
}

// splitList parses a comma-separated string, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
