package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-projects.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// CookieDomain is the domain for the session cookie (optional).
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`

	// TrustProxy takes the client address from X-Forwarded-For. Enable only
	// behind a load balancer that overwrites the header.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are checked.
	// Set to false only for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWTSecret signs locally issued HS256 tokens.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML

	// SessionKey signs the browser session cookie. Falls back to JWTSecret when empty.
	SessionKey string `yaml:"-" env:"SESSION_KEY"` // Secret - not in YAML

	Issuer   string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"ekaya-projects"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs for
	// externally issued tokens. Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// Bootstrap admin created at startup when BootstrapAdminEmail is set and
	// no account with that email exists yet.
	BootstrapAdminEmail    string `yaml:"bootstrap_admin_email" env:"BOOTSTRAP_ADMIN_EMAIL" env-default:""`
	BootstrapAdminPassword string `yaml:"-" env:"BOOTSTRAP_ADMIN_PASSWORD"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_projects"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration for token revocation.
// An empty Host disables revocation.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
}

// StorageConfig holds MinIO / S3-compatible object storage configuration for documents.
type StorageConfig struct {
	Endpoint       string `yaml:"endpoint" env:"STORAGE_ENDPOINT" env-default:"localhost:9000"`
	Bucket         string `yaml:"bucket" env:"STORAGE_BUCKET" env-default:"ekaya-documents"`
	AccessKey      string `yaml:"-" env:"STORAGE_ACCESS_KEY"` // Secret - not in YAML
	SecretKey      string `yaml:"-" env:"STORAGE_SECRET_KEY"` // Secret - not in YAML
	UseSSL         bool   `yaml:"use_ssl" env:"STORAGE_USE_SSL" env-default:"false"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"STORAGE_MAX_UPLOAD_BYTES" env-default:"26214400"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, JWT_SECRET, REDIS_PASSWORD, STORAGE_*_KEY) must come
// from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.validateAuth(); err != nil {
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// IsLocal reports whether the server runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// validateAuth requires a signing secret whenever tokens are verified, since
// login and register issue HS256 tokens locally.
func (c *Config) validateAuth() error {
	if c.Auth.BootstrapAdminEmail != "" && c.Auth.BootstrapAdminPassword == "" {
		return fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD is required when bootstrap_admin_email is set")
	}
	if !c.Auth.EnableVerification {
		return nil
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth verification is enabled")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port)
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}
