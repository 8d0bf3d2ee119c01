package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

var accountIDPattern = regexp.MustCompile(`^\d{12}$`)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Externally visible base URL
	ServerURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// AWS integration configuration
	AWS AWSConfig

	// Auth behavior configuration
	Auth AuthConfig
}

// AWSConfig holds the AWS-side settings: the KMS master key for envelope
// encryption, the identity oracle endpoint, and the cross-account trust
// boundary.
type AWSConfig struct {
	// Region for client construction. Empty defers to the SDK's own chain.
	Region string

	// KMSKeyID is the master key (ID, ARN, or alias) protecting stored
	// token and session payloads.
	KMSKeyID string

	// STSEndpoint overrides the identity oracle URL. Used in tests and in
	// VPC-endpoint deployments; empty means the public regional endpoint.
	STSEndpoint string

	// AllowedAccountIDs restricts which accounts may authenticate with a
	// signed identity proof. Empty means any account the oracle vouches for.
	AllowedAccountIDs []string

	// SSMPrefix, when set, overlays configuration values from the parameter
	// store path at startup.
	SSMPrefix string

	// AssumeRoleName is the role assumed in foreign accounts for
	// cross-account resource operations.
	AssumeRoleName string
}

// AuthConfig holds identity verification behavior.
type AuthConfig struct {
	// ServerID is this deployment's replay-protection value. Signed identity
	// proofs must carry it in their bound headers.
	ServerID string

	// AccessTokenTTL bounds newly minted access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL bounds newly minted refresh tokens.
	RefreshTokenTTL time.Duration

	// SessionTTL bounds browser sessions.
	SessionTTL time.Duration

	// BearerCacheTTL is how long a successful bearer authentication may be
	// served from memory before revisiting the database.
	BearerCacheTTL time.Duration

	// BearerCacheSize caps the in-memory bearer result cache.
	BearerCacheSize int
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "dashborion.db"),
		ServerAddr:       getEnv("SERVER_ADDR", "localhost:8080"),
		ServerURL:        getEnv("SERVER_URL", "http://localhost:8080"),
		MaxDBConnections: getEnvInt("MAX_DB_CONNECTIONS", 25),
		Debug:            getEnvBool("DEBUG", false),
		AWS: AWSConfig{
			Region:            getEnv("AWS_REGION", ""),
			KMSKeyID:          getEnv("KMS_KEY_ID", ""),
			STSEndpoint:       getEnv("STS_ENDPOINT", ""),
			AllowedAccountIDs: splitList(getEnv("ALLOWED_ACCOUNT_IDS", "")),
			SSMPrefix:         getEnv("SSM_PREFIX", ""),
			AssumeRoleName:    getEnv("ASSUME_ROLE_NAME", "dashborion-operator"),
		},
		Auth: AuthConfig{
			ServerID:        getEnv("SERVER_ID", ""),
			AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 12*time.Hour),
			RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			SessionTTL:      getEnvDuration("SESSION_TTL", 8*time.Hour),
			BearerCacheTTL:  getEnvDuration("BEARER_CACHE_TTL", 30*time.Second),
			BearerCacheSize: getEnvInt("BEARER_CACHE_SIZE", 1024),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SERVER_URL is required")
	}

	for _, id := range cfg.AWS.AllowedAccountIDs {
		if !accountIDPattern.MatchString(id) {
			return nil, fmt.Errorf("ALLOWED_ACCOUNT_IDS: %q is not a 12-digit account id", id)
		}
	}

	// The replay-protection value has no safe default: a guessable one lets
	// proofs intended for another deployment replay here.
	if cfg.Auth.ServerID == "" {
		return nil, fmt.Errorf("SERVER_ID is required")
	}

	return cfg, nil
}

// splitList parses a comma-separated environment value, trimming whitespace
// and dropping empty entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
