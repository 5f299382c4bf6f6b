// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cart store backends selectable with CART_STORE.
const (
	CartStoreMemory    = "memory"
	CartStoreRedis     = "redis"
	CartStoreFirestore = "firestore"
	CartStorePostgres  = "postgres"
)

// Config holds the environment settings of the whole application.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// Cart persistence
	CartStore     string
	CartCacheSize int // containers kept in memory (0 means the registry default)
	RedisURL      string
	DatabaseURL   string

	// GCP (Firestore / Firebase Auth / Secret Manager)
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	GCPCreds                 string

	// Access control
	AccessPolicyFile     string
	RoleCookieSecret     string
	RoleCookieSecretName string
	CookieSecure         bool

	CORSAllowedOrigins []string

	// Telemetry
	TraceStdout         bool
	MetricsStdout       bool
	OTLPMetricsEndpoint string
}

// Load reads the environment and returns a Config.
func Load() *Config {
	defaultProject := getenvDefault("GCP_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT"))

	cfg := &Config{
		Port:     getenvDefault("PORT", "8080"),
		AppEnv:   getenvDefault("APP_ENV", "production"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),

		CartStore:     strings.ToLower(strings.TrimSpace(os.Getenv("CART_STORE"))),
		CartCacheSize: getenvInt("CART_CACHE_SIZE", 0),
		RedisURL:      os.Getenv("REDIS_URL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		GCPCreds:                 os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		AccessPolicyFile:     os.Getenv("ACCESS_POLICY_FILE"),
		RoleCookieSecret:     os.Getenv("ROLE_COOKIE_SECRET"),
		RoleCookieSecretName: os.Getenv("ROLE_COOKIE_SECRET_NAME"),
		// Secure cookies unless explicitly turned off (local http dev)
		CookieSecure: getenvBool("COOKIE_SECURE", true),

		CORSAllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),

		TraceStdout:         getenvBool("TRACE_STDOUT", false),
		MetricsStdout:       getenvBool("METRICS_STDOUT", false),
		OTLPMetricsEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
	}

	// in-process carts only on a developer machine
	if cfg.CartStore == "" && cfg.IsLocal() {
		cfg.CartStore = CartStoreMemory
	}

	return cfg
}

// Validate rejects settings the server cannot run with.
// The memory cart store loses every cart on restart and is refused outside local environments.
func (c *Config) Validate() error {
	switch c.CartStore {
	case "":
		return errors.New("config: CART_STORE is required (redis, firestore or postgres)")
	case CartStoreMemory:
		if !c.IsLocal() {
			return fmt.Errorf("config: CART_STORE=%s requires APP_ENV=local (got %q)", CartStoreMemory, c.AppEnv)
		}
	case CartStoreRedis, CartStoreFirestore, CartStorePostgres:
	default:
		return fmt.Errorf("config: unknown CART_STORE %q", c.CartStore)
	}
	return nil
}

// IsLocal reports whether the app runs in a developer environment.
func (c *Config) IsLocal() bool {
	switch strings.ToLower(c.AppEnv) {
	case "local", "dev", "development":
		return true
	}
	return false
}

// CredentialsFile returns the GCP credentials file (FIRESTORE_CREDENTIALS_FILE first).
func (c *Config) CredentialsFile() string {
	if v := strings.TrimSpace(c.FirestoreCredentialsFile); v != "" {
		return v
	}
	return strings.TrimSpace(c.GCPCreds)
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
