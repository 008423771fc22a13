package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gambler/arena/database"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Ledger service configuration
	ListenAddr      string          // Address the ledger HTTP API listens on
	StartingBalance decimal.Decimal // Available balance of a wallet on first use
	MatchTTL        time.Duration   // How long an open match waits for opponents
	AdminUserIDs    []string        // User IDs with administrative capability

	// Client configuration
	LedgerURL      string        // Base URL of the ledger service
	DebounceWindow time.Duration // Quiet window before a change burst triggers a refresh

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated)

	// Observability configuration
	OTELExporter     string // "console", "otlp" or "none"
	OTELEndpoint     string
	OTELServiceName  string
	OTELExportPeriod time.Duration

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsAdmin checks whether a user id has administrative capability
func (c *Config) IsAdmin(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Ledger
		ListenAddr:      getEnvWithDefault("LISTEN_ADDR", ":8080"),
		StartingBalance: decimal.NewFromInt(100),
		MatchTTL:        30 * time.Minute,

		// Client
		LedgerURL:      getEnvWithDefault("LEDGER_URL", "http://localhost:8080"),
		DebounceWindow: 350 * time.Millisecond,

		// NATS
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		// Observability
		OTELExporter:     getEnvWithDefault("OTEL_EXPORTER", "none"),
		OTELEndpoint:     getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317"),
		OTELServiceName:  getEnvWithDefault("OTEL_SERVICE_NAME", "arena"),
		OTELExportPeriod: 30 * time.Second,

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsed, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
		}
		config.StartingBalance = parsed
	}
	if ttl := os.Getenv("MATCH_TTL_MINUTES"); ttl != "" {
		if minutes, err := strconv.Atoi(ttl); err == nil && minutes > 0 {
			config.MatchTTL = time.Duration(minutes) * time.Minute
		}
	}
	if window := os.Getenv("DEBOUNCE_WINDOW_MS"); window != "" {
		if ms, err := strconv.Atoi(window); err == nil && ms > 0 {
			config.DebounceWindow = time.Duration(ms) * time.Millisecond
		}
	}
	if period := os.Getenv("OTEL_EXPORT_INTERVAL_SECONDS"); period != "" {
		if secs, err := strconv.Atoi(period); err == nil && secs > 0 {
			config.OTELExportPeriod = time.Duration(secs) * time.Second
		}
	}

	// Parse admin user IDs
	if adminIDs := os.Getenv("ADMIN_USER_IDS"); adminIDs != "" {
		for _, id := range strings.Split(adminIDs, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				config.AdminUserIDs = append(config.AdminUserIDs, id)
			}
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.StartingBalance.IsNegative() {
			return nil, fmt.Errorf("STARTING_BALANCE cannot be negative")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}

	return config, nil
}

// RequireDatabase validates the settings the ledger service cannot start without
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:     "test",
		AdminUserIDs:    []string{"admin-1", "admin-2"},
		StartingBalance: decimal.NewFromInt(100),
		MatchTTL:        30 * time.Minute,
		DebounceWindow:  350 * time.Millisecond,
		OTELExporter:    "none",
		OTELServiceName: "arena-test",
	}
}
