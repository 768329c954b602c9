package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/holderrewards/dashboard/pkg/validation"
)

// Fetcher names accepted in FETCHERS
const (
	FetcherIndexer = "indexer"
	FetcherNode    = "node"
	FetcherSDK     = "sdk"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// InMemoryStore replaces postgres with the in-memory repository
	InMemoryStore bool

	// Chain data sources
	AptosNodeURL    string
	AptosIndexerURL string
	Fetchers        []string
	FetchTimeout    time.Duration
	DemoMode        bool

	// Collection filter
	CollectionName    string
	CollectionID      string
	CollectionCreator string

	// Metadata resolution
	MetadataBaseURL      string
	IPFSGateway          string
	PlaceholderImageBase string
	MetadataRetries      int

	// Rewards
	DefaultTokenName      string
	DefaultPayoutPerToken decimal.Decimal
	LockDuration          time.Duration
	ClaimFunction         string
	ClaimCoinType         string

	// Admin and escrow
	AdminAddress       string
	EscrowAddress      string
	EscrowPollInterval time.Duration
	EscrowMinBalance   decimal.Decimal

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Notification configuration
	TelegramBotToken    string
	TelegramAdminChatID string

	SnapshotCacheSize int
	SnapshotTTL       time.Duration
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 6532),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "rewards"),
		InMemoryStore:    getEnvAsBool("IN_MEMORY_STORE", false),

		AptosNodeURL:    getEnv("APTOS_NODE_URL", "https://fullnode.mainnet.aptoslabs.com/v1"),
		AptosIndexerURL: getEnv("APTOS_INDEXER_URL", "https://api.mainnet.aptoslabs.com/v1/graphql"),
		Fetchers:        getEnvAsList("FETCHERS", []string{FetcherIndexer, FetcherNode, FetcherSDK}),
		FetchTimeout:    getEnvAsDuration("FETCH_TIMEOUT", 15*time.Second),
		DemoMode:        getEnvAsBool("DEMO_MODE", false),

		CollectionName:    getEnv("COLLECTION_NAME", ""),
		CollectionID:      getEnv("COLLECTION_ID", ""),
		CollectionCreator: getEnv("COLLECTION_CREATOR", ""),

		MetadataBaseURL:      getEnv("METADATA_BASE_URL", ""),
		IPFSGateway:          getEnv("IPFS_GATEWAY", "ipfs.io"),
		PlaceholderImageBase: getEnv("PLACEHOLDER_IMAGE_BASE", "https://api.dicebear.com/7.x/identicon/svg?seed="),
		MetadataRetries:      getEnvAsInt("METADATA_RETRIES", 2),

		DefaultTokenName:      getEnv("DEFAULT_TOKEN_NAME", "APT"),
		DefaultPayoutPerToken: getEnvAsDecimal("DEFAULT_PAYOUT_PER_TOKEN", decimal.RequireFromString("0.1")),
		LockDuration:          getEnvAsDuration("LOCK_DURATION", 30*24*time.Hour),
		ClaimFunction:         getEnv("CLAIM_FUNCTION", ""),
		ClaimCoinType:         getEnv("CLAIM_COIN_TYPE", "0x1::aptos_coin::AptosCoin"),

		AdminAddress:       getEnv("ADMIN_ADDRESS", ""),
		EscrowAddress:      getEnv("ESCROW_ADDRESS", ""),
		EscrowPollInterval: getEnvAsDuration("ESCROW_POLL_INTERVAL", 5*time.Minute),
		EscrowMinBalance:   getEnvAsDecimal("ESCROW_MIN_BALANCE", decimal.Zero),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: getEnv("TELEGRAM_ADMIN_CHAT_ID", ""),

		SnapshotCacheSize: getEnvAsInt("SNAPSHOT_CACHE_SIZE", 1024),
		SnapshotTTL:       getEnvAsDuration("SNAPSHOT_TTL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.ClaimFunction == "" {
		return fmt.Errorf("CLAIM_FUNCTION is required")
	}
	if strings.Count(c.ClaimFunction, "::") != 2 {
		return fmt.Errorf("invalid CLAIM_FUNCTION format, expected <address>::<module>::<function>: %s", c.ClaimFunction)
	}
	if err := validation.ValidateAddress(strings.SplitN(c.ClaimFunction, "::", 2)[0]); err != nil {
		return fmt.Errorf("invalid CLAIM_FUNCTION address: %w", err)
	}

	if c.CollectionName == "" && c.CollectionID == "" && c.CollectionCreator == "" {
		return fmt.Errorf("one of COLLECTION_NAME, COLLECTION_ID or COLLECTION_CREATOR is required")
	}

	if len(c.Fetchers) == 0 {
		return fmt.Errorf("FETCHERS must name at least one fetcher")
	}
	for _, name := range c.Fetchers {
		switch name {
		case FetcherIndexer, FetcherNode, FetcherSDK:
		default:
			return fmt.Errorf("unknown fetcher in FETCHERS: %s", name)
		}
	}

	if c.AptosNodeURL == "" {
		return fmt.Errorf("APTOS_NODE_URL is required")
	}
	if c.AptosIndexerURL == "" {
		return fmt.Errorf("APTOS_INDEXER_URL is required")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}
	if c.LockDuration <= 0 {
		return fmt.Errorf("LOCK_DURATION must be positive")
	}
	if !c.DefaultPayoutPerToken.IsPositive() {
		return fmt.Errorf("DEFAULT_PAYOUT_PER_TOKEN must be greater than zero")
	}

	if c.AdminAddress != "" {
		if err := validation.ValidateAddress(c.AdminAddress); err != nil {
			return fmt.Errorf("invalid ADMIN_ADDRESS: %w", err)
		}
	}
	if c.EscrowAddress != "" {
		if err := validation.ValidateAddress(c.EscrowAddress); err != nil {
			return fmt.Errorf("invalid ESCROW_ADDRESS: %w", err)
		}
	}

	if !c.InMemoryStore {
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required")
		}
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDecimal(name string, defaultValue decimal.Decimal) decimal.Decimal {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := decimal.NewFromString(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsList(name string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
