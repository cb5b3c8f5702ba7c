package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/oraichain/oraiswap-orderbook/pkg/orderbook"
)

type Node struct {
	// DataDir holds the pebble database.
	DataDir string
	// ListenAddr is the REST/WebSocket bind address.
	ListenAddr string
	// AllowedOrigins for CORS.
	AllowedOrigins []string
	// LogPath duplicates structured logs to a file when set.
	LogPath string
}

type Engine struct {
	// MinVolume is the dust threshold below which a remainder force-closes
	// its order.
	MinVolume decimal.Decimal
	// RefundsThreshold is the smallest leftover worth paying back.
	RefundsThreshold decimal.Decimal
	// DefaultSlippage bounds market orders that specify none.
	DefaultSlippage decimal.Decimal
}

type Config struct {
	Node   Node
	Engine Engine
}

func Default() Config {
	return Config{
		Node: Node{
			DataDir:        "data/orderbook",
			ListenAddr:     ":8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Engine: Engine{
			MinVolume:        orderbook.MinVolume,
			RefundsThreshold: orderbook.RefundsThreshold,
			DefaultSlippage:  orderbook.DefaultSlippage,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.ListenAddr = getEnv("LISTEN_ADDR", cfg.Node.ListenAddr)
	cfg.Node.LogPath = getEnv("LOG_PATH", cfg.Node.LogPath)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Node.AllowedOrigins = strings.Split(origins, ",")
	}

	if v := os.Getenv("MIN_VOLUME"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			cfg.Engine.MinVolume = d
		}
	}
	if v := os.Getenv("REFUNDS_THRESHOLD"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			cfg.Engine.RefundsThreshold = d
		}
	}
	if v := os.Getenv("DEFAULT_SLIPPAGE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() && d.LessThan(decimal.NewFromInt(1)) {
			cfg.Engine.DefaultSlippage = d
		}
	}

	return cfg
}

// Apply installs the engine overrides as process-wide defaults.
func (c Config) Apply() {
	orderbook.MinVolume = c.Engine.MinVolume
	orderbook.RefundsThreshold = c.Engine.RefundsThreshold
	orderbook.DefaultSlippage = c.Engine.DefaultSlippage
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
