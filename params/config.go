package params

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Market struct {
	ID string
	// Closing conditions. Zero disables a condition; with both zero the
	// market runs until the process is stopped.
	MaxRounds int
	MaxDays   int
	// RoundsPerDay ends a trading day after this many rounds. Zero means the
	// whole run is one day.
	RoundsPerDay int

	Pricing  string  // discriminatory | uniform
	PricingK float64 // in [0, 1]; 0.5 splits the surplus evenly

	OpeningFunds string // decimal string, given to every account
	// CheckIntegrity verifies the order book after every mutation and panics
	// on a violation. Slow; meant for development.
	CheckIntegrity bool
}

type Agents struct {
	Buyers   int
	Sellers  int
	Units    int64
	MinPrice float64
	MaxPrice float64
	Seed     int64
}

type Node struct {
	// RoundInterval paces the simulation. Zero runs rounds back to back.
	RoundInterval time.Duration
	DataDir       string // pebble checkpoints; empty disables persistence
	APIAddr       string
	LogFile       string
}

type Config struct {
	Market Market
	Agents Agents
	Node   Node
}

func Default() Config {
	return Config{
		Market: Market{
			ID:           "cda-1",
			MaxRounds:    1000,
			RoundsPerDay: 100,
			Pricing:      "discriminatory",
			PricingK:     0.5,
			OpeningFunds: "10000",
		},
		Agents: Agents{
			Buyers:   10,
			Sellers:  10,
			Units:    5,
			MinPrice: 1,
			MaxPrice: 200,
			Seed:     1,
		},
		Node: Node{
			RoundInterval: 100 * time.Millisecond,
			DataDir:       "data/market",
			APIAddr:       ":8080",
			LogFile:       "data/market.log",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Optional: a missing .env file is not an error
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Market.ID = getEnv("MARKET_ID", cfg.Market.ID)
	cfg.Market.Pricing = getEnv("PRICING_POLICY", cfg.Market.Pricing)
	cfg.Market.OpeningFunds = getEnv("OPENING_FUNDS", cfg.Market.OpeningFunds)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}
	set(intEnv("MARKET_MAX_ROUNDS", &cfg.Market.MaxRounds))
	set(intEnv("MARKET_MAX_DAYS", &cfg.Market.MaxDays))
	set(intEnv("MARKET_ROUNDS_PER_DAY", &cfg.Market.RoundsPerDay))
	set(floatEnv("PRICING_K", &cfg.Market.PricingK))
	set(boolEnv("CHECK_INTEGRITY", &cfg.Market.CheckIntegrity))
	set(intEnv("AGENTS_BUYERS", &cfg.Agents.Buyers))
	set(intEnv("AGENTS_SELLERS", &cfg.Agents.Sellers))
	set(int64Env("AGENTS_UNITS", &cfg.Agents.Units))
	set(floatEnv("AGENTS_MIN_PRICE", &cfg.Agents.MinPrice))
	set(floatEnv("AGENTS_MAX_PRICE", &cfg.Agents.MaxPrice))
	set(int64Env("AGENTS_SEED", &cfg.Agents.Seed))

	if ms := os.Getenv("ROUND_INTERVAL_MS"); ms != "" {
		n, perr := strconv.Atoi(ms)
		if perr != nil {
			set(fmt.Errorf("ROUND_INTERVAL_MS: %w", perr))
		} else {
			cfg.Node.RoundInterval = time.Duration(n) * time.Millisecond
		}
	}

	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	if c.Market.MaxRounds < 0 || c.Market.MaxDays < 0 || c.Market.RoundsPerDay < 0 {
		return fmt.Errorf("round and day limits must not be negative")
	}
	if c.Market.PricingK < 0 || c.Market.PricingK > 1 {
		return fmt.Errorf("PRICING_K must be in [0, 1], got %g", c.Market.PricingK)
	}
	switch c.Market.Pricing {
	case "discriminatory", "uniform":
	default:
		return fmt.Errorf("unknown PRICING_POLICY %q", c.Market.Pricing)
	}
	if c.Agents.Buyers < 0 || c.Agents.Sellers < 0 {
		return fmt.Errorf("agent counts must not be negative")
	}
	if c.Node.RoundInterval < 0 {
		return fmt.Errorf("ROUND_INTERVAL_MS must not be negative")
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func int64Env(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func floatEnv(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func boolEnv(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
