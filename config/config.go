package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stablecoin-swap/domain"
)

// Store drivers
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Batch policies
const (
	BatchAtomic  = "atomic"
	BatchPartial = "partial"
)

// Config of the swap server
type Config struct {
	HTTPAddr string

	// Owner identity allowed to set rates
	Owner domain.ID

	StoreDriver string
	RedisAddr   string
	RedisPass   string
	RedisPrefix string

	// NatsURL empty disables NATS publishing
	NatsURL     string
	NatsSubject string

	// KafkaBrokers empty disables Kafka publishing
	KafkaBrokers []string
	KafkaTopic   string

	BatchPolicy string

	// MaxRate nil accepts any rate
	MaxRate *domain.Rate

	// EventHistory how many events the in-memory recorder keeps
	EventHistory int

	// Assets maps quote symbols to ledger identifiers for the rate feed
	Assets map[domain.Symbol]domain.ID

	// FeedPairs empty disables the rate feed
	FeedPairs    []domain.Pair
	FeedInterval time.Duration
	CoinbaseURL  string
}

// Load reads the configuration from the environment. A .env file in the working
// directory, when present, fills in variables that are not already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	cfg := Config{
		HTTPAddr:     get("HTTP_ADDR", ":8080"),
		StoreDriver:  get("STORE_DRIVER", StoreMemory),
		RedisAddr:    get("REDIS_ADDR", "localhost:6379"),
		RedisPass:    get("REDIS_PASS", ""),
		RedisPrefix:  get("REDIS_PREFIX", "swap:"),
		NatsURL:      get("NATS_URL", ""),
		NatsSubject:  get("NATS_SUBJECT", "swap"),
		KafkaBrokers: splitList(get("KAFKA_BROKERS", "")),
		KafkaTopic:   get("KAFKA_TOPIC", "swap-events"),
		BatchPolicy:  get("BATCH_POLICY", BatchAtomic),
		CoinbaseURL:  get("COINBASE_URL", ""),
		Assets:       map[domain.Symbol]domain.ID{},
	}

	owner := getenv("OWNER_ID")
	if owner == "" {
		return Config{}, errors.New("OWNER_ID is required")
	}
	id, err := domain.ParseID(owner)
	if err != nil {
		return Config{}, fmt.Errorf("OWNER_ID: %w", err)
	}
	cfg.Owner = id

	switch cfg.StoreDriver {
	case StoreMemory, StoreRedis:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver)
	}

	switch cfg.BatchPolicy {
	case BatchAtomic, BatchPartial:
	default:
		return Config{}, fmt.Errorf("BATCH_POLICY: unknown policy %q", cfg.BatchPolicy)
	}

	if v := getenv("MAX_RATE"); v != "" {
		r, err := domain.ParseAmount(v)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_RATE: %w", err)
		}
		cfg.MaxRate = &r
	}

	cfg.EventHistory, err = strconv.Atoi(get("EVENT_HISTORY", "256"))
	if err != nil {
		return Config{}, fmt.Errorf("EVENT_HISTORY: %w", err)
	}

	cfg.FeedInterval, err = time.ParseDuration(get("FEED_INTERVAL", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("FEED_INTERVAL: %w", err)
	}
	if cfg.FeedInterval <= 0 {
		return Config{}, fmt.Errorf("FEED_INTERVAL: must be positive, got %v", cfg.FeedInterval)
	}

	// ASSETS=USDC=0x..,USDT=0x..
	for _, entry := range splitList(getenv("ASSETS")) {
		symbol, hexID, ok := strings.Cut(entry, "=")
		if !ok {
			return Config{}, fmt.Errorf("ASSETS: malformed entry %q", entry)
		}
		id, err := domain.ParseID(hexID)
		if err != nil {
			return Config{}, fmt.Errorf("ASSETS: %w", err)
		}
		cfg.Assets[domain.Symbol(symbol)] = id
	}

	// FEED_PAIRS=USDC/USDT,USDT/USDC
	for _, entry := range splitList(getenv("FEED_PAIRS")) {
		from, to, ok := strings.Cut(entry, "/")
		if !ok {
			return Config{}, fmt.Errorf("FEED_PAIRS: malformed pair %q", entry)
		}
		cfg.FeedPairs = append(cfg.FeedPairs, domain.Pair{From: domain.Symbol(from), To: domain.Symbol(to)})
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
