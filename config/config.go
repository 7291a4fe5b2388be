package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"pricecompare/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port      int    `validate:"gt=0,lte=65535"`
	PublicDir string `validate:"required"`
	LogLevel  string `validate:"omitempty,oneof=debug info warn warning error"`

	// Scraping
	RenderEngine         string        `validate:"oneof=chromedp rod"`
	ChromeBin            string
	MaxConcurrency       int           `validate:"gte=1"`
	DispatchIntervalMs   int           `validate:"gte=0"`
	MaxRetries           int           `validate:"gte=1"`
	BrowserLaunchTimeout time.Duration `validate:"gt=0"`
	SiteTimeout          time.Duration `validate:"gt=0"`
	QueryTimeout         time.Duration `validate:"gt=0"`
	NavTimeout           time.Duration `validate:"gt=0"`
	SlotWait             time.Duration `validate:"gte=0"`
	SettleDelay          time.Duration `validate:"gte=0"`
	ProductImageLookup   bool
	ProductPageTimeout   time.Duration `validate:"gte=0"`
	BlockMarkers         []string
	UserAgent            string
	AcceptLanguage       string

	// Currency
	ReferenceCurrency   string        `validate:"required,len=3,uppercase"`
	ExchangeRateURL     string        `validate:"required,url"`
	ExchangeRateAPIKey  string
	ExchangeRateTimeout time.Duration `validate:"gt=0"`

	// Cache
	CacheTTL           time.Duration `validate:"gt=0"`
	CacheMaxEntries    int           `validate:"gte=0"`
	CacheSweepSchedule string
	CoalesceQueries    bool

	// HTTP
	RateLimitRPS float64 `validate:"gte=0"`

	SitesFile string
	Sites     []models.SiteConfig `validate:"required,min=1,dive"`
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		Port:      getEnvInt("PORT", 10000),
		PublicDir: getEnv("PUBLIC_DIR", "./public"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		RenderEngine:         strings.ToLower(getEnv("RENDER_ENGINE", "chromedp")),
		ChromeBin:            getEnv("CHROME_BIN", ""),
		MaxConcurrency:       getEnvInt("MAX_CONCURRENCY", 5),
		DispatchIntervalMs:   getEnvInt("DISPATCH_INTERVAL_MS", 0),
		MaxRetries:           getEnvInt("MAX_RETRIES", 2),
		BrowserLaunchTimeout: getEnvDuration("BROWSER_LAUNCH_TIMEOUT_MS", 45*time.Second),
		SiteTimeout:          getEnvDuration("SITE_TIMEOUT_MS", 10*time.Second),
		QueryTimeout:         getEnvDuration("QUERY_TIMEOUT_MS", 2*time.Minute),
		NavTimeout:           getEnvDuration("NAV_TIMEOUT_MS", 15*time.Second),
		SlotWait:             getEnvDuration("SLOT_WAIT_MS", 5*time.Second),
		SettleDelay:          getEnvDuration("SETTLE_DELAY_MS", 2*time.Second),
		ProductImageLookup:   getEnvBool("PRODUCT_IMAGE_LOOKUP", true),
		ProductPageTimeout:   getEnvDuration("PRODUCT_PAGE_TIMEOUT_MS", 5*time.Second),
		BlockMarkers:         getEnvList("BLOCK_MARKERS", []string{"captcha"}),
		UserAgent:            getEnv("USER_AGENT", defaultUserAgent),
		AcceptLanguage:       getEnv("ACCEPT_LANGUAGE", "en-GB,en;q=0.9"),

		ReferenceCurrency:   strings.ToUpper(getEnv("REFERENCE_CURRENCY", "EUR")),
		ExchangeRateURL:     getEnv("EXCHANGE_RATE_URL", "https://api.exchangerate.host/convert"),
		ExchangeRateAPIKey:  getEnv("EXCHANGE_RATE_API_KEY", ""),
		ExchangeRateTimeout: getEnvDuration("EXCHANGE_RATE_TIMEOUT_MS", 5*time.Second),

		CacheTTL:           time.Duration(getEnvInt("CACHE_TTL_MINUTES", 15)) * time.Minute,
		CacheMaxEntries:    getEnvInt("CACHE_MAX_ENTRIES", 0),
		CacheSweepSchedule: getEnv("CACHE_SWEEP_SCHEDULE", "@every 5m"),
		CoalesceQueries:    getEnvBool("COALESCE_QUERIES", false),

		RateLimitRPS: getEnvFloat("RATE_LIMIT_RPS", 1),

		SitesFile: getEnv("SITES_FILE", ""),
	}

	sites := DefaultSites()
	if cfg.SitesFile != "" {
		loaded, err := LoadSites(cfg.SitesFile)
		if err != nil {
			return nil, err
		}
		sites = loaded
	}
	cfg.Sites = applyAffiliateEnv(sites)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared in struct tags, including every site.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Sites))
	for _, s := range c.Sites {
		if _, dup := seen[s.Domain]; dup {
			return fmt.Errorf("config: duplicate site domain %q", s.Domain)
		}
		seen[s.Domain] = struct{}{}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
