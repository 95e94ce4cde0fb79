package argot

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// BoardConfig holds all configuration for an argot board.
type BoardConfig struct {
	Name string `yaml:"name"` // Board name (default "argot")
	URL  string `yaml:"url"`  // Canonical URL (default "http://localhost:5000")

	Addr         string `yaml:"addr"`          // Listen address (default ":5000")
	DatabasePath string `yaml:"database_path"` // SQLite path (default "data/argot.db")

	AdminPassword string `yaml:"admin_password"` // Required: admin login password
	SessionSecret string `yaml:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	AllowOrigins []string `yaml:"allow_origins"` // CORS origins (default "*")

	PageSize      int           `yaml:"page_size"`      // Posts per page (default 10)
	PostCacheTTL  time.Duration `yaml:"post_cache_ttl"` // Post cache TTL (default 1min)
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"` // Title fetch timeout (default 10s)
	QueryTimeout  time.Duration `yaml:"query_timeout"`  // Tag query deadline (default 5s)

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error (default "info")
	LogPretty bool   `yaml:"log_pretty"` // Console output instead of JSON
}

func (c *BoardConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "argot"
	}
	if c.URL == "" {
		c.URL = "http://localhost:5000"
	}
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/argot.db"
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"*"}
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = time.Minute
	}
	if c.ScrapeTimeout == 0 {
		c.ScrapeTimeout = 10 * time.Second
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// WithDefaults returns c with unset fields filled in.
func (c BoardConfig) WithDefaults() BoardConfig {
	c.setDefaults()
	return c
}

// LoadConfigFile reads a YAML config file. Environment variables are applied
// on top by ConfigFromEnv.
func LoadConfigFile(path string) (BoardConfig, error) {
	var cfg BoardConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigFromEnv overrides fields of base with ARGOT_* environment variables
// that are set.
func ConfigFromEnv(base BoardConfig) BoardConfig {
	cfg := base
	cfg.Name = EnvOr("ARGOT_NAME", cfg.Name)
	cfg.URL = EnvOr("ARGOT_URL", cfg.URL)
	cfg.Addr = EnvOr("ARGOT_ADDR", cfg.Addr)
	cfg.DatabasePath = EnvOr("ARGOT_DATABASE", cfg.DatabasePath)
	cfg.AdminPassword = EnvOr("ARGOT_ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.SessionSecret = EnvOr("ARGOT_SESSION_SECRET", cfg.SessionSecret)
	cfg.LogLevel = EnvOr("ARGOT_LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("ARGOT_COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = v == "true" || v == "1"
	}
	if v := os.Getenv("ARGOT_LOG_PRETTY"); v != "" {
		cfg.LogPretty = v == "true" || v == "1"
	}
	if v := os.Getenv("ARGOT_ALLOW_ORIGINS"); v != "" {
		cfg.AllowOrigins = FilterEmpty(SplitList(v))
	}
	return cfg
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the logger built from LogLevel and LogPretty.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithTitleFetcher replaces the fetcher used to guess titles for link posts.
func WithTitleFetcher(f TitleFetcher) Option {
	return func(a *App) {
		a.titles = f
	}
}
