package spacetravel

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const defaultPageSize = 20

// Content sources selectable with CONTENT_SOURCE.
const (
	SourcePrismic = "prismic"
	SourceSQLite  = "sqlite"
)

// SiteConfig holds all configuration for the site. Values come from an
// optional YAML file overlaid by environment variables.
type SiteConfig struct {
	Name        string `yaml:"name" env:"SITE_NAME"`               // default "Space Traveling"
	URL         string `yaml:"url" env:"SITE_URL"`                 // canonical URL
	Description string `yaml:"description" env:"SITE_DESCRIPTION"` // RSS and meta description
	Locale      string `yaml:"locale" env:"SITE_LOCALE"`           // date language, default "pt-BR"

	Addr string `yaml:"addr" env:"ADDR"` // listen address (default ":3000")

	ContentSource      string `yaml:"content_source" env:"CONTENT_SOURCE"` // prismic or sqlite
	PrismicEndpoint    string `yaml:"prismic_endpoint" env:"PRISMIC_ENDPOINT"`
	PrismicAccessToken string `yaml:"prismic_access_token" env:"PRISMIC_ACCESS_TOKEN"`
	LocalDatabasePath  string `yaml:"local_database_path" env:"LOCAL_DATABASE_PATH"`
	FixturesPath       string `yaml:"fixtures_path" env:"FIXTURES_PATH"`

	PageSize      int    `yaml:"page_size" env:"PAGE_SIZE"`
	MaxPageSize   int    `yaml:"max_page_size" env:"MAX_PAGE_SIZE"`
	PrebuildCount int    `yaml:"prebuild_count" env:"PREBUILD_COUNT" env-default:"2"` // posts rendered by BuildSite
	OutputDir     string `yaml:"output_dir" env:"OUTPUT_DIR"`

	Revalidate   time.Duration `yaml:"revalidate" env:"REVALIDATE"`       // age after which a page is rebuilt
	FallbackWait time.Duration `yaml:"fallback_wait" env:"FALLBACK_WAIT"` // on-demand wait before the loading page
	CMSTimeout   time.Duration `yaml:"cms_timeout" env:"CMS_TIMEOUT"`

	SessionSecret  string `yaml:"session_secret" env:"SESSION_SECRET"` // required to enable previews
	CookieSecure   bool   `yaml:"cookie_secure" env:"COOKIE_SECURE"`
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"METRICS_ENABLED" env-default:"true"`
}

// LoadConfig reads .env if present, then the YAML file at path (when not
// empty) and the environment. Defaults are applied and the result validated.
func LoadConfig(path string) (SiteConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return SiteConfig{}, fmt.Errorf("spacetravel: load .env: %w", err)
	}

	var cfg SiteConfig
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return SiteConfig{}, fmt.Errorf("spacetravel: read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("spacetravel: read env: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return SiteConfig{}, err
	}
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Space Traveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Locale == "" {
		c.Locale = "pt-BR"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.ContentSource == "" {
		c.ContentSource = SourcePrismic
	}
	if c.LocalDatabasePath == "" {
		c.LocalDatabasePath = "data/content.db"
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.PrebuildCount < 0 {
		c.PrebuildCount = 0
	}
	if c.OutputDir == "" {
		c.OutputDir = "dist"
	}
	if c.Revalidate == 0 {
		c.Revalidate = 30 * time.Minute
	}
	if c.FallbackWait == 0 {
		c.FallbackWait = 3 * time.Second
	}
	if c.CMSTimeout == 0 {
		c.CMSTimeout = 10 * time.Second
	}
}

func (c *SiteConfig) validate() error {
	switch c.ContentSource {
	case SourcePrismic, SourceSQLite:
	default:
		return fmt.Errorf("spacetravel: CONTENT_SOURCE must be %q or %q, got %q", SourcePrismic, SourceSQLite, c.ContentSource)
	}
	if c.PageSize > c.MaxPageSize {
		return fmt.Errorf("spacetravel: PAGE_SIZE (%d) must not exceed MAX_PAGE_SIZE (%d)", c.PageSize, c.MaxPageSize)
	}
	if c.Revalidate < 0 || c.FallbackWait < 0 || c.CMSTimeout < 0 {
		return fmt.Errorf("spacetravel: durations must not be negative")
	}
	return nil
}

// PreviewEnabled reports whether preview sessions can be issued.
func (c SiteConfig) PreviewEnabled() bool {
	return c.SessionSecret != ""
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
