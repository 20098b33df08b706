package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/deals.db" description:"Path to the sqlite database file"`
	MaxItems int    `long:"max-items" env:"MAX_ITEMS" default:"500" description:"Maximum number of stored deals across all categories"`

	// Upstream marketplace configuration
	MarketplaceURL string `long:"marketplace-url" env:"MARKETPLACE_API_URL" default:"https://api.woot.com" description:"Base URL of the marketplace API"`
	MarketplaceKey string `long:"marketplace-key" env:"MARKETPLACE_API_KEY" description:"API key for the marketplace API"`
	CategoriesFile string `long:"categories-file" env:"CATEGORIES_FILE" default:"./categories.yml" description:"YAML file listing upstream categories to poll"`

	// Application configuration
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl         string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://deals.example.com)"`
	AccessKey       string `long:"access-key" env:"API_ACCESS_KEY" description:"Access key for management endpoints (optional)"`
	RefreshInterval int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"1800" description:"Background refresh interval in seconds"`
	FeedPageSize    int    `long:"feed-page-size" env:"FEED_PAGE_SIZE" default:"50" description:"Number of deals per generated feed"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Deal Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	// Optional .env file for local development
	_ = godotenv.Load()

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		MaxItems:        raw.MaxItems,
		MarketplaceURL:  raw.MarketplaceURL,
		MarketplaceKey:  raw.MarketplaceKey,
		CategoriesFile:  raw.CategoriesFile,
		Port:            raw.Port,
		BaseUrl:         raw.BaseUrl,
		AccessKey:       raw.AccessKey,
		RefreshInterval: raw.RefreshInterval,
		FeedPageSize:    raw.FeedPageSize,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
