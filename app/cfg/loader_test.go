package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	// Test default version
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// This is fine, version could be set at build time
		t.Logf("Version: %s", version)
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:          "./data/test.db",
		MaxItems:        500,
		MarketplaceURL:  "https://api.example.com",
		MarketplaceKey:  "upstream-key",
		CategoriesFile:  "./categories.yml",
		Port:            "8080",
		BaseUrl:         "https://deals.example.com",
		AccessKey:       "test-key",
		RefreshInterval: 1800,
		FeedPageSize:    50,
		UserAgent:       "Test Agent",
		Timezone:        "UTC",
		Debug:           true,
		Version:         "test-version",
	}

	if cfg.DBPath != "./data/test.db" {
		t.Errorf("Expected DB path './data/test.db', got '%s'", cfg.DBPath)
	}
	if cfg.MaxItems != 500 {
		t.Errorf("Expected max items 500, got %d", cfg.MaxItems)
	}
	if cfg.MarketplaceURL != "https://api.example.com" {
		t.Errorf("Expected marketplace URL 'https://api.example.com', got '%s'", cfg.MarketplaceURL)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.BaseUrl != "https://deals.example.com" {
		t.Errorf("Expected base URL 'https://deals.example.com', got '%s'", cfg.BaseUrl)
	}
	if cfg.AccessKey != "test-key" {
		t.Errorf("Expected access key 'test-key', got '%s'", cfg.AccessKey)
	}
	if cfg.RefreshInterval != 1800 {
		t.Errorf("Expected refresh interval 1800, got %d", cfg.RefreshInterval)
	}
	if cfg.FeedPageSize != 50 {
		t.Errorf("Expected feed page size 50, got %d", cfg.FeedPageSize)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Expected timezone 'UTC', got '%s'", cfg.Timezone)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if cfg.Version != "test-version" {
		t.Errorf("Expected version 'test-version', got '%s'", cfg.Version)
	}
}
