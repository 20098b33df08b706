package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/database"
)

func setupCache(t *testing.T) (*Cache, database.DealRepository) {
	t.Helper()
	setupTestConfig()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	registry := category.NewRegistry()
	deals := database.NewDealRepository(db, registry)
	cache := NewCache(deals, registry, testGenerator(), 50)
	return cache, deals
}

func storeDeal(t *testing.T, deals database.DealRepository, id, cat, title string) {
	t.Helper()
	ok, err := deals.Upsert(database.Deal{
		ID:          id,
		Title:       title,
		URL:         "https://example.com/deals/" + id,
		Category:    cat,
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		PublishedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !ok {
		t.Fatal("Upsert reported not saved")
	}
}

func TestCacheRepeatedGetByteIdentical(t *testing.T) {
	cache, deals := setupCache(t)
	storeDeal(t, deals, "a", "Tools", "Drill")

	first, err := cache.Get("Tools", FormatRSS)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	second, err := cache.Get("Tools", FormatRSS)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if first != second {
		t.Error("Repeated Get with no intervening write must return byte-identical output")
	}
}

func TestCacheRendersAllFormatsTogether(t *testing.T) {
	cache, deals := setupCache(t)
	storeDeal(t, deals, "a", "Tools", "Drill")

	if _, err := cache.Get("Tools", FormatRSS); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Requesting another format must hit the same entry, not rebuild
	generatedAt, ok := cache.GeneratedAt("Tools")
	if !ok {
		t.Fatal("Expected a cached entry after Get")
	}

	if _, err := cache.Get("Tools", FormatAtom); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	laterGeneratedAt, _ := cache.GeneratedAt("Tools")
	if !generatedAt.Equal(laterGeneratedAt) {
		t.Error("A different format request should not regenerate the entry")
	}
}

func TestCacheInvalidationReflectsNewWrites(t *testing.T) {
	cache, deals := setupCache(t)
	storeDeal(t, deals, "a", "Tools", "Drill")

	doc, err := cache.Get("Tools", FormatRSS)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if strings.Contains(doc, "Sander") {
		t.Fatal("Premature content in feed")
	}

	storeDeal(t, deals, "b", "Tools", "Sander")
	cache.Invalidate("Tools")

	doc, err = cache.Get("Tools", FormatRSS)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(doc, "<title>Sander</title>") {
		t.Error("Feed should reflect the new record after invalidation")
	}
}

func TestCacheInvalidationDropsAggregate(t *testing.T) {
	cache, deals := setupCache(t)
	storeDeal(t, deals, "a", "Tools", "Drill")

	if _, err := cache.Get("", FormatRSS); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, ok := cache.GeneratedAt(""); !ok {
		t.Fatal("Expected cached aggregate entry")
	}

	cache.Invalidate("Tools")

	if _, ok := cache.GeneratedAt(""); ok {
		t.Error("Invalidating a category must also drop the aggregate entry")
	}
}

func TestCacheCaseNormalizedKeys(t *testing.T) {
	cache, deals := setupCache(t)
	storeDeal(t, deals, "a", "Electronics", "Headphones")

	if _, err := cache.Get("electronics", FormatRSS); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// Same entry regardless of request casing
	if _, ok := cache.GeneratedAt("ELECTRONICS"); !ok {
		t.Error("Cache keys should be case-normalized")
	}
}

func TestCacheUnknownCategoryRendersEmptyFeed(t *testing.T) {
	cache, _ := setupCache(t)

	doc, err := cache.Get("Nonexistent", FormatRSS)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(doc, "<channel>") {
		t.Error("Unknown category should still render a wellformed empty feed")
	}
	if strings.Contains(doc, "<item>") {
		t.Error("Unknown category feed should carry no items")
	}
}
