package tasks

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/cfg"
	"github.com/lysyi3m/deal-comb/app/database"
	"github.com/lysyi3m/deal-comb/app/feed"
	"github.com/lysyi3m/deal-comb/app/marketplace"
	"github.com/lysyi3m/deal-comb/app/normalizer"
)

type fakeFetcher struct {
	byCategory map[string][]marketplace.Offer
	err        error
}

func (f *fakeFetcher) FetchAll(ctx context.Context) (map[string][]marketplace.Offer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCategory, nil
}

func (f *fakeFetcher) FetchCategory(ctx context.Context, name string) ([]marketplace.Offer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byCategory[name], nil
}

func setupRefresher(t *testing.T, fetcher Fetcher) (*Refresher, *category.Registry, database.DealRepository, database.CategoryRepository, *feed.Cache) {
	t.Helper()

	// Clear os.Args so config parsing ignores test flags
	oldArgs := os.Args
	os.Args = []string{"test"}
	cfg.Load()
	os.Args = oldArgs

	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	registry := category.NewRegistry()
	deals := database.NewDealRepository(db, registry)
	categories := database.NewCategoryRepository(db)
	generator := feed.NewGenerator("Woot Deals", "Latest deals from Woot", "https://www.woot.com/")
	cache := feed.NewCache(deals, registry, generator, 50)
	n := normalizer.New("https://www.woot.com")

	return NewRefresher(fetcher, n, deals, categories, registry, cache, 500), registry, deals, categories, cache
}

func rangeOffer(id, title string, min, max float64) marketplace.Offer {
	return marketplace.Offer{
		OfferId:   id,
		Title:     title,
		Url:       "https://example.com/deals/" + id,
		SalePrice: marketplace.Price{Minimum: min, Maximum: max, Set: true},
	}
}

func TestRefreshAll(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"Tools": {
			rangeOffer("a", "Drill", 10, 10),
			rangeOffer("b", "Bit Set", 8, 12),
		},
		"electronics": {
			rangeOffer("c", "Headphones", 25, 25),
		},
	}}
	refresher, registry, deals, categories, _ := setupRefresher(t, fetcher)

	result, err := refresher.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Saved)
	require.Zero(t, result.Skipped)

	require.Equal(t, []string{"Electronics", "Tools"}, registry.List())

	count, err := deals.Count("Tools")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	rows, err := deals.Query("Tools", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	prices := map[string]string{rows[0].ID: rows[0].Price, rows[1].ID: rows[1].Price}
	require.Equal(t, "$10", prices["a"])
	require.Equal(t, "$8 - $12", prices["b"])

	stamp, err := categories.GetLastRefreshed("Tools")
	require.NoError(t, err)
	require.NotNil(t, stamp)
}

func TestRefreshAllSkipsUncategorizedRecords(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"":      {rangeOffer("x", "Orphan", 5, 5)},
		"Tools": {rangeOffer("a", "Drill", 10, 10)},
	}}
	refresher, registry, _, _, _ := setupRefresher(t, fetcher)

	result, err := refresher.RefreshAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Saved)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, []string{"Tools"}, registry.List())
}

func TestRefreshAllFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	refresher, _, _, _, _ := setupRefresher(t, fetcher)

	_, err := refresher.RefreshAll(context.Background())
	require.Error(t, err)
}

func TestRefreshCategoryCaseNormalized(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"electronics": {rangeOffer("c", "Headphones", 25, 25)},
	}}
	refresher, registry, deals, _, _ := setupRefresher(t, fetcher)

	result, err := refresher.RefreshCategory(context.Background(), "electronics")
	require.NoError(t, err)
	require.Equal(t, "Electronics", result.Category)
	require.Equal(t, 1, result.Saved)

	require.Contains(t, registry.List(), "Electronics")

	rows, err := deals.Query("Electronics", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "c", rows[0].ID)
}

func TestRefreshCategoryNeverSeen(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{}}
	refresher, registry, _, _, _ := setupRefresher(t, fetcher)

	result, err := refresher.RefreshCategory(context.Background(), "Unknown")
	require.ErrorIs(t, err, ErrCategoryNotFound)
	require.Zero(t, result.Saved)
	require.Empty(t, registry.List())
}

func TestRefreshCategoryKnownButEmptyUpstream(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"Tools": {rangeOffer("a", "Drill", 10, 10)},
	}}
	refresher, _, _, categories, _ := setupRefresher(t, fetcher)

	_, err := refresher.RefreshCategory(context.Background(), "Tools")
	require.NoError(t, err)

	// Upstream now lists nothing, but the category is known: the refresh
	// succeeds and the attempt is stamped
	fetcher.byCategory["Tools"] = nil

	result, err := refresher.RefreshCategory(context.Background(), "Tools")
	require.NoError(t, err)
	require.Zero(t, result.Saved)

	stamp, err := categories.GetLastRefreshed("Tools")
	require.NoError(t, err)
	require.NotNil(t, stamp)
}

func TestRefreshInvalidatesFeedCache(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"Tools": {rangeOffer("a", "Drill", 10, 10)},
	}}
	refresher, _, _, _, cache := setupRefresher(t, fetcher)

	_, err := refresher.RefreshAll(context.Background())
	require.NoError(t, err)

	doc, err := cache.Get("Tools", feed.FormatRSS)
	require.NoError(t, err)
	require.Contains(t, doc, "<title>Drill</title>")

	fetcher.byCategory["Tools"] = append(fetcher.byCategory["Tools"],
		rangeOffer("b", "Sander", 20, 20))

	_, err = refresher.RefreshAll(context.Background())
	require.NoError(t, err)

	doc, err = cache.Get("Tools", feed.FormatRSS)
	require.NoError(t, err)
	require.True(t, strings.Contains(doc, "<title>Sander</title>"),
		"feed should reflect records from the latest refresh")
}

type failingDealRepo struct {
	database.DealRepository
	failID string
}

func (f *failingDealRepo) Upsert(deal database.Deal) (bool, error) {
	if deal.ID == f.failID {
		return false, errors.New("disk I/O error")
	}
	return f.DealRepository.Upsert(deal)
}

func TestRefreshFailureInvalidatesWrittenPartitions(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"Tools": {rangeOffer("a", "Drill", 10, 10)},
	}}

	oldArgs := os.Args
	os.Args = []string{"test"}
	cfg.Load()
	os.Args = oldArgs

	db, err := database.NewConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, _, err = database.RunMigrations(db)
	require.NoError(t, err)

	registry := category.NewRegistry()
	deals := &failingDealRepo{
		DealRepository: database.NewDealRepository(db, registry),
		failID:         "b",
	}
	categories := database.NewCategoryRepository(db)
	generator := feed.NewGenerator("Woot Deals", "Latest deals from Woot", "https://www.woot.com/")
	cache := feed.NewCache(deals, registry, generator, 50)
	refresher := NewRefresher(fetcher, normalizer.New("https://www.woot.com"),
		deals, categories, registry, cache, 500)

	_, err = refresher.RefreshAll(context.Background())
	require.NoError(t, err)

	doc, err := cache.Get("Tools", feed.FormatRSS)
	require.NoError(t, err)
	require.Contains(t, doc, "<title>Drill</title>")

	// The next cycle updates "a" and then aborts on "b"; the completed
	// upsert must not be served stale from the cache
	fetcher.byCategory["Tools"] = []marketplace.Offer{
		rangeOffer("a", "Drill v2", 10, 10),
		rangeOffer("b", "Sander", 20, 20),
	}

	result, err := refresher.RefreshAll(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, result.Saved)

	doc, err = cache.Get("Tools", feed.FormatRSS)
	require.NoError(t, err)
	require.Contains(t, doc, "<title>Drill v2</title>",
		"feed must reflect writes completed before the batch aborted")
	require.NotContains(t, doc, "<title>Sander</title>")
}

func TestRefreshUpsertIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{byCategory: map[string][]marketplace.Offer{
		"Tools": {rangeOffer("a", "Drill", 10, 10)},
	}}
	refresher, _, deals, _, _ := setupRefresher(t, fetcher)

	_, err := refresher.RefreshAll(context.Background())
	require.NoError(t, err)

	fetcher.byCategory["Tools"][0].Title = "Drill v2"

	_, err = refresher.RefreshAll(context.Background())
	require.NoError(t, err)

	count, err := deals.Count("Tools")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	rows, err := deals.Query("Tools", 10)
	require.NoError(t, err)
	require.Equal(t, "Drill v2", rows[0].Title)
}
