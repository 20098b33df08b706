package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/database"
	"github.com/lysyi3m/deal-comb/app/feed"
	"github.com/lysyi3m/deal-comb/app/marketplace"
	"github.com/lysyi3m/deal-comb/app/normalizer"
)

// ErrCategoryNotFound is returned when a refresh targets a category that was
// never seen and is absent from the latest fetch.
var ErrCategoryNotFound = errors.New("category not found")

// aggregateRefreshKey coalesces concurrent full refreshes.
const aggregateRefreshKey = "all"

// Refresher runs the ingestion pipeline: fetch raw records, normalize,
// upsert per category partition, evict overflow, then invalidate the feed
// cache and stamp the refresh time. That order means a reader observing
// "refreshed at T" sees every write completed by T. A cycle that aborts
// mid-batch still invalidates the cache for every partition it wrote to,
// so completed upserts are never served stale.
//
// Overlapping triggers for the same key (periodic scheduler plus a manual
// refresh) coalesce through a single-flight group instead of interleaving
// writes to the same partition.
type Refresher struct {
	fetcher    Fetcher
	normalizer *normalizer.Normalizer
	deals      database.DealRepository
	categories database.CategoryRepository
	registry   *category.Registry
	cache      *feed.Cache
	maxItems   int

	group singleflight.Group
}

func NewRefresher(fetcher Fetcher, n *normalizer.Normalizer,
	deals database.DealRepository, categories database.CategoryRepository,
	registry *category.Registry, cache *feed.Cache, maxItems int) *Refresher {
	return &Refresher{
		fetcher:    fetcher,
		normalizer: n,
		deals:      deals,
		categories: categories,
		registry:   registry,
		cache:      cache,
		maxItems:   maxItems,
	}
}

func (r *Refresher) RefreshAll(ctx context.Context) (RefreshResult, error) {
	v, err, shared := r.group.Do(aggregateRefreshKey, func() (interface{}, error) {
		return r.refreshAll(ctx)
	})
	if shared {
		slog.Debug("Full refresh coalesced with an in-flight cycle")
	}
	result, _ := v.(RefreshResult)
	return result, err
}

func (r *Refresher) RefreshCategory(ctx context.Context, name string) (RefreshResult, error) {
	canonical := category.CanonicalName(name)
	if canonical == "" {
		return RefreshResult{}, ErrCategoryNotFound
	}

	v, err, _ := r.group.Do(canonical, func() (interface{}, error) {
		return r.refreshCategory(ctx, name, canonical)
	})
	result, _ := v.(RefreshResult)
	return result, err
}

func (r *Refresher) refreshAll(ctx context.Context) (RefreshResult, error) {
	started := time.Now()

	offersByCategory, err := r.fetcher.FetchAll(ctx)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to fetch deal listings: %w", err)
	}

	// Stable processing order across refreshes
	names := make([]string, 0, len(offersByCategory))
	for name := range offersByCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	result := RefreshResult{}
	refreshed := make([]string, 0, len(names))
	touched := make(map[string]bool)

	for _, name := range names {
		canonical := category.CanonicalName(name)
		saved, skipped, written, err := r.ingest(canonical, offersByCategory[name])
		result.Saved += saved
		result.Skipped += skipped
		for _, cat := range written {
			touched[cat] = true
		}
		if err != nil {
			r.invalidate(touched)
			return result, fmt.Errorf("refresh of %s failed: %w", canonical, err)
		}
		refreshed = append(refreshed, canonical)
	}

	if err := r.finishCycle(refreshed, touched); err != nil {
		return result, err
	}

	slog.Info("Full refresh completed", "saved", result.Saved, "skipped", result.Skipped,
		"categories", len(refreshed), "elapsed", time.Since(started).Round(time.Millisecond).String())

	return result, nil
}

func (r *Refresher) refreshCategory(ctx context.Context, name, canonical string) (RefreshResult, error) {
	offers, err := r.fetcher.FetchCategory(ctx, name)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to fetch listings for %s: %w", canonical, err)
	}

	_, known := r.registry.Canonicalize(canonical)
	if len(offers) == 0 && !known {
		// Never seen and nothing upstream: report not-found without
		// creating an empty partition
		return RefreshResult{Category: canonical}, ErrCategoryNotFound
	}

	result := RefreshResult{Category: canonical}
	saved, skipped, written, err := r.ingest(canonical, offers)
	result.Saved = saved
	result.Skipped = skipped
	touched := make(map[string]bool)
	for _, cat := range written {
		touched[cat] = true
	}
	if err != nil {
		r.invalidate(touched)
		return result, fmt.Errorf("refresh of %s failed: %w", canonical, err)
	}

	if err := r.finishCycle([]string{canonical}, touched); err != nil {
		return result, err
	}

	slog.Info("Category refresh completed", "category", canonical,
		"saved", result.Saved, "skipped", result.Skipped)

	return result, nil
}

// ingest normalizes and upserts one category's raw records. Per-record
// failures are skipped and counted; partition I/O errors abort with the
// counts accumulated so far. touched lists the distinct categories that
// received a completed upsert, which can differ from canonical when a
// record's Site field redirects it to another partition.
func (r *Refresher) ingest(canonical string, offers []marketplace.Offer) (saved, skipped int, touched []string, err error) {
	now := time.Now().UTC()
	seen := make(map[string]bool)

	for _, offer := range offers {
		deal, err := r.normalizer.Normalize(canonical, offer, now)
		if err != nil {
			slog.Warn("Skipping malformed deal record", "category", canonical,
				"offer_id", offer.OfferId, "error", err)
			skipped++
			continue
		}

		ok, err := r.deals.Upsert(deal)
		if err != nil {
			return saved, skipped, touched, err
		}
		if !ok {
			slog.Warn("Skipping deal without determinable category", "deal_id", deal.ID)
			skipped++
			continue
		}
		saved++
		if !seen[deal.Category] {
			seen[deal.Category] = true
			touched = append(touched, deal.Category)
		}
	}

	return saved, skipped, touched, nil
}

// finishCycle runs after all upserts of a refresh: evict overflow, then
// invalidate caches, then record the refresh timestamps. Written partitions
// are invalidated even when eviction fails.
func (r *Refresher) finishCycle(refreshed []string, touched map[string]bool) error {
	if err := r.deals.EvictExcess(r.maxItems); err != nil {
		r.invalidate(touched)
		return fmt.Errorf("eviction failed: %w", err)
	}

	r.invalidate(touched)

	now := time.Now().UTC()
	for _, canonical := range refreshed {
		r.cache.Invalidate(canonical)
		if err := r.categories.SetLastRefreshed(canonical, now); err != nil {
			return err
		}
	}

	return nil
}

func (r *Refresher) invalidate(touched map[string]bool) {
	for canonical := range touched {
		r.cache.Invalidate(canonical)
	}
}
