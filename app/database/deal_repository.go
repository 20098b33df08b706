package database

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/deal-comb/app/category"
)

var _ DealRepository = (*dealRepository)(nil)

type dealRepository struct {
	db       *DB
	registry *category.Registry

	mu    sync.Mutex
	ready map[string]bool // slugs whose partition table has been ensured
}

func NewDealRepository(db *DB, registry *category.Registry) DealRepository {
	return &dealRepository{
		db:       db,
		registry: registry,
		ready:    make(map[string]bool),
	}
}

// tableName derives the partition table identifier from a slug. Slugs only
// contain [a-z0-9-], so the result is safe to interpolate into SQL.
func tableName(slug string) string {
	return "deals_" + strings.ReplaceAll(slug, "-", "_")
}

func (r *dealRepository) EnsurePartition(name string) error {
	_, err := r.ensurePartition(name)
	return err
}

func (r *dealRepository) ensurePartition(name string) (string, error) {
	canonical := category.CanonicalName(name)
	if canonical == "" {
		return "", fmt.Errorf("empty category name")
	}

	r.registry.Ensure(canonical)
	slug := r.registry.SlugOf(canonical)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ready[slug] {
		return slug, nil
	}

	_, err := r.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			description TEXT,
			content TEXT,
			image_url TEXT,
			price TEXT,
			original_price TEXT,
			discount TEXT,
			category TEXT NOT NULL,
			created_at TEXT NOT NULL,
			published_at TEXT NOT NULL
		)
	`, tableName(slug)))
	if err != nil {
		return "", fmt.Errorf("failed to create partition for %s: %w", canonical, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO categories (name, slug, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO NOTHING
	`, canonical, slug, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("failed to register category %s: %w", canonical, err)
	}

	r.ready[slug] = true
	return slug, nil
}

func (r *dealRepository) Upsert(deal Deal) (bool, error) {
	if strings.TrimSpace(deal.Category) == "" {
		return false, nil
	}

	slug, err := r.ensurePartition(deal.Category)
	if err != nil {
		return false, err
	}

	_, err = r.db.Exec(fmt.Sprintf(`
		INSERT INTO %s (
			id, title, url, description, content, image_url,
			price, original_price, discount, category, created_at, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			description = excluded.description,
			content = excluded.content,
			image_url = excluded.image_url,
			price = excluded.price,
			original_price = excluded.original_price,
			discount = excluded.discount,
			category = excluded.category,
			published_at = excluded.published_at
	`, tableName(slug)),
		deal.ID, deal.Title, deal.URL, deal.Description, deal.Content,
		deal.ImageURL, deal.Price, deal.OriginalPrice, deal.Discount,
		category.CanonicalName(deal.Category),
		formatTime(deal.CreatedAt), formatTime(deal.PublishedAt))
	if err != nil {
		return false, fmt.Errorf("failed to upsert deal %s: %w", deal.ID, err)
	}

	return true, nil
}

func (r *dealRepository) Query(category string, limit int) ([]Deal, error) {
	if limit <= 0 {
		return nil, nil
	}

	if category != "" {
		canonical, known := r.registry.Canonicalize(category)
		if !known {
			return nil, nil
		}
		return r.queryPartition(r.registry.SlugOf(canonical), limit)
	}

	categories := r.registry.List()
	if len(categories) == 0 {
		return nil, nil
	}

	// Each partition is capped at the full limit before the merge: any
	// smaller per-partition cap could miss rows when one category holds
	// most of the newest deals.
	var all []Deal
	for _, name := range categories {
		deals, err := r.queryPartition(r.registry.SlugOf(name), limit)
		if err != nil {
			return nil, err
		}
		all = append(all, deals...)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].PublishedAt.Equal(all[j].PublishedAt) {
			return all[i].PublishedAt.After(all[j].PublishedAt)
		}
		return all[i].ID < all[j].ID
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *dealRepository) queryPartition(slug string, limit int) ([]Deal, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT id, title, url, COALESCE(description, ''), COALESCE(content, ''),
		       COALESCE(image_url, ''), COALESCE(price, ''),
		       COALESCE(original_price, ''), COALESCE(discount, ''),
		       category, created_at, published_at
		FROM %s
		ORDER BY published_at DESC, id ASC
		LIMIT ?
	`, tableName(slug)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition %s: %w", slug, err)
	}
	defer rows.Close()

	var deals []Deal
	for rows.Next() {
		var deal Deal
		var createdAt, publishedAt string
		err := rows.Scan(
			&deal.ID, &deal.Title, &deal.URL, &deal.Description, &deal.Content,
			&deal.ImageURL, &deal.Price, &deal.OriginalPrice, &deal.Discount,
			&deal.Category, &createdAt, &publishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deal row: %w", err)
		}
		if deal.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		if deal.PublishedAt, err = parseTime(publishedAt); err != nil {
			return nil, fmt.Errorf("failed to parse published_at: %w", err)
		}
		deals = append(deals, deal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal rows: %w", err)
	}

	return deals, nil
}

func (r *dealRepository) Count(category string) (int, error) {
	if category != "" {
		canonical, known := r.registry.Canonicalize(category)
		if !known {
			return 0, nil
		}
		return r.countPartition(r.registry.SlugOf(canonical))
	}

	total := 0
	for _, name := range r.registry.List() {
		count, err := r.countPartition(r.registry.SlugOf(name))
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

func (r *dealRepository) countPartition(slug string) (int, error) {
	var count int
	err := r.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName(slug))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count partition %s: %w", slug, err)
	}
	return count, nil
}

func (r *dealRepository) EvictExcess(maxTotalItems int) error {
	categories := r.registry.List()
	if maxTotalItems <= 0 || len(categories) == 0 {
		return nil
	}

	budget := maxTotalItems / len(categories)

	for _, name := range categories {
		slug := r.registry.SlugOf(name)
		count, err := r.countPartition(slug)
		if err != nil {
			return err
		}
		if count <= budget {
			continue
		}

		_, err = r.db.Exec(fmt.Sprintf(`
			DELETE FROM %s
			WHERE id IN (
				SELECT id FROM %s
				ORDER BY published_at ASC, id ASC
				LIMIT ?
			)
		`, tableName(slug), tableName(slug)), count-budget)
		if err != nil {
			return fmt.Errorf("failed to evict from partition %s: %w", slug, err)
		}
	}

	return nil
}
