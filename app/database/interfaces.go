package database

import (
	"time"
)

// DealRepository is the partitioned store: one durable table of Deal rows per
// category, with partitions created on demand as categories are discovered.
type DealRepository interface {
	// EnsurePartition creates the partition table and registry row for a
	// category if they do not exist yet.
	EnsurePartition(name string) error

	// Upsert inserts or replaces a deal keyed by ID in its category
	// partition. Returns false (and no error) when the deal has no
	// determinable category; I/O failures propagate.
	Upsert(deal Deal) (bool, error)

	// Query returns deals ordered by published date descending, ties broken
	// by ID. An empty category draws from every known partition, merged and
	// capped at limit. Unknown categories yield an empty result.
	Query(category string, limit int) ([]Deal, error)

	// Count returns the number of rows in one partition, or across all
	// partitions when category is empty.
	Count(category string) (int, error)

	// EvictExcess deletes, per category, the oldest rows exceeding an even
	// per-category budget of floor(maxTotalItems / number of categories).
	EvictExcess(maxTotalItems int) error
}

// CategoryRepository persists the category registry so that partitions are
// found, not recreated, after a restart.
type CategoryRepository interface {
	List() ([]Category, error)
	SetLastRefreshed(name string, t time.Time) error
	GetLastRefreshed(name string) (*time.Time, error)
}
