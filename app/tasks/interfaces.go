package tasks

import (
	"context"

	"github.com/lysyi3m/deal-comb/app/marketplace"
)

// Fetcher abstracts the upstream marketplace client: a mapping from category
// name to the raw deal records currently listed there.
type Fetcher interface {
	FetchAll(ctx context.Context) (map[string][]marketplace.Offer, error)
	FetchCategory(ctx context.Context, category string) ([]marketplace.Offer, error)
}

// RefreshResult reports one completed refresh cycle. Saved counts completed
// upserts only; Skipped makes dropped records visible instead of silently
// losing them.
type RefreshResult struct {
	Category string
	Saved    int
	Skipped  int
}
