package api

import (
	"context"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/database"
	"github.com/lysyi3m/deal-comb/app/feed"
	"github.com/lysyi3m/deal-comb/app/tasks"
)

type RefresherInterface interface {
	RefreshAll(ctx context.Context) (tasks.RefreshResult, error)
	RefreshCategory(ctx context.Context, name string) (tasks.RefreshResult, error)
}

var _ RefresherInterface = (*tasks.Refresher)(nil)

type Handler struct {
	cache      *feed.Cache
	registry   *category.Registry
	deals      database.DealRepository
	categories database.CategoryRepository
	refresher  RefresherInterface
}
