package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/database"
	"github.com/lysyi3m/deal-comb/app/feed"
	"github.com/lysyi3m/deal-comb/app/tasks"
)

// NewHandler wires the read side (cache, repositories) and the write side
// (refresher) behind the HTTP surface.
func NewHandler(cache *feed.Cache, registry *category.Registry,
	deals database.DealRepository, categories database.CategoryRepository,
	refresher RefresherInterface) *Handler {
	return &Handler{
		cache:      cache,
		registry:   registry,
		deals:      deals,
		categories: categories,
		refresher:  refresher,
	}
}

// splitFormat strips a trailing format extension ("tools.atom" -> "tools",
// "atom") so one route serves every flavor of a category feed.
func splitFormat(slug string) (string, string) {
	for _, ext := range []string{".rss", ".atom", ".json"} {
		if strings.HasSuffix(slug, ext) {
			return strings.TrimSuffix(slug, ext), ext[1:]
		}
	}
	return slug, ""
}

func (h *Handler) GetCategoryFeed(c *gin.Context) {
	slug, ext := splitFormat(c.Param("slug"))
	if slug == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	if ext == "" {
		ext = c.Query("format")
	}
	format, err := feed.ParseFormat(ext)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, ok := h.registry.Resolve(slug)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found", "slug": slug})
		return
	}

	h.serveFeed(c, name, format)
}

func (h *Handler) GetAggregateFeed(c *gin.Context) {
	// Routed as /feeds, /feeds.rss, /feeds.atom or /feeds.json
	ext := strings.TrimPrefix(strings.TrimPrefix(c.Request.URL.Path, "/feeds"), ".")
	if ext == "" {
		ext = c.Query("format")
	}
	format, err := feed.ParseFormat(ext)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.serveFeed(c, "", format)
}

func (h *Handler) serveFeed(c *gin.Context, name string, format feed.Format) {
	doc, err := h.cache.Get(name, format)
	if err != nil {
		slog.Error("Feed generation error", "category", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", format.ContentType())
	if generatedAt, ok := h.cache.GeneratedAt(name); ok {
		c.Header("X-Last-Updated", generatedAt.Format(time.RFC3339))
	}

	c.String(http.StatusOK, doc)
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.categories.List()
	if err != nil {
		slog.Error("Database error", "operation", "list_categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	categories := make([]map[string]interface{}, 0, len(cats))
	for _, cat := range cats {
		info := map[string]interface{}{
			"name":     cat.Name,
			"slug":     cat.Slug,
			"feed_url": "/feeds/" + cat.Slug + ".rss",
		}
		if count, err := h.deals.Count(cat.Name); err == nil {
			info["items"] = count
		}
		if cat.LastRefreshedAt != nil {
			info["last_refreshed_at"] = cat.LastRefreshedAt.Format(time.RFC3339)
		}
		categories = append(categories, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"categories": categories,
		"total":      len(categories),
	})
}

func (h *Handler) RefreshAll(c *gin.Context) {
	result, err := h.refresher.RefreshAll(c.Request.Context())
	if err != nil {
		slog.Error("Manual refresh failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Refresh failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"saved":   result.Saved,
		"skipped": result.Skipped,
	})
}

func (h *Handler) RefreshCategory(c *gin.Context) {
	param := c.Param("slug")

	// A known slug maps back to its display name; anything else is treated
	// as a category name so unseen categories can be pulled on demand
	name, ok := h.registry.Resolve(param)
	if !ok {
		name = param
	}

	result, err := h.refresher.RefreshCategory(c.Request.Context(), name)
	if errors.Is(err, tasks.ErrCategoryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found", "category": param})
		return
	}
	if err != nil {
		slog.Error("Manual category refresh failed", "category", name, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Refresh failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"category": result.Category,
		"saved":    result.Saved,
		"skipped":  result.Skipped,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	health["categories"] = h.registry.Count()
	if total, err := h.deals.Count(""); err == nil {
		health["deals"] = total
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	cats, err := h.categories.List()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats := make([]map[string]interface{}, 0, len(cats))
	total := 0
	for _, cat := range cats {
		info := map[string]interface{}{
			"name": cat.Name,
			"slug": cat.Slug,
		}
		if count, err := h.deals.Count(cat.Name); err == nil {
			info["items"] = count
			total += count
		}
		if cat.LastRefreshedAt != nil {
			info["last_refreshed_at"] = cat.LastRefreshedAt.Format(time.RFC3339)
		}
		if generatedAt, ok := h.cache.GeneratedAt(cat.Name); ok {
			info["feed_generated_at"] = generatedAt.Format(time.RFC3339)
		}
		stats = append(stats, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"categories":  stats,
		"total_deals": total,
	})
}
