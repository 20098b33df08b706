package database

import (
	"time"
)

// Deal is the canonical unit of content, one row per ID per category
// partition. Price fields are display strings derived once at normalization.
type Deal struct {
	ID            string `validate:"required"`
	Title         string `validate:"required"`
	URL           string `validate:"required"`
	Description   string
	Content       string // pre-rendered HTML fragment
	ImageURL      string
	Price         string
	OriginalPrice string
	Discount      string
	Category      string `validate:"required"`
	CreatedAt     time.Time
	PublishedAt   time.Time
}

// Category is a row of the registry table.
type Category struct {
	Name            string
	Slug            string
	LastRefreshedAt *time.Time
	CreatedAt       time.Time
}

// timeLayout is a fixed-width UTC format so that lexicographic ordering of
// stored timestamps matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
