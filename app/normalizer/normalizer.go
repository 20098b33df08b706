package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/database"
	"github.com/lysyi3m/deal-comb/app/marketplace"
)

// Normalizer maps one raw marketplace offer into a canonical Deal record.
// Missing or malformed fields degrade to documented defaults; only a record
// that fails final validation is rejected, so one bad record never aborts a
// batch.
type Normalizer struct {
	siteURL  string
	validate *validator.Validate
}

func New(siteURL string) *Normalizer {
	return &Normalizer{
		siteURL:  siteURL,
		validate: validator.New(),
	}
}

func (n *Normalizer) Normalize(categoryName string, offer marketplace.Offer, now time.Time) (database.Deal, error) {
	price, originalPrice, discount := renderPrices(offer.SalePrice, offer.ListPrice)

	// The record's own Site wins over the feed it arrived on
	categoryName = defaultString(offer.Site, categoryName)

	startDate := parseUpstreamTime(offer.StartDate)
	publishedAt := now
	if startDate != nil {
		publishedAt = *startDate
	}

	deal := database.Deal{
		ID:            stableID(offer, now),
		Title:         defaultString(offer.Title, "Untitled"),
		URL:           defaultString(offer.Url, n.siteURL),
		Description:   offer.Subtitle,
		ImageURL:      offer.Photo,
		Price:         price,
		OriginalPrice: originalPrice,
		Discount:      discount,
		Category:      category.CanonicalName(categoryName),
		CreatedAt:     now,
		PublishedAt:   publishedAt,
	}
	deal.Content = renderContent(deal, offer.EndDate, offer.Categories)

	if err := n.validate.Struct(deal); err != nil {
		return database.Deal{}, fmt.Errorf("normalized deal failed validation: %w", err)
	}

	return deal, nil
}

// stableID prefers the upstream identifier, falling back to a hash of
// URL and title. A record with neither gets a timestamp-derived ID;
// uniqueness is not guaranteed for those and duplicates are an accepted risk.
func stableID(offer marketplace.Offer, now time.Time) string {
	if offer.OfferId != "" {
		return offer.OfferId
	}
	if offer.Url != "" || offer.Title != "" {
		sum := sha256.Sum256([]byte(offer.Url + "|" + offer.Title))
		return "deal-" + hex.EncodeToString(sum[:16])
	}
	return "deal-" + strconv.FormatInt(now.UnixNano(), 10)
}

// renderPrices collapses the upstream price union into display strings.
// An equal min/max range renders as a single value ("$10"), a real range as
// "$8 - $12". The discount is round((1 - sale/list) * 100) when both prices
// are present and the list price is positive.
func renderPrices(sale, list marketplace.Price) (price, originalPrice, discount string) {
	price = renderPrice(sale)
	originalPrice = renderPrice(list)

	if sale.Set && list.Set && list.Minimum > 0 {
		pct := int(math.Round((1 - sale.Minimum/list.Minimum) * 100))
		discount = fmt.Sprintf("%d%%", pct)
	}

	return price, originalPrice, discount
}

func renderPrice(p marketplace.Price) string {
	if !p.Set {
		return ""
	}
	if p.IsRange() {
		return fmt.Sprintf("$%s - $%s", formatAmount(p.Minimum), formatAmount(p.Maximum))
	}
	return "$" + formatAmount(p.Minimum)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// renderContent assembles a presentation-ready HTML fragment from the deal
// fields, matching the structure feed readers already consume.
func renderContent(deal database.Deal, endDate string, categories []string) string {
	var b strings.Builder

	b.WriteString("<div>")
	b.WriteString("<h2>" + html.EscapeString(deal.Title) + "</h2>")
	if deal.Description != "" {
		b.WriteString("<p>" + html.EscapeString(deal.Description) + "</p>")
	}
	if deal.ImageURL != "" {
		b.WriteString(fmt.Sprintf(`<img src="%s" alt="%s" />`,
			html.EscapeString(deal.ImageURL), html.EscapeString(deal.Title)))
	}
	if deal.Price != "" {
		b.WriteString("<p>Price: " + html.EscapeString(deal.Price) + "</p>")
	}
	if deal.OriginalPrice != "" {
		b.WriteString("<p>Original Price: " + html.EscapeString(deal.OriginalPrice) + "</p>")
	}
	if deal.Discount != "" {
		b.WriteString("<p>Discount: " + html.EscapeString(deal.Discount) + "</p>")
	}
	if end := parseUpstreamTime(endDate); end != nil {
		b.WriteString("<p>Ends: " + end.UTC().Format(time.RFC1123Z) + "</p>")
	}
	if len(categories) > 0 {
		b.WriteString("<p>Categories: " + html.EscapeString(strings.Join(categories, ", ")) + "</p>")
	}
	b.WriteString(fmt.Sprintf(`<a href="%s">View deal</a>`, html.EscapeString(deal.URL)))
	b.WriteString("</div>")

	return b.String()
}

var upstreamTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseUpstreamTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range upstreamTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
