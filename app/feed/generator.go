package feed

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/lysyi3m/deal-comb/app/cfg"
	"github.com/lysyi3m/deal-comb/app/database"
)

// Generator renders feed documents from a deal record set. Output is
// deterministic for an unchanged record set: item order comes from the store
// query, and no timestamps or identifiers are introduced at render time.
type Generator struct {
	title       string
	description string
	siteLink    string
}

func NewGenerator(title, description, siteLink string) *Generator {
	return &Generator{
		title:       title,
		description: description,
		siteLink:    siteLink,
	}
}

// Run renders all three document flavors for a category. An empty category
// produces the aggregate "all categories" variant.
func (g *Generator) Run(categoryName, slug string, deals []database.Deal) (Documents, error) {
	jsonDoc, err := g.renderJSON(categoryName, slug, deals)
	if err != nil {
		return Documents{}, err
	}

	return Documents{
		RSS:  g.renderRSS(categoryName, slug, deals),
		Atom: g.renderAtom(categoryName, slug, deals),
		JSON: jsonDoc,
	}, nil
}

func (g *Generator) feedTitle(categoryName string) string {
	if categoryName == "" {
		return g.title + " - All Categories"
	}
	return g.title + " - " + categoryName
}

func (g *Generator) feedDescription(categoryName string) string {
	if categoryName == "" {
		return g.description
	}
	return fmt.Sprintf("%s in %s", g.description, categoryName)
}

func (g *Generator) selfLink(slug string, format Format) string {
	base := cfg.Get().BaseUrl
	if base == "" {
		base = "http://localhost:" + cfg.Get().Port
	}
	if slug == "" {
		return fmt.Sprintf("%s/feeds.%s", base, format)
	}
	return fmt.Sprintf("%s/feeds/%s.%s", base, slug, format)
}

// newestTimestamp anchors feed-level dates to the record set instead of the
// wall clock, keeping repeated renders byte-identical.
func newestTimestamp(deals []database.Deal) time.Time {
	if len(deals) == 0 {
		return time.Unix(0, 0).UTC()
	}
	return deals[0].PublishedAt
}

func (g *Generator) renderRSS(categoryName, slug string, deals []database.Deal) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	writeElement(&buf, "title", g.feedTitle(categoryName), 4)
	writeElement(&buf, "link", g.siteLink, 4)
	writeElement(&buf, "description", g.feedDescription(categoryName), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(g.selfLink(slug, FormatRSS))))

	writeElement(&buf, "lastBuildDate", newestTimestamp(deals).Format(time.RFC1123Z), 4)
	writeElement(&buf, "generator", fmt.Sprintf("Deal-Comb/%s", cfg.Get().Version), 4)
	writeElement(&buf, "language", "en", 4)

	for _, deal := range deals {
		g.writeRSSItem(&buf, deal)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeRSSItem(buf *bytes.Buffer, deal database.Deal) {
	buf.WriteString("    <item>\n")

	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", isURL(deal.ID)))
	xml.EscapeText(buf, []byte(deal.ID))
	buf.WriteString("</guid>\n")

	writeElement(buf, "title", deal.Title, 6)
	writeElement(buf, "link", deal.URL, 6)

	description := deal.Description
	if description == "" {
		description = "No description available"
	}
	writeElement(buf, "description", description, 6)

	if deal.Content != "" && deal.Content != deal.Description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(deal.Content)
		buf.WriteString("]]></content:encoded>\n")
	}

	writeElement(buf, "pubDate", deal.PublishedAt.UTC().Format(time.RFC1123Z), 6)
	writeElement(buf, "category", deal.Category, 6)

	if deal.ImageURL != "" {
		buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"0\" type=\"%s\" />\n",
			html.EscapeString(deal.ImageURL), imageMIMEType(deal.ImageURL)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) renderAtom(categoryName, slug string, deals []database.Deal) string {
	var buf bytes.Buffer

	selfLink := g.selfLink(slug, FormatAtom)

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n")

	writeElement(&buf, "title", g.feedTitle(categoryName), 2)
	writeElement(&buf, "id", selfLink, 2)
	writeElement(&buf, "updated", newestTimestamp(deals).UTC().Format(time.RFC3339), 2)
	writeElement(&buf, "subtitle", g.feedDescription(categoryName), 2)
	buf.WriteString(fmt.Sprintf("  <link href=\"%s\" rel=\"self\" type=\"application/atom+xml\" />\n",
		html.EscapeString(selfLink)))
	buf.WriteString(fmt.Sprintf("  <link href=\"%s\" rel=\"alternate\" type=\"text/html\" />\n",
		html.EscapeString(g.siteLink)))

	for _, deal := range deals {
		g.writeAtomEntry(&buf, deal)
	}

	buf.WriteString("</feed>")

	return buf.String()
}

func (g *Generator) writeAtomEntry(buf *bytes.Buffer, deal database.Deal) {
	buf.WriteString("  <entry>\n")

	writeElement(buf, "id", "urn:deal:"+deal.ID, 4)
	writeElement(buf, "title", deal.Title, 4)
	buf.WriteString(fmt.Sprintf("    <link href=\"%s\" rel=\"alternate\" />\n",
		html.EscapeString(deal.URL)))
	writeElement(buf, "published", deal.PublishedAt.UTC().Format(time.RFC3339), 4)
	writeElement(buf, "updated", deal.PublishedAt.UTC().Format(time.RFC3339), 4)
	writeElement(buf, "summary", deal.Description, 4)

	if deal.Content != "" {
		buf.WriteString(`    <content type="html">`)
		xml.EscapeText(buf, []byte(deal.Content))
		buf.WriteString("</content>\n")
	}

	if deal.Category != "" {
		buf.WriteString(fmt.Sprintf("    <category term=\"%s\" />\n",
			html.EscapeString(deal.Category)))
	}

	buf.WriteString("  </entry>\n")
}

type jsonFeed struct {
	Version     string         `json:"version"`
	Title       string         `json:"title"`
	HomePageURL string         `json:"home_page_url,omitempty"`
	FeedURL     string         `json:"feed_url,omitempty"`
	Description string         `json:"description,omitempty"`
	Items       []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	ID            string   `json:"id"`
	URL           string   `json:"url,omitempty"`
	Title         string   `json:"title,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	ContentHTML   string   `json:"content_html,omitempty"`
	Image         string   `json:"image,omitempty"`
	DatePublished string   `json:"date_published,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

func (g *Generator) renderJSON(categoryName, slug string, deals []database.Deal) (string, error) {
	doc := jsonFeed{
		Version:     "https://jsonfeed.org/version/1.1",
		Title:       g.feedTitle(categoryName),
		HomePageURL: g.siteLink,
		FeedURL:     g.selfLink(slug, FormatJSON),
		Description: g.feedDescription(categoryName),
		Items:       make([]jsonFeedItem, 0, len(deals)),
	}

	for _, deal := range deals {
		item := jsonFeedItem{
			ID:            deal.ID,
			URL:           deal.URL,
			Title:         deal.Title,
			Summary:       deal.Description,
			ContentHTML:   deal.Content,
			Image:         deal.ImageURL,
			DatePublished: deal.PublishedAt.UTC().Format(time.RFC3339),
		}
		if deal.Category != "" {
			item.Tags = []string{deal.Category}
		}
		doc.Items = append(doc.Items, item)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render JSON feed: %w", err)
	}
	return string(data), nil
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func imageMIMEType(imageURL string) string {
	if t := mime.TypeByExtension(path.Ext(imageURL)); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/jpeg"
}
