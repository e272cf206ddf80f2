package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"crawlcast/internal/domain/entity"
)

// HTMLListParser extracts a list of items from a generic HTML page using
// CSS selectors, generalized from the teacher's Webflow scraper. When
// TitleSelector/URLSelector point at distinct elements use them; otherwise
// the first anchor inside each list item is used as a fallback (the
// "generic anchor" behavior the teacher's web scraper also falls back to).
type HTMLListParser struct{}

// NewHTMLListParser creates an HTMLListParser.
func NewHTMLListParser() *HTMLListParser { return &HTMLListParser{} }

// Parse extracts Items from raw HTML bytes using config's selectors.
func (p *HTMLListParser) Parse(raw []byte, config *entity.ScraperConfig) ([]Item, error) {
	if config == nil || config.ListSelector == "" {
		return nil, fmt.Errorf("%w: list_selector is required", entity.ErrParse)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}

	var items []Item

	doc.Find(config.ListSelector).Each(func(_ int, sel *goquery.Selection) {
		item, ok := p.extractItem(sel, config)
		if ok {
			items = append(items, item)
		}
	})

	if len(items) == 0 {
		return nil, entity.ErrParse
	}

	return items, nil
}

func (p *HTMLListParser) extractItem(sel *goquery.Selection, config *entity.ScraperConfig) (Item, bool) {
	var titleEl *goquery.Selection
	if config.TitleSelector != "" {
		titleEl = sel.Find(config.TitleSelector).First()
	}
	if titleEl == nil || titleEl.Length() == 0 {
		titleEl = sel.Find("a").First()
	}
	if titleEl.Length() == 0 {
		return Item{}, false
	}
	title := strings.TrimSpace(titleEl.Text())

	var linkEl *goquery.Selection
	if config.URLSelector != "" {
		linkEl = sel.Find(config.URLSelector).First()
	}
	if linkEl == nil || linkEl.Length() == 0 {
		linkEl = titleEl
		if goquery.NodeName(linkEl) != "a" {
			linkEl = sel.Find("a").First()
		}
	}
	href, exists := linkEl.Attr("href")
	if !exists || href == "" || title == "" {
		return Item{}, false
	}

	url := href
	if config.URLPrefix != "" && !strings.HasPrefix(href, "http") {
		url = strings.TrimRight(config.URLPrefix, "/") + "/" + strings.TrimLeft(href, "/")
	}

	publishedAt := time.Now()
	if config.DateSelector != "" {
		dateText := strings.TrimSpace(sel.Find(config.DateSelector).First().Text())
		if dateText != "" && config.DateFormat != "" {
			if parsed, err := time.Parse(config.DateFormat, dateText); err == nil {
				publishedAt = parsed
			}
		}
	}

	return Item{
		Title:       title,
		URL:         url,
		PublishedAt: publishedAt,
	}, true
}
