package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"crawlcast/internal/domain/entity"
)

// javascriptHrefID pulls a numeric identifier out of a javascript:-style
// href, the pattern government bid-board listings use in place of a real
// link (grounded on the board crawler's numeric-id regex technique).
var javascriptHrefID = regexp.MustCompile(`'(\d+)'`)

// dateInText finds the first yyyy-mm-dd or yyyy/mm/dd date in free text.
var dateInText = regexp.MustCompile(`(\d{4})[-/](\d{2})[-/](\d{2})`)

// SearchIndexParser extracts rows from board/trending-style listing pages.
// The same selector-driven row extraction serves two very different real
// sources: government bid boards (javascript-href numeric IDs, deadline
// dates embedded in arbitrary cells) and code-host trending pages (direct
// anchors, star/fork counts) -- one parser, two ScraperConfig shapes.
type SearchIndexParser struct {
	baseURL string
}

// NewSearchIndexParser creates a SearchIndexParser. baseURL is used to
// resolve relative hrefs and synthesize URLs from javascript-href IDs.
func NewSearchIndexParser(baseURL string) *SearchIndexParser {
	return &SearchIndexParser{baseURL: baseURL}
}

// Parse extracts Items from raw HTML bytes using config's row/field selectors.
func (p *SearchIndexParser) Parse(raw []byte, config *entity.ScraperConfig) ([]Item, error) {
	if config == nil || config.RowSelector == "" {
		return nil, fmt.Errorf("%w: row_selector is required", entity.ErrParse)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}

	var items []Item

	doc.Find(config.RowSelector).Each(func(_ int, row *goquery.Selection) {
		item, ok := p.extractRow(row, config)
		if ok {
			items = append(items, item)
		}
	})

	if len(items) == 0 {
		return nil, entity.ErrParse
	}

	return items, nil
}

func (p *SearchIndexParser) extractRow(row *goquery.Selection, config *entity.ScraperConfig) (Item, bool) {
	titleSelector := "a"
	if config.TitleSelector != "" {
		titleSelector = config.TitleSelector
	}

	link := row.Find(titleSelector).First()
	if link.Length() == 0 {
		// fall back to the first anchor whose text is long enough to be a title
		row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if len(strings.TrimSpace(a.Text())) > 10 {
				link = a
				return false
			}
			return true
		})
	}
	if link.Length() == 0 {
		return Item{}, false
	}

	title := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if title == "" {
		return Item{}, false
	}

	url := p.resolveURL(href)
	if url == "" {
		return Item{}, false
	}

	publishedAt := time.Now()
	rowText := row.Text()
	if m := dateInText.FindStringSubmatch(rowText); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if year > 0 {
			publishedAt = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		}
	}

	return Item{
		Title:       title,
		URL:         url,
		PublishedAt: publishedAt,
	}, true
}

// resolveURL turns href into an absolute URL, handling the three shapes
// these listing pages use: javascript: links carrying a numeric ID,
// root-relative paths, and already-absolute URLs.
func (p *SearchIndexParser) resolveURL(href string) string {
	switch {
	case strings.HasPrefix(href, "javascript:"):
		m := javascriptHrefID.FindStringSubmatch(href)
		if m == nil {
			return ""
		}
		return fmt.Sprintf("%s/detail?id=%s", strings.TrimRight(p.baseURL, "/"), m[1])
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		return strings.TrimRight(p.baseURL, "/") + href
	default:
		if href == "" {
			return ""
		}
		return strings.TrimRight(p.baseURL, "/") + "/" + href
	}
}
