package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"crawlcast/internal/domain/entity"
)

// FeedParser parses RSS/Atom feeds via gofeed, the same library and
// content-over-description fallback the teacher's RSS fetcher uses.
type FeedParser struct{}

// NewFeedParser creates a FeedParser.
func NewFeedParser() *FeedParser { return &FeedParser{} }

// Parse extracts Items from raw RSS/Atom bytes. config is unused; feeds are
// self-describing and need no selector configuration.
func (p *FeedParser) Parse(raw []byte, _ *entity.ScraperConfig) ([]Item, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		content := it.Content
		if content == "" {
			content = it.Description
		}

		items = append(items, Item{
			Title:       it.Title,
			URL:         it.Link,
			Body:        content,
			PublishedAt: pubAt,
		})
	}

	if len(items) == 0 {
		slog.Warn("feed parsed successfully but contained no entries", slog.String("feed_title", feed.Title))
	}

	return items, nil
}
