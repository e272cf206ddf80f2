// Package parser implements the four content-extraction strategies driven
// by a Source's Kind: feed (RSS/Atom), html (generic item list),
// channel-feed (video/podcast channels), and search-index (board/trending
// listing pages). Every parser takes the raw bytes httpfetch.Fetcher
// already retrieved and returns a normalized slice of Item.
package parser

import (
	"time"

	"crawlcast/internal/domain/entity"
)

// Item is a single parsed entry, normalized across every source kind
// before it becomes a entity.Content.
type Item struct {
	Title       string
	URL         string
	Body        string
	PublishedAt time.Time
	Metadata    map[string]string
}

// Parser extracts Items from raw bytes according to a Source's ScraperConfig.
type Parser interface {
	Parse(raw []byte, config *entity.ScraperConfig) ([]Item, error)
}
