package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"

	"crawlcast/internal/domain/entity"
)

// videoIDPattern extracts a video ID from a YouTube-style watch link when
// the feed entry's own ID field doesn't carry one directly.
var videoIDPattern = regexp.MustCompile(`v=([a-zA-Z0-9_-]+)`)

// ChannelFeedParser parses video/podcast channel RSS feeds (gofeed), then
// normalizes each entry's link to the canonical "watch?v=" form so the
// same video is recognized under query-parameter variants.
type ChannelFeedParser struct{}

// NewChannelFeedParser creates a ChannelFeedParser.
func NewChannelFeedParser() *ChannelFeedParser { return &ChannelFeedParser{} }

// Parse extracts Items from a channel feed, canonicalizing each entry's URL.
func (p *ChannelFeedParser) Parse(raw []byte, _ *entity.ScraperConfig) ([]Item, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrParse, err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		videoID := extractVideoID(it)
		if videoID == "" {
			continue
		}

		pubAt := time.Now()
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		}

		content := it.Description
		if content == "" {
			content = it.Content
		}

		items = append(items, Item{
			Title:       it.Title,
			URL:         fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID),
			Body:        content,
			PublishedAt: pubAt,
			Metadata:    map[string]string{"video_id": videoID},
		})
	}

	if len(items) == 0 {
		slog.Warn("channel feed parsed successfully but contained no recognizable video entries", slog.String("feed_title", feed.Title))
	}

	return items, nil
}

func extractVideoID(it *gofeed.Item) string {
	if it.GUID != "" {
		if m := videoIDPattern.FindStringSubmatch(it.GUID); m != nil {
			return m[1]
		}
	}
	if m := videoIDPattern.FindStringSubmatch(it.Link); m != nil {
		return m[1]
	}
	return ""
}
