package crawl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlcast/internal/domain/entity"
	"crawlcast/internal/infra/parser"
)

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.body, f.err
}

type fakeParser struct {
	items []parser.Item
	err   error
}

func (p *fakeParser) Parse(raw []byte, config *entity.ScraperConfig) ([]parser.Item, error) {
	return p.items, p.err
}

func TestCrawler_Crawl_Success(t *testing.T) {
	src := &entity.Source{ID: 1, URL: "https://example.com/feed", Kind: entity.KindFeed}
	items := []parser.Item{{Title: "a", URL: "https://example.com/a"}}

	c := New(&fakeFetcher{body: []byte("<rss/>")}, map[entity.SourceKind]parser.Parser{
		entity.KindFeed: &fakeParser{items: items},
	}, nil)

	result, err := c.Crawl(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, items, result.Items)
	assert.Nil(t, result.HealedConfig)
}

func TestCrawler_Crawl_NoParserRegistered(t *testing.T) {
	src := &entity.Source{ID: 1, URL: "https://example.com", Kind: entity.KindAPI}

	c := New(&fakeFetcher{}, map[entity.SourceKind]parser.Parser{}, nil)

	_, err := c.Crawl(context.Background(), src)
	require.Error(t, err)
}

func TestCrawler_Crawl_FetchError(t *testing.T) {
	src := &entity.Source{ID: 1, URL: "https://example.com", Kind: entity.KindFeed}

	c := New(&fakeFetcher{err: errors.New("boom")}, map[entity.SourceKind]parser.Parser{
		entity.KindFeed: &fakeParser{},
	}, nil)

	_, err := c.Crawl(context.Background(), src)
	require.Error(t, err)
}

func TestCrawler_Crawl_ParseFailsNoOrchestrator(t *testing.T) {
	src := &entity.Source{ID: 1, URL: "https://example.com", Kind: entity.KindHTML}

	c := New(&fakeFetcher{body: []byte("<html/>")}, map[entity.SourceKind]parser.Parser{
		entity.KindHTML: &fakeParser{err: entity.ErrParse},
	}, nil)

	_, err := c.Crawl(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrParse)
	assert.ErrorIs(t, err, entity.ErrHealingFailed)
}

func TestCrawler_Crawl_FeedParseFailureSkipsSelfHeal(t *testing.T) {
	src := &entity.Source{ID: 1, URL: "https://example.com/feed", Kind: entity.KindFeed}

	c := New(&fakeFetcher{body: []byte("not a feed")}, map[entity.SourceKind]parser.Parser{
		entity.KindFeed: &fakeParser{err: entity.ErrParse},
	}, nil)

	_, err := c.Crawl(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrParse)
	assert.NotErrorIs(t, err, entity.ErrHealingFailed)
}
