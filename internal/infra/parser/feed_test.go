package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlcast/internal/domain/entity"
)

func TestFeedParser_Parse_Success(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Feed</title>
<item><title>Item A</title><link>https://example.com/a</link><description>body a</description></item>
</channel></rss>`)

	items, err := NewFeedParser().Parse(raw, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Item A", items[0].Title)
	assert.Equal(t, "https://example.com/a", items[0].URL)
}

func TestFeedParser_Parse_EmptyFeedIsNotAnError(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)

	items, err := NewFeedParser().Parse(raw, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFeedParser_Parse_MalformedBodyIsErrParse(t *testing.T) {
	_, err := NewFeedParser().Parse([]byte("this is not xml at all {{{"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrParse)
}
