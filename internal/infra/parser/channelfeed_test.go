package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlcast/internal/domain/entity"
)

func TestChannelFeedParser_Parse_ExtractsVideoIDAndCanonicalizesURL(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Channel</title>
<item><title>Video A</title><link>https://www.youtube.com/watch?v=abc123&feature=share</link><guid>yt:video:abc123</guid><description>body</description></item>
</channel></rss>`)

	items, err := NewChannelFeedParser().Parse(raw, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", items[0].URL)
	assert.Equal(t, "abc123", items[0].Metadata["video_id"])
}

func TestChannelFeedParser_Parse_SkipsEntriesWithoutVideoID(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Channel</title>
<item><title>Not a video</title><link>https://example.com/post</link></item>
</channel></rss>`)

	items, err := NewChannelFeedParser().Parse(raw, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestChannelFeedParser_Parse_MalformedBodyIsErrParse(t *testing.T) {
	_, err := NewChannelFeedParser().Parse([]byte("not a feed"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrParse)
}
