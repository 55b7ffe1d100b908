package opml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportThenParse(t *testing.T) {
	in := []model.Article{
		{Title: "Rates hold", Source: "Reuters", URL: "https://r.example/1", Author: "A. Writer", PublishedAt: "2024-05-01T10:00:00Z"},
		{Title: "Loose link", URL: "https://x.example/2", Description: "no source"},
		{Title: "Markets & more", Source: "BBC News", URL: "https://b.example/3?a=1&b=2"},
		{Title: "Second Reuters", Source: "Reuters", URL: "https://r.example/4"},
	}

	data, err := Export("Favorites", in)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("<?xml")))
	assert.Contains(t, string(data), `type="link"`)

	out, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	// Root links first, then folders by name.
	require.Len(t, out, 4)
	assert.Equal(t, "Loose link", out[0].Title)
	assert.Equal(t, "no source", out[0].Description)
	assert.Equal(t, "Markets & more", out[1].Title)
	assert.Equal(t, "BBC News", out[1].Source)
	assert.Equal(t, "https://b.example/3?a=1&b=2", out[1].URL)
	assert.Equal(t, in[0], out[2])
	assert.Equal(t, in[3], out[3])
}

func TestParse_NestedAndForeignOutlines(t *testing.T) {
	doc := `<?xml version="1.0"?>
<opml version="2.0">
  <head><title>Mixed</title></head>
  <body>
    <outline text="Tech">
      <outline text="Chips news" type="link" url="https://t.example/chips"/>
      <outline text="Some feed" type="rss" xmlUrl="https://t.example/feed.xml" htmlUrl="https://t.example"/>
    </outline>
    <outline text="Empty folder"/>
    <outline type="link" url="https://no.title"/>
  </body>
</opml>`

	out, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.Article{Title: "Chips news", Source: "Tech", URL: "https://t.example/chips"}, out[0])
	assert.Equal(t, "https://t.example", out[1].URL)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader("<opml><body>"))
	assert.Error(t, err)
}

func TestExport_Empty(t *testing.T) {
	data, err := Export("Favorites", nil)
	require.NoError(t, err)
	out, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, out)
}
