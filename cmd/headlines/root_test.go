package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bryan-buckman/headlines/internal/database"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Wire</title>
<item><title>Lions win final</title><link>https://example.com/1</link></item>
<item><title>Rains expected</title><link>https://example.com/2</link></item>
<item><title>Markets rally</title><link>https://example.com/3</link></item>
</channel></rss>`

const favoritesOPML = `<?xml version="1.0"?>
<opml version="2.0"><head><title>f</title></head><body>
<outline text="Test Wire">
  <outline text="Lions win final" type="link" url="https://example.com/1"/>
  <outline text="Markets rally" type="link" url="https://example.com/3"/>
</outline>
</body></opml>`

// setupEnv points the CLI at a local RSS feed and a temp database.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("HEADLINES_FEED_SOURCE", "rss")
	t.Setenv("HEADLINES_FEED_RSS_URL", srv.URL)
	t.Setenv("HEADLINES_FEED_PAGE_SIZE", "2")
	t.Setenv("HEADLINES_DATABASE_DSN", filepath.Join(dir, "cli.db"))
	t.Setenv("HEADLINES_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTop_PrintsPages(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "top")
	require.NoError(t, err)
	assert.Contains(t, out, "Lions win final")
	assert.Contains(t, out, "Rains expected")
	assert.NotContains(t, out, "Markets rally")

	out, err = run(t, "top", "--pages", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Markets rally")
}

func TestTop_Query(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "headlines", "-q", "rain")
	require.NoError(t, err)
	assert.Contains(t, out, "Rains expected")
	assert.NotContains(t, out, "Lions")
}

func TestFavorites_ImportListExportRemove(t *testing.T) {
	dir := setupEnv(t)
	in := filepath.Join(dir, "in.opml")
	require.NoError(t, os.WriteFile(in, []byte(favoritesOPML), 0o644))

	out, err := run(t, "favorites", "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2")

	out, err = run(t, "favorites", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Lions win final")
	assert.Contains(t, out, "Markets rally")

	// Favorites are flagged in the headline table.
	out, err = run(t, "top", "--pages", "5")
	require.NoError(t, err)
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Rains expected") {
			assert.NotContains(t, line, "*")
		}
		if strings.Contains(line, "Lions win final") {
			assert.Contains(t, line, "*")
		}
	}

	exported := filepath.Join(dir, "out.opml")
	_, err = run(t, "favorites", "export", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), `text="Markets rally"`)

	_, err = run(t, "favorites", "remove", "Markets rally")
	require.NoError(t, err)
	out, err = run(t, "favorites", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Markets rally")
}

func TestFavorites_EmptyList(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "favorites", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No favorites yet.")
}

func TestMissingAPIKey_OnlyFailsSourceCommands(t *testing.T) {
	setupEnv(t)
	t.Setenv("HEADLINES_FEED_SOURCE", "newsapi")
	t.Setenv("HEADLINES_API_KEY", "")

	out, err := run(t, "favorites", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No favorites yet.")

	_, err = run(t, "top")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.key")
}

func TestConfigError(t *testing.T) {
	setupEnv(t)
	t.Setenv("HEADLINES_FEED_PAGE_SIZE", "0")

	_, err := run(t, "favorites", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PageSize")
}

type stubFavorites struct {
	saved map[string]bool
	err   error
}

func (s stubFavorites) IsFavorite(_ context.Context, key string) (bool, error) {
	return s.saved[key], s.err
}

func TestFavoriteMark(t *testing.T) {
	ctx := context.Background()
	a := model.Article{Title: "Lions win final"}

	mark, err := favoriteMark(ctx, stubFavorites{saved: map[string]bool{a.Key(): true}}, a)
	require.NoError(t, err)
	assert.Equal(t, "*", mark)

	mark, err = favoriteMark(ctx, stubFavorites{}, a)
	require.NoError(t, err)
	assert.Empty(t, mark)

	_, err = favoriteMark(ctx, stubFavorites{err: database.ErrStore}, a)
	assert.ErrorIs(t, err, database.ErrStore)
}
