package narou

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"narou2epub/model"
)

// Live tests hit syosetu.com and only run with NAROU2EPUB_LIVE=1.

const liveWork model.WorkID = "n9669bk"

func liveClient(t *testing.T, pages PageGetter) *Narou {
	t.Helper()
	if os.Getenv("NAROU2EPUB_LIVE") != "1" {
		t.Skip("set NAROU2EPUB_LIVE=1 to run against syosetu.com")
	}
	return New(Options{Timeout: 30 * time.Second, Pages: pages})
}

func TestLive_ListChapters(t *testing.T) {
	n := liveClient(t, nil)
	listing, err := n.ListChapters(context.Background(), liveWork)
	require.NoError(t, err)
	require.NotEmpty(t, listing.Chapters)

	data, err := json.Marshal(listing.Work)
	require.NoError(t, err)
	t.Log(string(data))
}

func TestLive_FetchChapter(t *testing.T) {
	n := liveClient(t, nil)
	ctx := context.Background()
	listing, err := n.ListChapters(ctx, liveWork)
	require.NoError(t, err)

	ch, err := n.FetchChapter(ctx, liveWork, listing.Chapters[0])
	require.NoError(t, err)
	require.NotEmpty(t, ch.Body)
	t.Log(ch.DisplayTitle())
}

func TestLive_ChromeGetter(t *testing.T) {
	browser := NewChromeGetter("", 60*time.Second, nil)
	defer browser.Close()
	n := liveClient(t, browser)

	listing, err := n.ListChapters(context.Background(), liveWork)
	require.NoError(t, err)
	require.NotEmpty(t, listing.Chapters)
}
