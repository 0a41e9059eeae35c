package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narou2epub/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func rawChapter(work model.WorkID, index int) model.Chapter {
	return model.Chapter{
		WorkID: work,
		Index:  index,
		Title:  "第一話　旅立ち",
		Body:   "<p>１２３《るび》</p><img src=\"//1234.mitemin.net/i5678/\"/>",
		Images: []model.ImageRef{{Src: "//1234.mitemin.net/i5678/", URL: "https://1234.mitemin.net/i5678/"}},
	}
}

func TestPutThenGetReturnsRawChapter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 30, 45, 999, time.UTC)
	store.now = func() time.Time { return fixed }

	want := rawChapter("n0498fr", 1)
	_, err := store.Put(ctx, "n0498fr", 1, want)
	require.NoError(t, err)

	entry, ok, err := store.Get(ctx, "n0498fr", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, entry.Chapter)
	assert.Equal(t, model.WorkID("n0498fr"), entry.WorkID)
	assert.Equal(t, 1, entry.Index)
	assert.Equal(t, fixed.Truncate(time.Second), entry.FetchedAt)
}

func TestGetMiss(t *testing.T) {
	store := openTestStore(t)
	_, ok, err := store.Get(context.Background(), "n0498fr", 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := rawChapter("n1", 1)
	second := first.WithBody("<p>改稿</p>")
	_, err := store.Put(ctx, "n1", 1, first)
	require.NoError(t, err)
	_, err = store.Put(ctx, "n1", 1, second)
	require.NoError(t, err)

	entry, ok, err := store.Get(ctx, "n1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<p>改稿</p>", entry.Chapter.Body)
}

func TestInvalidateWorkLeavesOtherWorks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, work := range []model.WorkID{"n1", "n2"} {
		for i := 1; i <= 3; i++ {
			_, err := store.Put(ctx, work, i, rawChapter(work, i))
			require.NoError(t, err)
		}
		require.NoError(t, store.PutListing(ctx, &model.Listing{Work: model.Work{ID: work, Title: string(work)}}))
		require.NoError(t, store.PutImage(ctx, work, "https://img/"+string(work), []byte{1, 2, 3}))
	}

	require.NoError(t, store.InvalidateWork(ctx, "n1"))

	for i := 1; i <= 3; i++ {
		_, ok, err := store.Get(ctx, "n1", i)
		require.NoError(t, err)
		assert.False(t, ok, "n1 chapter %d should be gone", i)

		_, ok, err = store.Get(ctx, "n2", i)
		require.NoError(t, err)
		assert.True(t, ok, "n2 chapter %d should remain", i)
	}
	_, ok, err := store.GetListing(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetImage(ctx, "n1", "https://img/n1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetListing(ctx, "n2")
	require.NoError(t, err)
	assert.True(t, ok)

	// No-op for unknown works.
	require.NoError(t, store.InvalidateWork(ctx, "n999"))
}

func TestInvalidateAllEmptiesStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "n1", 1, rawChapter("n1", 1))
	require.NoError(t, err)
	_, err = store.Put(ctx, "n2", 4, rawChapter("n2", 4))
	require.NoError(t, err)
	require.NoError(t, store.PutImage(ctx, "n2", "u", []byte("x")))

	require.NoError(t, store.InvalidateAll(ctx))

	works, err := store.Works(ctx)
	require.NoError(t, err)
	assert.Empty(t, works)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()

	first, err := Open(path, nil)
	require.NoError(t, err)
	_, err = first.Put(ctx, "n1", 2, rawChapter("n1", 2))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path, nil)
	require.NoError(t, err)
	defer second.Close()
	entry, ok, err := second.Get(ctx, "n1", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Chapter.Index)
}

func TestListingRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	listing := &model.Listing{
		Work:      model.Work{ID: "n0498fr", Title: "作品", Writer: "作者", Total: 2},
		Sections:  []string{"第一章"},
		Chapters:  []model.ChapterRef{{Index: 1, Title: "一", Section: "第一章"}, {Index: 2, Title: "二", Section: "第一章"}},
		FetchedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.PutListing(ctx, listing))

	got, ok, err := store.GetListing(ctx, "n0498fr")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, listing, got)
}

func TestPutOnClosedStoreIsCacheWriteError(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Put(context.Background(), "n1", 1, rawChapter("n1", 1))
	var cwe *model.CacheWriteError
	require.True(t, errors.As(err, &cwe))
	assert.Equal(t, 1, cwe.Index)
}

func TestWorksSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "n2", 1, rawChapter("n2", 1))
	require.NoError(t, err)
	_, err = store.Put(ctx, "n1", 1, rawChapter("n1", 1))
	require.NoError(t, err)
	_, err = store.Put(ctx, "n1", 2, rawChapter("n1", 2))
	require.NoError(t, err)
	require.NoError(t, store.PutImage(ctx, "n1", "u", []byte("abcd")))
	require.NoError(t, store.PutListing(ctx, &model.Listing{Work: model.Work{ID: "n1", Title: "題名"}}))

	works, err := store.Works(ctx)
	require.NoError(t, err)
	require.Len(t, works, 2)
	assert.Equal(t, model.WorkID("n1"), works[0].WorkID)
	assert.Equal(t, "題名", works[0].Title)
	assert.Equal(t, 2, works[0].Chapters)
	assert.Equal(t, 1, works[0].Images)
	assert.Greater(t, works[0].Bytes, int64(4))
	assert.Equal(t, 1, works[1].Chapters)
}
