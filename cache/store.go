package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"narou2epub/logging"
	"narou2epub/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS chapters (
	work_id    TEXT    NOT NULL,
	idx        INTEGER NOT NULL,
	data       TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (work_id, idx)
);
CREATE TABLE IF NOT EXISTS listings (
	work_id    TEXT    PRIMARY KEY,
	data       TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS images (
	work_id    TEXT    NOT NULL,
	url        TEXT    NOT NULL,
	data       BLOB    NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (work_id, url)
);
`

// Store is the SQLite backed cache. A Store is used by a single run at a time;
// concurrent processes sharing one file get last-writer-wins semantics.
type Store struct {
	db     *sql.DB
	path   string
	logger *logrus.Entry
	now    func() time.Time
}

// WorkStats summarizes the cached data of one work.
type WorkStats struct {
	WorkID      model.WorkID
	Title       string
	Chapters    int
	Images      int
	Bytes       int64
	LastFetched time.Time
}

// Open opens (creating if needed) the cache database at path.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure cache database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logging.Component(logger, "cache"),
		now:    time.Now,
	}
	s.logger.WithField("path", path).Debug("cache opened")
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw chapter cached for (work, index).
func (s *Store) Get(ctx context.Context, work model.WorkID, index int) (model.CacheEntry, bool, error) {
	query, args, err := sq.Select("data", "fetched_at").
		From("chapters").
		Where(sq.Eq{"work_id": string(work), "idx": index}).
		ToSql()
	if err != nil {
		return model.CacheEntry{}, false, err
	}

	var (
		data      string
		fetchedAt int64
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheEntry{}, false, nil
	}
	if err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("read cached chapter %s/%d: %w", work, index, err)
	}

	var chapter model.Chapter
	if err := json.Unmarshal([]byte(data), &chapter); err != nil {
		return model.CacheEntry{}, false, fmt.Errorf("decode cached chapter %s/%d: %w", work, index, err)
	}
	return model.CacheEntry{
		WorkID:    work,
		Index:     index,
		Chapter:   chapter,
		FetchedAt: fromUnix(fetchedAt),
	}, true, nil
}

// Put stores the raw chapter, replacing any previous entry. Failures are
// reported as *model.CacheWriteError.
func (s *Store) Put(ctx context.Context, work model.WorkID, index int, chapter model.Chapter) (model.CacheEntry, error) {
	entry := model.CacheEntry{
		WorkID:    work,
		Index:     index,
		Chapter:   chapter,
		FetchedAt: s.now().UTC().Truncate(time.Second),
	}
	data, err := json.Marshal(chapter)
	if err != nil {
		return entry, &model.CacheWriteError{WorkID: work, Index: index, Cause: err}
	}

	query, args, err := sq.Insert("chapters").
		Columns("work_id", "idx", "data", "fetched_at").
		Values(string(work), index, string(data), entry.FetchedAt.Unix()).
		Suffix("ON CONFLICT(work_id, idx) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at").
		ToSql()
	if err == nil {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return entry, &model.CacheWriteError{WorkID: work, Index: index, Cause: err}
	}

	s.logger.WithFields(logrus.Fields{"work": work, "chapter": index}).Debug("cached chapter")
	return entry, nil
}

// GetListing returns the cached listing of a work.
func (s *Store) GetListing(ctx context.Context, work model.WorkID) (*model.Listing, bool, error) {
	query, args, err := sq.Select("data").
		From("listings").
		Where(sq.Eq{"work_id": string(work)}).
		ToSql()
	if err != nil {
		return nil, false, err
	}

	var data string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached listing %s: %w", work, err)
	}

	var listing model.Listing
	if err := json.Unmarshal([]byte(data), &listing); err != nil {
		return nil, false, fmt.Errorf("decode cached listing %s: %w", work, err)
	}
	return &listing, true, nil
}

// PutListing stores the listing of a work.
func (s *Store) PutListing(ctx context.Context, listing *model.Listing) error {
	work := listing.Work.ID
	data, err := json.Marshal(listing)
	if err != nil {
		return &model.CacheWriteError{WorkID: work, Cause: err}
	}
	query, args, err := sq.Insert("listings").
		Columns("work_id", "data", "fetched_at").
		Values(string(work), string(data), listing.FetchedAt.Unix()).
		Suffix("ON CONFLICT(work_id) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at").
		ToSql()
	if err == nil {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return &model.CacheWriteError{WorkID: work, Cause: err}
	}
	return nil
}

// GetImage returns cached image bytes for a work.
func (s *Store) GetImage(ctx context.Context, work model.WorkID, url string) ([]byte, bool, error) {
	query, args, err := sq.Select("data").
		From("images").
		Where(sq.Eq{"work_id": string(work), "url": url}).
		ToSql()
	if err != nil {
		return nil, false, err
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached image %s: %w", url, err)
	}
	return data, true, nil
}

// PutImage stores raw (unprocessed) image bytes.
func (s *Store) PutImage(ctx context.Context, work model.WorkID, url string, data []byte) error {
	query, args, err := sq.Insert("images").
		Columns("work_id", "url", "data", "fetched_at").
		Values(string(work), url, data, s.now().UTC().Unix()).
		Suffix("ON CONFLICT(work_id, url) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at").
		ToSql()
	if err == nil {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return &model.CacheWriteError{WorkID: work, Cause: fmt.Errorf("image %s: %w", url, err)}
	}
	return nil
}

// InvalidateWork removes every entry of one work. It is a no-op when the work
// has nothing cached.
func (s *Store) InvalidateWork(ctx context.Context, work model.WorkID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invalidate: %w", err)
	}
	defer tx.Rollback()

	var removed int64
	for _, table := range []string{"chapters", "listings", "images"} {
		query, args, err := sq.Delete(table).Where(sq.Eq{"work_id": string(work)}).ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("invalidate %s in %s: %w", work, table, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invalidate: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"work": work, "rows": removed}).Info("invalidated work cache")
	return nil
}

// InvalidateAll empties the cache.
func (s *Store) InvalidateAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invalidate: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"chapters", "listings", "images"} {
		query, args, err := sq.Delete(table).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("invalidate %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invalidate: %w", err)
	}

	s.logger.Info("invalidated entire cache")
	return nil
}

// Works summarizes cached works ordered by work code.
func (s *Store) Works(ctx context.Context) ([]WorkStats, error) {
	stats := map[model.WorkID]*WorkStats{}
	get := func(id string) *WorkStats {
		w, ok := stats[model.WorkID(id)]
		if !ok {
			w = &WorkStats{WorkID: model.WorkID(id)}
			stats[w.WorkID] = w
		}
		return w
	}

	query, args, err := sq.Select("work_id", "COUNT(*)", "COALESCE(SUM(LENGTH(data)), 0)", "MAX(fetched_at)").
		From("chapters").
		GroupBy("work_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize chapters: %w", err)
	}
	for rows.Next() {
		var (
			id        string
			count     int
			size      int64
			fetchedAt int64
		)
		if err := rows.Scan(&id, &count, &size, &fetchedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chapter summary: %w", err)
		}
		w := get(id)
		w.Chapters = count
		w.Bytes += size
		w.LastFetched = fromUnix(fetchedAt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	query, args, err = sq.Select("work_id", "COUNT(*)", "COALESCE(SUM(LENGTH(data)), 0)").
		From("images").
		GroupBy("work_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err = s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summarize images: %w", err)
	}
	for rows.Next() {
		var (
			id    string
			count int
			size  int64
		)
		if err := rows.Scan(&id, &count, &size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan image summary: %w", err)
		}
		w := get(id)
		w.Images = count
		w.Bytes += size
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]WorkStats, 0, len(stats))
	for id, w := range stats {
		if listing, ok, err := s.GetListing(ctx, id); err == nil && ok {
			w.Title = listing.Work.Title
		}
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WorkID < out[j].WorkID
	})
	return out, nil
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
