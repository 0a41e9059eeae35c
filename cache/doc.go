// Package cache persists raw chapters, work listings and image bytes between
// runs.
//
// # Storage
//
// Everything lives in one SQLite database (default
// ~/.cache/narou2epub/cache.db) with three tables keyed by work code:
// chapters (work_id, idx), listings (work_id) and images (work_id, url).
// Chapters are stored before proofreading so rule changes apply to cached
// content without refetching. Entries never expire; they are removed only by
// InvalidateWork or InvalidateAll.
//
// CLI commands for inspection and management:
//
//	narou2epub cache list            # per-work summary
//	narou2epub cache clear [ncode]   # remove one work or everything
//	narou2epub --clear-cache [ncode] # same as cache clear
package cache
