// Package pipeline runs a conversion: resolve the chapter range, read chapters
// from the cache or the source, proofread, process images and assemble the
// EPUB. Chapters are handled one at a time in ascending order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"narou2epub/epub"
	"narou2epub/imageproc"
	"narou2epub/logging"
	"narou2epub/model"
	"narou2epub/proofread"
)

// Cache is the persistent store consulted before the source. It only ever
// holds raw, unproofread content.
type Cache interface {
	Get(ctx context.Context, work model.WorkID, index int) (model.CacheEntry, bool, error)
	Put(ctx context.Context, work model.WorkID, index int, chapter model.Chapter) (model.CacheEntry, error)
	GetListing(ctx context.Context, work model.WorkID) (*model.Listing, bool, error)
	PutListing(ctx context.Context, listing *model.Listing) error
	GetImage(ctx context.Context, work model.WorkID, url string) ([]byte, bool, error)
	PutImage(ctx context.Context, work model.WorkID, url string, data []byte) error
	InvalidateWork(ctx context.Context, work model.WorkID) error
	InvalidateAll(ctx context.Context) error
}

// Request is one conversion.
type Request struct {
	WorkID  model.WorkID
	Range   model.ChapterRange
	Profile model.ImageSizeProfile
	// RefreshListing fetches the listing from the source even when a cached
	// one exists. Chapters are still served from the cache.
	RefreshListing bool
}

// Progress is reported after every resolved chapter.
type Progress struct {
	Index     int
	Done      int
	Total     int
	FromCache bool
}

// Options configures an Orchestrator.
type Options struct {
	Source model.Source
	// Cache may be nil, which disables both reads and write-through.
	Cache       Cache
	Proofreader *proofread.Proofreader
	Assembler   *epub.Assembler
	Logger      *logrus.Logger
	OnProgress  func(Progress)
	now         func() time.Time
}

type Orchestrator struct {
	source      model.Source
	cache       Cache
	proofreader *proofread.Proofreader
	assembler   *epub.Assembler
	logger      *logrus.Entry
	onProgress  func(Progress)
	now         func() time.Time
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		source:      opts.Source,
		cache:       opts.Cache,
		proofreader: opts.Proofreader,
		assembler:   opts.Assembler,
		logger:      logging.Component(opts.Logger, "pipeline"),
		onProgress:  opts.OnProgress,
		now:         opts.now,
	}
	if o.proofreader == nil {
		o.proofreader = proofread.New()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Run is the record of one conversion. After Run returns, State is either
// StateDone or StateFailed.
type Run struct {
	WorkID model.WorkID
	State  State
	// FailedIn is the state that failed; Failure is the reason.
	FailedIn State
	Failure  error

	Title string
	// Range is the effective range after resolution.
	Range model.ChapterRange
	// LastCompletedIndex is the last chapter resolved from cache or source,
	// 0 when none.
	LastCompletedIndex int

	ListingFromCache   bool
	CacheHits          int
	Fetched            int
	CacheWriteFailures int
	ImagesEmbedded     int
	ImagesFromCache    int
	ImagesFetched      int
	ImagesSkipped      int
	Warnings           []string

	Output *epub.Result
}

func (r *Run) fail(err error) error {
	r.FailedIn = r.State
	r.State = StateFailed
	r.Failure = err
	return err
}

func (r *Run) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type resolved struct {
	chapter   model.Chapter
	fetchedAt time.Time
}

// Run executes req. The returned Run is never nil; on failure it carries the
// same error that is returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Run, error) {
	run := &Run{WorkID: req.WorkID, State: StateResolvingRange}
	log := o.logger.WithField("work", req.WorkID)

	if err := req.Range.Validate(); err != nil {
		return run, run.fail(err)
	}

	run.State = StateFetchingListing
	listing, err := o.listing(ctx, run, req)
	if err != nil {
		return run, run.fail(err)
	}
	run.Title = listing.Work.Title

	run.State = StateResolvingRange
	lo, hi, ok := listing.Bounds()
	if !ok {
		return run, run.fail(&model.SourceUnavailableError{WorkID: req.WorkID, Cause: errors.New("listing has no chapters")})
	}
	run.Range, err = req.Range.Resolve(lo, hi)
	if err != nil {
		return run, run.fail(err)
	}
	log.WithFields(logrus.Fields{"start": run.Range.Start, "end": run.Range.End, "published": hi}).Info("Resolved chapter range")

	run.State = StateResolvingChapters
	chapters, err := o.resolveChapters(ctx, run, listing)
	if err != nil {
		return run, run.fail(err)
	}

	run.State = StateProofreading
	if err := ctx.Err(); err != nil {
		return run, run.fail(err)
	}
	ready := make([]model.Chapter, len(chapters))
	var modified time.Time
	for i, c := range chapters {
		ready[i] = o.proofreader.Chapter(c.chapter)
		if c.fetchedAt.After(modified) {
			modified = c.fetchedAt
		}
	}

	run.State = StateProcessingImages
	if err := ctx.Err(); err != nil {
		return run, run.fail(err)
	}
	images, skipped := o.processImages(ctx, run, chapters, req.Profile)

	run.State = StateAssembling
	if err := ctx.Err(); err != nil {
		return run, run.fail(err)
	}
	if o.assembler == nil {
		return run, run.fail(&model.AssemblyError{Cause: errors.New("no assembler configured")})
	}
	result, err := o.assembler.Assemble(ctx, &epub.Book{
		WorkID:    req.WorkID,
		Title:     listing.Work.Title,
		Author:    listing.Work.Writer,
		SourceURL: listing.URL,
		Chapters:  ready,
		Total:     hi,
		Images:    images,
		Modified:  modified,
	})
	if err != nil {
		return run, run.fail(err)
	}
	run.Output = result
	run.ImagesEmbedded = result.Images
	// Images the source gave no usable URL for are only noticed here.
	for _, src := range result.DroppedSources {
		if skipped[src] {
			continue
		}
		log.WithField("src", src).Warn("Dropped image without a downloadable source")
		run.ImagesSkipped++
		run.warn("image %q skipped: no downloadable source", src)
	}

	run.State = StateDone
	return run, nil
}

// listing returns the cached listing when both requested bounds lie within it,
// otherwise fetches and caches it.
func (o *Orchestrator) listing(ctx context.Context, run *Run, req Request) (*model.Listing, error) {
	log := o.logger.WithField("work", req.WorkID)
	if o.cache != nil && !req.RefreshListing {
		listing, ok, err := o.cache.GetListing(ctx, req.WorkID)
		switch {
		case err != nil:
			log.WithError(err).Warn("Ignoring unreadable cached listing")
			run.warn("cached listing unreadable: %v", err)
		case ok:
			_, hi, _ := listing.Bounds()
			if req.Range.Start <= hi && req.Range.End <= hi {
				run.ListingFromCache = true
				return listing, nil
			}
			log.WithFields(logrus.Fields{"start": req.Range.Start, "end": req.Range.End, "cached": hi}).
				Info("Requested range goes past the cached listing, refreshing")
		}
	}

	listing, err := o.source.ListChapters(ctx, req.WorkID)
	if err != nil {
		return nil, err
	}
	if listing.Work.ID == "" {
		listing.Work.ID = req.WorkID
	}
	if o.cache != nil {
		if err := o.cache.PutListing(ctx, listing); err != nil {
			log.WithError(err).Warn("Failed to cache listing")
			run.CacheWriteFailures++
			run.warn("%v", err)
		}
	}
	return listing, nil
}

func (o *Orchestrator) resolveChapters(ctx context.Context, run *Run, listing *model.Listing) ([]resolved, error) {
	total := run.Range.End - run.Range.Start + 1
	out := make([]resolved, 0, total)

	for idx := run.Range.Start; idx <= run.Range.End; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := o.logger.WithFields(logrus.Fields{"work": run.WorkID, "chapter": idx})

		ref, ok := listing.Ref(idx)
		if !ok {
			return nil, &model.ChapterFetchError{Index: idx, Cause: errors.New("chapter missing from listing")}
		}

		fromCache := false
		var c resolved
		if o.cache != nil {
			entry, hit, err := o.cache.Get(ctx, run.WorkID, idx)
			if err != nil {
				log.WithError(err).Warn("Ignoring unreadable cache entry")
				run.warn("chapter %d: cache entry unreadable: %v", idx, err)
			} else if hit {
				c = resolved{chapter: entry.Chapter, fetchedAt: entry.FetchedAt}
				fromCache = true
				run.CacheHits++
			}
		}

		if !fromCache {
			fetched, err := o.source.FetchChapter(ctx, run.WorkID, ref)
			if err != nil {
				var fetchErr *model.ChapterFetchError
				if !errors.As(err, &fetchErr) {
					err = &model.ChapterFetchError{Index: idx, Cause: err}
				}
				return nil, err
			}
			run.Fetched++
			c = resolved{chapter: *fetched, fetchedAt: o.now().UTC().Truncate(time.Second)}
			if o.cache != nil {
				entry, err := o.cache.Put(ctx, run.WorkID, idx, *fetched)
				if err != nil {
					log.WithError(err).Warn("Failed to cache chapter")
					run.CacheWriteFailures++
					run.warn("%v", err)
				} else {
					c.fetchedAt = entry.FetchedAt
				}
			}
		}

		if c.chapter.Index == 0 {
			c.chapter.Index = idx
		}
		if c.chapter.Section == "" {
			c.chapter.Section = ref.Section
		}
		out = append(out, c)
		run.LastCompletedIndex = idx
		log.WithField("cached", fromCache).Debug("Chapter resolved")
		if o.onProgress != nil {
			o.onProgress(Progress{Index: idx, Done: len(out), Total: total, FromCache: fromCache})
		}
	}
	return out, nil
}

// processImages loads and processes every distinct image of the chapters.
// Images that cannot be loaded or decoded are left out, counted and returned
// by src in the skipped set.
func (o *Orchestrator) processImages(ctx context.Context, run *Run, chapters []resolved, profile model.ImageSizeProfile) (images map[string]*imageproc.Image, skipped map[string]bool) {
	images = map[string]*imageproc.Image{}
	skipped = map[string]bool{}
	seen := map[string]bool{}

	for _, c := range chapters {
		for _, ref := range c.chapter.Images {
			if seen[ref.Src] {
				continue
			}
			seen[ref.Src] = true
			log := o.logger.WithFields(logrus.Fields{"work": run.WorkID, "chapter": c.chapter.Index, "url": ref.URL})

			data, err := o.imageBytes(ctx, run, ref.URL)
			if err != nil {
				log.WithError(err).Warn("Skipping image that could not be downloaded")
				skipped[ref.Src] = true
				run.ImagesSkipped++
				run.warn("chapter %d: image %s skipped: %v", c.chapter.Index, ref.URL, err)
				continue
			}
			img, err := imageproc.Process(data, profile)
			if err != nil {
				var procErr *model.ImageProcessError
				if errors.As(err, &procErr) && procErr.URL == "" {
					procErr.URL = ref.URL
				}
				log.WithError(err).Warn("Skipping image that could not be processed")
				skipped[ref.Src] = true
				run.ImagesSkipped++
				run.warn("chapter %d: %v", c.chapter.Index, err)
				continue
			}
			images[ref.Src] = img
		}
	}
	return images, skipped
}

func (o *Orchestrator) imageBytes(ctx context.Context, run *Run, url string) ([]byte, error) {
	if o.cache != nil {
		data, ok, err := o.cache.GetImage(ctx, run.WorkID, url)
		if err != nil {
			o.logger.WithError(err).WithField("url", url).Warn("Ignoring unreadable cached image")
		} else if ok {
			run.ImagesFromCache++
			return data, nil
		}
	}
	data, err := o.source.FetchImage(ctx, url)
	if err != nil {
		return nil, err
	}
	run.ImagesFetched++
	if o.cache != nil {
		if err := o.cache.PutImage(ctx, run.WorkID, url, data); err != nil {
			o.logger.WithError(err).WithField("url", url).Warn("Failed to cache image")
			run.CacheWriteFailures++
			run.warn("%v", err)
		}
	}
	return data, nil
}

// ClearCache removes the cached data of one work, or of every work when id is
// empty. It never touches the network.
func ClearCache(ctx context.Context, cache Cache, id model.WorkID) error {
	if cache == nil {
		return errors.New("cache is not available")
	}
	if id == "" {
		return cache.InvalidateAll(ctx)
	}
	return cache.InvalidateWork(ctx, id)
}
