package model

import (
	"fmt"
	"strings"
	"time"
)

// WorkID is the site code of a serialized novel, e.g. "n0498fr".
type WorkID string

// NormalizeWorkID trims and lower-cases a user supplied code.
func NormalizeWorkID(s string) WorkID {
	return WorkID(strings.ToLower(strings.TrimSpace(s)))
}

func (w WorkID) String() string {
	return string(w)
}

// Work holds the metadata of a novel as published by the source.
type Work struct {
	ID     WorkID `json:"id"`
	Title  string `json:"title"`
	Writer string `json:"writer"`
	// Total is the number of published episodes reported by the source.
	Total int `json:"total"`
}

// ChapterRef is one entry of a work's published listing.
type ChapterRef struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Section string `json:"section,omitempty"`
	// URL is the episode page; empty means the source default for Index.
	URL string `json:"url,omitempty"`
}

// Listing is the result of a chapter listing fetch.
type Listing struct {
	Work Work `json:"work"`
	// URL is the table of contents page of the work.
	URL       string       `json:"url,omitempty"`
	Sections  []string     `json:"sections,omitempty"`
	Chapters  []ChapterRef `json:"chapters"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Bounds returns the lowest and highest chapter index of the listing.
func (l *Listing) Bounds() (int, int, bool) {
	if l == nil || len(l.Chapters) == 0 {
		return 0, 0, false
	}
	lo, hi := l.Chapters[0].Index, l.Chapters[0].Index
	for _, c := range l.Chapters[1:] {
		if c.Index < lo {
			lo = c.Index
		}
		if c.Index > hi {
			hi = c.Index
		}
	}
	return lo, hi, true
}

// Ref looks up the listing entry with the given index.
func (l *Listing) Ref(index int) (ChapterRef, bool) {
	for _, c := range l.Chapters {
		if c.Index == index {
			return c, true
		}
	}
	return ChapterRef{}, false
}

// ImageRef is an image embedded in a chapter body. Src is the attribute value
// exactly as it appears in the body, URL is the absolute download location.
type ImageRef struct {
	Src string `json:"src"`
	URL string `json:"url"`
}

// Chapter is the content of one episode. Values are never modified in place;
// transformations return a new Chapter.
type Chapter struct {
	WorkID  WorkID     `json:"work_id"`
	Index   int        `json:"index"`
	Title   string     `json:"title"`
	Section string     `json:"section,omitempty"`
	Body    string     `json:"body"`
	Images  []ImageRef `json:"images,omitempty"`
}

// WithBody returns a copy of the chapter carrying a different body.
func (c Chapter) WithBody(body string) Chapter {
	c.Body = body
	c.Images = append([]ImageRef(nil), c.Images...)
	return c
}

// DisplayTitle falls back to "第N話" for untitled episodes.
func (c Chapter) DisplayTitle() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	return fmt.Sprintf("第%d話", c.Index)
}

// CacheEntry is a persisted raw (pre-proofreading) chapter.
type CacheEntry struct {
	WorkID    WorkID    `json:"work_id"`
	Index     int       `json:"index"`
	Chapter   Chapter   `json:"chapter"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ChapterRange is an inclusive range of chapter indices. A zero bound means
// "not given".
type ChapterRange struct {
	Start int
	End   int
}

// Validate checks the caller supplied bounds before any listing is known.
func (r ChapterRange) Validate() error {
	if r.Start < 0 || r.End < 0 {
		return &InvalidRangeError{Range: r, Reason: "bounds must be >= 1"}
	}
	if r.Start > 0 && r.End > 0 && r.End < r.Start {
		return &InvalidRangeError{Range: r, Reason: "end is before start"}
	}
	return nil
}

// Resolve clamps the range to the listing bounds [lo, hi].
func (r ChapterRange) Resolve(lo, hi int) (ChapterRange, error) {
	if err := r.Validate(); err != nil {
		return ChapterRange{}, err
	}
	out := ChapterRange{Start: lo, End: hi}
	if r.Start > 0 {
		out.Start = max(r.Start, lo)
	}
	if r.End > 0 {
		out.End = min(r.End, hi)
	}
	if r.Start > hi || (r.End > 0 && r.End < lo) {
		return ChapterRange{}, &InvalidRangeError{Range: r, Reason: fmt.Sprintf("no overlap with published chapters %d-%d", lo, hi)}
	}
	if out.Start > out.End {
		return ChapterRange{}, &InvalidRangeError{Range: r, Reason: fmt.Sprintf("empty after resolving against %d-%d", lo, hi)}
	}
	return out, nil
}

func (r ChapterRange) String() string {
	start, end := "first", "last"
	if r.Start > 0 {
		start = fmt.Sprint(r.Start)
	}
	if r.End > 0 {
		end = fmt.Sprint(r.End)
	}
	return start + "-" + end
}
