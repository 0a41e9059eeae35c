package model

import "context"

// Source is the network boundary of a conversion run. Implementations retry
// internally and report failures with the typed errors of this package.
type Source interface {
	// ListChapters returns the work metadata and its full published listing.
	ListChapters(ctx context.Context, id WorkID) (*Listing, error)
	// FetchChapter returns one raw chapter or a *ChapterFetchError.
	FetchChapter(ctx context.Context, id WorkID, ref ChapterRef) (*Chapter, error)
	// FetchImage downloads an embedded image.
	FetchImage(ctx context.Context, url string) ([]byte, error)
}
