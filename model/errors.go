package model

import (
	"errors"
	"fmt"
)

// ErrEmptyBook is wrapped by AssemblyError when there is nothing to assemble.
var ErrEmptyBook = errors.New("no chapters to assemble")

// InvalidRangeError reports a requested chapter range that cannot be served.
type InvalidRangeError struct {
	Range  ChapterRange
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid chapter range %s: %s", e.Range, e.Reason)
}

// WorkNotFoundError reports a work code the source does not know.
type WorkNotFoundError struct {
	WorkID WorkID
}

func (e *WorkNotFoundError) Error() string {
	return fmt.Sprintf("work not found: %s", e.WorkID)
}

// SourceUnavailableError reports a listing fetch that failed after retries.
type SourceUnavailableError struct {
	WorkID WorkID
	Cause  error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable for %s: %v", e.WorkID, e.Cause)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Cause
}

// ChapterFetchError reports a chapter that could not be fetched after retries.
type ChapterFetchError struct {
	Index int
	Cause error
}

func (e *ChapterFetchError) Error() string {
	return fmt.Sprintf("failed to fetch chapter %d: %v", e.Index, e.Cause)
}

func (e *ChapterFetchError) Unwrap() error {
	return e.Cause
}

// CacheWriteError reports a cache write that did not persist. It is never fatal.
type CacheWriteError struct {
	WorkID WorkID
	Index  int
	Cause  error
}

func (e *CacheWriteError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("failed to cache %s chapter %d: %v", e.WorkID, e.Index, e.Cause)
	}
	return fmt.Sprintf("failed to cache %s: %v", e.WorkID, e.Cause)
}

func (e *CacheWriteError) Unwrap() error {
	return e.Cause
}

// ImageProcessError reports an image that was dropped from its chapter.
type ImageProcessError struct {
	URL   string
	Cause error
}

func (e *ImageProcessError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("failed to process image: %v", e.Cause)
	}
	return fmt.Sprintf("failed to process image %s: %v", e.URL, e.Cause)
}

func (e *ImageProcessError) Unwrap() error {
	return e.Cause
}

// AssemblyError reports a structural problem while building the EPUB.
type AssemblyError struct {
	Cause error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("failed to assemble epub: %v", e.Cause)
}

func (e *AssemblyError) Unwrap() error {
	return e.Cause
}
