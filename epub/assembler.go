package epub

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"narou2epub/logging"
	"narou2epub/model"
	"narou2epub/utils"
)

// FileName is the output name of a book covering chapters first..last.
func FileName(title string, id model.WorkID, first, last int) string {
	return fmt.Sprintf("%s(%s)_%d-%d.epub", utils.CleanFileName(title), id, first, last)
}

// Result describes a written EPUB.
type Result struct {
	Path string
	Size int64
	Stats
}

// Assembler writes books into an output directory.
type Assembler struct {
	outputDir string
	logger    *logrus.Entry
}

func NewAssembler(outputDir string, logger *logrus.Logger) *Assembler {
	return &Assembler{
		outputDir: outputDir,
		logger:    logging.Component(logger, "epub"),
	}
}

// Assemble builds book and moves it into place only once it is complete, so
// the final path either holds a whole EPUB or is left untouched. Errors are
// *model.AssemblyError.
func (a *Assembler) Assemble(ctx context.Context, book *Book) (*Result, error) {
	if err := book.validate(); err != nil {
		return nil, &model.AssemblyError{Cause: err}
	}
	if err := os.MkdirAll(a.outputDir, 0o755); err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to create output directory: %w", err)}
	}
	first := book.Chapters[0].Index
	last := book.Chapters[len(book.Chapters)-1].Index
	path := filepath.Join(a.outputDir, FileName(book.Title, book.WorkID, first, last))

	tmp, err := os.CreateTemp(a.outputDir, ".narou2epub-*.epub.tmp")
	if err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to create temp file: %w", err)}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	stats, err := Build(ctx, book, w)
	if err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to write epub: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to sync epub: %w", err)}
	}
	info, err := tmp.Stat()
	if err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to stat epub: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to close epub: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.AssemblyError{Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, &model.AssemblyError{Cause: fmt.Errorf("failed to move epub into place: %w", err)}
	}
	committed = true

	a.logger.WithFields(logrus.Fields{
		"path":     path,
		"chapters": stats.Chapters,
		"images":   stats.Images,
		"size":     humanize.Bytes(uint64(info.Size())),
	}).Info("EPUB written")

	return &Result{Path: path, Size: info.Size(), Stats: stats}, nil
}
