package cmd

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"narou2epub/pipeline"
)

type progressBar interface {
	Set(int) error
	Finish() error
}

// chapterProgress draws a progress bar for chapter resolution when stderr is
// an interactive terminal and falls back to info logs otherwise.
type chapterProgress struct {
	logger *logrus.Logger
	useBar bool
	newBar func(total int) progressBar
	bar    progressBar
}

func newChapterProgress(out io.Writer, logger *logrus.Logger) *chapterProgress {
	return &chapterProgress{
		logger: logger,
		// Debug logs would tear the bar apart.
		useBar: isTerminal(out) && !logger.IsLevelEnabled(logrus.DebugLevel),
		newBar: func(total int) progressBar {
			return progressbar.NewOptions(total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription("Chapters"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Update is a pipeline.Options.OnProgress callback.
func (p *chapterProgress) Update(ev pipeline.Progress) {
	if !p.useBar {
		source := "fetched"
		if ev.FromCache {
			source = "cache"
		}
		p.logger.WithFields(logrus.Fields{
			"chapter": ev.Index,
			"source":  source,
		}).Infof("Chapter %d/%d", ev.Done, ev.Total)
		return
	}
	if p.bar == nil {
		p.bar = p.newBar(ev.Total)
	}
	if err := p.bar.Set(ev.Done); err != nil {
		p.logger.WithError(err).Debug("Failed to render progress bar")
	}
}

// Finish removes the bar. It is safe to call more than once.
func (p *chapterProgress) Finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		p.logger.WithError(err).Debug("Failed to finish progress bar")
	}
	p.bar = nil
}
