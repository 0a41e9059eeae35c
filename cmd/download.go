package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"narou2epub/config"
	"narou2epub/epub"
	"narou2epub/model"
	"narou2epub/pipeline"
	"narou2epub/proofread"
)

type downloadArguments struct {
	start      int
	end        int
	imageSize  string
	outputPath string
	noCache    bool
	clearCache bool
	refresh    bool
}

var downloadArgs downloadArguments

func init() {
	flags := RootCmd.Flags()
	flags.IntVar(&downloadArgs.start, "start", 0, "first chapter to include (default: first published)")
	flags.IntVar(&downloadArgs.end, "end", 0, "last chapter to include (default: last published)")
	flags.StringVar(&downloadArgs.imageSize, "image-size", "", "fit images to a reader: small, medium or large (default: original)")
	flags.StringVarP(&downloadArgs.outputPath, "output", "o", "", "output directory (default from config: output)")
	flags.BoolVar(&downloadArgs.noCache, "no-cache", false, "neither read nor write the chapter cache")
	flags.BoolVar(&downloadArgs.clearCache, "clear-cache", false, "remove cached data of the given work, or of all works, and exit")
	flags.BoolVar(&downloadArgs.refresh, "refresh", false, "fetch the chapter listing again even if it is cached")
}

func runDownload(cmd *cobra.Command, args []string) error {
	var id model.WorkID
	if len(args) == 1 {
		id = model.NormalizeWorkID(args[0])
	}

	env, err := newEnvironment(cmd)
	if err != nil {
		return err
	}

	if downloadArgs.clearCache {
		return runClearCache(cmd, env, id)
	}
	if id == "" {
		return errors.New("work id is required (e.g. narou2epub n0498fr)")
	}
	if cmd.Flags().Changed("start") && downloadArgs.start < 1 {
		return &model.InvalidRangeError{Range: model.ChapterRange{Start: downloadArgs.start, End: downloadArgs.end}, Reason: "--start must be >= 1"}
	}
	if cmd.Flags().Changed("end") && downloadArgs.end < 1 {
		return &model.InvalidRangeError{Range: model.ChapterRange{Start: downloadArgs.start, End: downloadArgs.end}, Reason: "--end must be >= 1"}
	}
	profile, err := model.ParseImageSizeProfile(downloadArgs.imageSize)
	if err != nil {
		return err
	}
	if downloadArgs.outputPath != "" {
		if env.cfg.Paths.OutputDir, err = config.ExpandPath(downloadArgs.outputPath); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store pipeline.Cache
	if !downloadArgs.noCache {
		s, err := env.openCache()
		if err != nil {
			env.logger.WithError(err).Warn("Cache unavailable, continuing without it")
		} else {
			defer s.Close()
			store = s
		}
	}

	source, closeSource := env.newSource()
	defer closeSource()

	bar := newChapterProgress(cmd.ErrOrStderr(), env.logger)
	defer bar.Finish()

	orchestrator := pipeline.New(pipeline.Options{
		Source:      source,
		Cache:       store,
		Proofreader: proofread.New(),
		Assembler:   epub.NewAssembler(env.cfg.Paths.OutputDir, env.logger),
		Logger:      env.logger,
		OnProgress:  bar.Update,
	})
	run, err := orchestrator.Run(ctx, pipeline.Request{
		WorkID:         id,
		Range:          model.ChapterRange{Start: downloadArgs.start, End: downloadArgs.end},
		Profile:        profile,
		RefreshListing: downloadArgs.refresh,
	})
	bar.Finish()
	if err != nil {
		return describeFailure(run, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary(run))
	return nil
}

func runClearCache(cmd *cobra.Command, env *environment, id model.WorkID) error {
	store, err := env.openCache()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := pipeline.ClearCache(cmd.Context(), store, id); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	if id == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared all cached works")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared cache of %s\n", id)
	}
	return nil
}

func summary(run *pipeline.Run) string {
	return fmt.Sprintf("Wrote %s (%s): chapters %d-%d, %d from cache, %d fetched, %d images, %d images skipped, %d cache write failures",
		run.Output.Path,
		humanize.Bytes(uint64(run.Output.Size)),
		run.Range.Start, run.Range.End,
		run.CacheHits, run.Fetched,
		run.ImagesEmbedded, run.ImagesSkipped,
		run.CacheWriteFailures,
	)
}

// describeFailure adds the resume point to failures that stop the run midway.
// Other typed errors already carry a distinct message.
func describeFailure(run *pipeline.Run, err error) error {
	var fetchErr *model.ChapterFetchError
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("interrupted after chapter %d, no EPUB written: %w", run.LastCompletedIndex, err)
	case errors.As(err, &fetchErr):
		return fmt.Errorf("no EPUB written, last completed chapter is %d: %w", run.LastCompletedIndex, err)
	default:
		return err
	}
}
