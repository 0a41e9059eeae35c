package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"narou2epub/cache"
	"narou2epub/config"
	"narou2epub/downloader/narou"
	"narou2epub/logging"
	"narou2epub/model"
	"narou2epub/utils"
)

// environment holds the settings and logger shared by every subcommand.
type environment struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func newEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, found, err := config.Load(globalArgs.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if globalArgs.logLevel != "" {
		cfg.Logging.Level = globalArgs.logLevel
	}
	if globalArgs.renderer != "" {
		cfg.Network.Renderer = strings.ToLower(strings.TrimSpace(globalArgs.renderer))
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	if !found {
		logger.WithField("path", globalArgs.configPath).Debug("Config file not found, using defaults")
	}
	return &environment{cfg: cfg, logger: logger}, nil
}

func (e *environment) openCache() (*cache.Store, error) {
	store, err := cache.Open(e.cfg.CacheDBPath(), e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return store, nil
}

// newSource builds the syosetu.com client. The returned func releases the
// browser when the chrome renderer is used.
func (e *environment) newSource() (model.Source, func()) {
	n := e.cfg.Network
	opts := narou.Options{
		UserAgent: n.UserAgent,
		Timeout:   n.Timeout(),
		Retry: utils.RetryPolicy{
			Attempts:   n.MaxAttempts,
			Backoff:    n.Backoff(),
			MaxBackoff: time.Minute,
		},
		DownloadInterval: n.DownloadInterval(),
		WaitSteps:        n.WaitSteps,
		StepsWait:        n.StepsWait(),
		APIInterval:      n.APIInterval(),
		Logger:           e.logger,
	}
	closeFn := func() {}
	if n.Renderer == config.RendererChrome {
		browser := narou.NewChromeGetter(n.UserAgent, n.Timeout(), e.logger)
		opts.Pages = browser
		closeFn = func() {
			if err := browser.Close(); err != nil {
				e.logger.WithError(err).Warn("Failed to close browser")
			}
		}
	}
	return narou.New(opts), closeFn
}
