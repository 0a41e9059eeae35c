package narou

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"narou2epub/logging"
)

// ChromeGetter renders pages in a shared headless Chrome instance. It is
// started lazily on the first Get and must be closed by the caller.
type ChromeGetter struct {
	UserAgent string
	Timeout   time.Duration

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *logrus.Entry
}

// NewChromeGetter returns a getter; Chrome is not started yet.
func NewChromeGetter(userAgent string, timeout time.Duration, logger *logrus.Logger) *ChromeGetter {
	return &ChromeGetter{
		UserAgent: userAgent,
		Timeout:   timeout,
		logger:    logging.Component(logger, "chrome"),
	}
}

func (c *ChromeGetter) init() error {
	if c.browserCtx != nil {
		return nil
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
	)
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	c.allocCancel, c.browserCtx, c.browserCancel = allocCancel, browserCtx, browserCancel
	c.logger.Info("Browser initialized")
	return nil
}

// Get navigates to url and returns the rendered document.
func (c *ChromeGetter) Get(ctx context.Context, url string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.init(); err != nil {
		return "", err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tabCtx, cancel := context.WithTimeout(c.browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookie("over18", "yes").
				WithDomain(".syosetu.com").
				WithPath("/").
				Do(ctx)
		}),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("chromedp execution failed: %w", err)
	}
	return html, nil
}

// Close shuts the browser down.
func (c *ChromeGetter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.browserCtx, c.browserCancel, c.allocCancel = nil, nil, nil
	return nil
}
