package pdfreport

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// CaptureEngine turns a staged map document into raster image bytes.
type CaptureEngine interface {
	Capture(ctx context.Context, url string) ([]byte, error)
	Close() error
}

// ChromeEngine captures map documents with a headless Chrome instance. One
// instance is started for the whole batch and must always be closed, so a
// per-route capture failure never leaks the browser process.
type ChromeEngine struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc

	// settleDelay is the bounded wait between page load and screenshot,
	// giving tiles and markers time to finish drawing.
	settleDelay time.Duration
}

// StartChrome launches headless Chrome. Failure here is batch-fatal.
func StartChrome(ctx context.Context, settleDelay time.Duration) (*ChromeEngine, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser, surfacing launch failures now
	// rather than on the first capture.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start capture engine: %w", err)
	}

	return &ChromeEngine{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		settleDelay:   settleDelay,
	}, nil
}

// Capture loads the URL in a fresh tab, waits the settle delay and returns
// a PNG screenshot of the viewport.
func (e *ChromeEngine) Capture(ctx context.Context, url string) ([]byte, error) {
	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}

	var shot []byte
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(1366, 960),
		chromedp.Navigate(url),
		chromedp.Sleep(e.settleDelay),
		chromedp.CaptureScreenshot(&shot),
	)
	if err != nil {
		return nil, fmt.Errorf("capture %s: %w", url, err)
	}
	if len(shot) == 0 {
		return nil, fmt.Errorf("capture %s: empty screenshot", url)
	}

	return shot, nil
}

// Close shuts the browser down.
func (e *ChromeEngine) Close() error {
	e.cancelBrowser()
	e.cancelAlloc()
	return nil
}

// ChromeStarter returns an EngineStarter launching headless Chrome with the
// given settle delay.
func ChromeStarter(settleDelay time.Duration) EngineStarter {
	return func(ctx context.Context) (CaptureEngine, error) {
		return StartChrome(ctx, settleDelay)
	}
}

var _ CaptureEngine = (*ChromeEngine)(nil)
