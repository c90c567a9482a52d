package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/pithecene-io/svgswap/log"
)

// BrowserOptions configures the browser launched for each conversion.
type BrowserOptions struct {
	// Headless hides the browser window. The default is a visible window.
	Headless bool
	// ExecPath overrides the Chrome executable.
	ExecPath string
	// Proxy is passed as --proxy-server when set.
	Proxy string
	// NoSandbox disables the Chrome sandbox (containers, CI).
	NoSandbox bool
}

func (o BrowserOptions) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", o.Headless),
		chromedp.WindowSize(1280, 900),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(o.Proxy))
	}
	if o.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

// scopedBrowser is one browser process with a private download directory.
// Close releases both on every exit path.
type scopedBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
	downloadDir string
	downloads   *downloadTracker
}

// launchBrowser starts a browser and routes its downloads into a fresh
// temp directory. The browser lives until Close or until ctx is done.
func launchBrowser(ctx context.Context, opts BrowserOptions, logger *log.Logger) (*scopedBrowser, error) {
	dir, err := os.MkdirTemp("", "svgswap-download-")
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts.allocatorOptions()...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Debugf),
	)

	b := &scopedBrowser{
		ctx:         browserCtx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
		downloadDir: dir,
		downloads:   newDownloadTracker(),
	}
	chromedp.ListenTarget(browserCtx, b.downloads.handle)

	if err := chromedp.Run(browserCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
	); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Close shuts the browser down and removes the download directory.
func (b *scopedBrowser) Close() {
	b.cancel()
	b.cancelAlloc()
	_ = os.RemoveAll(b.downloadDir)
}

// run executes actions in the browser tab, bounded by ctx as well as by
// the browser's own lifetime.
func (b *scopedBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// downloadPath is where a finished download with the given GUID lives.
func (b *scopedBrowser) downloadPath(guid string) string {
	return filepath.Join(b.downloadDir, guid)
}

type downloadResult struct {
	guid     string
	canceled bool
}

// downloadTracker turns download progress events into completions.
// Downloads are named by GUID (AllowAndName behavior).
type downloadTracker struct {
	mu      sync.Mutex
	results chan downloadResult
}

func newDownloadTracker() *downloadTracker {
	return &downloadTracker{results: make(chan downloadResult, 8)}
}

func (d *downloadTracker) handle(ev any) {
	p, ok := ev.(*browser.EventDownloadProgress)
	if !ok {
		return
	}
	var res downloadResult
	switch p.State {
	case browser.DownloadProgressStateCompleted:
		res = downloadResult{guid: p.GUID}
	case browser.DownloadProgressStateCanceled:
		res = downloadResult{guid: p.GUID, canceled: true}
	default:
		return
	}
	select {
	case d.results <- res:
	default:
	}
}

// reset drops results of earlier downloads.
func (d *downloadTracker) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		select {
		case <-d.results:
		default:
			return
		}
	}
}

// wait blocks until the next download finishes and returns its GUID.
func (d *downloadTracker) wait(ctx context.Context) (string, error) {
	select {
	case res := <-d.results:
		if res.canceled {
			return "", fmt.Errorf("download %s canceled", res.guid)
		}
		return res.guid, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
