package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// BrowserFetcher renders the page in headless Chromium, for tables built by JavaScript.
type BrowserFetcher struct {
	timeout time.Duration
	waitFor string
}

// NewBrowserFetcher waits up to timeout for waitFor to appear before reading the DOM.
func NewBrowserFetcher(timeout time.Duration, waitFor string) *BrowserFetcher {
	return &BrowserFetcher{timeout: timeout, waitFor: waitFor}
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	logger.Println("Launching headless browser...")
	browser, err := launchBrowser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}
	defer browser.MustClose()

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer page.MustClose()

	var html string
	err = rod.Try(func() {
		p := page.Context(ctx).Timeout(f.timeout)

		logger.Printf("Navigating to: %s", url)
		p.MustNavigate(url)
		p.MustWaitStable()

		if f.waitFor != "" {
			logger.Printf("Waiting for: %s", f.waitFor)
			p.MustElement(f.waitFor)
		}
		html = p.MustHTML()
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}
	return html, nil
}

func launchBrowser(ctx context.Context) (*rod.Browser, error) {
	l := launcher.New().Context(ctx).Headless(true).NoSandbox(true)
	u, err := l.Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().Context(ctx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	return browser, nil
}
