package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
)

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// BrowserSession is a chromedp-driven Chrome tab.
type BrowserSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	logger      *logrus.Logger
}

func NewBrowserSession(parent context.Context, cfg *config.Config, logger *logrus.Logger) (*BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Scraper.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.Twitter.Auth.UserAgent),
	)
	if cfg.Scraper.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.Scraper.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Printf))

	bs := &BrowserSession{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     cfg.TimeoutDuration(),
		logger:      logger,
	}

	// The first Run launches the browser.
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx)
		return err
	}))
	if err != nil {
		bs.Close()
		return nil, fmt.Errorf("failed to start Chrome: %w", err)
	}
	return bs, nil
}

// run executes actions on the tab; ctx only gates the call since chromedp
// actions must run on the tab's own context.
func (bs *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(bs.ctx, actions...)
}

func (bs *BrowserSession) runWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(bs.ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, actions...)
}

func (bs *BrowserSession) Navigate(ctx context.Context, url string) error {
	bs.logger.Debugf("Navigating to %s", url)
	if err := bs.runWithTimeout(ctx, bs.timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// ScrollBy scrolls by pixels, then to the bottom of the page, then presses
// PageDown a few times so lazy-loaded grids notice the movement.
func (bs *BrowserSession) ScrollBy(ctx context.Context, pixels int) error {
	return bs.run(ctx,
		chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d);", pixels), nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.KeyEvent(kb.PageDown),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.KeyEvent(kb.PageDown),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.KeyEvent(kb.PageDown),
		chromedp.Sleep(200*time.Millisecond),
	)
}

func (bs *BrowserSession) RenderedPosts(ctx context.Context) ([]RawPost, error) {
	var html string
	if err := bs.runWithTimeout(ctx, bs.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to read page source: %w", err)
	}
	return ExtractRenderedPosts(html)
}

func (bs *BrowserSession) Wait(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func (bs *BrowserSession) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := bs.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (bs *BrowserSession) SetCookies(ctx context.Context, cookies []Cookie) error {
	return bs.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HttpOnly).
				Do(ctx)
			if err != nil {
				bs.logger.Warnf("Failed to set cookie %s: %v", cookie.Name, err)
				continue
			}
		}
		return nil
	}))
}

func (bs *BrowserSession) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []Cookie
	err := bs.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		got, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range got {
			cookies = append(cookies, Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
				Expires:  unixExpiry(c.Expires),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read browser cookies: %w", err)
	}
	return cookies, nil
}

func (bs *BrowserSession) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	script := fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector))
	if err := bs.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (bs *BrowserSession) BodyText(ctx context.Context) (string, error) {
	var text string
	if err := bs.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (bs *BrowserSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := bs.runWithTimeout(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return nil
}

func (bs *BrowserSession) Type(ctx context.Context, selector, text string) error {
	return bs.runWithTimeout(ctx, bs.timeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// ClickButton clicks the first visible button whose text contains one of the
// labels.
func (bs *BrowserSession) ClickButton(ctx context.Context, labels []string) error {
	encoded, err := json.Marshal(labels)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
		const labels = %s;
		const buttons = Array.from(document.querySelectorAll('button, div[role="button"]'));
		for (const b of buttons) {
			const text = (b.innerText || '').trim();
			if (b.offsetParent !== null && labels.some(l => text.includes(l))) {
				b.click();
				return true;
			}
		}
		return false;
	})()`, encoded)

	var clicked bool
	if err := bs.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("%w: button %v", ErrElementNotFound, labels)
	}
	return nil
}

func (bs *BrowserSession) Close() {
	bs.cancel()
	bs.allocCancel()
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
