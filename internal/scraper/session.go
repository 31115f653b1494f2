package scraper

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
)

var (
	ErrNoBrowser       = errors.New("no suitable browser found for automation")
	ErrSessionRejected = errors.New("could not reach the media page with an authenticated session")
	ErrElementNotFound = errors.New("element not found")
)

// Page is the part of a browser session the collector needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	ScrollBy(ctx context.Context, pixels int) error
	RenderedPosts(ctx context.Context) ([]RawPost, error)
	Wait(ctx context.Context, d time.Duration) error
}

// Session is an authenticated browsing context.
type Session interface {
	Page
	CurrentURL(ctx context.Context) (string, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Cookies(ctx context.Context) ([]Cookie, error)
	Exists(ctx context.Context, selector string) (bool, error)
	BodyText(ctx context.Context) (string, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string) error
	ClickButton(ctx context.Context, labels []string) error
	Close()
}

// NewSession starts chromedp when a Chrome binary is available and falls back
// to Selenium with geckodriver otherwise.
func NewSession(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Session, error) {
	if cfg.Scraper.ChromePath != "" || isChromeAvailable() {
		logger.Info("Using Chrome for browser automation")
		return NewBrowserSession(ctx, cfg, logger)
	}

	logger.Info("Chrome not found, trying Selenium Firefox as fallback...")
	session, err := NewSeleniumSession(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBrowser, err)
	}
	return session, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isChromeAvailable() bool {
	paths := []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}
	for _, path := range paths {
		if _, err := exec.LookPath(path); err == nil {
			return true
		}
	}
	return false
}
