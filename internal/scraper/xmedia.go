package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
	"x-media-scraper/pkg/types"
)

// MediaScraper wires cookie loading, navigation and the collector for one
// browser session.
type MediaScraper struct {
	session     Session
	authManager *AuthManager
	cfg         *config.Config
	logger      *logrus.Logger

	// OnNewPosts is handed to the collector.
	OnNewPosts func([]types.Post)
}

func NewMediaScraper(session Session, cfg *config.Config, logger *logrus.Logger) *MediaScraper {
	return &MediaScraper{
		session:     session,
		authManager: NewAuthManager(cfg.Twitter.Auth.CookiesFile, logger),
		cfg:         cfg,
		logger:      logger,
	}
}

// Initialize loads the stored cookies into the browser. A missing or invalid
// cookie file is not fatal; navigation falls back to logging in.
func (ms *MediaScraper) Initialize(ctx context.Context) error {
	ms.logger.Info("Initializing X media scraper...")

	cookies, err := ms.authManager.LoadCookies()
	if err != nil {
		ms.logger.Warnf("Continuing without stored cookies: %v", err)
		return nil
	}
	if err := ms.authManager.ValidateCookieFormat(); err != nil {
		ms.logger.Warnf("Stored cookies look incomplete: %v", err)
	}

	// Cookies can only be set once the browser is on the domain.
	if err := ms.session.Navigate(ctx, ms.cfg.Twitter.BaseURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", ms.cfg.Twitter.BaseURL, err)
	}
	if err := ms.session.SetCookies(ctx, cookies); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	ms.logger.Info("X media scraper initialized successfully")
	return nil
}

// ScrapeUserMedia opens the user's media page and collects its posts. When
// the run is cancelled the partial result is returned with the error.
func (ms *MediaScraper) ScrapeUserMedia(ctx context.Context, username string) (*CollectResult, error) {
	ms.logger.Infof("Starting to scrape media of @%s", username)

	navigator := NewNavigator(ms.session, NavigatorOptions{
		BaseURL:         ms.cfg.Twitter.BaseURL,
		WaitAfterLoad:   config.Seconds(ms.cfg.Scraper.WaitAfterLoad),
		ElementTimeout:  ms.cfg.TimeoutDuration(),
		ManualLoginWait: time.Duration(ms.cfg.Scraper.ManualLoginWait) * time.Second,
		Headless:        ms.cfg.Scraper.Headless,
		Username:        ms.cfg.Twitter.Auth.Username,
		Password:        ms.cfg.Twitter.Auth.Password,
	}, ms.logger)

	if err := navigator.ToMedia(ctx, username); err != nil {
		return nil, err
	}

	if navigator.LoggedIn {
		ms.persistSessionCookies(ctx)
	}

	collector := NewCollector(ms.session, username, ms.cfg.Twitter.BaseURL, OptionsFromConfig(ms.cfg), ms.logger)
	collector.OnNewPosts = ms.OnNewPosts

	result, err := collector.Collect(ctx)
	if err != nil {
		return result, err
	}

	ms.logger.Infof("[COMPLETED] Scraping completed: %d media posts found", len(result.Posts))
	return result, nil
}

func (ms *MediaScraper) persistSessionCookies(ctx context.Context) {
	cookies, err := ms.session.Cookies(ctx)
	if err != nil {
		ms.logger.Warnf("Failed to read session cookies: %v", err)
		return
	}
	if err := ms.authManager.SaveCookies(cookies); err != nil {
		ms.logger.Warnf("Failed to save session cookies: %v", err)
	}
}
