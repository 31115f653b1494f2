package scraper

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"x-media-scraper/internal/config"
	"x-media-scraper/pkg/types"
)

func scraperConfig(cookiesFile string) *config.Config {
	cfg := config.Default()
	cfg.Twitter.TargetUsername = "alice"
	cfg.Twitter.Auth.CookiesFile = cookiesFile
	cfg.Scraper.WaitAfterLoad = 0
	cfg.Scraper.ScrollPauseTime = 0
	cfg.Scraper.MaxScrolls = 10
	cfg.Scraper.MaxConsecutiveNoNewContent = 2
	cfg.Scraper.Headless = true
	return cfg
}

func TestMediaScraperInitializeSetsCookies(t *testing.T) {
	cfg := scraperConfig(writeFile(t, "cookies.txt", netscapeCookies))
	s := newFakeSession()

	ms := NewMediaScraper(s, cfg, testLogger())
	require.NoError(t, ms.Initialize(context.Background()))

	assert.Equal(t, []string{"https://x.com"}, s.visited)
	assert.Len(t, s.setCookies, 2)
}

func TestMediaScraperInitializeWithoutCookieFile(t *testing.T) {
	cfg := scraperConfig(filepath.Join(t.TempDir(), "missing.txt"))
	s := newFakeSession()

	ms := NewMediaScraper(s, cfg, testLogger())
	require.NoError(t, ms.Initialize(context.Background()))
	assert.Empty(t, s.visited)
	assert.Empty(t, s.setCookies)
}

func TestScrapeUserMedia(t *testing.T) {
	cfg := scraperConfig(filepath.Join(t.TempDir(), "cookies.txt"))
	s := newFakeSession()
	s.present[gridCell] = true
	s.batches = [][]string{batchOf("alice", 3, 2), batchOf("alice", 1)}

	var streamed []string
	ms := NewMediaScraper(s, cfg, testLogger())
	ms.OnNewPosts = func(posts []types.Post) {
		streamed = append(streamed, postIDs(posts)...)
	}

	result, err := ms.ScrapeUserMedia(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"3", "2", "1"}, postIDs(result.Posts))
	assert.Equal(t, []string{"3", "2", "1"}, streamed)
	assert.Equal(t, StopSettled, result.StopReason)
}

func TestScrapeUserMediaSavesCookiesAfterLogin(t *testing.T) {
	cookiesFile := filepath.Join(t.TempDir(), "cookies.txt")
	cfg := scraperConfig(cookiesFile)
	cfg.Twitter.Auth.Username = "alice"
	cfg.Twitter.Auth.Password = "pw"

	s := newFakeSession()
	s.present[`input[name="text"]`] = true
	s.present[`input[name="password"]`] = true
	s.afterClick = func(labels []string) {
		if labels[0] == loginLabels[0] {
			s.url = "https://x.com/home"
			s.present[gridCell] = true
		}
	}
	s.cookies = []Cookie{
		{Name: "auth_token", Value: "fresh", Domain: ".x.com", Path: "/"},
		{Name: "ct0", Value: "csrf", Domain: ".x.com", Path: "/"},
	}

	ms := NewMediaScraper(s, cfg, testLogger())
	_, err := ms.ScrapeUserMedia(context.Background(), "alice")
	require.NoError(t, err)

	saved, err := NewAuthManager(cookiesFile, testLogger()).LoadCookies()
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "fresh", saved[0].Value)
}

func TestScrapeUserMediaRejected(t *testing.T) {
	cfg := scraperConfig(filepath.Join(t.TempDir(), "cookies.txt"))

	ms := NewMediaScraper(newFakeSession(), cfg, testLogger())
	result, err := ms.ScrapeUserMedia(context.Background(), "alice")

	assert.ErrorIs(t, err, ErrSessionRejected)
	assert.Nil(t, result)
}
