package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
	"x-media-scraper/internal/scraper"
)

func main() {
	var (
		configFile = flag.String("config", config.DefaultConfigFile, "Configuration file path")
		browser    = flag.Bool("browser", false, "Open a browser with the cookies and check the session is logged in")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	authManager := scraper.NewAuthManager(cfg.Twitter.Auth.CookiesFile, logger)

	fmt.Printf("Testing cookie loading from %s...\n", authManager.CookiesFile())
	cookies, err := authManager.LoadCookies()
	if err != nil {
		log.Fatalf("Failed to load cookies: %v", err)
	}
	fmt.Printf("Loaded %d cookies\n", len(cookies))

	fmt.Println("Checking required session cookies...")
	if err := authManager.ValidateCookieFormat(); err != nil {
		log.Fatalf("Cookie check failed: %v", err)
	}

	if *browser {
		if err := checkSession(cfg, logger); err != nil {
			log.Fatalf("Session check failed: %v", err)
		}
		fmt.Println("✅ Cookies are valid and the browser session is logged in!")
		return
	}

	fmt.Println("✅ Cookies look valid for an authenticated session")
}

func checkSession(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session, err := scraper.NewSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := scraper.NewMediaScraper(session, cfg, logger).Initialize(ctx); err != nil {
		return err
	}

	fmt.Println("Testing authentication...")
	if err := session.Navigate(ctx, cfg.Twitter.BaseURL+"/home"); err != nil {
		return err
	}
	if err := session.Wait(ctx, config.Seconds(cfg.Scraper.WaitAfterLoad)); err != nil {
		return err
	}

	navigator := scraper.NewNavigator(session, scraper.NavigatorOptions{BaseURL: cfg.Twitter.BaseURL}, logger)
	loggedIn, err := navigator.VerifyLogin(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		return scraper.ErrSessionRejected
	}
	return nil
}
