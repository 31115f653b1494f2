package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
	"x-media-scraper/internal/database"
	"x-media-scraper/internal/export"
	"x-media-scraper/internal/monitoring"
	"x-media-scraper/internal/scraper"
	"x-media-scraper/internal/utils"
	"x-media-scraper/pkg/types"
)

func main() {
	var (
		configFile  = flag.String("config", config.DefaultConfigFile, "Configuration file path")
		username    = flag.String("user", "", "Account to collect (overrides TARGET_USERNAME)")
		metricsFile = flag.String("metrics", "data/metrics.json", "Metrics file path")
		extractCmd  = flag.Bool("extract-cookies", false, "Show instructions for extracting cookies")
	)
	flag.Parse()

	if *extractCmd {
		scraper.ExtractCookiesFromBrowser()
		return
	}

	cfg, err := config.Load(*configFile, config.WithTargetUsername(*username))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := utils.SetupLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer logCloser.Close()

	target := cfg.Twitter.TargetUsername
	logger.Infof("Target user: @%s", target)
	logger.Infof("Output directory: %s", cfg.Output.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	session, err := scraper.NewSession(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start browser session: %v", err)
	}
	defer session.Close()

	mediaScraper := scraper.NewMediaScraper(session, cfg, logger)
	if db != nil {
		mediaScraper.OnNewPosts = func(posts []types.Post) {
			if err := db.SavePosts(posts); err != nil {
				logger.Warnf("Failed to archive %d posts: %v", len(posts), err)
			}
		}
	}

	if err := mediaScraper.Initialize(ctx); err != nil {
		session.Close()
		logger.Fatalf("Failed to initialize scraper: %v", err)
	}

	start := time.Now()
	result, err := mediaScraper.ScrapeUserMedia(ctx, target)
	if result == nil {
		session.Close()
		logger.Fatalf("Failed to collect media posts of @%s: %v", target, err)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Collection stopped early: %v", err)
	}

	path, writeErr := export.WritePosts(cfg.Output.Dir, target, result.Posts, time.Now())
	if writeErr != nil {
		session.Close()
		logger.Fatalf("Failed to save CSV: %v", writeErr)
	}
	idsPath, writeErr := export.WritePostIDs(cfg.Output.Dir, target, result.Posts, time.Now())
	if writeErr != nil {
		logger.Errorf("Failed to save post id list: %v", writeErr)
	} else {
		logger.Infof("Post ids written to %s", idsPath)
	}

	monitor := monitoring.NewMonitor(logger, *metricsFile)
	monitor.RecordCollectRun(target, len(result.Posts), result.Scrolls, string(result.StopReason), time.Since(start))

	logSummary(logger, result, path)

	if err != nil {
		logger.Warn("Run interrupted; the CSV holds the posts collected so far")
		session.Close()
		os.Exit(1)
	}
}

func logSummary(logger *logrus.Logger, result *scraper.CollectResult, path string) {
	videos := 0
	for _, post := range result.Posts {
		if post.MediaType == types.MediaVideo {
			videos++
		}
	}

	logger.Info("=== Collection Summary ===")
	logger.Infof("Total media posts: %d", len(result.Posts))
	logger.Infof("Video posts: %d", videos)
	logger.Infof("Scroll iterations: %d (%s)", result.Iterations, result.StopReason)
	logger.Infof("CSV saved to: %s", path)
}
