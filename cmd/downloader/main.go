package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"x-media-scraper/internal/config"
	"x-media-scraper/internal/database"
	"x-media-scraper/internal/downloader"
	"x-media-scraper/internal/export"
	"x-media-scraper/internal/monitoring"
	"x-media-scraper/internal/scraper"
	"x-media-scraper/internal/utils"
	"x-media-scraper/pkg/types"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [posts.csv] [videos_dir]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Without a CSV argument the newest {TARGET_USERNAME}_media_posts_full_*.csv in OUTPUT_DIR is used.")
	flag.PrintDefaults()
}

func main() {
	var (
		configFile  = flag.String("config", config.DefaultConfigFile, "Configuration file path")
		metricsFile = flag.String("metrics", "data/metrics.json", "Metrics file path")
		onlyUser    = flag.String("only-user", "", "Only download posts of this account")
		since       = flag.Duration("since", 0, "Only download posts collected within this period (e.g. 72h)")
	)
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := utils.SetupLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer logCloser.Close()

	csvPath := flag.Arg(0)
	if csvPath == "" {
		csvPath, err = export.FindLatest(cfg.Output.Dir, cfg.Twitter.TargetUsername)
		if err != nil {
			logger.Fatalf("No CSV to download from: %v", err)
		}
	}
	videosDir := cfg.Output.VideosDir
	if flag.NArg() > 1 {
		videosDir = flag.Arg(1)
	}

	logger.Infof("CSV file: %s", csvPath)
	logger.Infof("Videos directory: %s", videosDir)

	posts, err := export.ReadPosts(csvPath)
	if err != nil {
		logger.Fatalf("Failed to read CSV: %v", err)
	}

	filter := &types.PostFilter{MediaTypes: []types.MediaType{types.MediaVideo}}
	if *onlyUser != "" {
		filter.Usernames = []string{*onlyUser}
	}
	if *since > 0 {
		filter.ScrapedAfter = time.Now().Add(-*since)
	}
	posts, stats := scraper.BatchFilter(posts, filter)
	logger.Infof("Video posts to process: %s", stats)

	index, err := downloader.BuildIndex(videosDir)
	if err != nil {
		logger.Fatalf("Failed to scan videos directory: %v", err)
	}
	logger.Infof("Found %d existing videos", index.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher := downloader.NewYtDlpFetcher(downloader.OptionsFromConfig(cfg), logger)
	batch := downloader.NewBatch(fetcher, index, videosDir, cfg.Twitter.BaseURL, cfg.DownloadDelay(), logger)

	if cfg.Database.Enabled {
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Warnf("Archive unavailable, downloads will not be recorded: %v", err)
		} else {
			defer db.Close()
			batch.Recorder = db
		}
	}

	start := time.Now()
	summary, err := batch.Run(ctx, posts)

	monitor := monitoring.NewMonitor(logger, *metricsFile)
	monitor.RecordDownloadRun(cfg.Twitter.TargetUsername, summary, time.Since(start))

	logger.Infof("Downloads finished. %s", summary)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Interrupted; re-run to fetch the remaining videos")
		} else {
			logger.Errorf("Download batch stopped: %v", err)
		}
		os.Exit(1)
	}
	if summary.RateLimited > 0 {
		logger.Warnf("%d downloads were rate limited; re-run later to retry them", summary.RateLimited)
	}
}
