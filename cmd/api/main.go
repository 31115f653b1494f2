package main

import (
	"flag"
	"log"

	"x-media-scraper/internal/api"
	"x-media-scraper/internal/config"
	"x-media-scraper/internal/database"
	"x-media-scraper/internal/utils"
)

func main() {
	var (
		configFile = flag.String("config", config.DefaultConfigFile, "Configuration file path")
		port       = flag.String("port", "8080", "API server port")
	)
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

	if !cfg.Database.Enabled {
		logger.Fatal("The API serves the posts archive; set DB_ENABLED=true")
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	server := api.NewServer(db, logger, *port)

	logger.Infof("Starting X Media Scraper API server on port %s", *port)
	logger.Info("Available endpoints:")
	logger.Info("  GET  /api/posts - List posts with pagination")
	logger.Info("  GET  /api/posts/user/{name} - Get posts by user")
	logger.Info("  GET  /api/stats - Get archive statistics")
	logger.Info("  GET  /api/export/csv - Export posts to CSV")
	logger.Info("  GET  /api/health - Health check")

	if err := server.Start(); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
