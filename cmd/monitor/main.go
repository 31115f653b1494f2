package main

import (
	"flag"
	"fmt"
	"log"

	"x-media-scraper/internal/config"
	"x-media-scraper/internal/database"
	"x-media-scraper/internal/monitoring"
	"x-media-scraper/internal/utils"
)

func main() {
	var (
		configFile  = flag.String("config", config.DefaultConfigFile, "Configuration file path")
		metricsFile = flag.String("metrics", "data/metrics.json", "Metrics file path")
		report      = flag.Bool("report", false, "Generate and display monitoring report")
		alerts      = flag.Bool("alerts", false, "Check and display alerts")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := utils.SetupLogger(cfg.Logging.Level, "")
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer logCloser.Close()

	monitor := monitoring.NewMonitor(logger, *metricsFile)

	if *report {
		fmt.Println(monitor.GenerateReport())

		if !cfg.Database.Enabled {
			return
		}
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Errorf("Failed to connect to database: %v", err)
			return
		}
		defer db.Close()

		stats, err := db.GetScrapingStats()
		if err != nil {
			logger.Errorf("Failed to get database stats: %v", err)
			return
		}
		fmt.Println("\nArchive Statistics:")
		fmt.Printf("- Total Posts: %v\n", stats["total_posts"])
		fmt.Printf("- Downloaded Videos: %v\n", stats["downloaded_videos"])
		fmt.Printf("- Users Scraped: %v\n", stats["users_scraped"])
		fmt.Printf("- Posts by Media Type: %v\n", stats["posts_by_media_type"])
		fmt.Printf("- Last Scraped: %v\n", stats["last_scraped_at"])
		return
	}

	if *alerts {
		alertManager := monitoring.NewAlertManager(monitor, logger)
		active := alertManager.CheckAlerts()

		if len(active) == 0 {
			fmt.Println("✅ No alerts - system is healthy")
		} else {
			fmt.Println("⚠️  Active Alerts:")
			for _, alert := range active {
				fmt.Printf("  - %s\n", alert)
			}
			alertManager.SendAlerts(active)
		}
		return
	}

	health := monitor.GetHealthStatus()
	fmt.Println("X Media Scraper Status:")
	fmt.Printf("- Status: %s\n", health["status"])
	fmt.Printf("- Last Collect: %s\n", health["last_collect"])
	fmt.Printf("- Last Download: %s\n", health["last_download"])
	fmt.Printf("- Collect Runs: %v\n", health["collect_runs"])
	fmt.Printf("- Download Runs: %v\n", health["download_runs"])
	fmt.Printf("- Error Rate: %s\n", health["error_rate"])
	fmt.Printf("- Average Runtime: %s\n", health["average_runtime"])

	if warning, exists := health["warning"]; exists {
		fmt.Printf("- Warning: %s\n", warning)
	}
}
