package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/downloader"
	"x-media-scraper/internal/utils"
)

type Metrics struct {
	CollectRuns       int                   `json:"collect_runs"`
	DownloadRuns      int                   `json:"download_runs"`
	TotalPosts        int                   `json:"total_posts"`
	TotalDownloaded   int                   `json:"total_downloaded"`
	FailedDownloads   int                   `json:"failed_downloads"`
	RateLimited       int                   `json:"rate_limited"`
	IncompleteRuns    int                   `json:"incomplete_runs"`
	LastCollect       time.Time             `json:"last_collect"`
	LastDownload      time.Time             `json:"last_download"`
	AverageCollectRun time.Duration         `json:"average_collect_run"`
	ErrorRate         float64               `json:"error_rate"`
	UserMetrics       map[string]UserMetric `json:"user_metrics"`
}

type UserMetric struct {
	PostsCollected  int           `json:"posts_collected"`
	VideosFetched   int           `json:"videos_fetched"`
	LastCollected   time.Time     `json:"last_collected"`
	LastStopReason  string        `json:"last_stop_reason"`
	LastScrolls     int           `json:"last_scrolls"`
	AverageRunTime  time.Duration `json:"average_run_time"`
	DownloadFailure int           `json:"download_failures"`
}

// Monitor keeps run metrics in a JSON file between invocations.
type Monitor struct {
	mu          sync.Mutex
	metrics     *Metrics
	logger      *logrus.Logger
	metricsFile string
	now         func() time.Time
}

func NewMonitor(logger *logrus.Logger, metricsFile string) *Monitor {
	monitor := &Monitor{
		metrics:     &Metrics{UserMetrics: make(map[string]UserMetric)},
		logger:      logger,
		metricsFile: metricsFile,
		now:         time.Now,
	}
	monitor.loadMetrics()
	return monitor
}

// RecordCollectRun records a finished (or interrupted) collector run.
func (m *Monitor) RecordCollectRun(username string, posts, scrolls int, stopReason string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.metrics.CollectRuns++
	m.metrics.TotalPosts += posts
	m.metrics.LastCollect = now
	m.metrics.AverageCollectRun = runningAverage(m.metrics.AverageCollectRun, duration, m.metrics.CollectRuns)
	if stopReason != "settled" {
		m.metrics.IncompleteRuns++
	}

	um := m.metrics.UserMetrics[username]
	um.PostsCollected += posts
	um.LastCollected = now
	um.LastStopReason = stopReason
	um.LastScrolls = scrolls
	if um.AverageRunTime == 0 {
		um.AverageRunTime = duration
	} else {
		um.AverageRunTime = (um.AverageRunTime + duration) / 2
	}
	m.metrics.UserMetrics[username] = um

	m.saveMetrics()
	m.logger.Infof("Recorded collect run for @%s: %d posts, %d scrolls, stop=%s, %v duration",
		username, posts, scrolls, stopReason, duration.Round(time.Millisecond))
}

// RecordDownloadRun records a finished downloader batch.
func (m *Monitor) RecordDownloadRun(username string, summary downloader.Summary, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.DownloadRuns++
	m.metrics.TotalDownloaded += summary.Downloaded
	m.metrics.FailedDownloads += summary.Failed
	m.metrics.RateLimited += summary.RateLimited
	m.metrics.LastDownload = m.now()

	attempted := m.metrics.TotalDownloaded + m.metrics.FailedDownloads
	if attempted > 0 {
		m.metrics.ErrorRate = float64(m.metrics.FailedDownloads) / float64(attempted) * 100
	}

	um := m.metrics.UserMetrics[username]
	um.VideosFetched += summary.Downloaded
	um.DownloadFailure += summary.Failed
	m.metrics.UserMetrics[username] = um

	m.saveMetrics()
	m.logger.Infof("Recorded download run for @%s: %s, %v duration", username, summary, duration.Round(time.Millisecond))
}

// GetMetrics returns a copy of the current metrics.
func (m *Monitor) GetMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *m.metrics
	copied.UserMetrics = make(map[string]UserMetric, len(m.metrics.UserMetrics))
	for k, v := range m.metrics.UserMetrics {
		copied.UserMetrics[k] = v
	}
	return copied
}

func (m *Monitor) GetHealthStatus() map[string]interface{} {
	metrics := m.GetMetrics()

	status := map[string]interface{}{
		"status":          "healthy",
		"last_collect":    metrics.LastCollect.Format(time.RFC3339),
		"last_download":   metrics.LastDownload.Format(time.RFC3339),
		"collect_runs":    metrics.CollectRuns,
		"download_runs":   metrics.DownloadRuns,
		"error_rate":      fmt.Sprintf("%.2f%%", metrics.ErrorRate),
		"average_runtime": metrics.AverageCollectRun.String(),
	}

	if m.now().Sub(metrics.LastCollect) > 24*time.Hour {
		status["status"] = "warning"
		status["warning"] = "No collect runs in the last 24 hours"
	}

	if metrics.ErrorRate > 10 {
		status["status"] = "warning"
		status["warning"] = "High download error rate detected"
	}

	return status
}

func (m *Monitor) GenerateReport() string {
	metrics := m.GetMetrics()

	var b strings.Builder
	fmt.Fprintf(&b, `
X Media Scraper Monitoring Report
=================================
Generated: %s

Overall Statistics:
- Collect Runs: %d (%d incomplete)
- Posts Collected: %d
- Download Runs: %d
- Videos Downloaded: %d
- Failed Downloads: %d (rate limited: %d)
- Download Error Rate: %.2f%%
- Average Collect Time: %s
- Last Collect: %s
- Last Download: %s

User Performance:
`,
		utils.FormatTimestamp(m.now()),
		metrics.CollectRuns, metrics.IncompleteRuns,
		metrics.TotalPosts,
		metrics.DownloadRuns,
		metrics.TotalDownloaded,
		metrics.FailedDownloads, metrics.RateLimited,
		metrics.ErrorRate,
		metrics.AverageCollectRun,
		utils.FormatTimestamp(metrics.LastCollect),
		utils.FormatTimestamp(metrics.LastDownload),
	)

	usernames := make([]string, 0, len(metrics.UserMetrics))
	for username := range metrics.UserMetrics {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		um := metrics.UserMetrics[username]
		fmt.Fprintf(&b, `
- @%s:
  Posts Collected: %d
  Videos Fetched: %d
  Download Failures: %d
  Last Collected: %s (stop: %s, %d scrolls)
  Average Runtime: %s
`,
			username,
			um.PostsCollected,
			um.VideosFetched,
			um.DownloadFailure,
			utils.FormatTimestamp(um.LastCollected), um.LastStopReason, um.LastScrolls,
			um.AverageRunTime,
		)
	}

	return b.String()
}

func runningAverage(avg, sample time.Duration, n int) time.Duration {
	if n <= 1 {
		return sample
	}
	return avg + (sample-avg)/time.Duration(n)
}

func (m *Monitor) loadMetrics() {
	data, err := os.ReadFile(m.metricsFile)
	if os.IsNotExist(err) {
		m.logger.Info("No existing metrics file found, starting fresh")
		return
	}
	if err != nil {
		m.logger.Warnf("Failed to read metrics file: %v", err)
		return
	}

	if err := json.Unmarshal(data, m.metrics); err != nil {
		m.logger.Warnf("Failed to parse metrics file: %v", err)
		return
	}
	if m.metrics.UserMetrics == nil {
		m.metrics.UserMetrics = make(map[string]UserMetric)
	}

	m.logger.Debug("Loaded existing metrics from file")
}

func (m *Monitor) saveMetrics() {
	data, err := json.MarshalIndent(m.metrics, "", "  ")
	if err != nil {
		m.logger.Errorf("Failed to marshal metrics: %v", err)
		return
	}

	if dir := filepath.Dir(m.metricsFile); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			m.logger.Errorf("Failed to create metrics directory: %v", err)
			return
		}
	}
	if err := os.WriteFile(m.metricsFile, data, 0644); err != nil {
		m.logger.Errorf("Failed to save metrics: %v", err)
	}
}

// AlertManager turns metrics into operator alerts.
type AlertManager struct {
	monitor *Monitor
	logger  *logrus.Logger
}

func NewAlertManager(monitor *Monitor, logger *logrus.Logger) *AlertManager {
	return &AlertManager{monitor: monitor, logger: logger}
}

func (am *AlertManager) CheckAlerts() []string {
	var alerts []string
	metrics := am.monitor.GetMetrics()
	now := am.monitor.now()

	if now.Sub(metrics.LastCollect) > 25*time.Hour {
		alerts = append(alerts, "ALERT: Collector hasn't run in over 24 hours")
	}

	if metrics.ErrorRate > 15 {
		alerts = append(alerts, fmt.Sprintf("ALERT: High download error rate: %.2f%%", metrics.ErrorRate))
	}

	if metrics.RateLimited > 0 {
		alerts = append(alerts, fmt.Sprintf("ALERT: %d downloads were rate limited; re-run the downloader later", metrics.RateLimited))
	}

	if metrics.TotalPosts == 0 {
		alerts = append(alerts, "ALERT: No posts have been collected")
	}

	return alerts
}

func (am *AlertManager) SendAlerts(alerts []string) {
	for _, alert := range alerts {
		am.logger.Warn(alert)
	}
}
