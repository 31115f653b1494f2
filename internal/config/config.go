package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "configs/config.yaml"

var ErrMissingValue = errors.New("missing required configuration value")

type Config struct {
	Twitter  TwitterConfig  `yaml:"twitter"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Output   OutputConfig   `yaml:"output"`
	Download DownloadConfig `yaml:"download"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TwitterConfig struct {
	BaseURL        string     `yaml:"base_url"`
	TargetUsername string     `yaml:"target_username"`
	Auth           AuthConfig `yaml:"auth"`
}

type AuthConfig struct {
	CookiesFile string `yaml:"cookies_file"`
	UserAgent   string `yaml:"user_agent"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// ScraperConfig holds the browser and scroll settings. Durations are seconds.
type ScraperConfig struct {
	Timeout                    int     `yaml:"timeout"`
	ScrollPauseTime            float64 `yaml:"scroll_pause_time"`
	MaxScrolls                 int     `yaml:"max_scrolls"`
	Headless                   bool    `yaml:"headless"`
	WaitAfterLoad              float64 `yaml:"wait_after_load"`
	ScrollIncrement            int     `yaml:"scroll_increment"`
	MaxConsecutiveNoNewContent int     `yaml:"max_consecutive_no_new_content"`
	ManualLoginWait            int     `yaml:"manual_login_wait"`
	ChromePath                 string  `yaml:"chrome_path"`
	GeckodriverPath            string  `yaml:"geckodriver_path"`
	GeckodriverPort            int     `yaml:"geckodriver_port"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir"`
	VideosDir string `yaml:"videos_dir"`
}

type DownloadConfig struct {
	YtDlpPath   string  `yaml:"yt_dlp_path"`
	FFmpegPath  string  `yaml:"ffmpeg_path"`
	Delay       float64 `yaml:"delay"`
	VideoFormat string  `yaml:"video_format"`
	AudioFormat string  `yaml:"audio_format"`
	Retries     int     `yaml:"retries"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL: "https://x.com",
			Auth: AuthConfig{
				CookiesFile: "twitter_cookies.txt",
				UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Scraper: ScraperConfig{
			Timeout:                    30,
			ScrollPauseTime:            4.0,
			MaxScrolls:                 200,
			Headless:                   false,
			WaitAfterLoad:              10.0,
			ScrollIncrement:            1000,
			MaxConsecutiveNoNewContent: 10,
			ManualLoginWait:            300,
			GeckodriverPath:            "geckodriver",
			GeckodriverPort:            4444,
		},
		Output: OutputConfig{
			Dir:       "output",
			VideosDir: "videos",
		},
		Download: DownloadConfig{
			YtDlpPath:   "yt-dlp",
			FFmpegPath:  "ffmpeg",
			Delay:       1.0,
			VideoFormat: "bestvideo[height<=720]",
			AudioFormat: "bestaudio/best",
			Retries:     10,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "xmedia",
			User:    "postgres",
			SSLMode: "disable",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Override adjusts a loaded configuration before validation, typically from
// command-line flags.
type Override func(*Config)

// WithTargetUsername sets the account to collect. An empty name is a no-op.
func WithTargetUsername(username string) Override {
	return func(c *Config) {
		if username = strings.TrimPrefix(strings.TrimSpace(username), "@"); username != "" {
			c.Twitter.TargetUsername = username
		}
	}
}

// Load builds the configuration from defaults, the YAML file, the environment
// and the overrides, in that order. A missing file is only an error when configFile
// is not DefaultConfigFile.
func Load(configFile string, overrides ...Override) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case os.IsNotExist(err) && configFile == DefaultConfigFile:
		case os.IsNotExist(err):
			return nil, fmt.Errorf("config file not found: %s", configFile)
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	setString("BASE_URL", &c.Twitter.BaseURL)
	setString("TARGET_USERNAME", &c.Twitter.TargetUsername)
	setString("COOKIES_FILE", &c.Twitter.Auth.CookiesFile)
	setString("USER_AGENT", &c.Twitter.Auth.UserAgent)
	setString("TWITTER_USERNAME", &c.Twitter.Auth.Username)
	setString("TWITTER_PASSWORD", &c.Twitter.Auth.Password)
	setString("OUTPUT_DIR", &c.Output.Dir)
	setString("VIDEOS_DIR", &c.Output.VideosDir)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)
	setString("YT_DLP_PATH", &c.Download.YtDlpPath)
	setString("FFMPEG_PATH", &c.Download.FFmpegPath)
	setString("CHROME_PATH", &c.Scraper.ChromePath)
	setString("DB_HOST", &c.Database.Host)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Name)
	setString("DB_SSL_MODE", &c.Database.SSLMode)

	ints := []struct {
		key string
		dst *int
	}{
		{"TIMEOUT", &c.Scraper.Timeout},
		{"MAX_SCROLLS", &c.Scraper.MaxScrolls},
		{"SCROLL_INCREMENT", &c.Scraper.ScrollIncrement},
		{"MAX_CONSECUTIVE_NO_NEW_CONTENT", &c.Scraper.MaxConsecutiveNoNewContent},
		{"DB_PORT", &c.Database.Port},
	}
	for _, v := range ints {
		if err := setInt(v.key, v.dst); err != nil {
			return err
		}
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"SCROLL_PAUSE_TIME", &c.Scraper.ScrollPauseTime},
		{"WAIT_AFTER_LOAD", &c.Scraper.WaitAfterLoad},
		{"DOWNLOAD_DELAY", &c.Download.Delay},
	}
	for _, v := range floats {
		if err := setFloat(v.key, v.dst); err != nil {
			return err
		}
	}

	if raw, ok := os.LookupEnv("HEADLESS"); ok && raw != "" {
		c.Scraper.Headless = strings.EqualFold(strings.TrimSpace(raw), "true")
	}
	if raw, ok := os.LookupEnv("DB_ENABLED"); ok && raw != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid DB_ENABLED %q: %w", raw, err)
		}
		c.Database.Enabled = enabled
	}
	return nil
}

// Validate checks the values every command needs. Only type-level checks are
// made; fields are independent of each other.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Twitter.TargetUsername) == "" {
		return fmt.Errorf("%w: TARGET_USERNAME", ErrMissingValue)
	}
	if c.Twitter.BaseURL == "" {
		return fmt.Errorf("%w: BASE_URL", ErrMissingValue)
	}
	if c.Scraper.MaxScrolls <= 0 {
		return fmt.Errorf("MAX_SCROLLS must be positive, got %d", c.Scraper.MaxScrolls)
	}
	if c.Scraper.MaxConsecutiveNoNewContent <= 0 {
		return fmt.Errorf("MAX_CONSECUTIVE_NO_NEW_CONTENT must be positive, got %d", c.Scraper.MaxConsecutiveNoNewContent)
	}
	return nil
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Scraper.Timeout) * time.Second
}

func (c *Config) DownloadDelay() time.Duration {
	return Seconds(c.Download.Delay)
}

// Seconds converts a fractional second count from the config into a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func setString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(key string, dst *int) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = value
	return nil
}

func setFloat(key string, dst *float64) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	*dst = value
	return nil
}
