package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
)

var (
	ErrStreamsMissing = errors.New("downloaded streams missing")
	ErrRateLimited    = errors.New("rate limited by the site")
	ErrFFmpegMissing  = errors.New("ffmpeg not found in PATH")
)

// VideoFetcher resolves a post URL to a playable video at dest.
type VideoFetcher interface {
	Fetch(ctx context.Context, postURL, dest string) error
}

// CommandRunner runs an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// yt-dlp flags.
const (
	flagFormat          = "-f"
	flagOutput          = "-o"
	flagCookies         = "--cookies"
	flagRetries         = "--retries"
	flagFragmentRetries = "--fragment-retries"
	flagUsername        = "--username"
	flagPassword        = "--password"
	flagNoPlaylist      = "--no-playlist"
)

type YtDlpOptions struct {
	YtDlpPath   string
	FFmpegPath  string
	CookiesFile string
	Username    string
	Password    string
	VideoFormat string
	AudioFormat string
	Retries     int
}

func OptionsFromConfig(cfg *config.Config) YtDlpOptions {
	return YtDlpOptions{
		YtDlpPath:   cfg.Download.YtDlpPath,
		FFmpegPath:  cfg.Download.FFmpegPath,
		CookiesFile: cfg.Twitter.Auth.CookiesFile,
		Username:    cfg.Twitter.Auth.Username,
		Password:    cfg.Twitter.Auth.Password,
		VideoFormat: cfg.Download.VideoFormat,
		AudioFormat: cfg.Download.AudioFormat,
		Retries:     cfg.Download.Retries,
	}
}

// YtDlpFetcher downloads the video and audio streams separately with yt-dlp
// and merges them into an mp4 with ffmpeg.
type YtDlpFetcher struct {
	opts     YtDlpOptions
	run      CommandRunner
	lookPath func(string) (string, error)
	logger   *logrus.Logger
}

func NewYtDlpFetcher(opts YtDlpOptions, logger *logrus.Logger) *YtDlpFetcher {
	return &YtDlpFetcher{
		opts:     opts,
		run:      ExecRunner,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// WithRunner replaces the command runner; used by tests.
func (f *YtDlpFetcher) WithRunner(run CommandRunner, lookPath func(string) (string, error)) *YtDlpFetcher {
	f.run = run
	if lookPath != nil {
		f.lookPath = lookPath
	}
	return f
}

// Fetch writes the merged video to dest, which must end in .mp4. The
// intermediate streams are written next to it and removed after merging.
func (f *YtDlpFetcher) Fetch(ctx context.Context, postURL, dest string) error {
	dir := filepath.Dir(dest)
	stem := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create video directory: %w", err)
	}

	videoTpl := filepath.Join(dir, stem+".video.%(ext)s")
	audioTpl := filepath.Join(dir, stem+".audio.%(ext)s")

	f.logger.Infof("Downloading video stream: %s", postURL)
	if err := f.downloadStream(ctx, postURL, videoTpl, f.opts.VideoFormat); err != nil {
		return err
	}
	f.logger.Infof("Downloading audio stream: %s", postURL)
	if err := f.downloadStream(ctx, postURL, audioTpl, f.opts.AudioFormat); err != nil {
		return err
	}

	videoFiles, _ := filepath.Glob(filepath.Join(dir, globEscape(stem)+".video.*"))
	audioFiles, _ := filepath.Glob(filepath.Join(dir, globEscape(stem)+".audio.*"))
	if len(videoFiles) == 0 || len(audioFiles) == 0 {
		return fmt.Errorf("%w for %s: video=%v audio=%v", ErrStreamsMissing, stem, videoFiles, audioFiles)
	}

	return f.merge(ctx, videoFiles[0], audioFiles[0], dest)
}

func (f *YtDlpFetcher) downloadStream(ctx context.Context, url, template, format string) error {
	args := []string{
		flagFormat, format,
		flagOutput, template,
		flagRetries, strconv.Itoa(f.opts.Retries),
		flagFragmentRetries, strconv.Itoa(f.opts.Retries),
		flagNoPlaylist,
	}
	if f.opts.CookiesFile != "" {
		if _, err := os.Stat(f.opts.CookiesFile); err == nil {
			args = append(args, flagCookies, f.opts.CookiesFile)
		}
	}
	if f.opts.Username != "" && f.opts.Password != "" {
		args = append(args, flagUsername, f.opts.Username, flagPassword, f.opts.Password)
	}
	args = append(args, url)

	output, err := f.run(ctx, f.opts.YtDlpPath, args...)
	if err != nil {
		if isRateLimited(string(output)) {
			return fmt.Errorf("%w: %s", ErrRateLimited, lastLine(output))
		}
		return fmt.Errorf("yt-dlp failed for %s: %w: %s", url, err, lastLine(output))
	}
	return nil
}

func (f *YtDlpFetcher) merge(ctx context.Context, videoFile, audioFile, dest string) error {
	ffmpeg, err := f.lookPath(f.opts.FFmpegPath)
	if err != nil {
		return ErrFFmpegMissing
	}

	// The index only sees *.mp4, so a merge cut short never looks downloaded.
	tempPath := mergingPath(dest)
	args := []string{
		"-i", videoFile,
		"-i", audioFile,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		"-f", "mp4",
		"-y",
		tempPath,
	}
	f.logger.Infof("Merging streams into %s", filepath.Base(dest))
	if output, err := f.run(ctx, ffmpeg, args...); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("ffmpeg merge failed: %w: %s", err, lastLine(output))
	}
	if err := os.Rename(tempPath, dest); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move merged video into place: %w", err)
	}

	for _, file := range []string{videoFile, audioFile} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			f.logger.Debugf("Failed to remove intermediate stream %s: %v", file, err)
		}
	}
	return nil
}

func mergingPath(dest string) string {
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + ".merging.mp4.tmp"
}

func isRateLimited(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests")
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func globEscape(s string) string {
	replacer := strings.NewReplacer(`[`, `\[`, `*`, `\*`, `?`, `\?`)
	return replacer.Replace(s)
}
