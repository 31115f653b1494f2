package downloader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type call struct {
	name string
	args []string
}

// fakeTools emulates yt-dlp and ffmpeg by creating the files they would write.
type fakeTools struct {
	calls     []call
	ytdlpOut  string
	ytdlpErr  error
	skipAudio bool
	ffmpegErr error
}

func (f *fakeTools) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})

	switch name {
	case "yt-dlp":
		if f.ytdlpErr != nil {
			return []byte(f.ytdlpOut), f.ytdlpErr
		}
		template := argAfter(args, "-o")
		ext := "mp4"
		if strings.Contains(template, ".audio.") {
			if f.skipAudio {
				return nil, nil
			}
			ext = "m4a"
		}
		path := strings.Replace(template, "%(ext)s", ext, 1)
		return nil, os.WriteFile(path, []byte("stream"), 0644)
	case "/usr/bin/ffmpeg":
		out := args[len(args)-1]
		if f.ffmpegErr != nil {
			os.WriteFile(out, []byte("trunc"), 0644)
			return []byte("Conversion failed!"), f.ffmpegErr
		}
		return nil, os.WriteFile(out, []byte("merged"), 0644)
	}
	return nil, errors.New("unexpected command " + name)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func testOptions() YtDlpOptions {
	return YtDlpOptions{
		YtDlpPath:   "yt-dlp",
		FFmpegPath:  "ffmpeg",
		VideoFormat: "bestvideo[height<=720]",
		AudioFormat: "bestaudio/best",
		Retries:     10,
	}
}

func lookFFmpeg(name string) (string, error) { return "/usr/bin/" + name, nil }

func TestFetchDownloadsAndMerges(t *testing.T) {
	dir := t.TempDir()
	cookies := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# cookies"), 0600))

	opts := testOptions()
	opts.CookiesFile = cookies
	opts.Username = "alice"
	opts.Password = "pw"

	tools := &fakeTools{}
	f := NewYtDlpFetcher(opts, testLogger()).WithRunner(tools.run, lookFFmpeg)

	dest := filepath.Join(dir, "alice", "123.mp4")
	require.NoError(t, f.Fetch(context.Background(), "https://x.com/alice/status/123", dest))

	require.Len(t, tools.calls, 3)
	video := tools.calls[0].args
	assert.Equal(t, "bestvideo[height<=720]", argAfter(video, "-f"))
	assert.Equal(t, "10", argAfter(video, "--retries"))
	assert.Equal(t, "10", argAfter(video, "--fragment-retries"))
	assert.Equal(t, cookies, argAfter(video, "--cookies"))
	assert.Equal(t, "alice", argAfter(video, "--username"))
	assert.Equal(t, "https://x.com/alice/status/123", video[len(video)-1])
	assert.Equal(t, "bestaudio/best", argAfter(tools.calls[1].args, "-f"))

	merge := tools.calls[2].args
	assert.Equal(t, "0:v:0", merge[5])
	assert.Equal(t, "1:a:0", merge[7])
	assert.Contains(t, merge, "aac_adtstoasc")
	assert.Contains(t, merge, "+faststart")
	assert.Equal(t, "mp4", argAfter(merge, "-f"))
	assert.Equal(t, filepath.Join(dir, "alice", "123.merging.mp4.tmp"), merge[len(merge)-1])

	assert.FileExists(t, dest)
	assert.NoFileExists(t, merge[len(merge)-1])
	assert.NoFileExists(t, filepath.Join(dir, "alice", "123.video.mp4"))
	assert.NoFileExists(t, filepath.Join(dir, "alice", "123.audio.m4a"))
}

func TestFetchWithoutCookieFileOmitsFlag(t *testing.T) {
	opts := testOptions()
	opts.CookiesFile = filepath.Join(t.TempDir(), "missing.txt")

	tools := &fakeTools{}
	f := NewYtDlpFetcher(opts, testLogger()).WithRunner(tools.run, lookFFmpeg)
	require.NoError(t, f.Fetch(context.Background(), "https://x.com/a/status/1", filepath.Join(t.TempDir(), "a", "1.mp4")))

	assert.NotContains(t, tools.calls[0].args, "--cookies")
	assert.NotContains(t, tools.calls[0].args, "--username")
}

func TestFetchRateLimited(t *testing.T) {
	tools := &fakeTools{
		ytdlpOut: "[twitter] 1: Downloading guest token\nERROR: HTTP Error 429: Too Many Requests",
		ytdlpErr: errors.New("exit status 1"),
	}
	f := NewYtDlpFetcher(testOptions(), testLogger()).WithRunner(tools.run, lookFFmpeg)

	err := f.Fetch(context.Background(), "https://x.com/a/status/1", filepath.Join(t.TempDir(), "a", "1.mp4"))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, tools.calls, 1)
}

func TestFetchExtractorError(t *testing.T) {
	tools := &fakeTools{
		ytdlpOut: "ERROR: [twitter] 1: No video could be found in this tweet",
		ytdlpErr: errors.New("exit status 1"),
	}
	f := NewYtDlpFetcher(testOptions(), testLogger()).WithRunner(tools.run, lookFFmpeg)

	err := f.Fetch(context.Background(), "https://x.com/a/status/1", filepath.Join(t.TempDir(), "a", "1.mp4"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Contains(t, err.Error(), "No video could be found")
}

func TestFetchMissingStream(t *testing.T) {
	tools := &fakeTools{skipAudio: true}
	f := NewYtDlpFetcher(testOptions(), testLogger()).WithRunner(tools.run, lookFFmpeg)

	err := f.Fetch(context.Background(), "https://x.com/a/status/1", filepath.Join(t.TempDir(), "a", "1.mp4"))
	assert.ErrorIs(t, err, ErrStreamsMissing)
}

func TestFetchWithoutFFmpeg(t *testing.T) {
	tools := &fakeTools{}
	noFFmpeg := func(string) (string, error) { return "", errors.New("not found") }
	f := NewYtDlpFetcher(testOptions(), testLogger()).WithRunner(tools.run, noFFmpeg)

	err := f.Fetch(context.Background(), "https://x.com/a/status/1", filepath.Join(t.TempDir(), "a", "1.mp4"))
	assert.ErrorIs(t, err, ErrFFmpegMissing)
}

func TestFetchFailedMergeLeavesNoVideo(t *testing.T) {
	tools := &fakeTools{ffmpegErr: errors.New("exit status 1")}
	f := NewYtDlpFetcher(testOptions(), testLogger()).WithRunner(tools.run, lookFFmpeg)

	videos := t.TempDir()
	dest := filepath.Join(videos, "a", "1.mp4")
	err := f.Fetch(context.Background(), "https://x.com/a/status/1", dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Conversion failed!")

	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, filepath.Join(videos, "a", "1.merging.mp4.tmp"))

	idx, err := BuildIndex(videos)
	require.NoError(t, err)
	assert.False(t, idx.Has("1"))
}
