package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"x-media-scraper/pkg/types"
)

type fakeFetcher struct {
	fetched []string
	dests   []string
	fail    map[string]error
	onFetch func(url string)
}

func (f *fakeFetcher) Fetch(ctx context.Context, postURL, dest string) error {
	f.fetched = append(f.fetched, postURL)
	f.dests = append(f.dests, dest)
	if f.onFetch != nil {
		f.onFetch(postURL)
	}
	if err, ok := f.fail[postURL]; ok {
		return err
	}
	return nil
}

type fakeRecorder struct {
	marked map[string]string
}

func (r *fakeRecorder) MarkDownloaded(postID, path string) error {
	r.marked[postID] = path
	return nil
}

func videoPost(user, id string) types.Post {
	return types.Post{
		PostID:    id,
		Username:  user,
		FullURL:   fmt.Sprintf("https://x.com/%s/status/%s", user, id),
		MediaType: types.MediaVideo,
	}
}

func emptyIndex(t *testing.T) *Index {
	idx, err := BuildIndex(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	return idx
}

func TestBatchRun(t *testing.T) {
	videos := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(videos, "alice"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(videos, "alice", "2.mp4"), nil, 0644))

	idx, err := BuildIndex(videos)
	require.NoError(t, err)

	posts := []types.Post{
		videoPost("alice", "1"),
		videoPost("alice", "2"),
		{PostID: "3", Username: "alice", MediaType: types.MediaPhoto, FullURL: "https://x.com/alice/status/3"},
		{PostID: "4", Username: "alice", MediaType: types.MediaVideo, OriginalHref: "/alice/status/4/video/1"},
		{PostID: "", Username: "alice", MediaType: types.MediaVideo, FullURL: "https://x.com/alice/status/5"},
		{PostID: "6", Username: "alice", MediaType: types.MediaVideo},
		videoPost("alice", "7"),
		videoPost("alice", "8"),
	}

	fetcher := &fakeFetcher{fail: map[string]error{
		"https://x.com/alice/status/7": fmt.Errorf("%w: HTTP Error 429", ErrRateLimited),
		"https://x.com/alice/status/8": errors.New("no video in post"),
	}}
	recorder := &fakeRecorder{marked: make(map[string]string)}

	batch := NewBatch(fetcher, idx, videos, "https://x.com/", 0, testLogger())
	batch.Recorder = recorder

	summary, err := batch.Run(context.Background(), posts)
	require.NoError(t, err)

	assert.Equal(t, Summary{Total: 8, Downloaded: 2, Skipped: 4, Failed: 2, RateLimited: 1}, summary)
	assert.Equal(t, []string{
		"https://x.com/alice/status/1",
		"https://x.com/alice/status/4/video/1",
		"https://x.com/alice/status/7",
		"https://x.com/alice/status/8",
	}, fetcher.fetched)
	assert.Equal(t, filepath.Join(videos, "alice", "1.mp4"), fetcher.dests[0])

	assert.True(t, idx.Has("1"))
	assert.True(t, idx.Has("4"))
	assert.False(t, idx.Has("7"))
	assert.Equal(t, map[string]string{
		"1": filepath.Join(videos, "alice", "1.mp4"),
		"4": filepath.Join(videos, "alice", "4.mp4"),
	}, recorder.marked)
}

func TestBatchRerunIsIdempotent(t *testing.T) {
	idx := emptyIndex(t)
	fetcher := &fakeFetcher{}
	batch := NewBatch(fetcher, idx, t.TempDir(), "https://x.com", 0, testLogger())

	posts := []types.Post{videoPost("a", "1"), videoPost("a", "2")}

	first, err := batch.Run(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Downloaded)

	second, err := batch.Run(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Downloaded)
	assert.Equal(t, 2, second.Skipped)
	assert.Len(t, fetcher.fetched, 2)
}

func TestBatchRetriesAfterFailedMerge(t *testing.T) {
	videos := t.TempDir()
	posts := []types.Post{videoPost("a", "42")}

	tools := &fakeTools{ffmpegErr: errors.New("exit status 1")}
	fetcher := NewYtDlpFetcher(testOptions(), testLogger()).WithRunner(tools.run, lookFFmpeg)
	first, err := NewBatch(fetcher, emptyIndex(t), videos, "https://x.com", 0, testLogger()).Run(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)

	idx, err := BuildIndex(videos)
	require.NoError(t, err)
	require.False(t, idx.Has("42"))

	tools.ffmpegErr = nil
	second, err := NewBatch(fetcher, idx, videos, "https://x.com", 0, testLogger()).Run(context.Background(), posts)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Downloaded)
	assert.Equal(t, 0, second.Skipped)
	assert.FileExists(t, filepath.Join(videos, "a", "42.mp4"))
}

func TestBatchUnknownUserDirectory(t *testing.T) {
	videos := t.TempDir()
	fetcher := &fakeFetcher{}
	batch := NewBatch(fetcher, emptyIndex(t), videos, "https://x.com", 0, testLogger())

	post := videoPost("", "9")
	post.FullURL = "https://x.com/i/status/9"
	_, err := batch.Run(context.Background(), []types.Post{post})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(videos, "unknown", "9.mp4"), fetcher.dests[0])
}

func TestBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{onFetch: func(string) { cancel() }}
	batch := NewBatch(fetcher, emptyIndex(t), t.TempDir(), "https://x.com", 0, testLogger())

	summary, err := batch.Run(ctx, []types.Post{videoPost("a", "1"), videoPost("a", "2")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Len(t, fetcher.fetched, 1)
}

func TestBuildIndex(t *testing.T) {
	videos := t.TempDir()
	for _, p := range []string{"alice/1.mp4", "bob/2.mp4", "bob/3.video.mp4.part", "4.mp4"} {
		path := filepath.Join(videos, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, nil, 0644))
	}

	idx, err := BuildIndex(videos)
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.Has("1"))
	assert.True(t, idx.Has("2"))
	assert.False(t, idx.Has("4"))
	assert.Equal(t, filepath.Join(videos, "bob", "2.mp4"), idx.Path("2"))
}
