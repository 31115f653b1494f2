package downloader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"x-media-scraper/pkg/types"
)

// StatusRecorder is notified about every video written to disk.
type StatusRecorder interface {
	MarkDownloaded(postID, path string) error
}

type Summary struct {
	Total       int `json:"total"`
	Downloaded  int `json:"downloaded"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	RateLimited int `json:"rate_limited"`
}

func (s Summary) String() string {
	return fmt.Sprintf("Total: %d, Downloaded: %d, Skipped: %d, Failed: %d, Rate limited: %d",
		s.Total, s.Downloaded, s.Skipped, s.Failed, s.RateLimited)
}

// Batch downloads the videos of a list of collected posts into
// {videosDir}/{username}/{post_id}.mp4, one at a time.
type Batch struct {
	fetcher   VideoFetcher
	index     *Index
	videosDir string
	baseURL   string
	limiter   *rate.Limiter
	logger    *logrus.Logger

	Recorder StatusRecorder
}

// NewBatch paces fetches at one per delay. A zero delay disables pacing.
func NewBatch(fetcher VideoFetcher, index *Index, videosDir, baseURL string, delay time.Duration, logger *logrus.Logger) *Batch {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Batch{
		fetcher:   fetcher,
		index:     index,
		videosDir: videosDir,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// Run fetches every video post not yet on disk. Per-post failures are logged
// and counted; only context cancellation stops the batch early.
func (b *Batch) Run(ctx context.Context, posts []types.Post) (Summary, error) {
	summary := Summary{Total: len(posts)}

	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		postURL := b.postURL(post)
		if post.PostID == "" || postURL == "" {
			summary.Skipped++
			continue
		}
		if post.MediaType != types.MediaVideo {
			b.logger.Debugf("Skipping %s: media type %q", post.PostID, post.MediaType)
			summary.Skipped++
			continue
		}
		if b.index.Has(post.PostID) {
			b.logger.Debugf("Skipping %s: already downloaded", post.PostID)
			summary.Skipped++
			continue
		}

		if err := b.limiter.Wait(ctx); err != nil {
			return summary, err
		}

		user := post.Username
		if user == "" {
			user = "unknown"
		}
		dest := filepath.Join(b.videosDir, user, post.PostID+".mp4")
		b.logger.Infof("[%d/%d] Downloading %s", i+1, len(posts), postURL)

		err := b.fetcher.Fetch(ctx, postURL, dest)
		switch {
		case err == nil:
			summary.Downloaded++
			b.index.Add(post.PostID, dest)
			b.logger.WithFields(logrus.Fields{
				"post_id": post.PostID,
				"path":    dest,
			}).Info("Video downloaded")
			if b.Recorder != nil {
				if err := b.Recorder.MarkDownloaded(post.PostID, dest); err != nil {
					b.logger.Warnf("Failed to record download of %s: %v", post.PostID, err)
				}
			}
		case ctx.Err() != nil:
			return summary, ctx.Err()
		case errors.Is(err, ErrRateLimited):
			summary.RateLimited++
			summary.Failed++
			b.logger.Warnf("Rate limited while downloading %s; re-run later to retry: %v", post.PostID, err)
		default:
			summary.Failed++
			b.logger.Errorf("Failed to download %s: %v", post.PostID, err)
		}
	}

	return summary, nil
}

func (b *Batch) postURL(post types.Post) string {
	href := post.FullURL
	if href == "" {
		href = post.OriginalHref
	}
	if strings.HasPrefix(href, "/") {
		return b.baseURL + href
	}
	return href
}
