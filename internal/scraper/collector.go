package scraper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/config"
	"x-media-scraper/pkg/types"
)

// ScrollOptions controls one collection run.
type ScrollOptions struct {
	ScrollIncrement     int
	PauseTime           time.Duration
	WaitAfterLoad       time.Duration
	MaxScrolls          int
	MaxConsecutiveNoNew int
}

func OptionsFromConfig(cfg *config.Config) ScrollOptions {
	return ScrollOptions{
		ScrollIncrement:     cfg.Scraper.ScrollIncrement,
		PauseTime:           config.Seconds(cfg.Scraper.ScrollPauseTime),
		WaitAfterLoad:       config.Seconds(cfg.Scraper.WaitAfterLoad),
		MaxScrolls:          cfg.Scraper.MaxScrolls,
		MaxConsecutiveNoNew: cfg.Scraper.MaxConsecutiveNoNewContent,
	}
}

type StopReason string

const (
	StopSettled    StopReason = "settled"
	StopMaxScrolls StopReason = "max_scrolls"
	StopCancelled  StopReason = "cancelled"
)

type collectorState int

const (
	stateScanning collectorState = iota
	// settled: no new identifiers for MaxConsecutiveNoNew iterations. The page
	// never says it has ended, so this is a best-effort signal only.
	stateSettled
)

type CollectResult struct {
	Posts      []types.Post
	Iterations int
	Scrolls    int
	StopReason StopReason
}

// Collector drives a page through successive scroll steps and harvests media
// post identifiers until the content settles or MaxScrolls is reached.
type Collector struct {
	page     Page
	username string
	baseURL  string
	opts     ScrollOptions
	logger   *logrus.Logger

	// OnNewPosts, when set, receives the posts added by each iteration and
	// any earlier post a sighting upgraded to video.
	OnNewPosts func([]types.Post)
}

func NewCollector(page Page, username, baseURL string, opts ScrollOptions, logger *logrus.Logger) *Collector {
	return &Collector{
		page:     page,
		username: username,
		baseURL:  baseURL,
		opts:     opts,
		logger:   logger,
	}
}

// Collect runs the scroll loop. Reaching MaxScrolls is a normal completion. If
// ctx is cancelled the posts collected so far are returned with ctx.Err().
func (c *Collector) Collect(ctx context.Context) (*CollectResult, error) {
	set := NewCollectedSet()
	result := &CollectResult{}
	finish := func(reason StopReason) *CollectResult {
		result.Posts = set.Posts()
		result.StopReason = reason
		c.logger.Infof("[FINISHED] Scrolling completed: %d iterations, %d scrolls, %d total posts (%s)",
			result.Iterations, result.Scrolls, set.Len(), reason)
		return result
	}

	c.logger.Info("Starting infinite scroll to load all media content")

	if err := c.page.Wait(ctx, c.opts.WaitAfterLoad); err != nil {
		return finish(StopCancelled), err
	}

	state := stateScanning
	noNew := 0
	for result.Iterations < c.opts.MaxScrolls {
		if err := ctx.Err(); err != nil {
			return finish(StopCancelled), err
		}
		result.Iterations++

		changed, added := c.harvest(ctx, set)
		if len(changed) > 0 && c.OnNewPosts != nil {
			c.OnNewPosts(changed)
		}
		if added > 0 {
			noNew = 0
			c.logger.WithFields(logrus.Fields{
				"scroll": result.Iterations,
				"new":    added,
				"total":  set.Len(),
			}).Infof("Scroll %d: Found %d new posts", result.Iterations, added)
		} else {
			noNew++
			c.logger.WithFields(logrus.Fields{
				"scroll": result.Iterations,
				"no_new": noNew,
				"total":  set.Len(),
			}).Infof("Scroll %d: No new posts (%d/%d)", result.Iterations, noNew, c.opts.MaxConsecutiveNoNew)
		}

		if result.Iterations%10 == 0 {
			c.logger.Infof("[PROGRESS] %d scrolls, %d total posts found", result.Iterations, set.Len())
		}

		if noNew >= c.opts.MaxConsecutiveNoNew {
			state = stateSettled
			break
		}
		if result.Iterations >= c.opts.MaxScrolls {
			break
		}

		if err := c.page.ScrollBy(ctx, c.opts.ScrollIncrement); err != nil {
			if ctx.Err() != nil {
				return finish(StopCancelled), ctx.Err()
			}
			c.logger.Warnf("Scroll %d: scroll action failed: %v", result.Iterations, err)
		} else {
			result.Scrolls++
		}
		if err := c.page.Wait(ctx, c.opts.PauseTime); err != nil {
			return finish(StopCancelled), err
		}
	}

	if state == stateSettled {
		return finish(StopSettled), nil
	}
	return finish(StopMaxScrolls), nil
}

// harvest extracts the rendered posts and inserts them into set. It returns
// the current records of the posts this pass added or upgraded, in sighting
// order, and how many were added. An extraction error yields nothing rather
// than failing the run.
func (c *Collector) harvest(ctx context.Context, set *CollectedSet) ([]types.Post, int) {
	raws, err := c.page.RenderedPosts(ctx)
	if err != nil {
		c.logger.Debugf("Error extracting current posts: %v", err)
		return nil, 0
	}

	var ids []string
	fresh := make(map[string]bool)
	for _, raw := range raws {
		post, ok := ParseMediaHref(raw.Href, c.username, c.baseURL)
		if !ok {
			continue
		}
		added, upgraded := set.Observe(post)
		switch {
		case added:
			fresh[post.PostID] = true
			ids = append(ids, post.PostID)
		case upgraded && !fresh[post.PostID]:
			c.logger.Debugf("Post %s upgraded to video", post.PostID)
			ids = append(ids, post.PostID)
		}
	}

	changed := make([]types.Post, 0, len(ids))
	for _, id := range ids {
		post, _ := set.Get(id)
		changed = append(changed, post)
	}
	return changed, len(fresh)
}
