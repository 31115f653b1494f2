package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"x-media-scraper/pkg/types"
)

func TestBatchFilter(t *testing.T) {
	now := time.Now()
	posts := []types.Post{
		{PostID: "1", Username: "Alice", MediaType: types.MediaVideo, ScrapedAt: now},
		{PostID: "2", Username: "alice", MediaType: types.MediaPhoto, ScrapedAt: now},
		{PostID: "3", Username: "bob", MediaType: types.MediaVideo, ScrapedAt: now},
		{PostID: "4", Username: "alice", MediaType: types.MediaVideo, ScrapedAt: now.Add(-48 * time.Hour)},
	}

	filter := &types.PostFilter{
		MediaTypes:   []types.MediaType{types.MediaVideo},
		Usernames:    []string{"alice"},
		ScrapedAfter: now.Add(-time.Hour),
	}

	kept, stats := BatchFilter(posts, filter)

	assert.Equal(t, []string{"1"}, postIDs(kept))
	assert.Equal(t, 4, stats.TotalPosts)
	assert.Equal(t, 1, stats.FilteredPosts)
	assert.Equal(t, 1, stats.MediaTypeFiltered)
	assert.Equal(t, 1, stats.UserFiltered)
	assert.Equal(t, 1, stats.TimeFiltered)
}

func TestApplyFilterNilKeepsEverything(t *testing.T) {
	assert.True(t, ApplyFilter(types.Post{PostID: "1"}, nil))
	assert.True(t, ApplyFilter(types.Post{PostID: "1"}, &types.PostFilter{}))
}
