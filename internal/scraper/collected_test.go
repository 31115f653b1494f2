package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"x-media-scraper/pkg/types"
)

func TestCollectedSetKeepsFirstSeenOrder(t *testing.T) {
	set := NewCollectedSet()

	assert.True(t, set.Add(types.Post{PostID: "3"}))
	assert.True(t, set.Add(types.Post{PostID: "1"}))
	assert.False(t, set.Add(types.Post{PostID: "3"}))
	assert.True(t, set.Add(types.Post{PostID: "2"}))

	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains("1"))
	assert.False(t, set.Contains("4"))
	assert.Equal(t, []string{"3", "1", "2"}, postIDs(set.Posts()))
}

func TestCollectedSetUpgradesToVideo(t *testing.T) {
	set := NewCollectedSet()
	set.Add(types.Post{PostID: "7", MediaType: types.MediaUnknown, OriginalHref: "/a/status/7"})

	assert.False(t, set.Add(types.Post{PostID: "7", MediaType: types.MediaVideo, OriginalHref: "/a/status/7/video/1"}))
	assert.False(t, set.Add(types.Post{PostID: "7", MediaType: types.MediaPhoto, OriginalHref: "/a/status/7/photo/1"}))

	posts := set.Posts()
	assert.Len(t, posts, 1)
	assert.Equal(t, types.MediaVideo, posts[0].MediaType)
	assert.Equal(t, "/a/status/7/video/1", posts[0].OriginalHref)
}

func TestCollectedSetObserveReportsUpgrade(t *testing.T) {
	set := NewCollectedSet()

	added, upgraded := set.Observe(types.Post{PostID: "8", MediaType: types.MediaPhoto})
	assert.True(t, added)
	assert.False(t, upgraded)

	added, upgraded = set.Observe(types.Post{PostID: "8", MediaType: types.MediaVideo})
	assert.False(t, added)
	assert.True(t, upgraded)

	added, upgraded = set.Observe(types.Post{PostID: "8", MediaType: types.MediaVideo})
	assert.False(t, added)
	assert.False(t, upgraded)

	post, ok := set.Get("8")
	assert.True(t, ok)
	assert.Equal(t, types.MediaVideo, post.MediaType)
	_, ok = set.Get("9")
	assert.False(t, ok)
}

func TestCollectedSetPostsIsACopy(t *testing.T) {
	set := NewCollectedSet()
	set.Add(types.Post{PostID: "1"})

	posts := set.Posts()
	posts[0].PostID = "changed"

	assert.True(t, set.Contains("1"))
	assert.Equal(t, "1", set.Posts()[0].PostID)
}
