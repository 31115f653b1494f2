package scraper

import "x-media-scraper/pkg/types"

// CollectedSet accumulates posts in first-seen order with no duplicate
// identifiers. It only grows.
type CollectedSet struct {
	posts []types.Post
	index map[string]int
}

func NewCollectedSet() *CollectedSet {
	return &CollectedSet{index: make(map[string]int)}
}

// Add inserts post if its identifier has not been seen and reports whether it
// did.
func (cs *CollectedSet) Add(post types.Post) bool {
	added, _ := cs.Observe(post)
	return added
}

// Observe records a sighting of post. A repeat sighting may upgrade the stored
// media type to video; that is reported as upgraded, not added.
func (cs *CollectedSet) Observe(post types.Post) (added, upgraded bool) {
	if i, ok := cs.index[post.PostID]; ok {
		existing := &cs.posts[i]
		if post.MediaType == types.MediaVideo && existing.MediaType != types.MediaVideo {
			existing.MediaType = types.MediaVideo
			existing.OriginalHref = post.OriginalHref
			return false, true
		}
		return false, false
	}
	cs.index[post.PostID] = len(cs.posts)
	cs.posts = append(cs.posts, post)
	return true, false
}

func (cs *CollectedSet) Get(postID string) (types.Post, bool) {
	i, ok := cs.index[postID]
	if !ok {
		return types.Post{}, false
	}
	return cs.posts[i], true
}

func (cs *CollectedSet) Contains(postID string) bool {
	_, ok := cs.index[postID]
	return ok
}

func (cs *CollectedSet) Len() int {
	return len(cs.posts)
}

// Posts returns a copy of the collected posts in first-seen order.
func (cs *CollectedSet) Posts() []types.Post {
	out := make([]types.Post, len(cs.posts))
	copy(out, cs.posts)
	return out
}
