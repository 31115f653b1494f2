package types

import (
	"fmt"
	"time"
)

type MediaType string

const (
	MediaVideo   MediaType = "video"
	MediaPhoto   MediaType = "photo"
	MediaUnknown MediaType = "unknown"
)

// Post is one media post harvested from a user's media timeline. PostID is the
// identifier; it never changes once extracted.
type Post struct {
	PostID       string    `json:"post_id"`
	Username     string    `json:"username"`
	FullURL      string    `json:"full_url"`
	MediaType    MediaType `json:"media_type"`
	OriginalHref string    `json:"original_href"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

type PostFilter struct {
	MediaTypes   []MediaType `json:"media_types"`
	Usernames    []string    `json:"usernames"`
	ScrapedAfter time.Time   `json:"scraped_after"`
}

type FilterStats struct {
	TotalPosts        int `json:"total_posts"`
	FilteredPosts     int `json:"filtered_posts"`
	MediaTypeFiltered int `json:"media_type_filtered"`
	UserFiltered      int `json:"user_filtered"`
	TimeFiltered      int `json:"time_filtered"`
}

func (fs FilterStats) String() string {
	return fmt.Sprintf("Total: %d, Filtered: %d, MediaType: %d, User: %d, Time: %d",
		fs.TotalPosts, fs.FilteredPosts, fs.MediaTypeFiltered, fs.UserFiltered, fs.TimeFiltered)
}
