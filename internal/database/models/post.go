package models

import (
	"time"

	"github.com/lib/pq"
	"x-media-scraper/pkg/types"
)

type Post struct {
	ID             int64       `json:"id" db:"id"`
	PostID         string      `json:"post_id" db:"post_id"`
	Username       string      `json:"username" db:"username"`
	FullURL        string      `json:"full_url" db:"full_url"`
	MediaType      string      `json:"media_type" db:"media_type"`
	OriginalHref   string      `json:"original_href" db:"original_href"`
	ScrapedAt      time.Time   `json:"scraped_at" db:"scraped_at"`
	DownloadedPath string      `json:"downloaded_path,omitempty" db:"downloaded_path"`
	DownloadedAt   pq.NullTime `json:"-" db:"downloaded_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

func FromPost(p types.Post) *Post {
	return &Post{
		PostID:       p.PostID,
		Username:     p.Username,
		FullURL:      p.FullURL,
		MediaType:    string(p.MediaType),
		OriginalHref: p.OriginalHref,
		ScrapedAt:    p.ScrapedAt,
	}
}

func (p *Post) ToPost() types.Post {
	return types.Post{
		PostID:       p.PostID,
		Username:     p.Username,
		FullURL:      p.FullURL,
		MediaType:    types.MediaType(p.MediaType),
		OriginalHref: p.OriginalHref,
		ScrapedAt:    p.ScrapedAt,
	}
}

// Downloaded reports whether a video has been stored for this post.
func (p *Post) Downloaded() bool {
	return p.DownloadedAt.Valid
}
