package scraper

import (
	"strings"

	"x-media-scraper/pkg/types"
)

// ApplyFilter applies the filter to a single post
func ApplyFilter(post types.Post, filter *types.PostFilter) bool {
	return rejectReason(post, filter) == ""
}

func rejectReason(post types.Post, filter *types.PostFilter) string {
	if filter == nil {
		return ""
	}

	if len(filter.MediaTypes) > 0 {
		found := false
		for _, mediaType := range filter.MediaTypes {
			if post.MediaType == mediaType {
				found = true
				break
			}
		}
		if !found {
			return "media_type"
		}
	}

	if len(filter.Usernames) > 0 {
		found := false
		for _, username := range filter.Usernames {
			if strings.EqualFold(post.Username, username) {
				found = true
				break
			}
		}
		if !found {
			return "user"
		}
	}

	if !filter.ScrapedAfter.IsZero() && post.ScrapedAt.Before(filter.ScrapedAfter) {
		return "time"
	}

	return ""
}

// BatchFilter keeps the posts that pass filter, preserving order.
func BatchFilter(posts []types.Post, filter *types.PostFilter) ([]types.Post, types.FilterStats) {
	stats := types.FilterStats{TotalPosts: len(posts)}
	var kept []types.Post

	for _, post := range posts {
		switch rejectReason(post, filter) {
		case "":
			kept = append(kept, post)
		case "media_type":
			stats.MediaTypeFiltered++
		case "user":
			stats.UserFiltered++
		case "time":
			stats.TimeFiltered++
		}
	}

	stats.FilteredPosts = len(kept)
	return kept, stats
}
