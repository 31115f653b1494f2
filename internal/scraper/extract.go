package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"x-media-scraper/pkg/types"
)

// X changes its DOM often; these are the only places that know its shape.
var mediaSelectors = []string{
	`li[role="listitem"] a[href*="/video/"]`,
	`li[role="listitem"] a[href*="/photo/"]`,
	`a[href*="/status/"][href*="/video/"]`,
	`a[href*="/status/"][href*="/photo/"]`,
	`div[style*="calc(33.3333%"] a[href*="/status/"]`,
	`li[role="listitem"] a[href*="/status/"]`,
}

// Most specific first; the first match decides the identifier.
var mediaLinkPatterns = []struct {
	re      *regexp.Regexp
	idGroup int
}{
	{regexp.MustCompile(`/([^/]+)/status/(\d+)/video/(\d+)`), 2},
	{regexp.MustCompile(`/([^/]+)/status/(\d+)/photo/(\d+)`), 2},
	{regexp.MustCompile(`/status/(\d+)/video/(\d+)`), 1},
	{regexp.MustCompile(`/status/(\d+)/photo/(\d+)`), 1},
	{regexp.MustCompile(`/status/(\d+)`), 1},
}

// RawPost is one rendered anchor pointing at a post.
type RawPost struct {
	Href string
}

// ExtractRenderedPosts sweeps the media selectors over a rendered document and
// returns the anchors in document order, each href once.
func ExtractRenderedPosts(html string) ([]RawPost, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered HTML: %w", err)
	}

	seen := make(map[string]bool)
	var raws []RawPost
	for _, selector := range mediaSelectors {
		doc.Find(selector).Each(func(i int, link *goquery.Selection) {
			href, ok := link.Attr("href")
			if !ok || href == "" || seen[href] {
				return
			}
			seen[href] = true
			raws = append(raws, RawPost{Href: href})
		})
	}
	return raws, nil
}

// ParseMediaHref derives a post from an anchor href. It returns false when the
// href does not reference a status.
func ParseMediaHref(href, username, baseURL string) (types.Post, bool) {
	if href == "" {
		return types.Post{}, false
	}

	for _, pattern := range mediaLinkPatterns {
		groups := pattern.re.FindStringSubmatch(href)
		if groups == nil || !isNumeric(groups[pattern.idGroup]) {
			continue
		}
		postID := groups[pattern.idGroup]

		return types.Post{
			PostID:       postID,
			Username:     username,
			FullURL:      StatusURL(baseURL, username, postID),
			MediaType:    mediaTypeOf(href),
			OriginalHref: href,
			ScrapedAt:    time.Now(),
		}, true
	}
	return types.Post{}, false
}

func StatusURL(baseURL, username, postID string) string {
	return fmt.Sprintf("%s/%s/status/%s", strings.TrimRight(baseURL, "/"), username, postID)
}

func MediaURL(baseURL, username string) string {
	return fmt.Sprintf("%s/%s/media", strings.TrimRight(baseURL, "/"), username)
}

func mediaTypeOf(href string) types.MediaType {
	switch {
	case strings.Contains(href, "/video/"):
		return types.MediaVideo
	case strings.Contains(href, "/photo/"):
		return types.MediaPhoto
	default:
		return types.MediaUnknown
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
