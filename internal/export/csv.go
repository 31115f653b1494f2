package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"x-media-scraper/internal/utils"
	"x-media-scraper/pkg/types"
)

var ErrNoCSV = errors.New("no collected posts CSV found")

var Header = []string{"post_id", "username", "full_url", "media_type", "original_href", "scraped_at"}

const (
	filenameInfix = "_media_posts_full_"
	idsInfix      = "_media_post_ids_"
)

// Filename returns {username}_media_posts_full_{YYYYMMDD_HHMMSS}.csv.
func Filename(username string, t time.Time) string {
	return username + filenameInfix + utils.FileTimestamp(t) + ".csv"
}

// WritePosts writes posts to a new timestamped CSV in dir and returns its
// path. Rows keep the order of posts; the header is always written.
func WritePosts(dir, username string, posts []types.Post, now time.Time) (string, error) {
	return writeFile(dir, Filename(username, now), func(w io.Writer) error {
		return Write(w, posts)
	})
}

// IDsFilename returns {username}_media_post_ids_{YYYYMMDD_HHMMSS}.csv.
func IDsFilename(username string, t time.Time) string {
	return username + idsInfix + utils.FileTimestamp(t) + ".csv"
}

// WritePostIDs writes the companion ids-only CSV: a post_id header and one id
// per row, in the order of posts.
func WritePostIDs(dir, username string, posts []types.Post, now time.Time) (string, error) {
	return writeFile(dir, IDsFilename(username, now), func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"post_id"}); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, post := range posts {
			if err := writer.Write([]string{post.PostID}); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

func writeFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	tempPath := path + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}

	writeErr := write(f)
	closeErr := f.Close()
	if writeErr != nil {
		os.Remove(tempPath)
		return "", writeErr
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close CSV file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename CSV file: %w", err)
	}
	return path, nil
}

func Write(w io.Writer, posts []types.Post) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, post := range posts {
		scrapedAt := ""
		if !post.ScrapedAt.IsZero() {
			scrapedAt = post.ScrapedAt.Format(time.RFC3339)
		}
		row := []string{
			post.PostID,
			post.Username,
			post.FullURL,
			string(post.MediaType),
			post.OriginalHref,
			scrapedAt,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func ReadPosts(path string) ([]types.Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a posts CSV. Columns are located by header name; rows without a
// post id and repeated post ids are skipped.
func Read(r io.Reader) ([]types.Post, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	if _, ok := columns["post_id"]; !ok {
		return nil, fmt.Errorf("CSV header has no post_id column")
	}

	get := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	seen := make(map[string]bool)
	var posts []types.Post
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		postID := get(record, "post_id")
		if postID == "" || seen[postID] {
			continue
		}
		seen[postID] = true

		post := types.Post{
			PostID:       postID,
			Username:     get(record, "username"),
			FullURL:      get(record, "full_url"),
			MediaType:    types.MediaType(get(record, "media_type")),
			OriginalHref: get(record, "original_href"),
		}
		if raw := get(record, "scraped_at"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				post.ScrapedAt = t
			}
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// FindLatest returns the most recently modified posts CSV for username in dir.
func FindLatest(dir, username string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, username+filenameInfix+"*.csv"))
	if err != nil {
		return "", fmt.Errorf("failed to search for CSV files: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = match
			latestMod = info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w for user %q in %s", ErrNoCSV, username, dir)
	}
	return latest, nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	rdr, _, err := br.ReadRune()
	if err != nil {
		return br
	}
	if rdr != '\uFEFF' {
		br.UnreadRune()
	}
	return br
}
