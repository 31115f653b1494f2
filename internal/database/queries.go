package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"x-media-scraper/internal/database/models"
	"x-media-scraper/pkg/types"
)

const postColumns = `id, post_id, username, full_url, media_type, original_href,
               scraped_at, downloaded_path, downloaded_at, created_at, updated_at`

const upsertPost = `
        INSERT INTO posts (
            post_id, username, full_url, media_type, original_href, scraped_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6
        ) ON CONFLICT (post_id) DO UPDATE SET
            media_type = CASE WHEN posts.media_type = 'video' THEN posts.media_type ELSE EXCLUDED.media_type END,
            original_href = CASE WHEN posts.media_type = 'video' THEN posts.original_href ELSE EXCLUDED.original_href END,
            updated_at = NOW()`

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// SavePost inserts a post or refreshes the stored one. A repeat sighting may
// upgrade the media type to video but never downgrades it.
func (db *DB) SavePost(post *models.Post) error {
	return savePost(db.conn, post)
}

// SavePosts saves posts in one transaction.
func (db *DB) SavePosts(posts []types.Post) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, p := range posts {
		if err := savePost(tx, models.FromPost(p)); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit posts: %w", err)
	}

	db.logger.Debugf("Saved %d posts to database", len(posts))
	return nil
}

func savePost(ex execer, post *models.Post) error {
	scrapedAt := post.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now()
	}
	_, err := ex.Exec(upsertPost,
		post.PostID, post.Username, post.FullURL, post.MediaType, post.OriginalHref, scrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save post %s: %w", post.PostID, err)
	}
	return nil
}

// MarkDownloaded records where the video of postID was stored.
func (db *DB) MarkDownloaded(postID, path string) error {
	res, err := db.conn.Exec(`
        UPDATE posts SET downloaded_path = $2, downloaded_at = NOW(), updated_at = NOW()
        WHERE post_id = $1`, postID, path)
	if err != nil {
		return fmt.Errorf("failed to mark %s downloaded: %w", postID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		db.logger.Debugf("Post %s not archived, download not recorded", postID)
	}
	return nil
}

func (db *DB) GetPostsByUser(username string, limit int) ([]*models.Post, error) {
	query := `
        SELECT ` + postColumns + `
        FROM posts
        WHERE LOWER(username) = LOWER($1)
        ORDER BY scraped_at DESC, id DESC
        LIMIT $2`

	rows, err := db.conn.Query(query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// GetPostsByIDs returns the archived posts among ids.
func (db *DB) GetPostsByIDs(ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.conn.Query(`
        SELECT `+postColumns+`
        FROM posts
        WHERE post_id = ANY($1)
        ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query posts by id: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// GetPostsWithPagination retrieves posts with pagination, optionally narrowed
// to one media type.
func (db *DB) GetPostsWithPagination(mediaType string, limit, offset int) ([]*models.Post, error) {
	where, args := mediaTypeClause(mediaType)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
        SELECT %s
        FROM posts
        %s
        ORDER BY scraped_at DESC, id DESC
        LIMIT $%d OFFSET $%d`, postColumns, where, len(args)-1, len(args))

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// GetPostsCount returns total count of posts matching the media type.
func (db *DB) GetPostsCount(mediaType string) (int, error) {
	where, args := mediaTypeClause(mediaType)

	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM posts "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get posts count: %w", err)
	}
	return count, nil
}

// GetPostsForExport retrieves the posts of username in first-archived order.
// An empty username exports every post.
func (db *DB) GetPostsForExport(username string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	var args []interface{}
	if username != "" {
		query += ` WHERE LOWER(username) = LOWER($1)`
		args = append(args, username)
	}
	query += ` ORDER BY id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts for export: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// GetScrapingStats returns archive-wide statistics.
func (db *DB) GetScrapingStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalPosts, downloaded, users int
	err := db.conn.QueryRow(`
        SELECT COUNT(*), COUNT(downloaded_at), COUNT(DISTINCT username) FROM posts
    `).Scan(&totalPosts, &downloaded, &users)
	if err != nil {
		return nil, fmt.Errorf("failed to get post totals: %w", err)
	}
	stats["total_posts"] = totalPosts
	stats["downloaded_videos"] = downloaded
	stats["users_scraped"] = users

	var lastScraped pq.NullTime
	if err := db.conn.QueryRow(`SELECT MAX(scraped_at) FROM posts`).Scan(&lastScraped); err != nil {
		return nil, fmt.Errorf("failed to get last scraped time: %w", err)
	}
	if lastScraped.Valid {
		stats["last_scraped_at"] = lastScraped.Time.Format(time.RFC3339)
	} else {
		stats["last_scraped_at"] = "Never"
	}

	rows, err := db.conn.Query(`SELECT media_type, COUNT(*) FROM posts GROUP BY media_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts by media type: %w", err)
	}
	defer rows.Close()

	byType := make(map[string]int)
	for rows.Next() {
		var mediaType string
		var count int
		if err := rows.Scan(&mediaType, &count); err != nil {
			continue
		}
		byType[mediaType] = count
	}
	stats["posts_by_media_type"] = byType

	topUsers, err := db.GetTopUsers(5)
	if err != nil {
		return nil, err
	}
	stats["top_users"] = topUsers

	return stats, nil
}

// GetTopUsers returns the users with the most archived posts.
func (db *DB) GetTopUsers(limit int) ([]map[string]interface{}, error) {
	rows, err := db.conn.Query(`
        SELECT username, COUNT(*) AS post_count, COUNT(downloaded_at) AS downloaded
        FROM posts
        GROUP BY username
        ORDER BY post_count DESC, username
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top users: %w", err)
	}
	defer rows.Close()

	var users []map[string]interface{}
	for rows.Next() {
		var username string
		var postCount, downloaded int
		if err := rows.Scan(&username, &postCount, &downloaded); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, map[string]interface{}{
			"username":   username,
			"post_count": postCount,
			"downloaded": downloaded,
		})
	}
	return users, rows.Err()
}

func mediaTypeClause(mediaType string) (string, []interface{}) {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return "", nil
	}
	return "WHERE media_type = $1", []interface{}{mediaType}
}

func scanPosts(rows *sql.Rows) ([]*models.Post, error) {
	var posts []*models.Post
	for rows.Next() {
		post := &models.Post{}
		err := rows.Scan(
			&post.ID, &post.PostID, &post.Username, &post.FullURL, &post.MediaType,
			&post.OriginalHref, &post.ScrapedAt, &post.DownloadedPath, &post.DownloadedAt,
			&post.CreatedAt, &post.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
