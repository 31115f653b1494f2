package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"x-media-scraper/internal/database/models"
	"x-media-scraper/internal/export"
	"x-media-scraper/pkg/types"
)

// PostStore is the read side of the posts archive.
type PostStore interface {
	GetPostsWithPagination(mediaType string, limit, offset int) ([]*models.Post, error)
	GetPostsCount(mediaType string) (int, error)
	GetPostsByUser(username string, limit int) ([]*models.Post, error)
	GetPostsForExport(username string) ([]*models.Post, error)
	GetScrapingStats() (map[string]interface{}, error)
	Ping() error
}

type Server struct {
	store  PostStore
	logger *logrus.Logger
	port   string
	mux    *http.ServeMux
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   int         `json:"count,omitempty"`
}

type PostsResponse struct {
	Posts      []*models.Post `json:"posts"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}

func NewServer(store PostStore, logger *logrus.Logger, port string) *Server {
	s := &Server{
		store:  store,
		logger: logger,
		port:   port,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Infof("Starting API server on port %s", s.port)
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/", s.corsMiddleware(s.handleRoot))
	s.mux.HandleFunc("/api/posts", s.corsMiddleware(s.handlePosts))
	s.mux.HandleFunc("/api/posts/user/", s.corsMiddleware(s.handlePostsByUser))
	s.mux.HandleFunc("/api/stats", s.corsMiddleware(s.handleStats))
	s.mux.HandleFunc("/api/export/csv", s.corsMiddleware(s.handleExportCSV))
	s.mux.HandleFunc("/api/health", s.corsMiddleware(s.handleHealth))
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, "Not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]string{
			"message":   "X Media Scraper API",
			"version":   "1.0.0",
			"endpoints": "/api/posts, /api/posts/user/{name}, /api/stats, /api/export/csv, /api/health",
		},
	})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}

	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	mediaType := query.Get("media_type")
	switch types.MediaType(mediaType) {
	case "", types.MediaVideo, types.MediaPhoto, types.MediaUnknown:
	default:
		s.writeError(w, fmt.Sprintf("Unknown media type %q", mediaType), http.StatusBadRequest)
		return
	}

	posts, err := s.store.GetPostsWithPagination(mediaType, pageSize, (page-1)*pageSize)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts: %v", err), http.StatusInternalServerError)
		return
	}

	totalCount, err := s.store.GetPostsCount(mediaType)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to get total count: %v", err), http.StatusInternalServerError)
		return
	}

	if posts == nil {
		posts = []*models.Post{}
	}
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: PostsResponse{
			Posts:      posts,
			TotalCount: totalCount,
			Page:       page,
			PageSize:   pageSize,
		},
		Count: len(posts),
	})
}

func (s *Server) handlePostsByUser(w http.ResponseWriter, r *http.Request) {
	username := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/posts/user/"), "/")
	if username == "" {
		s.writeError(w, "Username is required", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	posts, err := s.store.GetPostsByUser(username, limit)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts for user: %v", err), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    posts,
		Count:   len(posts),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetScrapingStats()
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch stats: %v", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: stats})
}

// handleExportCSV streams the archive in the collector's CSV format.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	records, err := s.store.GetPostsForExport(username)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to fetch posts for export: %v", err), http.StatusInternalServerError)
		return
	}

	posts := make([]types.Post, 0, len(records))
	for _, record := range records {
		posts = append(posts, record.ToPost())
	}

	name := username
	if name == "" {
		name = "all"
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(name, time.Now())))

	if err := export.Write(w, posts); err != nil {
		s.logger.Errorf("Failed to write CSV export: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.writeError(w, "Database connection failed", http.StatusServiceUnavailable)
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"database":  "connected",
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
