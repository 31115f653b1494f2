package downloader

import (
	"path/filepath"
	"strings"
	"sync"
)

// Index tracks post ids that already have an mp4 under the videos directory.
type Index struct {
	mu  sync.RWMutex
	ids map[string]string
}

// BuildIndex scans {videosDir}/*/*.mp4. A missing directory yields an empty index.
func BuildIndex(videosDir string) (*Index, error) {
	idx := &Index{ids: make(map[string]string)}

	matches, err := filepath.Glob(filepath.Join(videosDir, "*", "*.mp4"))
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		stem := strings.TrimSuffix(filepath.Base(match), ".mp4")
		idx.ids[stem] = match
	}
	return idx, nil
}

func (idx *Index) Has(postID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.ids[postID]
	return ok
}

func (idx *Index) Path(postID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ids[postID]
}

func (idx *Index) Add(postID, path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.ids[postID] = path
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}
