package http

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ochronus/goneocities/internal/site"
)

type storedFile struct {
	data     []byte
	hash     string
	modified time.Time
}

// listEntry is one element of the list endpoint's files array.
type listEntry struct {
	Path        string `json:"path"`
	IsDirectory bool   `json:"is_directory"`
	UpdatedAt   string `json:"updated_at"`
	SHA1Hash    string `json:"sha1_hash,omitempty"`
	Size        *int64 `json:"size,omitempty"`
}

// siteStore is the in-memory file system of the mock site. Directories are
// implied by the files below them.
type siteStore struct {
	mu        sync.RWMutex
	sitename  string
	createdAt time.Time
	updatedAt *time.Time
	hits      int64
	files     map[string]*storedFile
	now       func() time.Time
}

func newSiteStore(sitename string) *siteStore {
	return &siteStore{
		sitename:  sitename,
		createdAt: time.Now().UTC(),
		files:     make(map[string]*storedFile),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// cleanPath normalizes a client supplied path to the store's root-relative form.
func cleanPath(p string) (string, error) {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%s is not a valid path", p)
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	return cleaned, nil
}

func (s *siteStore) put(files map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for p, data := range files {
		s.files[p] = &storedFile{data: data, hash: site.HashBytes(data), modified: now}
	}
	s.updatedAt = &now
}

func (s *siteStore) isDir(p string) bool {
	prefix := p + "/"
	for name := range s.files {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (s *siteStore) exists(p string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[p]
	return ok || s.isDir(p)
}

// remove deletes files and whole directories.
func (s *siteStore) remove(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		delete(s.files, p)
		prefix := p + "/"
		for name := range s.files {
			if strings.HasPrefix(name, prefix) {
				delete(s.files, name)
			}
		}
	}
	now := s.now()
	s.updatedAt = &now
}

func (s *siteStore) file(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[p]
	if !ok {
		return nil, false
	}
	return f.data, true
}

// list returns every file and implied directory below prefix ("" for all).
func (s *siteStore) list(prefix string) []listEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs := make(map[string]time.Time)
	var entries []listEntry
	for name, f := range s.files {
		if prefix != "" && !strings.HasPrefix(name, prefix+"/") {
			continue
		}
		size := int64(len(f.data))
		entries = append(entries, listEntry{
			Path:      name,
			UpdatedAt: site.FormatRFC2822(f.modified),
			SHA1Hash:  f.hash,
			Size:      &size,
		})

		for dir := path.Dir(name); dir != "." && dir != prefix; dir = path.Dir(dir) {
			if f.modified.After(dirs[dir]) {
				dirs[dir] = f.modified
			}
		}
	}
	for dir, modified := range dirs {
		entries = append(entries, listEntry{
			Path:        dir,
			IsDirectory: true,
			UpdatedAt:   site.FormatRFC2822(modified),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func (s *siteStore) info() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hits++
	var lastUpdated interface{}
	if s.updatedAt != nil {
		lastUpdated = site.FormatRFC2822(*s.updatedAt)
	}
	return map[string]interface{}{
		"sitename":         s.sitename,
		"views":            s.hits,
		"hits":             s.hits,
		"created_at":       site.FormatRFC2822(s.createdAt),
		"last_updated":     lastUpdated,
		"domain":           nil,
		"tags":             []string{},
		"latest_ipfs_hash": nil,
	}
}
