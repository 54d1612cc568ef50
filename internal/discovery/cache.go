// Package discovery implements the compose-project discovery pipeline
// (C5-C7): a per-host JSON cache, a bounded filesystem scanner, and a
// three-layer resolver that prefers the cache, falls back to a live
// `docker compose ls` query, and finally scans the filesystem — writing
// through to the cache at each successful layer. The cache's atomic
// write-temp-then-rename discipline and tolerate-corruption read path
// mirror the teacher's encrypted discovery store, generalized from one
// encrypted-blob-per-resource file to one plain JSON file per host (compose
// project paths are not secrets, so no crypto.Manager is wired in here).
package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcourtman/dockfleet/internal/logging"
)

// DefaultTTL is the freshness window for a project entry (§3, §6.4).
const DefaultTTL = 24 * time.Hour

// ProjectEntry is one cached (host, project) resolution.
type ProjectEntry struct {
	Path           string    `json:"path"`
	Name           string    `json:"name"`
	DiscoveredFrom string    `json:"discoveredFrom"` // docker-ls|scan
	LastSeen       time.Time `json:"lastSeen"`
}

// hostCacheFile is the on-disk shape of one host's cache file.
type hostCacheFile struct {
	LastScan    time.Time               `json:"lastScan"`
	SearchPaths []string                `json:"searchPaths"`
	Projects    map[string]ProjectEntry `json:"projects"`
}

// Cache is the in-memory, disk-backed discovery cache (C5). One JSON file
// per host lives under dir/<host>.json. In-memory state and file writes
// are serialized by a single mutex shared by all hosts, so one host's
// cache traffic does block another's.
type Cache struct {
	dir string
	ttl time.Duration
	log zerolog.Logger

	mu     sync.Mutex
	byHost map[string]*hostCacheFile
}

// NewCache opens a Cache rooted at dir, creating it if absent.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl, log: logging.For("discovery.cache"), byHost: make(map[string]*hostCacheFile)}, nil
}

func (c *Cache) filePath(host string) string {
	return filepath.Join(c.dir, host+".json")
}

// load reads a host's cache file into memory if not already loaded,
// tolerating absence or corruption by treating the cache as empty (§4.5).
func (c *Cache) load(host string) *hostCacheFile {
	if f, ok := c.byHost[host]; ok {
		return f
	}

	f := &hostCacheFile{Projects: make(map[string]ProjectEntry)}
	data, err := os.ReadFile(c.filePath(host))
	if err == nil {
		if jsonErr := json.Unmarshal(data, f); jsonErr != nil {
			c.log.Warn().Err(jsonErr).Str("host", host).Msg("discovery cache corrupt, treating as empty")
			f = &hostCacheFile{Projects: make(map[string]ProjectEntry)}
		}
	}
	if f.Projects == nil {
		f.Projects = make(map[string]ProjectEntry)
	}
	c.byHost[host] = f
	return f
}

// persist atomically rewrites a host's cache file (write-temp + rename).
func (c *Cache) persist(host string, f *hostCacheFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	path := c.filePath(host)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// GetProject returns a fresh cache entry for (host, project), or false if
// absent or stale.
func (c *Cache) GetProject(host, project string) (ProjectEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.load(host)
	entry, ok := f.Projects[project]
	if !ok {
		return ProjectEntry{}, false
	}
	if time.Since(entry.LastSeen) > c.ttl {
		return ProjectEntry{}, false
	}
	return entry, true
}

// UpdateProject writes through a new resolution for (host, project).
func (c *Cache) UpdateProject(host, project string, entry ProjectEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.load(host)
	entry.Name = project
	entry.LastSeen = time.Now()
	f.Projects[project] = entry
	return c.persist(host, f)
}

// RemoveProject invalidates a cache entry, used after a downstream
// "no such file" error so the next request re-runs discovery (§4.6, S4).
func (c *Cache) RemoveProject(host, project string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.load(host)
	if _, ok := f.Projects[project]; !ok {
		return nil
	}
	delete(f.Projects, project)
	return c.persist(host, f)
}

// SetSearchPaths records the search roots used for a host's last scan.
func (c *Cache) SetSearchPaths(host string, paths []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.load(host)
	f.SearchPaths = paths
	f.LastScan = time.Now()
	return c.persist(host, f)
}

// Projects returns every cached project entry for a host, fresh or not.
func (c *Cache) Projects(host string) map[string]ProjectEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.load(host)
	out := make(map[string]ProjectEntry, len(f.Projects))
	for k, v := range f.Projects {
		out[k] = v
	}
	return out
}
