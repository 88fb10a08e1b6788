// Package assets handles MD5 asset loading from directories and pk4
// archives, with an in-memory cache.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/md5skel/internal/logger"
	"github.com/Faultbox/md5skel/pkg/encoding"
	"github.com/Faultbox/md5skel/pkg/formats"
	"github.com/Faultbox/md5skel/pkg/pk4"
)

// ErrNotFound is returned when no source holds a path.
var ErrNotFound = errors.New("asset not found")

// source is one place assets are read from.
type source interface {
	Name() string
	Read(path string) ([]byte, error)
	Close() error
}

// Manager handles asset loading from directories and pk4 archives.
// Sources are searched in reverse order (last added = highest priority).
// A path that matches no source is finally tried as a plain file.
type Manager struct {
	sources []source
	cache   *Cache
	mu      sync.RWMutex
	log     *zap.Logger
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
		log:   logger.Named("assets"),
	}
}

// AddPath adds a directory or a .pk4 archive. For a directory, the pk4
// archives directly inside it are added after the directory itself so
// they take priority, like a game's base folder.
func (m *Manager) AddPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("adding asset path: %w", err)
	}

	if !info.IsDir() {
		return m.AddArchive(path)
	}

	m.AddDir(path)
	paks, err := pk4.Collect(path)
	if err != nil {
		return err
	}
	for _, p := range paks {
		if err := m.AddArchive(p); err != nil {
			return err
		}
	}
	return nil
}

// AddDir adds a loose-file directory.
func (m *Manager) AddDir(dir string) {
	m.mu.Lock()
	m.sources = append(m.sources, dirSource{root: dir})
	m.mu.Unlock()

	m.log.Debug("added directory", zap.String("path", dir))
}

// AddArchive adds a pk4 archive to the manager.
func (m *Manager) AddArchive(path string) error {
	archive, err := pk4.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	m.sources = append(m.sources, archiveSource{archive})
	m.mu.Unlock()

	m.log.Debug("added archive", zap.String("path", path), zap.Int("files", len(archive.List())))
	return nil
}

// Load loads a file from the sources.
func (m *Manager) Load(path string) ([]byte, error) {
	key := encoding.NormalizePath(path)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.sources) - 1; i >= 0; i-- {
		data, err := m.sources[i].Read(path)
		if err == nil {
			m.log.Debug("loaded asset", zap.String("path", path), zap.String("source", m.sources[i].Name()))
			m.cache.Set(key, data)
			return data, nil
		}
	}

	data, err := os.ReadFile(path)
	if err == nil {
		m.cache.Set(key, data)
		return data, nil
	}

	return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
}

// LoadModel loads and parses an md5mesh.
func (m *Manager) LoadModel(path string) (*formats.MD5Mesh, error) {
	data, err := m.Load(path)
	if err != nil {
		return nil, err
	}
	model, err := formats.ParseMD5Mesh(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	m.log.Info("loaded model",
		zap.String("path", path),
		zap.Int("joints", len(model.Joints)),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("vertices", model.TotalVertexCount()),
		zap.Int("triangles", model.TotalTriangleCount()))
	if len(model.Joints) == 0 {
		m.log.Warn("model has no joints", zap.String("path", path))
	}
	return model, nil
}

// LoadAnimation loads and parses an md5anim.
func (m *Manager) LoadAnimation(path string) (*formats.MD5Anim, error) {
	data, err := m.Load(path)
	if err != nil {
		return nil, err
	}
	anim, err := formats.ParseMD5Anim(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	m.log.Info("loaded animation",
		zap.String("path", path),
		zap.Int("joints", len(anim.Hierarchy)),
		zap.Int("frames", len(anim.Frames)),
		zap.Int("frameRate", anim.FrameRate))
	if len(anim.Frames) == 0 {
		m.log.Warn("animation has no frames", zap.String("path", path))
	}
	return anim, nil
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		if err := s.Close(); err != nil {
			m.log.Warn("closing source", zap.String("source", s.Name()), zap.Error(err))
		}
	}
	m.sources = nil
	m.cache.Clear()
}

// CacheStats returns cache hit and miss counts.
func (m *Manager) CacheStats() (hits, misses int) {
	return m.cache.Stats()
}

type dirSource struct {
	root string
}

func (d dirSource) Name() string { return d.root }

func (d dirSource) Read(path string) ([]byte, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(path, "\\", "/"))
	if filepath.IsAbs(rel) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(d.root, rel))
	if err == nil {
		return data, nil
	}
	// Assets are usually referenced in lower case.
	return os.ReadFile(filepath.Join(d.root, filepath.FromSlash(encoding.NormalizePath(path))))
}

func (d dirSource) Close() error { return nil }

type archiveSource struct {
	*pk4.Archive
}

func (a archiveSource) Name() string { return a.Path() }

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
