// Package cache keeps recently read partition blobs on local disk.
// Blobs are immutable once committed, so entries never go stale; the
// only reason to drop one is capacity.
package cache

import (
	"container/list"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Metrics counts cache activity since construction.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int64
	SizeBytes int64
}

type entry struct {
	objectPath string
	localPath  string
	sizeBytes  int64
	elem       *list.Element
}

// BlobCache is a capacity-bounded LRU cache of partition blobs on local
// disk. Get returns a path the caller may read directly; the file can
// be evicted after the caller is done with it, so callers must finish
// reading before touching the cache again.
type BlobCache struct {
	dir      string
	maxBytes int64

	mu        sync.Mutex
	entries   map[string]*entry
	lru       *list.List // front = most recent
	sizeBytes int64
	hits      int64
	misses    int64
	evictions int64
}

// NewBlobCache creates a cache rooted at dir holding at most maxBytes
// of blob data. The directory is created if needed; leftover files from
// a previous run are removed rather than trusted.
func NewBlobCache(dir string, maxBytes int64) (*BlobCache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("cache: capacity must be positive, got %d", maxBytes)
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("cache: clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: create %s: %w", dir, err)
	}
	return &BlobCache{
		dir:      dir,
		maxBytes: maxBytes,
		entries:  make(map[string]*entry),
		lru:      list.New(),
	}, nil
}

// Get returns the local path of a cached blob, marking it most recently
// used.
func (c *BlobCache) Get(objectPath string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[objectPath]
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	c.lru.MoveToFront(e.elem)
	return e.localPath, true
}

// Put copies sourcePath into the cache under the blob's object path,
// evicting least recently used entries to stay within capacity. A blob
// larger than the whole cache is not admitted.
func (c *BlobCache) Put(objectPath, sourcePath string) error {
	fi, err := os.Stat(sourcePath)
	if err != nil {
		return fmt.Errorf("cache: stat %s: %w", sourcePath, err)
	}
	size := fi.Size()
	if size > c.maxBytes {
		return nil
	}

	localPath := filepath.Join(c.dir, fileName(objectPath))
	if err := copyFile(sourcePath, localPath); err != nil {
		return fmt.Errorf("cache: admit %s: %w", objectPath, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[objectPath]; ok {
		// Same immutable blob written twice; keep the fresh copy.
		c.sizeBytes -= old.sizeBytes
		c.lru.Remove(old.elem)
	}
	e := &entry{objectPath: objectPath, localPath: localPath, sizeBytes: size}
	e.elem = c.lru.PushFront(e)
	c.entries[objectPath] = e
	c.sizeBytes += size

	for c.sizeBytes > c.maxBytes {
		c.evictOldest()
	}
	return nil
}

// Remove drops a blob from the cache, if present. The collector calls
// this after deleting the blob from the object store.
func (c *BlobCache) Remove(objectPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[objectPath]
	if !ok {
		return
	}
	c.drop(e)
}

// Metrics returns a snapshot of cache counters.
func (c *BlobCache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   int64(len(c.entries)),
		SizeBytes: c.sizeBytes,
	}
}

func (c *BlobCache) evictOldest() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.drop(back.Value.(*entry))
	c.evictions++
}

func (c *BlobCache) drop(e *entry) {
	c.lru.Remove(e.elem)
	delete(c.entries, e.objectPath)
	c.sizeBytes -= e.sizeBytes
	if err := os.Remove(e.localPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] cache: remove %s: %v", e.localPath, err)
	}
}

// fileName flattens an object path into one cache file name.
func fileName(objectPath string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(objectPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
