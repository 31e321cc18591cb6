package partition

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/stratadb/strata/internal/cache"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/pkg/types"
)

// Reader fetches partition blobs from the object store and decodes them.
type Reader struct {
	store   storage.ObjectStorage
	workDir string
	cache   *cache.BlobCache
}

// NewReader creates a partition reader using workDir for staging downloads.
func NewReader(store storage.ObjectStorage, workDir string) *Reader {
	return &Reader{store: store, workDir: workDir}
}

// NewCachedReader creates a reader that keeps downloaded blobs in the
// cache. Blobs are immutable, so cached copies never need revalidation.
func NewCachedReader(store storage.ObjectStorage, workDir string, blobs *cache.BlobCache) *Reader {
	return &Reader{store: store, workDir: workDir, cache: blobs}
}

// ReadRows fetches a partition blob and decodes it into rows ordered by
// the given schema. A cache hit skips the object store entirely.
func (r *Reader) ReadRows(ctx context.Context, objectPath string, schema types.Schema) ([]types.Row, error) {
	if r.cache != nil {
		if localPath, ok := r.cache.Get(objectPath); ok {
			data, err := os.ReadFile(localPath)
			if err == nil {
				rows, _, derr := Decode(schema, data)
				if derr == nil {
					return rows, nil
				}
			}
			// A damaged cache copy falls through to a fresh download.
			r.cache.Remove(objectPath)
		}
	}

	if err := os.MkdirAll(r.workDir, 0755); err != nil {
		return nil, fmt.Errorf("partition: failed to create work directory: %w", err)
	}

	localPath := filepath.Join(r.workDir, "dl-"+uuid.New().String()+".strata")
	defer os.Remove(localPath)

	if err := r.store.Download(ctx, objectPath, localPath); err != nil {
		return nil, fmt.Errorf("partition: failed to download %s: %w", objectPath, err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("partition: failed to read downloaded blob: %w", err)
	}

	rows, _, err := Decode(schema, data)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(objectPath, localPath); err != nil {
			log.Printf("[WARN] partition: cache %s: %v", objectPath, err)
		}
	}
	return rows, nil
}

// ReadFooter fetches only the blob footer using byte-range reads.
func (r *Reader) ReadFooter(ctx context.Context, objectPath string, sizeBytes int64) (*Footer, error) {
	return ReadFooter(ctx, r.store, objectPath, sizeBytes)
}
