// Package version coordinates optimistic-concurrency commits and
// time-travel resolution on top of the catalog.
package version

import (
	"context"
	"fmt"
	"log"

	"github.com/stratadb/strata/internal/catalog"
	serrors "github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/partition"
	"github.com/stratadb/strata/pkg/types"
)

// DefaultCommitRetries is how many times a commit is rebuilt and
// retried after losing a concurrency race.
const DefaultCommitRetries = 3

// Proposal is the outcome of preparing a commit against a base version:
// the schema of the new version, the partitions carried over from the
// base, and freshly uploaded partitions.
type Proposal struct {
	Schema types.Schema
	Keep   []string
	New    []*partition.Info
}

// ProposeFunc builds a proposal against the given base version. It is
// re-invoked with a fresh base after every lost race, so it must be
// safe to call multiple times.
type ProposeFunc func(ctx context.Context, base *catalog.TableVersion) (*Proposal, error)

// Manager serializes table mutations through CommitVersion's
// compare-and-swap, retrying lost races a bounded number of times.
type Manager struct {
	catalog    catalog.Catalog
	maxRetries int
}

// NewManager wires a Manager over the catalog. retries <= 0 selects
// DefaultCommitRetries.
func NewManager(cat catalog.Catalog, retries int) *Manager {
	if retries <= 0 {
		retries = DefaultCommitRetries
	}
	return &Manager{catalog: cat, maxRetries: retries}
}

// Commit reads the table's current version, asks propose to build the
// next one against it, and attempts the compare-and-swap commit. A
// Conflict means another writer won; the whole cycle restarts from the
// new current version. After maxRetries lost races the commit fails
// with WriteContention.
func (m *Manager) Commit(ctx context.Context, tableID string, propose ProposeFunc) (*catalog.TableVersion, error) {
	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		base, err := m.catalog.GetCurrentVersion(ctx, tableID)
		if err != nil {
			return nil, err
		}

		prop, err := propose(ctx, base)
		if err != nil {
			return nil, err
		}

		v, err := m.catalog.CommitVersion(ctx, tableID, base.Number, prop.Schema, prop.Keep, prop.New)
		if err == nil {
			return v, nil
		}
		if !serrors.HasCode(err, serrors.CodeConflict) {
			return nil, err
		}
		lastErr = err
		log.Printf("[WARN] version: commit race on table %s at version %d (attempt %d/%d)",
			tableID, base.Number, attempt+1, m.maxRetries+1)
	}
	return nil, serrors.NewWriteContention(
		fmt.Sprintf("table %s: gave up after %d commit attempts", tableID, m.maxRetries+1), lastErr)
}
