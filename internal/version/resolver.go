package version

import (
	"context"
	"time"

	"github.com/stratadb/strata/internal/catalog"
	serrors "github.com/stratadb/strata/internal/errors"
)

// TravelSpec selects a historical version: by wall-clock instant, by
// exact version number, or neither for the current version. Setting
// both is rejected.
type TravelSpec struct {
	At      *time.Time
	Version *int64
}

// Resolver maps travel specs to concrete table versions.
type Resolver struct {
	catalog catalog.Catalog
}

func NewResolver(cat catalog.Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve returns the version the spec selects. Timestamp resolution
// picks the newest version created at or before the instant; an
// instant before the table existed fails with NoSuchVersion.
func (r *Resolver) Resolve(ctx context.Context, tableID string, spec TravelSpec) (*catalog.TableVersion, error) {
	if spec.At != nil && spec.Version != nil {
		return nil, serrors.NewInternal("travel spec sets both timestamp and version number", nil)
	}
	switch {
	case spec.Version != nil:
		return r.catalog.GetVersion(ctx, tableID, *spec.Version)
	case spec.At != nil:
		return r.catalog.GetVersionAt(ctx, tableID, *spec.At)
	default:
		return r.catalog.GetCurrentVersion(ctx, tableID)
	}
}

// ResolveScan resolves the spec and loads the version's partition set
// in one step, which is what every read path needs.
func (r *Resolver) ResolveScan(ctx context.Context, tableID string, spec TravelSpec) (*catalog.TableVersion, []*catalog.PartitionRecord, error) {
	v, err := r.Resolve(ctx, tableID, spec)
	if err != nil {
		return nil, nil, err
	}
	parts, err := r.catalog.ListPartitions(ctx, v.VersionID)
	if err != nil {
		return nil, nil, err
	}
	return v, parts, nil
}
