package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelfx.dev/internal/persistence/indexdb"
	"voxelfx.dev/internal/sim/catalogs"
	"voxelfx.dev/internal/sim/region"
	"voxelfx.dev/internal/sim/tuning"
)

// runtimeIndex is the read model behind the admin totals endpoint. It never
// feeds back into the simulation.
type runtimeIndex interface {
	region.Indexer
	Close() error
	UpsertCatalogs(cat *catalogs.Catalog, tune tuning.Tuning) error
	Stats() indexdb.Stats
	EndingTotals(ctx context.Context, regionID string) ([]indexdb.EndingTotal, error)
	PairTotals(ctx context.Context, regionID string) ([]indexdb.PairTotal, error)
}

func openRuntimeIndex(regionDir string, tune tuning.Tuning, disableDB bool) (runtimeIndex, error) {
	if disableDB || !tune.Index.Enabled {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VFX_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(regionDir, "index", "region.sqlite")
		idx, err := indexdb.OpenSQLite(dbPath, tune.Index.Queue)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported VFX_INDEX_BACKEND: %s", backend)
	}
}
