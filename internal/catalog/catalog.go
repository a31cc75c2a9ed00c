package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// Catalog turns files on disk into Dataset/File rows, via the adapter
// registered for a SourceDatasetType, and answers filtered queries over
// what has been ingested.
type Catalog struct {
	store  store.Store
	logger *slog.Logger
}

// New returns a Catalog backed by st. A nil logger falls back to
// slog.Default().
func New(st store.Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: st, logger: logger}
}

// Ingest walks paths (directories are walked recursively, files are
// taken as-is) for entries matching the adapter's FilePattern, extracts
// metadata from each in parallel, and upserts the resulting
// Dataset/File rows. Extraction failures are either fatal or skipped
// according to opts.SkipInvalid.
func (c *Catalog) Ingest(ctx context.Context, sourceType types.SourceDatasetType, paths []string, opts types.IngestOptions) (types.IngestSummary, error) {
	adapter, ok := Get(sourceType)
	if !ok {
		return types.IngestSummary{}, fmt.Errorf("catalog: no adapter registered for source type %q", sourceType)
	}

	files, err := discoverFiles(paths, adapter.FilePattern())
	if err != nil {
		return types.IngestSummary{}, err
	}

	njobs := opts.NJobs
	if njobs <= 0 {
		njobs = 1
	}

	var (
		summary types.IngestSummary
		mu      sync.Mutex // guards summary and the store writes below
	)
	summary.FilesSeen = len(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(njobs)

	for _, path := range files {
		path := path
		g.Go(func() error {
			meta, err := adapter.ExtractFileMetadata(gctx, path, opts)
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				if opts.SkipInvalid {
					summary.FilesSkipped++
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
					return nil
				}
				return fmt.Errorf("catalog: extracting %s: %w", path, err)
			}

			instanceID, version := adapter.DeriveDatasetKey(meta)
			facets := make(map[string]string, len(meta.Facets))
			for k, v := range meta.Facets {
				if k != "version" {
					facets[k] = v
				}
			}

			mu.Lock()
			defer mu.Unlock()
			ds, err := c.store.UpsertDataset(gctx, types.Dataset{
				SourceType: sourceType,
				InstanceID: instanceID,
				Version:    version,
				Facets:     facets,
			})
			if err != nil {
				if opts.SkipInvalid {
					summary.FilesSkipped++
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
					return nil
				}
				return fmt.Errorf("catalog: upserting dataset for %s: %w", path, err)
			}

			if _, err := c.store.InsertFile(gctx, types.File{
				DatasetID:  ds.ID,
				Path:       meta.Path,
				Size:       meta.Size,
				Checksum:   meta.Checksum,
				VariableID: meta.VariableID,
				StartTime:  meta.StartTime,
				EndTime:    meta.EndTime,
			}); err != nil {
				if opts.SkipInvalid {
					summary.FilesSkipped++
					summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
					return nil
				}
				return fmt.Errorf("catalog: inserting file %s: %w", path, err)
			}

			summary.DatasetsUpdated++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	c.logger.Info("ingest complete",
		"source_type", sourceType,
		"files_seen", summary.FilesSeen,
		"files_skipped", summary.FilesSkipped,
		"datasets_updated", summary.DatasetsUpdated,
	)
	return summary, nil
}

// discoverFiles expands each input path: a directory is walked
// recursively for entries matching pattern, a file is included as-is.
func discoverFiles(paths []string, pattern string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if matchPattern(pattern, d.Name()) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Query returns the catalog rows for sourceType matching filters
// (a conjunction within each Filter, union across Filters per
// store.QueryCatalog semantics).
func (c *Catalog) Query(ctx context.Context, sourceType types.SourceDatasetType, filters []store.DatasetFilter) ([]store.CatalogRow, error) {
	return c.store.QueryCatalog(ctx, sourceType, filters)
}

// List returns one row per active dataset of sourceType, projected onto
// columns (facet names, plus "instance_id" and "version"), deduplicated.
// An empty columns list returns instance_id and version only.
func (c *Catalog) List(ctx context.Context, sourceType types.SourceDatasetType, columns []string, limit int) ([]map[string]string, error) {
	datasets, err := c.store.ListActiveDatasets(ctx, sourceType)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		columns = []string{"instance_id", "version"}
	}

	seen := make(map[string]bool, len(datasets))
	rows := make([]map[string]string, 0, len(datasets))
	for _, ds := range datasets {
		row := make(map[string]string, len(columns))
		for _, col := range columns {
			switch col {
			case "instance_id":
				row[col] = ds.InstanceID
			case "version":
				row[col] = ds.Version
			default:
				row[col] = ds.Facets[col]
			}
		}
		key := fmt.Sprint(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

func matchPattern(pattern, name string) bool {
	ok, _ := filepath.Match(pattern, name)
	return ok
}
