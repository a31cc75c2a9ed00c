// Package catalog turns files on disk into Dataset/File rows and answers
// filtered queries over them. Source types are added by registering an
// Adapter in a static compile-time table — never by dynamic/plugin
// loading — mirroring the teacher's archetype.Registry.Get lookup.
package catalog

import (
	"context"
	"time"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// FileMetadata is what an Adapter extracts from one file on disk.
type FileMetadata struct {
	Path       string
	Size       int64
	Checksum   string
	VariableID string
	StartTime  *time.Time
	EndTime    *time.Time
	Facets     map[string]string
}

// Adapter is the polymorphism point for a catalog source type:
// ExtractFileMetadata(path) -> record, DeriveDatasetKey(record) ->
// (instance_id, version), exactly as spec'd.
type Adapter interface {
	SourceType() types.SourceDatasetType
	// FilePattern is the glob suffix pattern files of this source type
	// must match (e.g. "*.nc").
	FilePattern() string
	ExtractFileMetadata(ctx context.Context, path string, opts types.IngestOptions) (FileMetadata, error)
	DeriveDatasetKey(meta FileMetadata) (instanceID, version string)
}

var registry = map[types.SourceDatasetType]Adapter{}

// Register adds an adapter to the static registry. Called from each
// adapter's init().
func Register(a Adapter) {
	registry[a.SourceType()] = a
}

// Get returns the registered adapter for a source type.
func Get(sourceType types.SourceDatasetType) (Adapter, bool) {
	a, ok := registry[sourceType]
	return a, ok
}
