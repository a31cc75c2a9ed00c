package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/interlock/pkg/types"
)

func init() {
	Register(obs4mipsAdapter{})
}

// obs4mipsAdapter implements the obs4MIPs Data Reference Syntax:
//
//	.../obs4MIPs/institution_id/source_id/frequency/variable_id/
//	grid_label/version/filename.nc
//
// obs4MIPs has no "complete" attribute-read mode in this implementation —
// observational archives are small enough, and varied enough in global
// attribute conventions across institutions, that the path-derived
// facets are the only ones trusted.
type obs4mipsAdapter struct{}

func (obs4mipsAdapter) SourceType() types.SourceDatasetType { return types.SourceObs4MIPs }

func (obs4mipsAdapter) FilePattern() string { return "*.nc" }

var obs4mipsDRSFacets = []string{
	"activity_id", "institution_id", "source_id", "frequency", "variable_id", "grid_label",
}

func (a obs4mipsAdapter) ExtractFileMetadata(ctx context.Context, path string, opts types.IngestOptions) (FileMetadata, error) {
	dir := filepath.Dir(path)
	segments := strings.Split(filepath.ToSlash(dir), "/")
	if len(segments) < len(obs4mipsDRSFacets)+1 {
		return FileMetadata{}, fmt.Errorf("obs4mips: %s does not have enough DRS path segments", path)
	}

	tail := segments[len(segments)-(len(obs4mipsDRSFacets)+1):]
	version := strings.TrimPrefix(tail[len(obs4mipsDRSFacets)], "v")

	facets := make(map[string]string, len(obs4mipsDRSFacets)+1)
	for i, name := range obs4mipsDRSFacets {
		facets[name] = tail[i]
	}
	facets["version"] = version

	info, err := os.Stat(path)
	if err != nil {
		return FileMetadata{}, err
	}

	checksum, err := sha256File(path)
	if err != nil {
		return FileMetadata{}, err
	}

	return FileMetadata{
		Path:       path,
		Size:       info.Size(),
		Checksum:   checksum,
		VariableID: facets["variable_id"],
		Facets:     facets,
	}, nil
}

func (obs4mipsAdapter) DeriveDatasetKey(meta FileMetadata) (instanceID, version string) {
	parts := make([]string, len(obs4mipsDRSFacets))
	for i, facet := range obs4mipsDRSFacets {
		parts[i] = meta.Facets[facet]
	}
	return strings.Join(parts, "."), meta.Facets["version"]
}
