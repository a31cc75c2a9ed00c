package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/interlock/internal/catalog/netcdf"
	"github.com/dwsmith1983/interlock/pkg/types"
)

func init() {
	Register(cmip6Adapter{})
}

// cmip6Adapter implements the CMIP6 Data Reference Syntax source type.
// Two extraction modes are supported, selected by types.IngestOptions.Parser:
//
//   - drs: facets come purely from the path segments
//     .../mip_era/activity_id/institution_id/source_id/experiment_id/
//     member_id/table_id/variable_id/grid_label/version/filename.nc;
//     the file itself is opened only to stat its size and hash its
//     contents for the checksum, which every mode computes.
//   - complete: the file's global attributes are read (see
//     internal/catalog/netcdf) and override the path-derived facets
//     where present.
type cmip6Adapter struct{}

func (cmip6Adapter) SourceType() types.SourceDatasetType { return types.SourceCMIP6 }

func (cmip6Adapter) FilePattern() string { return "*.nc" }

var cmip6DRSFacets = []string{
	"mip_era", "activity_id", "institution_id", "source_id",
	"experiment_id", "member_id", "table_id", "variable_id", "grid_label",
}

func (a cmip6Adapter) ExtractFileMetadata(ctx context.Context, path string, opts types.IngestOptions) (FileMetadata, error) {
	facets, version, err := a.drsFacets(path)
	if err != nil {
		return FileMetadata{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileMetadata{}, err
	}

	meta := FileMetadata{
		Path:       path,
		Size:       info.Size(),
		VariableID: facets["variable_id"],
		Facets:     facets,
	}
	meta.Facets["version"] = version

	if opts.Parser == types.ParserComplete {
		attrs, err := netcdf.GlobalAttributes(path)
		if err != nil {
			return FileMetadata{}, fmt.Errorf("cmip6: reading attributes of %s: %w", path, err)
		}
		for _, facet := range cmip6DRSFacets {
			if v, ok := attrs[facet]; ok && v != "" {
				meta.Facets[facet] = v
			}
		}
		if v, ok := attrs["variable_id"]; ok && v != "" {
			meta.VariableID = v
		}
	}

	checksum, err := sha256File(path)
	if err != nil {
		return FileMetadata{}, err
	}
	meta.Checksum = checksum

	return meta, nil
}

// drsFacets extracts the nine DRS facets and the version directory from
// the path segments preceding the filename, with no file I/O.
func (cmip6Adapter) drsFacets(path string) (map[string]string, string, error) {
	dir := filepath.Dir(path)
	segments := strings.Split(filepath.ToSlash(dir), "/")
	if len(segments) < len(cmip6DRSFacets)+1 {
		return nil, "", fmt.Errorf("cmip6: %s does not have enough DRS path segments", path)
	}

	tail := segments[len(segments)-(len(cmip6DRSFacets)+1):]
	version := strings.TrimPrefix(tail[len(cmip6DRSFacets)], "v")

	facets := make(map[string]string, len(cmip6DRSFacets))
	for i, name := range cmip6DRSFacets {
		facets[name] = tail[i]
	}
	return facets, version, nil
}

func (cmip6Adapter) DeriveDatasetKey(meta FileMetadata) (instanceID, version string) {
	parts := make([]string, len(cmip6DRSFacets))
	for i, facet := range cmip6DRSFacets {
		parts[i] = meta.Facets[facet]
	}
	return strings.Join(parts, "."), meta.Facets["version"]
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
