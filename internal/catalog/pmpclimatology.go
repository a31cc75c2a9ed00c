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
	Register(pmpClimatologyAdapter{})
}

// pmpClimatologyAdapter implements the PMP pre-computed climatology
// source type. Unlike cmip6/obs4mips, these files live in a flat
// directory (no DRS tree) and carry their facets in the filename:
//
//	{variable_id}.{source_id}.{period}.v{version}.nc
type pmpClimatologyAdapter struct{}

func (pmpClimatologyAdapter) SourceType() types.SourceDatasetType { return types.SourcePMPClimatology }

func (pmpClimatologyAdapter) FilePattern() string { return "*.nc" }

func (a pmpClimatologyAdapter) ExtractFileMetadata(ctx context.Context, path string, opts types.IngestOptions) (FileMetadata, error) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, ".")
	if len(parts) != 4 {
		return FileMetadata{}, fmt.Errorf("pmp-climatology: %s does not match variable.source.period.vVERSION", path)
	}
	variableID, sourceID, period, versionTag := parts[0], parts[1], parts[2], parts[3]
	version := strings.TrimPrefix(versionTag, "v")

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
		VariableID: variableID,
		Facets: map[string]string{
			"variable_id": variableID,
			"source_id":   sourceID,
			"period":      period,
			"version":     version,
		},
	}, nil
}

func (pmpClimatologyAdapter) DeriveDatasetKey(meta FileMetadata) (instanceID, version string) {
	instanceID = strings.Join([]string{meta.Facets["source_id"], meta.Facets["variable_id"], meta.Facets["period"]}, ".")
	return instanceID, meta.Facets["version"]
}
