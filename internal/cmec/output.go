// Package cmec implements the CMEC output-bundle (output.json) and
// diagnostic-bundle (diagnostic.json) JSON envelopes, ported from the
// reference implementation's pycmec.output/pycmec.metric modules.
// Go structs replace pydantic's runtime validation with explicit
// Validate methods, and "optional, omitted when empty" fields use
// omitempty rather than Python's Optional[...] = None, to get the same
// null-key-omission round-trip behaviour through encoding/json.
package cmec

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// OutputEntry describes one plot/data/html/metrics asset referenced by
// an OutputBundle.
type OutputEntry struct {
	Filename    string `json:"filename"`
	LongName    string `json:"long_name"`
	Description string `json:"description"`
}

// OutputProvenance records the environment and input datasets used to
// produce an OutputBundle.
type OutputProvenance struct {
	Environment map[string]string `json:"environment"`
	ModelData   []string          `json:"modeldata"`
	ObsData     map[string]string `json:"obsdata"`
	Log         string            `json:"log"`
}

// OutputBundle is the top-level CMEC output.json envelope.
type OutputBundle struct {
	Index      string                 `json:"index,omitempty"`
	Provenance OutputProvenance       `json:"provenance"`
	Data       map[string]OutputEntry `json:"data,omitempty"`
	Plots      map[string]OutputEntry `json:"plots,omitempty"`
	HTML       map[string]OutputEntry `json:"html,omitempty"`
	Metrics    map[string]OutputEntry `json:"metrics,omitempty"`
}

// Update adds or replaces one entry under the given section ("data",
// "plots", "html", or "metrics"), mirroring CMECOutput.update.
func (b *OutputBundle) Update(section, shortName string, entry OutputEntry) error {
	target, err := b.section(section)
	if err != nil {
		return err
	}
	*target = mapOrNew(*target)
	(*target)[shortName] = entry
	return nil
}

func (b *OutputBundle) section(name string) (*map[string]OutputEntry, error) {
	switch name {
	case "data":
		return &b.Data, nil
	case "plots":
		return &b.Plots, nil
	case "html":
		return &b.HTML, nil
	case "metrics":
		return &b.Metrics, nil
	default:
		return nil, fmt.Errorf("cmec: unknown output bundle section %q", name)
	}
}

// Manifest flattens every section's entries into the OutputManifestEntry
// rows Store.RecordOutputs expects, inferring OutputType from each
// entry's filename extension. Entries are returned sorted by RelPath for
// deterministic persistence order.
func (b OutputBundle) Manifest() []types.OutputManifestEntry {
	var out []types.OutputManifestEntry
	sections := map[string]map[string]OutputEntry{
		"data": b.Data, "plots": b.Plots, "html": b.HTML, "metrics": b.Metrics,
	}
	for _, section := range sections {
		for _, entry := range section {
			out = append(out, types.OutputManifestEntry{
				RelPath:     entry.Filename,
				Type:        outputTypeFromFilename(entry.Filename),
				Description: entry.Description,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

func outputTypeFromFilename(name string) types.OutputType {
	switch {
	case strings.HasSuffix(name, ".html"), strings.HasSuffix(name, ".htm"):
		return types.OutputHTML
	case strings.HasSuffix(name, ".nc"):
		return types.OutputNC
	case strings.HasSuffix(name, ".csv"):
		return types.OutputCSV
	case strings.HasSuffix(name, ".png"):
		return types.OutputPNG
	case strings.HasSuffix(name, ".json"):
		return types.OutputJSON
	case strings.HasSuffix(name, ".log"):
		return types.OutputLog
	default:
		return types.OutputJSON
	}
}

func mapOrNew(m map[string]OutputEntry) map[string]OutputEntry {
	if m == nil {
		return map[string]OutputEntry{}
	}
	return m
}

// DumpToJSON writes b to path as indented JSON.
func (b OutputBundle) DumpToJSON(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadOutputBundleFromJSON reads and parses a CMEC output.json file.
func LoadOutputBundleFromJSON(path string) (OutputBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return OutputBundle{}, err
	}
	var b OutputBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return OutputBundle{}, fmt.Errorf("cmec: parsing output bundle: %w", err)
	}
	return b, nil
}
