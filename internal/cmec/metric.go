package cmec

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// MetricDimensions is the CMEC diagnostic bundle DIMENSIONS object: an
// ordered list of dimension names (json_structure) plus, for each name,
// a nested map of its possible values. Represented as two fields rather
// than one flat map (as the reference implementation's RootModel does)
// because Go has no runtime-dynamic attribute access; MarshalJSON/
// UnmarshalJSON restore the flat on-wire shape.
type MetricDimensions struct {
	JSONStructure []string
	Dims          map[string]map[string]any
}

func (d MetricDimensions) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Dims)+1)
	flat["json_structure"] = d.JSONStructure
	for name, content := range d.Dims {
		flat[name] = content
	}
	return json.Marshal(flat)
}

func (d *MetricDimensions) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	raw, ok := flat["json_structure"]
	if !ok {
		return fmt.Errorf("cmec: DIMENSIONS missing required json_structure key")
	}
	names, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("cmec: json_structure must be a list")
	}
	d.JSONStructure = make([]string, len(names))
	for i, n := range names {
		s, ok := n.(string)
		if !ok {
			return fmt.Errorf("cmec: json_structure entries must be strings")
		}
		d.JSONStructure[i] = s
	}
	d.Dims = make(map[string]map[string]any, len(flat)-1)
	for name, v := range flat {
		if name == "json_structure" {
			continue
		}
		content, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("cmec: dimension %q must be an object", name)
		}
		d.Dims[name] = content
	}
	return d.validate()
}

func (d MetricDimensions) validate() error {
	declared := make(map[string]bool, len(d.JSONStructure))
	for _, n := range d.JSONStructure {
		declared[n] = true
	}
	if len(declared) != len(d.JSONStructure) {
		return fmt.Errorf("cmec: json_structure has duplicate dimension names")
	}
	if len(declared) != len(d.Dims) {
		return fmt.Errorf("cmec: json_structure items do not match DIMENSIONS keys")
	}
	for name := range d.Dims {
		if !declared[name] {
			return fmt.Errorf("cmec: dimension %q is not listed in json_structure", name)
		}
	}
	return nil
}

// AddDimension adds or updates one dimension, appending its name to
// JSONStructure if it wasn't already present.
func (d *MetricDimensions) AddDimension(name string, content map[string]any) {
	if d.Dims == nil {
		d.Dims = map[string]map[string]any{}
	}
	if existing, ok := d.Dims[name]; ok {
		for k, v := range content {
			existing[k] = v
		}
		return
	}
	d.JSONStructure = append(d.JSONStructure, name)
	d.Dims[name] = content
}

// MetricBundle is the top-level CMEC diagnostic.json envelope: a
// DIMENSIONS object describing the nesting of RESULTS, the RESULTS
// themselves (nested per dimension order), and free-form provenance.
type MetricBundle struct {
	Dimensions MetricDimensions `json:"DIMENSIONS"`
	Results    map[string]any   `json:"RESULTS"`
	Provenance map[string]any   `json:"PROVENANCE,omitempty"`
	Disclaimer map[string]any   `json:"DISCLAIMER,omitempty"`
	Notes      string           `json:"NOTES,omitempty"`
}

// ValidateFacets checks that the bundle declares exactly the facets a
// diagnostic declares — all declared facets present, no unknown ones —
// per the store's metric-value validation boundary.
func (b MetricBundle) ValidateFacets(declared []string) error {
	want := append([]string(nil), declared...)
	got := append([]string(nil), b.Dimensions.JSONStructure...)
	sort.Strings(want)
	sort.Strings(got)

	missing := diffSorted(want, got)
	unknown := diffSorted(got, want)
	if len(missing) > 0 {
		return fmt.Errorf("cmec: bundle missing declared facets: %v", missing)
	}
	if len(unknown) > 0 {
		return fmt.Errorf("cmec: bundle declares unknown facets: %v", unknown)
	}
	return nil
}

// Flatten walks RESULTS according to the dimension nesting declared in
// json_structure and returns the leaves as MetricValue rows, tagged with
// the dimension values traversed to reach them. A leaf that is itself a
// map of named statistics (rather than a single scalar) yields one
// MetricValue per statistic, with an additional "statistic" facet — the
// deepest level must still be a scalar, per spec. Flatten never produces
// SeriesMetricValue rows; the CMEC bundle shape has no array-leaf case.
func (b MetricBundle) Flatten() ([]MetricValueRow, error) {
	var out []MetricValueRow
	if err := flattenLevel(b.Results, b.Dimensions.JSONStructure, map[string]string{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MetricValueRow is one flattened RESULTS leaf: the dimension-value
// facets traversed to reach it, plus the scalar value.
type MetricValueRow struct {
	Facets map[string]string
	Value  float64
}

func flattenLevel(node any, remainingDims []string, facets map[string]string, out *[]MetricValueRow) error {
	if len(remainingDims) == 0 {
		return flattenLeaf(node, facets, out)
	}
	obj, ok := node.(map[string]any)
	if !ok {
		return fmt.Errorf("cmec: RESULTS node at dimension %q is not an object", remainingDims[0])
	}
	for key, child := range obj {
		next := make(map[string]string, len(facets)+1)
		for k, v := range facets {
			next[k] = v
		}
		next[remainingDims[0]] = key
		if err := flattenLevel(child, remainingDims[1:], next, out); err != nil {
			return err
		}
	}
	return nil
}

func flattenLeaf(node any, facets map[string]string, out *[]MetricValueRow) error {
	switch v := node.(type) {
	case float64:
		*out = append(*out, MetricValueRow{Facets: facets, Value: v})
		return nil
	case map[string]any:
		// Named statistics: each key is a scalar, not a further nesting.
		for stat, raw := range v {
			scalar, ok := raw.(float64)
			if !ok {
				return fmt.Errorf("cmec: named statistic %q is not a scalar", stat)
			}
			statFacets := make(map[string]string, len(facets)+1)
			for k, fv := range facets {
				statFacets[k] = fv
			}
			statFacets["statistic"] = stat
			*out = append(*out, MetricValueRow{Facets: statFacets, Value: scalar})
		}
		return nil
	default:
		return fmt.Errorf("cmec: RESULTS leaf is neither a scalar nor named statistics: %T", node)
	}
}

// diffSorted returns the elements of a not present in sorted slice b.
func diffSorted(a, b []string) []string {
	bSet := make(map[string]bool, len(b))
	for _, v := range b {
		bSet[v] = true
	}
	var out []string
	for _, v := range a {
		if !bSet[v] {
			out = append(out, v)
		}
	}
	return out
}

// DumpToJSON writes b to path as indented JSON.
func (b MetricBundle) DumpToJSON(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadMetricBundleFromJSON reads and parses a CMEC diagnostic.json file.
func LoadMetricBundleFromJSON(path string) (MetricBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MetricBundle{}, err
	}
	var b MetricBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return MetricBundle{}, fmt.Errorf("cmec: parsing diagnostic bundle: %w", err)
	}
	return b, nil
}
