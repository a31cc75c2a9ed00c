package solver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// datasetTriple is one (source_type, instance_id, version) identity
// contributing to a candidate's dataset_hash.
type datasetTriple struct {
	SourceType types.SourceDatasetType
	InstanceID string
	Version    string
}

// DatasetHash computes the sha256 hex digest over the sorted
// (source_type, instance_id, version) triples of every row across
// every source type in datasetsBySource. Ordering is lexicographic by
// (source_type asc, instance_id asc, version asc) — load-bearing: this
// must be reproducible across processes, endiannesses, and insertion
// orders.
func DatasetHash(datasetsBySource map[types.SourceDatasetType][]store.CatalogRow) string {
	seen := map[datasetTriple]bool{}
	var triples []datasetTriple
	for sourceType, rows := range datasetsBySource {
		for _, row := range rows {
			t := datasetTriple{SourceType: sourceType, InstanceID: row.InstanceID, Version: row.Version}
			if !seen[t] {
				seen[t] = true
				triples = append(triples, t)
			}
		}
	}
	sort.Slice(triples, func(i, j int) bool {
		if triples[i].SourceType != triples[j].SourceType {
			return triples[i].SourceType < triples[j].SourceType
		}
		if triples[i].InstanceID != triples[j].InstanceID {
			return triples[i].InstanceID < triples[j].InstanceID
		}
		return triples[i].Version < triples[j].Version
	})

	h := sha256.New()
	for _, t := range triples {
		fmt.Fprintf(h, "%s\t%s\t%s\n", t.SourceType, t.InstanceID, t.Version)
	}
	return hex.EncodeToString(h.Sum(nil))
}
