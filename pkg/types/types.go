package types

import "time"

// Dataset is a version of a named data instance within a source type.
// (SourceType, InstanceID, Version) is unique; only the latest Version per
// InstanceID is active for the resolver. Datasets are never mutated —
// ingesting a newer version creates a new row and supersedes the prior
// one as "active" without deleting it.
type Dataset struct {
	ID         int64             `json:"id"`
	SourceType SourceDatasetType `json:"sourceType"`
	InstanceID string            `json:"instanceId"`
	Version    string            `json:"version"`
	Active     bool              `json:"active"`
	Facets     map[string]string `json:"facets"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// File is a single ingested data file belonging to exactly one Dataset.
// Path is globally unique; removing a Dataset removes its Files.
type File struct {
	ID         int64      `json:"id"`
	DatasetID  int64      `json:"datasetId"`
	Path       string     `json:"path"`
	Size       int64      `json:"size"`
	Checksum   string     `json:"checksum"`
	VariableID string     `json:"variableId,omitempty"`
	StartTime  *time.Time `json:"startTime,omitempty"`
	EndTime    *time.Time `json:"endTime,omitempty"` // half-open: [StartTime, EndTime)
}

// TimeRange is a half-open interval of timestamps, [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two time ranges have a non-empty intersection.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// DataRequirement declares which datasets a diagnostic consumes, how they
// are grouped, and what must hold across them. See internal/resolver.
type DataRequirement struct {
	SourceType  SourceDatasetType `json:"sourceType" yaml:"sourceType"`
	Filters     []Filter          `json:"filters,omitempty" yaml:"filters,omitempty"`
	GroupBy     []string          `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Constraints []ConstraintSpec  `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Filter is a single catalog query filter: a conjunction of facet-value
// matches that either keeps or excludes matching rows.
type Filter struct {
	Facets map[string][]string `json:"facets" yaml:"facets"`
	Keep   bool                `json:"keep" yaml:"keep"`
}

// ConstraintSpec is the declarative (YAML/JSON) form of a resolver
// constraint; internal/resolver turns it into a concrete tagged-variant
// Constraint at registration time.
type ConstraintSpec struct {
	Kind                    string            `json:"kind" yaml:"kind"` // add-supplementary | require-contiguous | require-overlapping | select-supplementary
	Template                map[string]string `json:"template,omitempty" yaml:"template,omitempty"`
	MatchFacets             []string          `json:"matchFacets,omitempty" yaml:"matchFacets,omitempty"`
	OptionalMatchFacets     []string          `json:"optionalMatchFacets,omitempty" yaml:"optionalMatchFacets,omitempty"`
	GroupBy                 []string          `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	SubGroups               [][]string        `json:"subGroups,omitempty" yaml:"subGroups,omitempty"`
	SupplementaryVariableID string            `json:"supplementaryVariableId,omitempty" yaml:"supplementaryVariableId,omitempty"`
}

// Diagnostic is plugin-registered metadata; the diagnostic's code lives in
// the provider. Unregistering a diagnostic flags dependent groups stale,
// it never deletes them.
type Diagnostic struct {
	ProviderSlug     string            `json:"providerSlug" yaml:"providerSlug"`
	DiagnosticSlug   string            `json:"diagnosticSlug" yaml:"diagnosticSlug"`
	DataRequirements []DataRequirement `json:"dataRequirements" yaml:"dataRequirements"`
	Facets           []string          `json:"facets" yaml:"facets"`
}

// FullSlug is the (provider, diagnostic) identity used for registry
// lookups and CLI substring filtering.
func (d Diagnostic) FullSlug() string {
	return d.ProviderSlug + "/" + d.DiagnosticSlug
}

// Provider is plugin metadata: the name, version, and diagnostics it
// registers. Resolved at startup from the static plugin registry, never
// via runtime dynamic loading.
type Provider struct {
	Slug        string       `json:"slug" yaml:"slug"`
	Version     string       `json:"version" yaml:"version"`
	Diagnostics []Diagnostic `json:"diagnostics" yaml:"diagnostics"`
}

// FacetPair is one (facet, value) pair within a stable-ordered group key.
type FacetPair struct {
	Facet string `json:"facet"`
	Value string `json:"value"`
}

// ExecutionGroup is the identity of "this diagnostic for this combination
// of facet values." (ProviderSlug, DiagnosticSlug, GroupKey) is unique.
// A group is Dirty iff no succeeded Execution's input-dataset-version set
// matches the currently resolved set.
type ExecutionGroup struct {
	ID                int64       `json:"id"`
	ProviderSlug      string      `json:"providerSlug"`
	DiagnosticSlug    string      `json:"diagnosticSlug"`
	GroupKey          []FacetPair `json:"groupKey"`
	Dirty             bool        `json:"dirty"`
	Stale             bool        `json:"stale"`
	LatestExecutionID *int64      `json:"latestExecutionId,omitempty"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Execution is one concrete run of a diagnostic against a specific
// snapshot of input dataset versions. (GroupID, DatasetHash) is unique;
// at most one Execution per group may be in ExecutionRunning.
type Execution struct {
	ID          int64           `json:"id"`
	GroupID     int64           `json:"groupId"`
	DatasetHash string          `json:"datasetHash"` // sha256 hex, see internal/solver/hash.go
	Status      ExecutionStatus `json:"status"`
	OutputDir   string          `json:"outputDir"` // relative to results root
	LogRef      string          `json:"logRef,omitempty"`
	RetryCount  int             `json:"retryCount"`
	Reason      string          `json:"reason,omitempty"` // human-readable failure reason
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ExecutionInput is the many-to-many association between an Execution and
// the Dataset versions it consumed.
type ExecutionInput struct {
	ExecutionID int64  `json:"executionId"`
	DatasetID   int64  `json:"datasetId"`
	Version     string `json:"version"`
}

// ExecutionOutput is a file produced by a successful Execution. Path is
// relative to the execution's output directory; absolute paths are
// rejected at the store boundary.
type ExecutionOutput struct {
	ID          int64      `json:"id"`
	ExecutionID int64      `json:"executionId"`
	RelPath     string     `json:"relPath"`
	Type        OutputType `json:"type"`
	MimeType    string     `json:"mimeType"`
	Description string     `json:"description,omitempty"`
}

// MetricValue is a scalar metric produced by an Execution, carrying the
// diagnostic's declared facets.
type MetricValue struct {
	ID          int64             `json:"id"`
	ExecutionID int64             `json:"executionId"`
	Facets      map[string]string `json:"facets"`
	Value       float64           `json:"value"`
}

// SeriesMetricValue is a 1-D array metric with an accompanying index,
// produced by an Execution.
type SeriesMetricValue struct {
	ID          int64             `json:"id"`
	ExecutionID int64             `json:"executionId"`
	Facets      map[string]string `json:"facets"`
	Index       []float64         `json:"index"`
	Values      []float64         `json:"values"`
}

// OutputManifestEntry is one entry of the manifest an executor passes to
// Store.RecordOutputs on Execution success.
type OutputManifestEntry struct {
	RelPath     string
	Type        OutputType
	MimeType    string
	Description string
}

// Event is an append-only audit log entry recording what happened and when.
type Event struct {
	Kind         EventKind              `json:"kind"`
	ProviderSlug string                 `json:"providerSlug,omitempty"`
	GroupID      int64                  `json:"groupId,omitempty"`
	ExecutionID  int64                  `json:"executionId,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Alert represents an alert event to be dispatched to a configured sink.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	Category  string                 `json:"category,omitempty"`
	Diagnostic string                `json:"diagnostic,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type AlertType `yaml:"type" json:"type"`
	URL  string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path string    `yaml:"path,omitempty" json:"path,omitempty"`
}
