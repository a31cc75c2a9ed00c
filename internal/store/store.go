// Package store defines the transactional execution-store interface
// implemented by the embedded (sqlite) and server (postgres) backends.
package store

import (
	"context"
	"time"

	"github.com/dwsmith1983/interlock/pkg/types"
)

// DatasetFilter is a query filter: a conjunction of facet-value matches
// that either keeps or excludes matching rows, per spec.
type DatasetFilter = types.Filter

// Store is the storage backend interface for the execution lifecycle.
// Phase 1 implements embedded SQLite for single-node use; a Postgres
// backend serves distributed deployments. Both satisfy the same
// conformance suite in internal/store/storetest.
type Store interface {
	// Datasets & files (catalog)
	UpsertDataset(ctx context.Context, d types.Dataset) (types.Dataset, error)
	InsertFile(ctx context.Context, f types.File) (types.File, error)
	GetDataset(ctx context.Context, id int64) (*types.Dataset, error)
	GetDatasetByInstance(ctx context.Context, sourceType types.SourceDatasetType, instanceID string) (*types.Dataset, error)
	ListActiveDatasets(ctx context.Context, sourceType types.SourceDatasetType) ([]types.Dataset, error)
	ListFiles(ctx context.Context, datasetID int64) ([]types.File, error)
	QueryCatalog(ctx context.Context, sourceType types.SourceDatasetType, filters []DatasetFilter) ([]CatalogRow, error)

	// Execution groups
	GetGroup(ctx context.Context, providerSlug, diagnosticSlug string, groupKey []types.FacetPair) (*types.ExecutionGroup, error)
	GetGroupByID(ctx context.Context, id int64) (*types.ExecutionGroup, error)
	UpsertGroup(ctx context.Context, g types.ExecutionGroup) (types.ExecutionGroup, error)
	MarkGroupStale(ctx context.Context, groupID int64, stale bool) error
	ListGroups(ctx context.Context, providerFilter, diagnosticFilter string) ([]types.ExecutionGroup, error)

	// Executions
	InsertExecution(ctx context.Context, e types.Execution) (types.Execution, error)
	GetExecution(ctx context.Context, id int64) (*types.Execution, error)
	GetExecutionByHash(ctx context.Context, groupID int64, datasetHash string) (*types.Execution, error)
	ListExecutions(ctx context.Context, groupID int64) ([]types.Execution, error)
	ListRunningExecutions(ctx context.Context) ([]types.Execution, error)
	// CompareAndSwapStatus enforces the lifecycle state machine and the
	// at-most-one-running-per-group invariant via a compare-and-set on the
	// current status.
	CompareAndSwapStatus(ctx context.Context, executionID int64, expected, next types.ExecutionStatus, reason string) (bool, error)
	SetExecutionInputs(ctx context.Context, executionID int64, inputs []types.ExecutionInput) error
	GetExecutionInputs(ctx context.Context, executionID int64) ([]types.ExecutionInput, error)

	// Outputs & metrics
	RecordOutputs(ctx context.Context, executionID int64, manifest []types.OutputManifestEntry) ([]types.ExecutionOutput, error)
	ListOutputs(ctx context.Context, executionID int64) ([]types.ExecutionOutput, error)
	RecordMetricValues(ctx context.Context, scalars []types.MetricValue, series []types.SeriesMetricValue) error
	ListMetricValues(ctx context.Context, executionID int64) ([]types.MetricValue, []types.SeriesMetricValue, error)

	// Event log
	AppendEvent(ctx context.Context, event types.Event) error
	ListEvents(ctx context.Context, groupID int64, limit int) ([]types.Event, error)

	// Worker leases, for lost-worker detection on restart
	PutWorkerLease(ctx context.Context, lease types.WorkerLease) error
	GetWorkerLease(ctx context.Context, executionID int64) (*types.WorkerLease, error)
	DeleteWorkerLease(ctx context.Context, executionID int64) error

	// Distributed advisory locking, used to serialize solver passes
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
	// Backup snapshots the datastore before a schema migration, retaining
	// at most maxBackups prior snapshots.
	Backup(ctx context.Context, maxBackups int) (types.BackupRecord, error)
}

// CatalogRow is one row of a catalog query result: all facets as columns
// plus the owning dataset's surrogate key and active version.
type CatalogRow struct {
	DatasetID  int64
	FileID     int64
	SourceType types.SourceDatasetType
	InstanceID string
	Version    string
	Path       string
	VariableID string
	StartTime  *time.Time
	EndTime    *time.Time
	Facets     map[string]string
}
