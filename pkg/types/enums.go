// Package types defines the public domain types for the evaluation engine:
// datasets, diagnostics, execution groups, executions, and their outputs.
package types

// SourceDatasetType identifies which catalog adapter produced a Dataset.
// New source types are added by registering an adapter; nothing else in
// the system needs to change.
type SourceDatasetType string

const (
	SourceCMIP6          SourceDatasetType = "cmip6"
	SourceObs4MIPs       SourceDatasetType = "obs4mips"
	SourcePMPClimatology SourceDatasetType = "pmp-climatology"
)

// ExecutionStatus is the lifecycle state of an Execution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionSucceeded ExecutionStatus = "succeeded"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// OutputType enumerates the recognized ExecutionOutput file kinds.
type OutputType string

const (
	OutputHTML OutputType = "html"
	OutputNC   OutputType = "nc"
	OutputCSV  OutputType = "csv"
	OutputPNG  OutputType = "png"
	OutputJSON OutputType = "json"
	OutputLog  OutputType = "log"
)

// FailureCategory classifies why an Execution or infrastructure call
// failed, mirroring the semantic error classes of the error handling
// design (input-validation, execution, infrastructure, consistency).
type FailureCategory string

const (
	FailureInputValidation FailureCategory = "INPUT_VALIDATION"
	FailureExecution       FailureCategory = "EXECUTION"
	FailureInfrastructure  FailureCategory = "INFRASTRUCTURE"
	FailureConsistency     FailureCategory = "CONSISTENCY"
	FailureLostWorker      FailureCategory = "LOST_WORKER"
)

// IngestParser selects how the CMIP6 adapter extracts metadata.
type IngestParser string

const (
	// ParserDRS extracts metadata purely from path segments.
	ParserDRS IngestParser = "drs"
	// ParserComplete opens the dataset file for a full attribute read.
	ParserComplete IngestParser = "complete"
)

// ExecutorVariant names the fully-qualified executor implementation
// resolved from the static registry at startup.
type ExecutorVariant string

const (
	ExecutorSynchronous      ExecutorVariant = "synchronous"
	ExecutorLocalPool        ExecutorVariant = "local-pool"
	ExecutorDistributedQueue ExecutorVariant = "distributed-queue"
	ExecutorHPCBatch         ExecutorVariant = "hpc-batch"
)

// AlertType defines the alert sink type.
type AlertType string

const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
)

// AlertLevel classifies the severity of an Alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// EventKind classifies the type of audit event appended to an
// ExecutionGroup's or Execution's event log.
type EventKind string

const (
	EventDatasetIngested     EventKind = "DATASET_INGESTED"
	EventGroupCreated        EventKind = "GROUP_CREATED"
	EventGroupMarkedDirty    EventKind = "GROUP_MARKED_DIRTY"
	EventGroupMarkedStale    EventKind = "GROUP_MARKED_STALE"
	EventExecutionEnqueued   EventKind = "EXECUTION_ENQUEUED"
	EventExecutionStarted    EventKind = "EXECUTION_STARTED"
	EventExecutionSucceeded  EventKind = "EXECUTION_SUCCEEDED"
	EventExecutionFailed     EventKind = "EXECUTION_FAILED"
	EventExecutionCancelled  EventKind = "EXECUTION_CANCELLED"
	EventExecutionRetried    EventKind = "EXECUTION_RETRIED"
	EventConstraintDropped   EventKind = "CONSTRAINT_DROPPED"
	EventLostWorkerDetected  EventKind = "LOST_WORKER_DETECTED"
	EventMetricBundleInvalid EventKind = "METRIC_BUNDLE_INVALID"
	EventSolvePassCompleted  EventKind = "SOLVE_PASS_COMPLETED"
)
