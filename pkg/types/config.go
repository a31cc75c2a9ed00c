package types

// LogLevel is a recognized value of the top-level log_level config key.
type LogLevel string

const (
	LogLevelError   LogLevel = "error"
	LogLevelWarning LogLevel = "warning"
	LogLevelInfo    LogLevel = "info"
	LogLevelDebug   LogLevel = "debug"
)

// PathsConfig holds the absolute directories the engine reads/writes.
type PathsConfig struct {
	Log           string `toml:"log" json:"log"`
	Scratch       string `toml:"scratch" json:"scratch"`
	Software      string `toml:"software" json:"software"`
	Results       string `toml:"results" json:"results"`
	DimensionsCV  string `toml:"dimensions_cv" json:"dimensionsCv"`
}

// DBConfig selects and configures the execution store backend.
type DBConfig struct {
	DatabaseURL  string `toml:"database_url" json:"databaseUrl"`
	RunMigrations bool  `toml:"run_migrations" json:"runMigrations"`
	MaxBackups   int    `toml:"max_backups" json:"maxBackups"` // default 5
}

// ExecutorConfig selects and configures the executor variant.
type ExecutorConfig struct {
	Executor ExecutorVariant        `toml:"executor" json:"executor"`
	Config   map[string]interface{} `toml:"config" json:"config"`
}

// DiagnosticProviderConfig names a provider plugin entry point and its
// provider-specific configuration block.
type DiagnosticProviderConfig struct {
	Provider string                 `toml:"provider" json:"provider"`
	Config   map[string]interface{} `toml:"config" json:"config"`
}

// ProjectConfig is the fully-resolved, immutable configuration loaded
// once at process start from the discovered TOML file and handed to every
// component by reference. No component ever mutates it.
type ProjectConfig struct {
	LogLevel            LogLevel                   `toml:"log_level" json:"logLevel"`
	Paths               PathsConfig                `toml:"paths" json:"paths"`
	DB                  DBConfig                   `toml:"db" json:"db"`
	Executor            ExecutorConfig             `toml:"executor" json:"executor"`
	DiagnosticProviders []DiagnosticProviderConfig  `toml:"diagnostic_providers" json:"diagnosticProviders"`

	// SqliteConfig/PostgresConfig are populated by internal/config's
	// second decode pass once db.database_url identifies which backend
	// is in play; at most one is non-nil.
	SqliteConfig   any `toml:"-" json:"-"`
	PostgresConfig any `toml:"-" json:"-"`
}

// SolveOptions configures one invocation of the solve-and-execute
// operation.
type SolveOptions struct {
	ProviderFilter   string // substring match, case-sensitive
	DiagnosticFilter string
	Timeout          string // e.g. "30m"; wall-clock budget for the batch
	OnePerProvider   bool
}

// IngestOptions configures one catalog ingestion call.
type IngestOptions struct {
	SkipInvalid bool
	NJobs       int
	Parser      IngestParser // cmip6 only
}
