// Package constants provides shared constants for the risk-forecast application.
package constants

// Simulation defaults
const (
	// DefaultIterations is the iteration count used when none is configured
	DefaultIterations = 10000

	// DefaultTargetPercentile is the confidence level planned against by default
	DefaultTargetPercentile = 80

	// MinPracticalIterations is the lower end of the recommended iteration range
	MinPracticalIterations = 1000

	// MaxPracticalIterations is the upper end of the recommended iteration range
	MaxPracticalIterations = 100000

	// DefaultWorkers is the default number of shard workers
	DefaultWorkers = 1
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the full machine-readable result
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. RISKFORECAST_SIMULATION_ITERATIONS
	EnvPrefix = "RISKFORECAST"
)

// Repository drivers
const (
	// RepositoryDriverConfig serves risks from the loaded configuration file
	RepositoryDriverConfig = "config"

	// RepositoryDriverSQLite serves risks from a SQLite database
	RepositoryDriverSQLite = "sqlite"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxRequestSizeBytes is the default maximum request body size (1 MB)
	DefaultMaxRequestSizeBytes int64 = 1024 * 1024

	// DefaultMaxJobs bounds how many finished jobs are retained for polling
	DefaultMaxJobs = 100
)

// Comparison constants
const (
	// ShareTolerance is the tolerance for variance shares summing to one
	ShareTolerance = 1e-6

	// DecimalPrecision is the number of decimal places for currency rendering
	DecimalPrecision = 2
)
