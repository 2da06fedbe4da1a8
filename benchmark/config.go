package benchmark

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Defaults for the benchmark target
const (
	DefaultDatabase         = "ShoppingDatabase"
	DefaultContainer        = "ShoppingContainer"
	DefaultPartitionKeyPath = "/myPartitionKey"
	DefaultThroughput       = 6000
	DefaultConsistency      = "Eventual"
	DefaultQuery            = `SELECT TOP 10 c.id FROM c WHERE CONTAINS(c.Item, "Socks")`

	// MinThroughput is the smallest manual throughput a container accepts
	MinThroughput = 400
)

// Config is the immutable configuration of one benchmark run
type Config struct {
	Database DatabaseConfig

	DatabaseID        string
	ContainerID       string
	PartitionKeyPath  string
	PartitionKeyValue string // empty queries across partitions
	Throughput        int
	Consistency       string
	Query             string
	PageSize          int

	Warmup        int
	MaxIterations int           // 0 means until stopped
	MaxDuration   time.Duration // 0 means until stopped
	QueryTimeout  time.Duration // 0 means no per-query timeout

	ResultsDBPath  string // empty disables run history
	ResultsCSVPath string // empty disables CSV export
	MetricsAddr    string // empty disables the metrics endpoint

	ShutdownTimeout time.Duration
}

var consistencyLevels = []string{"Strong", "BoundedStaleness", "Session", "ConsistentPrefix", "Eventual"}

// ValidConsistency reports whether name is a known consistency level.
// Empty means the account default and is valid.
func ValidConsistency(name string) bool {
	if name == "" {
		return true
	}
	for _, level := range consistencyLevels {
		if strings.EqualFold(level, name) {
			return true
		}
	}
	return false
}

// Validate checks the configuration before anything connects
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Type {
	case DatabaseTypeCosmos:
		cc := c.Database.CosmosConfig
		if cc.ConnectionString == "" && (cc.Endpoint == "" || (cc.AccountKey == "" && !cc.UseManagedIdentity)) {
			errs = append(errs, errors.New("cosmos backend needs connection_string, endpoint+account_key or endpoint+use_managed_identity"))
		}
	case DatabaseTypePebble:
		if c.Database.PebbleConfig.Path == "" {
			errs = append(errs, errors.New("pebble backend needs pebble.path"))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrBackendNotFound, c.Database.Type))
	}

	if c.DatabaseID == "" {
		errs = append(errs, errors.New("database is required"))
	}
	if c.ContainerID == "" {
		errs = append(errs, errors.New("container is required"))
	}
	if !strings.HasPrefix(c.PartitionKeyPath, "/") {
		errs = append(errs, fmt.Errorf("partition_key_path must start with '/', got %q", c.PartitionKeyPath))
	}
	if c.Throughput < MinThroughput || c.Throughput > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("throughput must be between %d and %d, got %d", MinThroughput, math.MaxInt32, c.Throughput))
	}
	if !ValidConsistency(c.Consistency) {
		errs = append(errs, fmt.Errorf("unknown consistency %q (want one of %s)", c.Consistency, strings.Join(consistencyLevels, ", ")))
	}
	if strings.TrimSpace(c.Query) == "" {
		errs = append(errs, errors.New("query is required"))
	}
	if c.PageSize < 0 || c.PageSize > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("page_size must be between 0 and %d, got %d", math.MaxInt32, c.PageSize))
	}
	if c.Warmup < 0 {
		errs = append(errs, errors.New("warmup must not be negative"))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, errors.New("max_iterations must not be negative"))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, errors.New("max_duration must not be negative"))
	}
	if c.QueryTimeout < 0 {
		errs = append(errs, errors.New("query_timeout must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Target returns the container the run benchmarks
func (c Config) Target() Target {
	return Target{
		DatabaseID: c.DatabaseID,
		Container: ContainerSpec{
			ID:               c.ContainerID,
			PartitionKeyPath: c.PartitionKeyPath,
			Throughput:       c.Throughput,
		},
	}
}

// QueryOptions returns the options used for every query execution
func (c Config) QueryOptions() QueryOptions {
	return QueryOptions{
		Consistency:  c.Consistency,
		PartitionKey: c.PartitionKeyValue,
		PageSize:     c.PageSize,
	}
}

var partitionScopedClause = regexp.MustCompile(`(?i)\b(TOP\s+\d|OFFSET\s+\d|ORDER\s+BY\b|GROUP\s+BY\b|DISTINCT\s)|\b(COUNT|SUM|AVG|MIN|MAX)\s*\(`)

// needsPartitionKey reports whether the Cosmos gateway may refuse the query
// because it runs across partitions with a clause only a single partition
// can serve. Single-range containers still accept it.
func (c Config) needsPartitionKey() bool {
	return c.Database.Type == DatabaseTypeCosmos &&
		c.PartitionKeyValue == "" &&
		partitionScopedClause.MatchString(c.Query)
}

// shutdownTimeout defaults to ten seconds
func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout > 0 {
		return c.ShutdownTimeout
	}
	return 10 * time.Second
}
