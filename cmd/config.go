package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tclemos/cosmos-bench/benchmark"
)

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"log-format": "log.format",
	"log-level":  "log.level",

	"backend":            "backend",
	"connection-string":  "cosmos.connection_string",
	"endpoint":           "cosmos.endpoint",
	"account-key":        "cosmos.account_key",
	"managed-identity":   "cosmos.use_managed_identity",
	"db-path":            "pebble.path",
	"block-cache-size":   "pebble.block_cache_size",
	"database":           "database",
	"container":          "container",
	"partition-key-path": "partition_key_path",
	"partition-key":      "partition_key_value",
	"throughput":         "throughput",
	"consistency":        "consistency",
	"query":              "query",
	"page-size":          "page_size",
	"warmup":             "warmup",
	"max-iterations":     "max_iterations",
	"max-duration":       "max_duration",
	"query-timeout":      "query_timeout",
	"pause-on-exit":      "pause_on_exit",
	"results-db":         "results.db_path",
	"results-csv":        "results.csv_path",
	"metrics-addr":       "metrics.addr",
	"shutdown-timeout":   "shutdown_timeout",
	"workload":           "seed.workload",
	"count":              "seed.count",
	"concurrency":        "seed.concurrency",
	"seed":               "seed.random_seed",
	"value-size":         "seed.value_size",
	"rate-limit":         "seed.rate_limit",
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("log.format", "console")
	v.SetDefault("log.level", "info")

	// Backend defaults
	v.SetDefault("backend", string(benchmark.DatabaseTypeCosmos))
	v.SetDefault("cosmos.connection_string", "")
	v.SetDefault("cosmos.endpoint", "")
	v.SetDefault("cosmos.account_key", "")
	v.SetDefault("cosmos.use_managed_identity", false)
	v.SetDefault("pebble.path", "dbs/pebble/cosmos-bench")
	v.SetDefault("pebble.block_cache_size", 8<<20)

	// Target defaults
	v.SetDefault("database", benchmark.DefaultDatabase)
	v.SetDefault("container", benchmark.DefaultContainer)
	v.SetDefault("partition_key_path", benchmark.DefaultPartitionKeyPath)
	v.SetDefault("partition_key_value", "")
	v.SetDefault("throughput", benchmark.DefaultThroughput)

	// Query defaults
	v.SetDefault("consistency", benchmark.DefaultConsistency)
	v.SetDefault("query", benchmark.DefaultQuery)
	v.SetDefault("page_size", 0)

	// Run control defaults - run until stopped
	v.SetDefault("warmup", 0)
	v.SetDefault("max_iterations", 0)
	v.SetDefault("max_duration", "0s")
	v.SetDefault("query_timeout", "0s")
	v.SetDefault("pause_on_exit", true)
	v.SetDefault("shutdown_timeout", "10s")

	// Output defaults - disabled
	v.SetDefault("results.db_path", "")
	v.SetDefault("results.csv_path", "")
	v.SetDefault("metrics.addr", "")

	// Seed defaults
	v.SetDefault("seed.workload", string(benchmark.WorkloadShopping))
	v.SetDefault("seed.count", 1000)
	v.SetDefault("seed.concurrency", 8)
	v.SetDefault("seed.random_seed", 42)
	v.SetDefault("seed.value_size", 256)
	v.SetDefault("seed.rate_limit", 0)
}

// loadConfig layers defaults, the optional config file, COSMOS_BENCH_*
// environment variables and explicitly set flags, in increasing precedence.
func loadConfig(flags *pflag.FlagSet, cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	// Environment variables
	v.SetEnvPrefix("COSMOS_BENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cosmos-bench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cosmos-bench/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	return v, nil
}

// benchmarkConfig builds the run configuration from Viper
func benchmarkConfig(v *viper.Viper) benchmark.Config {
	return benchmark.Config{
		Database: benchmark.DatabaseConfig{
			Type: benchmark.DatabaseType(strings.ToLower(v.GetString("backend"))),
			CosmosConfig: benchmark.CosmosConfig{
				ConnectionString:   v.GetString("cosmos.connection_string"),
				Endpoint:           v.GetString("cosmos.endpoint"),
				AccountKey:         v.GetString("cosmos.account_key"),
				UseManagedIdentity: v.GetBool("cosmos.use_managed_identity"),
			},
			PebbleConfig: benchmark.PebbleConfig{
				Path:           v.GetString("pebble.path"),
				BlockCacheSize: v.GetInt64("pebble.block_cache_size"),
			},
		},
		DatabaseID:        v.GetString("database"),
		ContainerID:       v.GetString("container"),
		PartitionKeyPath:  v.GetString("partition_key_path"),
		PartitionKeyValue: v.GetString("partition_key_value"),
		Throughput:        v.GetInt("throughput"),
		Consistency:       v.GetString("consistency"),
		Query:             v.GetString("query"),
		PageSize:          v.GetInt("page_size"),
		Warmup:            v.GetInt("warmup"),
		MaxIterations:     v.GetInt("max_iterations"),
		MaxDuration:       v.GetDuration("max_duration"),
		QueryTimeout:      v.GetDuration("query_timeout"),
		ResultsDBPath:     v.GetString("results.db_path"),
		ResultsCSVPath:    v.GetString("results.csv_path"),
		MetricsAddr:       v.GetString("metrics.addr"),
		ShutdownTimeout:   v.GetDuration("shutdown_timeout"),
	}
}

// seedConfig builds the seed configuration from Viper
func seedConfig(v *viper.Viper) benchmark.SeedConfig {
	return benchmark.SeedConfig{
		Workload:    benchmark.WorkloadType(v.GetString("seed.workload")),
		Count:       v.GetInt("seed.count"),
		Concurrency: v.GetInt("seed.concurrency"),
		RandomSeed:  v.GetInt64("seed.random_seed"),
		ValueSize:   v.GetInt("seed.value_size"),
		RateLimit:   v.GetFloat64("seed.rate_limit"),
	}
}

// addTargetFlags registers the flags shared by commands that talk to a database
func addTargetFlags(fs *pflag.FlagSet) {
	fs.String("backend", string(benchmark.DatabaseTypeCosmos), "Database backend: 'cosmos' or 'pebble'")
	fs.String("connection-string", "", "Cosmos DB connection string")
	fs.String("endpoint", "", "Cosmos DB account endpoint (with --account-key or --managed-identity)")
	fs.String("account-key", "", "Cosmos DB account key")
	fs.Bool("managed-identity", false, "Authenticate to --endpoint with the default Azure credential chain")
	fs.String("db-path", "dbs/pebble/cosmos-bench", "Path to the local store (pebble backend)")
	fs.Int64("block-cache-size", 8<<20, "Block cache size in bytes for the local store (negative for disabled, default 8MB)")
	fs.String("database", benchmark.DefaultDatabase, "Database id")
	fs.String("container", benchmark.DefaultContainer, "Container id")
	fs.String("partition-key-path", benchmark.DefaultPartitionKeyPath, "Partition key path used when creating the container")
	fs.Int("throughput", benchmark.DefaultThroughput, "Provisioned throughput (RU/s) used when creating the container")
	fs.Duration("shutdown-timeout", 0, "Time allowed for releasing resources on exit (default 10s)")
}
