package benchmark

import (
	"context"
	"errors"
)

// Database defines the interface that every document database backend must implement.
// It lets cosmos-bench run the same query loop against Azure Cosmos DB or a local
// pebble-backed store while keeping benchmark semantics identical.
type Database interface {
	// Container returns a lazy handle to a container. It does not verify that
	// the container exists.
	Container(databaseID, containerID string) (Container, error)

	// CreateDatabaseIfNotExists provisions the database. An existing database
	// is not an error.
	CreateDatabaseIfNotExists(ctx context.Context, databaseID string) error

	// CreateContainerIfNotExists provisions the container and returns a handle
	// to it. An existing container is not an error.
	CreateContainerIfNotExists(ctx context.Context, databaseID string, spec ContainerSpec) (Container, error)

	// Close releases the client and any resources it holds
	Close() error
}

// Container is a handle to a single document container.
type Container interface {
	// ID returns the container identifier
	ID() string

	// Read fetches the container metadata. Returns an error matching
	// ErrNotFound when the database or container does not exist.
	Read(ctx context.Context) error

	// Query starts a paged query. The returned iterator is single use.
	Query(query string, opts QueryOptions) PageIterator

	// Upsert writes a JSON document and returns the request charge
	Upsert(ctx context.Context, partitionKey string, document []byte) (float64, error)
}

// PageIterator walks the pages of a query result. Once More reports false the
// iterator is exhausted and cannot be restarted.
type PageIterator interface {
	More() bool
	NextPage(ctx context.Context) (Page, error)
}

// Page is one page of query results
type Page struct {
	Items         [][]byte
	RequestCharge float64
}

// QueryOptions configure a single query execution
type QueryOptions struct {
	Consistency  string // empty means the account default
	PartitionKey string // empty means cross-partition
	PageSize     int    // 0 lets the backend choose
}

// ContainerSpec describes a container to provision
type ContainerSpec struct {
	ID               string
	PartitionKeyPath string
	Throughput       int
}

// Database backend types
type DatabaseType string

const (
	DatabaseTypeCosmos DatabaseType = "cosmos"
	DatabaseTypePebble DatabaseType = "pebble"
)

// DatabaseConfig holds configuration for database creation
type DatabaseConfig struct {
	Type DatabaseType

	// Cosmos-specific options
	CosmosConfig CosmosConfig

	// Pebble-specific options
	PebbleConfig PebbleConfig
}

// CosmosConfig holds Azure Cosmos DB connection options.
// Authentication methods are tried in order: connection string, endpoint+key,
// endpoint+managed identity.
type CosmosConfig struct {
	ConnectionString   string
	Endpoint           string
	AccountKey         string
	UseManagedIdentity bool
}

// PebbleConfig holds local store options
type PebbleConfig struct {
	Path           string
	BlockCacheSize int64 // in bytes, negative disables the block cache
}

// Common database errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrConnection       = errors.New("connection failed")
	ErrQueryExecution   = errors.New("query execution failed")
	ErrDatabaseClosed   = errors.New("database is closed")
	ErrUnsupportedQuery = errors.New("unsupported query")
	ErrBackendNotFound  = errors.New("database backend not found")

	// ErrCrossPartitionQuery marks a query the gateway refused to run
	// across partitions; set a partition key value to scope it
	ErrCrossPartitionQuery = errors.New("query not supported across partitions")
)

// NewDatabase connects to the backend selected by the configuration
func NewDatabase(cfg DatabaseConfig) (Database, error) {
	switch cfg.Type {
	case DatabaseTypeCosmos:
		return NewCosmosDatabase(cfg.CosmosConfig)
	case DatabaseTypePebble:
		return NewPebbleDatabase(cfg.PebbleConfig)
	default:
		return nil, ErrBackendNotFound
	}
}

// IsNotFound reports whether err means the database or container is missing.
// This abstracts away backend-specific error types.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
