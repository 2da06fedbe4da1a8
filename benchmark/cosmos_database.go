package benchmark

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/rs/zerolog/log"
)

// cosmosApplicationID is appended to the SDK User-Agent (max 24 chars, no spaces)
const cosmosApplicationID = "cosmos-bench"

// CosmosDatabase implements the Database interface for Azure Cosmos DB.
// The Go SDK only speaks the gateway (HTTPS) protocol.
type CosmosDatabase struct {
	client *azcosmos.Client
	closed bool
}

// NewCosmosDatabase creates a Cosmos DB client using the first usable
// authentication method in cfg.
func NewCosmosDatabase(cfg CosmosConfig) (Database, error) {
	opts := &azcosmos.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: cosmosApplicationID},
		},
	}

	var client *azcosmos.Client
	var err error

	switch {
	case cfg.ConnectionString != "":
		client, err = azcosmos.NewClientFromConnectionString(cfg.ConnectionString, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create Cosmos client from connection string: %w", ErrConnection, err)
		}
		log.Info().Msg("Using connection string authentication for Azure Cosmos DB")

	case cfg.Endpoint != "" && cfg.AccountKey != "":
		cred, credErr := azcosmos.NewKeyCredential(cfg.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("%w: failed to create key credential: %w", ErrConnection, credErr)
		}
		client, err = azcosmos.NewClientWithKey(cfg.Endpoint, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create Cosmos client with account key: %w", ErrConnection, err)
		}
		log.Info().Str("endpoint", cfg.Endpoint).Msg("Using account key authentication for Azure Cosmos DB")

	case cfg.Endpoint != "" && cfg.UseManagedIdentity:
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("%w: failed to create managed identity credential: %w", ErrConnection, credErr)
		}
		client, err = azcosmos.NewClient(cfg.Endpoint, cred, opts)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create Cosmos client with managed identity: %w", ErrConnection, err)
		}
		log.Info().Str("endpoint", cfg.Endpoint).Msg("Using managed identity authentication for Azure Cosmos DB")

	default:
		return nil, fmt.Errorf("%w: no valid Cosmos DB authentication method configured. Provide connection_string, endpoint+account_key, or endpoint+use_managed_identity", ErrConnection)
	}

	return &CosmosDatabase{client: client}, nil
}

// Container implements Database.Container for Cosmos DB
func (d *CosmosDatabase) Container(databaseID, containerID string) (Container, error) {
	if d.closed {
		return nil, ErrDatabaseClosed
	}
	c, err := d.client.NewContainer(databaseID, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create container client: %w", err)
	}
	return &cosmosContainer{id: containerID, container: c}, nil
}

// CreateDatabaseIfNotExists implements Database.CreateDatabaseIfNotExists for Cosmos DB
func (d *CosmosDatabase) CreateDatabaseIfNotExists(ctx context.Context, databaseID string) error {
	if d.closed {
		return ErrDatabaseClosed
	}
	_, err := d.client.CreateDatabase(ctx, azcosmos.DatabaseProperties{ID: databaseID}, nil)
	if err != nil {
		if hasCosmosStatus(err, http.StatusConflict) {
			log.Debug().Str("database", databaseID).Msg("Database already exists")
			return nil
		}
		return fmt.Errorf("failed to create database %s: %w", databaseID, classifyCosmosError(err))
	}
	log.Info().Str("database", databaseID).Msg("Created database")
	return nil
}

// CreateContainerIfNotExists implements Database.CreateContainerIfNotExists for Cosmos DB
func (d *CosmosDatabase) CreateContainerIfNotExists(ctx context.Context, databaseID string, spec ContainerSpec) (Container, error) {
	if d.closed {
		return nil, ErrDatabaseClosed
	}
	db, err := d.client.NewDatabase(databaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	props := azcosmos.ContainerProperties{
		ID: spec.ID,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{spec.PartitionKeyPath},
		},
	}
	throughput := azcosmos.NewManualThroughputProperties(int32(spec.Throughput))

	_, err = db.CreateContainer(ctx, props, &azcosmos.CreateContainerOptions{ThroughputProperties: &throughput})
	if err != nil {
		if !hasCosmosStatus(err, http.StatusConflict) {
			return nil, fmt.Errorf("failed to create container %s: %w", spec.ID, classifyCosmosError(err))
		}
		log.Debug().Str("container", spec.ID).Msg("Container already exists")
	} else {
		log.Info().
			Str("database", databaseID).
			Str("container", spec.ID).
			Str("partition_key_path", spec.PartitionKeyPath).
			Int("throughput", spec.Throughput).
			Msg("Created container")
	}

	return d.Container(databaseID, spec.ID)
}

// Close implements Database.Close for Cosmos DB. The SDK client holds no
// resources beyond its HTTP transport, so this only marks the handle closed.
func (d *CosmosDatabase) Close() error {
	d.closed = true
	return nil
}

type cosmosContainer struct {
	id        string
	container *azcosmos.ContainerClient
}

func (c *cosmosContainer) ID() string {
	return c.id
}

func (c *cosmosContainer) Read(ctx context.Context) error {
	if _, err := c.container.Read(ctx, nil); err != nil {
		return classifyCosmosError(err)
	}
	return nil
}

func (c *cosmosContainer) Query(query string, opts QueryOptions) PageIterator {
	pk := azcosmos.NewPartitionKey()
	if opts.PartitionKey != "" {
		pk = azcosmos.NewPartitionKeyString(opts.PartitionKey)
	}

	queryOpts := &azcosmos.QueryOptions{}
	if level, ok := parseConsistencyLevel(opts.Consistency); ok {
		queryOpts.ConsistencyLevel = &level
	}
	if opts.PageSize > 0 {
		queryOpts.PageSizeHint = int32(opts.PageSize)
	}

	return &cosmosPageIterator{
		pager:          c.container.NewQueryItemsPager(query, pk, queryOpts),
		crossPartition: opts.PartitionKey == "",
	}
}

func (c *cosmosContainer) Upsert(ctx context.Context, partitionKey string, document []byte) (float64, error) {
	resp, err := c.container.UpsertItem(ctx, azcosmos.NewPartitionKeyString(partitionKey), document, nil)
	if err != nil {
		return 0, classifyCosmosError(err)
	}
	return float64(resp.RequestCharge), nil
}

type cosmosPageIterator struct {
	pager          *runtime.Pager[azcosmos.QueryItemsResponse]
	crossPartition bool
}

func (it *cosmosPageIterator) More() bool {
	return it.pager.More()
}

func (it *cosmosPageIterator) NextPage(ctx context.Context) (Page, error) {
	resp, err := it.pager.NextPage(ctx)
	if err != nil {
		return Page{}, classifyQueryError(err, it.crossPartition)
	}
	return Page{Items: resp.Items, RequestCharge: float64(resp.RequestCharge)}, nil
}

// parseConsistencyLevel maps a case-insensitive level name to the SDK value.
// An empty or unknown name reports false so the account default applies.
func parseConsistencyLevel(name string) (azcosmos.ConsistencyLevel, bool) {
	levels := []azcosmos.ConsistencyLevel{
		azcosmos.ConsistencyLevelStrong,
		azcosmos.ConsistencyLevelBoundedStaleness,
		azcosmos.ConsistencyLevelSession,
		azcosmos.ConsistencyLevelConsistentPrefix,
		azcosmos.ConsistencyLevelEventual,
	}
	for _, level := range levels {
		if strings.EqualFold(string(level), name) {
			return level, true
		}
	}
	return "", false
}

// classifyCosmosError tags 404 responses with ErrNotFound so callers can use IsNotFound
func classifyCosmosError(err error) error {
	if hasCosmosStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// classifyQueryError explains a 400 on a cross-partition query: the gateway
// only runs simple projections and filters without a partition key.
func classifyQueryError(err error, crossPartition bool) error {
	if crossPartition && hasCosmosStatus(err, http.StatusBadRequest) {
		return fmt.Errorf("%w (TOP, ORDER BY, OFFSET, DISTINCT, GROUP BY and aggregates need partition_key_value): %w", ErrCrossPartitionQuery, err)
	}
	return classifyCosmosError(err)
}

func hasCosmosStatus(err error, status int) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == status
	}
	return false
}
