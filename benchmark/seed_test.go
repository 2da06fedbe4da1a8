package benchmark

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_Pebble(t *testing.T) {
	db := openTestPebble(t)
	c := createTestContainer(t, db)
	ctx := context.Background()

	w, err := CreateWorkload(WorkloadConfig{Type: WorkloadShopping, PartitionKeyPath: DefaultPartitionKeyPath})
	require.NoError(t, err)

	stats, err := Seed(ctx, c, w, SeedConfig{Count: 200, Concurrency: 4, RandomSeed: 42})
	require.NoError(t, err)
	assert.Equal(t, uint64(200), stats.Successful)
	assert.Zero(t, stats.Failed)
	assert.GreaterOrEqual(t, stats.TotalRequestCharge, 200.0)

	_, items := drain(t, c.Query("SELECT c.id FROM c", QueryOptions{PageSize: 50}))
	assert.Len(t, items, 200)

	// the default query only finds socks
	_, socks := drain(t, c.Query(DefaultQuery, QueryOptions{}))
	assert.NotEmpty(t, socks)
	assert.LessOrEqual(t, len(socks), 10)
}

func TestSeed_CountsFailures(t *testing.T) {
	db := openTestPebble(t)
	ctx := context.Background()
	require.NoError(t, db.CreateDatabaseIfNotExists(ctx, "ShoppingDatabase"))

	// writes to a missing container fail
	missing, err := db.Container("ShoppingDatabase", "missing")
	require.NoError(t, err)

	w, err := CreateWorkload(WorkloadConfig{PartitionKeyPath: "/pk"})
	require.NoError(t, err)

	stats, err := Seed(ctx, missing, w, SeedConfig{Count: 10, Concurrency: 2, RandomSeed: 1})
	assert.True(t, IsNotFound(err))
	assert.Equal(t, uint64(10), stats.Failed)
	assert.Zero(t, stats.Successful)
}

func TestSeedConfig_Validate(t *testing.T) {
	assert.NoError(t, SeedConfig{Count: 1, Concurrency: 1}.Validate())
	assert.Error(t, SeedConfig{Count: 0, Concurrency: 1}.Validate())
	assert.Error(t, SeedConfig{Count: 1, Concurrency: 0}.Validate())
	assert.Error(t, SeedConfig{Count: 1, Concurrency: 1, ValueSize: -1}.Validate())
	assert.Error(t, SeedConfig{Count: 1, Concurrency: 1, RateLimit: -1}.Validate())
}

func TestRunSeed_Pebble(t *testing.T) {
	cfg := testConfig(t)

	err := RunSeed(context.Background(), cfg, SeedConfig{Count: 25, Concurrency: 2, RandomSeed: 3})
	require.NoError(t, err)

	db, err := NewDatabase(cfg.Database)
	require.NoError(t, err)
	defer db.Close()

	c, err := db.Container(cfg.DatabaseID, cfg.ContainerID)
	require.NoError(t, err)
	_, items := drain(t, c.Query("SELECT * FROM c", QueryOptions{}))
	assert.Len(t, items, 25)
}

func TestSeed_RateLimit(t *testing.T) {
	c := &fakeContainer{}
	w, err := CreateWorkload(WorkloadConfig{PartitionKeyPath: "/pk"})
	require.NoError(t, err)

	// burst of 2, then 200 documents per second
	start := time.Now()
	stats, err := Seed(context.Background(), c, w, SeedConfig{Count: 12, Concurrency: 2, RandomSeed: 1, RateLimit: 200})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), stats.Successful)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Len(t, c.upserted, 12)
}
