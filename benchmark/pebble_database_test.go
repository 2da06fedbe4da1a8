package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPebble(t *testing.T) Database {
	t.Helper()
	db, err := NewDatabase(DatabaseConfig{
		Type:         DatabaseTypePebble,
		PebbleConfig: PebbleConfig{Path: t.TempDir(), BlockCacheSize: 1 << 20},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestContainer(t *testing.T, db Database) Container {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.CreateDatabaseIfNotExists(ctx, "ShoppingDatabase"))
	c, err := db.CreateContainerIfNotExists(ctx, "ShoppingDatabase", ContainerSpec{
		ID:               "ShoppingContainer",
		PartitionKeyPath: "/myPartitionKey",
		Throughput:       400,
	})
	require.NoError(t, err)
	return c
}

func drain(t *testing.T, it PageIterator) ([]Page, [][]byte) {
	t.Helper()
	var pages []Page
	var items [][]byte
	for it.More() {
		page, err := it.NextPage(context.Background())
		require.NoError(t, err)
		pages = append(pages, page)
		items = append(items, page.Items...)
	}
	return pages, items
}

func TestPebbleDatabase_ReadMissing(t *testing.T) {
	db := openTestPebble(t)

	c, err := db.Container("ShoppingDatabase", "ShoppingContainer")
	require.NoError(t, err)
	assert.True(t, IsNotFound(c.Read(context.Background())))

	require.NoError(t, db.CreateDatabaseIfNotExists(context.Background(), "ShoppingDatabase"))
	assert.True(t, IsNotFound(c.Read(context.Background())))
}

func TestPebbleDatabase_CreateIsIdempotent(t *testing.T) {
	db := openTestPebble(t)
	ctx := context.Background()

	createTestContainer(t, db)
	c := createTestContainer(t, db)
	require.NoError(t, db.CreateDatabaseIfNotExists(ctx, "ShoppingDatabase"))

	assert.Equal(t, "ShoppingContainer", c.ID())
	assert.NoError(t, c.Read(ctx))
}

func TestPebbleDatabase_CreateContainerRequiresDatabase(t *testing.T) {
	db := openTestPebble(t)

	_, err := db.CreateContainerIfNotExists(context.Background(), "nope", ContainerSpec{ID: "c"})
	assert.True(t, IsNotFound(err))
}

func TestPebbleDatabase_UpsertAndQuery(t *testing.T) {
	db := openTestPebble(t)
	c := createTestContainer(t, db)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		item := "Hat"
		if i%2 == 0 {
			item = "Socks"
		}
		doc := fmt.Sprintf(`{"id":"%02d","Item":%q,"myPartitionKey":"pk%d"}`, i, item, i%3)
		charge, err := c.Upsert(ctx, fmt.Sprintf("pk%d", i%3), []byte(doc))
		require.NoError(t, err)
		assert.Greater(t, charge, 1.0)
	}

	// upsert replaces
	_, err := c.Upsert(ctx, "pk0", []byte(`{"id":"00","Item":"Socks","myPartitionKey":"pk0"}`))
	require.NoError(t, err)

	_, items := drain(t, c.Query(`SELECT c.id FROM c WHERE CONTAINS(c.Item, "Socks")`, QueryOptions{PageSize: 4}))
	assert.Len(t, items, 13)

	pages, items := drain(t, c.Query(`SELECT TOP 10 c.id FROM c WHERE CONTAINS(c.Item, "Socks")`, QueryOptions{PageSize: 4}))
	assert.Len(t, items, 10)
	for _, p := range pages {
		assert.LessOrEqual(t, len(p.Items), 4)
		assert.GreaterOrEqual(t, p.RequestCharge, 1.0)
	}

	_, items = drain(t, c.Query("SELECT * FROM c", QueryOptions{PartitionKey: "pk1"}))
	assert.Len(t, items, 8)
	assert.Contains(t, string(items[0]), `"myPartitionKey":"pk1"`)
}

func TestPebbleDatabase_QueryEmptyContainer(t *testing.T) {
	db := openTestPebble(t)
	c := createTestContainer(t, db)

	pages, items := drain(t, c.Query("SELECT * FROM c", QueryOptions{}))
	require.Len(t, pages, 1)
	assert.Empty(t, items)
	assert.Equal(t, 1.0, pages[0].RequestCharge)
}

func TestPebbleDatabase_QueryErrors(t *testing.T) {
	db := openTestPebble(t)
	c := createTestContainer(t, db)
	ctx := context.Background()

	it := c.Query("SELECT VALUE COUNT(1) FROM c", QueryOptions{})
	require.True(t, it.More())
	_, err := it.NextPage(ctx)
	assert.ErrorIs(t, err, ErrUnsupportedQuery)
	assert.False(t, it.More())

	missing, err := db.Container("ShoppingDatabase", "missing")
	require.NoError(t, err)
	_, err = missing.Query("SELECT * FROM c", QueryOptions{}).NextPage(ctx)
	assert.True(t, IsNotFound(err))
}

func TestPebbleDatabase_UpsertValidation(t *testing.T) {
	db := openTestPebble(t)
	c := createTestContainer(t, db)
	ctx := context.Background()

	_, err := c.Upsert(ctx, "pk", []byte(`{"Item":"Hat"}`))
	assert.Error(t, err)
	_, err = c.Upsert(ctx, "pk", []byte(`nope`))
	assert.Error(t, err)

	missing, err := db.Container("ShoppingDatabase", "missing")
	require.NoError(t, err)
	_, err = missing.Upsert(ctx, "pk", []byte(`{"id":"1"}`))
	assert.True(t, IsNotFound(err))
}

func TestPebbleDatabase_Closed(t *testing.T) {
	db := openTestPebble(t)
	c := createTestContainer(t, db)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	assert.ErrorIs(t, c.Read(context.Background()), ErrDatabaseClosed)
	_, err := db.Container("a", "b")
	assert.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("doc0"), prefixUpperBound([]byte("doc/")))
	assert.Nil(t, prefixUpperBound([]byte{0xff}))
}

func TestLocalCharge(t *testing.T) {
	assert.Equal(t, 1.0, localCharge(0))
	assert.Equal(t, 2.0, localCharge(1024))
	assert.Equal(t, 1.5, localCharge(512))
}
