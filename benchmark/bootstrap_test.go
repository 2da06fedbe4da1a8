package benchmark

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTarget() Target {
	return Target{
		DatabaseID: DefaultDatabase,
		Container: ContainerSpec{
			ID:               DefaultContainer,
			PartitionKeyPath: DefaultPartitionKeyPath,
			Throughput:       DefaultThroughput,
		},
	}
}

func TestBootstrap_ContainerExists(t *testing.T) {
	existing := &fakeContainer{id: DefaultContainer}
	db := &fakeDatabase{existing: existing}

	c, err := Bootstrap(context.Background(), db, testTarget())
	require.NoError(t, err)
	assert.Same(t, existing, c)
	assert.Zero(t, db.createDatabaseCalls)
	assert.Zero(t, db.createContainerCalls)
}

func TestBootstrap_CreatesOnNotFound(t *testing.T) {
	created := &fakeContainer{id: DefaultContainer}
	db := &fakeDatabase{
		existing: &fakeContainer{id: DefaultContainer, readErr: fmt.Errorf("%w: 404", ErrNotFound)},
		created:  created,
	}

	c, err := Bootstrap(context.Background(), db, testTarget())
	require.NoError(t, err)
	assert.Same(t, created, c)
	assert.Equal(t, 1, db.createDatabaseCalls)
	assert.Equal(t, 1, db.createContainerCalls)
	assert.Equal(t, testTarget().Container, db.lastSpec)
}

func TestBootstrap_OtherReadErrorIsFatal(t *testing.T) {
	authErr := errors.New("401 unauthorized")
	db := &fakeDatabase{existing: &fakeContainer{readErr: authErr}}

	_, err := Bootstrap(context.Background(), db, testTarget())
	assert.ErrorIs(t, err, authErr)
	assert.Zero(t, db.createDatabaseCalls)
	assert.Zero(t, db.createContainerCalls)
}

func TestBootstrap_CreateFailure(t *testing.T) {
	quota := errors.New("quota exceeded")
	db := &fakeDatabase{
		existing:    &fakeContainer{readErr: ErrNotFound},
		createCtErr: quota,
	}

	_, err := Bootstrap(context.Background(), db, testTarget())
	assert.ErrorIs(t, err, quota)
	assert.Equal(t, 1, db.createDatabaseCalls)
}

func TestBootstrap_Pebble(t *testing.T) {
	db := openTestPebble(t)
	ctx := context.Background()

	c, err := Bootstrap(ctx, db, testTarget())
	require.NoError(t, err)
	require.NoError(t, c.Read(ctx))

	// second run finds the container
	c, err = Bootstrap(ctx, db, testTarget())
	require.NoError(t, err)
	assert.Equal(t, DefaultContainer, c.ID())
}
