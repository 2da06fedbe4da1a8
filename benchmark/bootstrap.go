package benchmark

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Target identifies the container a run benchmarks and how to provision it
type Target struct {
	DatabaseID string
	Container  ContainerSpec
}

// Bootstrap returns a verified handle to the target container. The container
// is created only when reading it reports ErrNotFound; any other read failure
// is returned without attempting creation.
func Bootstrap(ctx context.Context, db Database, target Target) (Container, error) {
	logger := log.With().
		Str("database", target.DatabaseID).
		Str("container", target.Container.ID).
		Logger()

	c, err := db.Container(target.DatabaseID, target.Container.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get container handle: %w", err)
	}

	err = c.Read(ctx)
	if err == nil {
		logger.Info().Msg("Container found")
		return c, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("failed to read container: %w", err)
	}

	logger.Info().
		Int("throughput", target.Container.Throughput).
		Msg("Container not found, creating it")

	if err := db.CreateDatabaseIfNotExists(ctx, target.DatabaseID); err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	created, err := db.CreateContainerIfNotExists(ctx, target.DatabaseID, target.Container)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	return created, nil
}
