package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tclemos/cosmos-bench/shutdown"
)

// SeedConfig controls how many documents the seed command writes
type SeedConfig struct {
	Workload    WorkloadType
	Count       int
	Concurrency int
	RandomSeed  int64
	ValueSize   int
	RateLimit   float64 // documents per second across all workers, 0 for unlimited
}

// Validate checks the seed parameters
func (c SeedConfig) Validate() error {
	if c.Count <= 0 {
		return fmt.Errorf("seed count must be positive, got %d", c.Count)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("seed concurrency must be positive, got %d", c.Concurrency)
	}
	if c.ValueSize < 0 {
		return fmt.Errorf("seed value size must not be negative, got %d", c.ValueSize)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("seed rate limit must not be negative, got %g", c.RateLimit)
	}
	return nil
}

// SeedStats summarizes a seed run
type SeedStats struct {
	Successful         uint64
	Failed             uint64
	TotalRequestCharge float64
	Elapsed            time.Duration
}

// Seed writes the workload's documents to c using cfg.Concurrency workers.
// Failed writes are counted and logged; the first failure is returned once
// every document has been attempted.
func Seed(ctx context.Context, c Container, workload Workload, cfg SeedConfig) (SeedStats, error) {
	log.Info().
		Str("workload", workload.Name()).
		Int("count", cfg.Count).
		Int("workers", cfg.Concurrency).
		Msg("Beginning write loop")

	jobs := make(chan Document, cfg.Concurrency*2)
	var wg sync.WaitGroup
	var failed, successful uint64

	var mu sync.Mutex
	var totalCharge float64
	var firstErr error

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Concurrency)
	}

	start := time.Now()

	// Feed documents to workers
	go func() {
		defer close(jobs)
		for doc := range workload.GenerateDocuments(cfg.RandomSeed, cfg.Count) {
			select {
			case jobs <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			var charge float64
			for doc := range jobs {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						break
					}
				}
				rc, err := c.Upsert(ctx, doc.PartitionKey, doc.Body)
				if err != nil {
					atomic.AddUint64(&failed, 1)
					log.Debug().Err(err).Int("worker", workerID).Str("id", doc.ID).Msg("Write failed")

					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("failed to write document %s: %w", doc.ID, err)
					}
					mu.Unlock()
					continue
				}
				charge += rc
				atomic.AddUint64(&successful, 1)
			}

			mu.Lock()
			totalCharge += charge
			mu.Unlock()
		}(w)
	}

	// print progress every second while workers are running
	chDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-chDone:
				return
			case <-ticker.C:
				log.Info().Uint64("written", atomic.LoadUint64(&successful)).Msg("Writes in progress")
			}
		}
	}()

	wg.Wait()
	close(chDone)

	stats := SeedStats{
		Successful:         atomic.LoadUint64(&successful),
		Failed:             atomic.LoadUint64(&failed),
		TotalRequestCharge: totalCharge,
		Elapsed:            time.Since(start),
	}

	ops := float64(0)
	if stats.Elapsed > 0 {
		ops = float64(stats.Successful) / stats.Elapsed.Seconds()
	}
	log.Info().
		Dur("total_elapsed", stats.Elapsed).
		Uint64("failed_writes", stats.Failed).
		Uint64("successful_writes", stats.Successful).
		Float64("ops_per_sec", ops).
		Float64("total_request_charge", stats.TotalRequestCharge).
		Msg("Write benchmark complete")

	if firstErr != nil {
		return stats, firstErr
	}
	return stats, ctx.Err()
}

// RunSeed provisions the target container and fills it with workload documents
func RunSeed(ctx context.Context, cfg Config, seed SeedConfig) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := seed.Validate(); err != nil {
		return err
	}

	workload, err := CreateWorkload(WorkloadConfig{
		Type:             seed.Workload,
		PartitionKeyPath: cfg.PartitionKeyPath,
		ValueSize:        seed.ValueSize,
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("workload", workload.Name()).
		Str("description", workload.GetDescription()).
		Msg("Using workload")

	coordinator := shutdown.New(cfg.shutdownTimeout(), log.Logger)
	defer func() {
		err = errors.Join(err, coordinator.Shutdown())
	}()

	db, err := NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	coordinator.Register("database", db, shutdown.PriorityDatabase)

	container, err := Bootstrap(ctx, db, cfg.Target())
	if err != nil {
		return err
	}

	_, err = Seed(ctx, container, workload, seed)
	return err
}
