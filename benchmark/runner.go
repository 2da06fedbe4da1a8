package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tclemos/cosmos-bench/history"
	"github.com/tclemos/cosmos-bench/output"
	"github.com/tclemos/cosmos-bench/shutdown"
)

// ErrSetup marks a run that failed before the query loop started
var ErrSetup = errors.New("benchmark setup failed")

// Recorder receives every completed iteration
type Recorder interface {
	Record(r Result) error
}

// RunBenchmark orchestrates the full benchmark lifecycle: connect, make sure
// the container exists, run the query loop until ctx is cancelled or a limit
// is reached, then print the summary. Completed iterations are summarized even
// when a query fails; the failure is returned afterwards.
func RunBenchmark(ctx context.Context, cfg Config, out io.Writer) (err error) {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	initialLog(cfg)

	coordinator := shutdown.New(cfg.shutdownTimeout(), log.Logger)
	defer func() {
		err = errors.Join(err, coordinator.Shutdown())
	}()

	db, err := NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("%w: failed to create database: %w", ErrSetup, err)
	}
	coordinator.Register("database", db, shutdown.PriorityDatabase)

	container, err := Bootstrap(ctx, db, cfg.Target())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	logger := log.With().Str("run_id", runID).Logger()

	metrics := NewMetrics(runID, string(cfg.Database.Type))
	recorders := []Recorder{metrics}

	if cfg.ResultsCSVPath != "" {
		w, err := output.NewCSVWriter(cfg.ResultsCSVPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSetup, err)
		}
		coordinator.Register("csv", w, shutdown.PriorityRecorder)
		recorders = append(recorders, &csvRecorder{runID: runID, writer: w})
		logger.Info().Str("path", cfg.ResultsCSVPath).Msg("Writing results to CSV")
	}

	var store *history.Store
	if cfg.ResultsDBPath != "" {
		store, err = history.Open(cfg.ResultsDBPath)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSetup, err)
		}
		coordinator.Register("history", store, shutdown.PriorityHistory)
		recorders = append(recorders, &historyRecorder{runID: runID, store: store})
		logger.Info().Str("path", cfg.ResultsDBPath).Msg("Recording run history")
	}

	g, gctx := errgroup.WithContext(ctx)

	stopMetrics := func() {}
	if cfg.MetricsAddr != "" {
		srv := metrics.Server(cfg.MetricsAddr)
		var once sync.Once
		stopMetrics = func() {
			once.Do(func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("Metrics server shutdown failed")
				}
			})
		}
		coordinator.RegisterHook("metrics", func(context.Context) error {
			stopMetrics()
			return nil
		}, shutdown.PriorityMetricsServer)

		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	runner := NewRunner(cfg, container, out, recorders...)
	runner.OnFailure = metrics.ObserveFailure

	var results []Result
	g.Go(func() error {
		defer stopMetrics()
		var err error
		results, err = runner.Run(gctx)
		return err
	})
	runErr := g.Wait()

	summary := Summarize(results)
	PrintSummary(out, summary)
	logSummary(logger, summary)

	if store != nil {
		run := history.Run{
			ID:                   runID,
			StartedAt:            startedAt,
			FinishedAt:           time.Now(),
			Backend:              string(cfg.Database.Type),
			Database:             cfg.DatabaseID,
			Container:            cfg.ContainerID,
			Query:                cfg.Query,
			Iterations:           summary.Count,
			AverageLatencyMs:     summary.AverageLatencyMs,
			AverageRequestCharge: summary.AverageRequestCharge,
		}
		if runErr != nil {
			run.Error = runErr.Error()
		}
		if err := store.SaveRun(run); err != nil {
			logger.Error().Err(err).Msg("Failed to save run history")
			runErr = errors.Join(runErr, err)
		}
	}

	logger.Info().Dur("elapsed", time.Since(startedAt)).Msg("Benchmark complete")
	return runErr
}

// Runner executes the fixed query sequentially and records each iteration
type Runner struct {
	cfg       Config
	container Container
	out       io.Writer
	recorders []Recorder

	// OnFailure is called when a query execution fails
	OnFailure func()
}

// NewRunner creates a runner for cfg's query against container
func NewRunner(cfg Config, container Container, out io.Writer, recorders ...Recorder) *Runner {
	return &Runner{
		cfg:       cfg,
		container: container,
		out:       out,
		recorders: recorders,
	}
}

// Run executes warmup iterations, then measured iterations until ctx is
// cancelled or a configured limit is reached. Cancellation is checked between
// iterations only: an iteration in flight when ctx is cancelled completes and
// is recorded. A failed query ends the run; the results recorded before it are
// returned along with an error wrapping ErrQueryExecution.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	for i := 1; i <= r.cfg.Warmup; i++ {
		if ctx.Err() != nil {
			return nil, nil
		}
		if _, _, err := r.executeQuery(ctx); err != nil {
			r.failed()
			return nil, fmt.Errorf("%w: warmup iteration %d: %w", ErrQueryExecution, i, err)
		}
	}
	if r.cfg.Warmup > 0 {
		log.Info().Int("iterations", r.cfg.Warmup).Msg("Warmup complete")
	}

	PrintStartPrompt(r.out)

	var results []Result
	started := time.Now()
	for {
		if ctx.Err() != nil {
			log.Info().Int("iterations", len(results)).Msg("Stop requested")
			break
		}
		if r.cfg.MaxIterations > 0 && len(results) >= r.cfg.MaxIterations {
			log.Info().Int("iterations", len(results)).Msg("Iteration limit reached")
			break
		}
		if r.cfg.MaxDuration > 0 && time.Since(started) >= r.cfg.MaxDuration {
			log.Info().Dur("max_duration", r.cfg.MaxDuration).Msg("Duration limit reached")
			break
		}

		iteration := len(results) + 1
		latency, charge, err := r.executeQuery(ctx)
		if err != nil {
			r.failed()
			return results, fmt.Errorf("%w: iteration %d: %w", ErrQueryExecution, iteration, err)
		}

		res := Result{
			Iteration:     iteration,
			Latency:       latency,
			RequestCharge: charge,
			CompletedAt:   time.Now(),
		}
		PrintProgress(r.out, r.cfg.Query, res)
		results = append(results, res)

		for _, rec := range r.recorders {
			if err := rec.Record(res); err != nil {
				log.Warn().Err(err).Int("iteration", iteration).Msg("Failed to record result")
			}
		}
	}
	return results, nil
}

// executeQuery runs the query once, draining every page, and returns the
// elapsed time and the summed request charge. The query is detached from
// ctx cancellation so a stop request never interrupts it.
func (r *Runner) executeQuery(ctx context.Context) (time.Duration, float64, error) {
	qctx := context.WithoutCancel(ctx)
	if r.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(qctx, r.cfg.QueryTimeout)
		defer cancel()
	}

	start := time.Now()
	it := r.container.Query(r.cfg.Query, r.cfg.QueryOptions())

	var charge float64
	for it.More() {
		page, err := it.NextPage(qctx)
		if err != nil {
			return 0, 0, err
		}
		charge += page.RequestCharge
	}
	return time.Since(start), charge, nil
}

func (r *Runner) failed() {
	if r.OnFailure != nil {
		r.OnFailure()
	}
}

func initialLog(cfg Config) {
	blockCacheInfo := "disabled"
	if cfg.Database.PebbleConfig.BlockCacheSize >= 0 {
		blockCacheInfo = fmt.Sprintf("enabled, size: %d bytes", cfg.Database.PebbleConfig.BlockCacheSize)
	}

	partitionKey := cfg.PartitionKeyValue
	if partitionKey == "" {
		partitionKey = "(cross-partition)"
	}

	event := log.Info().
		Str("database_backend", string(cfg.Database.Type)).
		Str("database", cfg.DatabaseID).
		Str("container", cfg.ContainerID).
		Str("partition_key_path", cfg.PartitionKeyPath).
		Str("partition_key", partitionKey).
		Int("throughput", cfg.Throughput).
		Str("consistency", cfg.Consistency).
		Str("query", cfg.Query).
		Int("warmup", cfg.Warmup).
		Int("max_iterations", cfg.MaxIterations).
		Dur("max_duration", cfg.MaxDuration)
	if cfg.Database.Type == DatabaseTypePebble {
		event = event.
			Str("pebble_path", cfg.Database.PebbleConfig.Path).
			Str("block_cache", blockCacheInfo)
	}
	event.Msg("Starting benchmark")

	if cfg.needsPartitionKey() {
		log.Warn().
			Str("query", cfg.Query).
			Msg("Cross-partition query uses a clause the gateway only serves on single-range containers, set partition_key_value if it fails with 400")
	}
}

func logSummary(logger zerolog.Logger, s Summary) {
	if s.Count == 0 {
		logger.Warn().Msg("No iterations completed")
		return
	}
	logger.Info().
		Int("iterations", s.Count).
		Int("averaged", s.Trimmed).
		Float64("avg_latency_ms", s.AverageLatencyMs).
		Float64("avg_request_charge", s.AverageRequestCharge).
		Float64("min_latency_ms", s.MinLatencyMs).
		Float64("p50_latency_ms", s.P50LatencyMs).
		Float64("p95_latency_ms", s.P95LatencyMs).
		Float64("p99_latency_ms", s.P99LatencyMs).
		Float64("max_latency_ms", s.MaxLatencyMs).
		Float64("total_request_charge", s.TotalRequestCharge).
		Msg("Run summary")
}

type csvRecorder struct {
	runID  string
	writer *output.CSVWriter
}

func (c *csvRecorder) Record(r Result) error {
	return c.writer.Write(output.Row{
		RunID:         c.runID,
		Iteration:     r.Iteration,
		Timestamp:     r.CompletedAt,
		LatencyMs:     r.LatencyMs(),
		RequestCharge: r.RequestCharge,
	})
}

type historyRecorder struct {
	runID string
	store *history.Store
}

func (h *historyRecorder) Record(r Result) error {
	return h.store.AppendIteration(h.runID, history.Iteration{
		Iteration:     r.Iteration,
		Timestamp:     r.CompletedAt,
		LatencyMs:     r.LatencyMs(),
		RequestCharge: r.RequestCharge,
	})
}
