package shutdown

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Closer is implemented by components that hold resources until shutdown
type Closer interface {
	Close() error
}

// HookFunc is a cleanup step that needs the shutdown deadline
type HookFunc func(ctx context.Context) error

// Coordinator releases registered components in priority order
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.Mutex
	steps []step

	once sync.Once
	err  error
}

type step struct {
	name     string
	priority int // lower runs first
	run      HookFunc
}

// New creates a new shutdown coordinator
func New(timeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		timeout: timeout,
		logger:  logger.With().Str("component", "shutdown").Logger(),
	}
}

// Register registers a component to be closed on shutdown
func (c *Coordinator) Register(name string, component Closer, priority int) {
	c.RegisterHook(name, func(context.Context) error {
		return component.Close()
	}, priority)
}

// RegisterHook registers a cleanup function to run on shutdown
func (c *Coordinator) RegisterHook(name string, hook HookFunc, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.steps = append(c.steps, step{name: name, priority: priority, run: hook})

	c.logger.Debug().
		Str("name", name).
		Int("priority", priority).
		Msg("Registered for shutdown")
}

// Shutdown runs every registered step once, lowest priority first. Failing
// steps do not stop the remaining ones; the first error is returned.
// Calling Shutdown again returns the same result without re-running steps.
func (c *Coordinator) Shutdown() error {
	c.once.Do(func() {
		c.mu.Lock()
		steps := slices.Clone(c.steps)
		c.mu.Unlock()

		slices.SortStableFunc(steps, func(a, b step) int {
			return a.priority - b.priority
		})

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		start := time.Now()
		for _, s := range steps {
			if ctx.Err() != nil {
				c.logger.Warn().Str("name", s.name).Msg("Shutdown timeout reached, skipping remaining steps")
				if c.err == nil {
					c.err = ctx.Err()
				}
				return
			}

			if err := s.run(ctx); err != nil {
				c.logger.Error().Err(err).Str("name", s.name).Msg("Shutdown step failed")
				if c.err == nil {
					c.err = err
				}
				continue
			}
			c.logger.Debug().Str("name", s.name).Msg("Shutdown step complete")
		}

		c.logger.Debug().
			Dur("duration", time.Since(start)).
			Int("steps", len(steps)).
			Msg("Shutdown complete")
	})
	return c.err
}

// Priorities for the components cosmos-bench owns
const (
	PriorityMetricsServer = 10 // stop serving scrapes first
	PriorityRecorder      = 20 // flush result exports
	PriorityHistory       = 30 // close the results store
	PriorityDatabase      = 90 // database connections last
)
