// Package history persists benchmark runs in a local pebble database so that
// results can be compared across invocations.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"

	"github.com/tclemos/cosmos-bench/logging"
)

const (
	runPrefix  = "run/"
	iterPrefix = "iter/"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrStoreClosed = errors.New("history store is closed")
)

// Run is the persisted outcome of one benchmark invocation
type Run struct {
	ID                   string    `json:"id"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	Backend              string    `json:"backend"`
	Database             string    `json:"database"`
	Container            string    `json:"container"`
	Query                string    `json:"query"`
	Iterations           int       `json:"iterations"`
	AverageLatencyMs     float64   `json:"average_latency_ms"`
	AverageRequestCharge float64   `json:"average_request_charge"`
	Error                string    `json:"error,omitempty"`
}

// Iteration is one recorded query execution of a run
type Iteration struct {
	Iteration     int       `json:"iteration"`
	Timestamp     time.Time `json:"timestamp"`
	LatencyMs     float64   `json:"latency_ms"`
	RequestCharge float64   `json:"request_charge"`
}

// Store is a pebble-backed run history
type Store struct {
	mu sync.RWMutex
	db *pebble.DB
}

// Open opens or creates the history database at path
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Logger: logging.PebbleLogger{Logger: logging.Get("history")},
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	log.Debug().Str("path", path).Msg("Opened history store")
	return &Store{db: db}, nil
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

func iterKey(runID string, iteration int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", iterPrefix, runID, iteration))
}

// upperBound returns the smallest key greater than every key with prefix
func upperBound(prefix []byte) []byte {
	end := slices.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// SaveRun writes (or overwrites) the run record
func (s *Store) SaveRun(run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Set(runKey(run.ID), value, pebble.Sync)
}

// AppendIteration records one iteration of a run
func (s *Store) AppendIteration(runID string, it Iteration) error {
	value, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("failed to encode iteration: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Set(iterKey(runID, it.Iteration), value, pebble.NoSync)
}

// Run loads a single run record
func (s *Store) Run(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return Run{}, ErrStoreClosed
	}

	value, closer, err := s.db.Get(runKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return Run{}, err
	}
	defer closer.Close()

	var run Run
	if err := json.Unmarshal(value, &run); err != nil {
		return Run{}, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return run, nil
}

// Runs returns every stored run, oldest first
func (s *Store) Runs() ([]Run, error) {
	var runs []Run
	err := s.scan([]byte(runPrefix), func(value []byte) error {
		var run Run
		if err := json.Unmarshal(value, &run); err != nil {
			return fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, run)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(runs, func(a, b Run) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return runs, nil
}

// Iterations returns the recorded iterations of a run in order
func (s *Store) Iterations(runID string) ([]Iteration, error) {
	var its []Iteration
	err := s.scan([]byte(iterPrefix+runID+"/"), func(value []byte) error {
		var it Iteration
		if err := json.Unmarshal(value, &it); err != nil {
			return fmt.Errorf("failed to decode iteration: %w", err)
		}
		its = append(its, it)
		return nil
	})
	return its, err
}

func (s *Store) scan(prefix []byte, fn func(value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close flushes and closes the store
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
