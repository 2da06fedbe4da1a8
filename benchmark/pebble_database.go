package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"

	"github.com/tclemos/cosmos-bench/logging"
)

// defaultLocalPageSize mirrors the service default of 100 items per page
const defaultLocalPageSize = 100

// PebbleDatabase implements the Database interface on a local pebble store.
// Databases, containers and documents live under separate key prefixes:
//
//	db/<database>
//	ct/<database>/<container>
//	doc/<database>/<container>/<partition key>/<id>
//
// Every path component is escaped, so identifiers may contain '/'.
type PebbleDatabase struct {
	mu    sync.RWMutex
	db    *pebble.DB
	cache *pebble.Cache
}

// NewPebbleDatabase creates a new Pebble database instance
func NewPebbleDatabase(cfg PebbleConfig) (Database, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: pebble path is required", ErrConnection)
	}

	opts := &pebble.Options{
		Logger: logging.PebbleLogger{Logger: logging.Get("pebble")},
	}

	var cache *pebble.Cache
	if cfg.BlockCacheSize >= 0 {
		cache = pebble.NewCache(cfg.BlockCacheSize)
		opts.Cache = cache

		log.Info().
			Int64("block_cache_size", cfg.BlockCacheSize).
			Msg("Created Pebble with block cache")
	} else {
		log.Info().Msg("Created Pebble with block cache disabled")
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		if cache != nil {
			cache.Unref()
		}
		return nil, fmt.Errorf("%w: failed to open pebble store: %w", ErrConnection, err)
	}

	log.Info().Str("path", cfg.Path).Msg("Opened local document store")
	return &PebbleDatabase{
		db:    db,
		cache: cache,
	}, nil
}

func databaseKey(databaseID string) []byte {
	return []byte("db/" + url.PathEscape(databaseID))
}

func containerKey(databaseID, containerID string) []byte {
	return []byte("ct/" + url.PathEscape(databaseID) + "/" + url.PathEscape(containerID))
}

func documentPrefix(databaseID, containerID, partitionKey string) []byte {
	prefix := "doc/" + url.PathEscape(databaseID) + "/" + url.PathEscape(containerID) + "/"
	if partitionKey != "" {
		prefix += url.PathEscape(partitionKey) + "/"
	}
	return []byte(prefix)
}

func documentKey(databaseID, containerID, partitionKey, id string) []byte {
	return append(documentPrefix(databaseID, containerID, partitionKey), url.PathEscape(id)...)
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	end := slices.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// localCharge converts bytes touched into request units: one unit per
// request plus one per KiB, rounded to two decimals
func localCharge(bytesTouched int) float64 {
	return math.Round((1+float64(bytesTouched)/1024)*100) / 100
}

// has reports whether key exists. Callers hold p.mu.
func (p *PebbleDatabase) has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, closer.Close()
}

// Container implements Database.Container for Pebble
func (p *PebbleDatabase) Container(databaseID, containerID string) (Container, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, ErrDatabaseClosed
	}
	return &pebbleContainer{store: p, databaseID: databaseID, id: containerID}, nil
}

// CreateDatabaseIfNotExists implements Database.CreateDatabaseIfNotExists for Pebble
func (p *PebbleDatabase) CreateDatabaseIfNotExists(ctx context.Context, databaseID string) error {
	if databaseID == "" {
		return fmt.Errorf("database id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return ErrDatabaseClosed
	}

	exists, err := p.has(databaseKey(databaseID))
	if err != nil {
		return err
	}
	if exists {
		log.Debug().Str("database", databaseID).Msg("Database already exists")
		return nil
	}

	if err := p.db.Set(databaseKey(databaseID), []byte("{}"), pebble.Sync); err != nil {
		return fmt.Errorf("failed to create database %s: %w", databaseID, err)
	}
	log.Info().Str("database", databaseID).Msg("Created database")
	return nil
}

// CreateContainerIfNotExists implements Database.CreateContainerIfNotExists for Pebble
func (p *PebbleDatabase) CreateContainerIfNotExists(ctx context.Context, databaseID string, spec ContainerSpec) (Container, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("container id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrDatabaseClosed
	}

	dbExists, err := p.has(databaseKey(databaseID))
	if err != nil {
		return nil, err
	}
	if !dbExists {
		return nil, fmt.Errorf("%w: database %s", ErrNotFound, databaseID)
	}

	key := containerKey(databaseID, spec.ID)
	exists, err := p.has(key)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Debug().Str("container", spec.ID).Msg("Container already exists")
	} else {
		value, err := json.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode container spec: %w", err)
		}
		if err := p.db.Set(key, value, pebble.Sync); err != nil {
			return nil, fmt.Errorf("failed to create container %s: %w", spec.ID, err)
		}
		log.Info().
			Str("database", databaseID).
			Str("container", spec.ID).
			Str("partition_key_path", spec.PartitionKeyPath).
			Int("throughput", spec.Throughput).
			Msg("Created container")
	}

	return &pebbleContainer{store: p, databaseID: databaseID, id: spec.ID}, nil
}

// Close implements Database.Close for Pebble
func (p *PebbleDatabase) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.db != nil {
		m := p.db.Metrics()
		log.Debug().
			Int64("compactions", m.Compact.Count).
			Int64("flushes", m.Flush.Count).
			Uint64("memtable_size", m.MemTable.Size).
			Msg("Closing local document store")

		err = p.db.Close()
		p.db = nil
	}

	if p.cache != nil {
		p.cache.Unref()
		p.cache = nil
	}

	return err
}

type pebbleContainer struct {
	store      *PebbleDatabase
	databaseID string
	id         string
}

func (c *pebbleContainer) ID() string {
	return c.id
}

// exists checks the database and the container. Callers hold store.mu.
func (c *pebbleContainer) exists() error {
	for _, key := range [][]byte{databaseKey(c.databaseID), containerKey(c.databaseID, c.id)} {
		ok, err := c.store.has(key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, c.databaseID, c.id)
		}
	}
	return nil
}

func (c *pebbleContainer) Read(ctx context.Context) error {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if c.store.db == nil {
		return ErrDatabaseClosed
	}
	return c.exists()
}

func (c *pebbleContainer) Query(query string, opts QueryOptions) PageIterator {
	it := &pebblePageIterator{
		container: c,
		prefix:    documentPrefix(c.databaseID, c.id, opts.PartitionKey),
		pageSize:  opts.PageSize,
	}
	if it.pageSize <= 0 {
		it.pageSize = defaultLocalPageSize
	}
	it.query, it.err = parseLocalQuery(query)
	return it
}

func (c *pebbleContainer) Upsert(ctx context.Context, partitionKey string, document []byte) (float64, error) {
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(document, &doc); err != nil {
		return 0, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc.ID == "" {
		return 0, fmt.Errorf("document must have a non-empty string id")
	}

	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if c.store.db == nil {
		return 0, ErrDatabaseClosed
	}
	if err := c.exists(); err != nil {
		return 0, err
	}

	key := documentKey(c.databaseID, c.id, partitionKey, doc.ID)
	if err := c.store.db.Set(key, document, pebble.NoSync); err != nil {
		return 0, fmt.Errorf("failed to write document %s: %w", doc.ID, err)
	}
	return localCharge(len(document)), nil
}

// pebblePageIterator scans the container's documents one page at a time,
// resuming after the last key of the previous page
type pebblePageIterator struct {
	container *pebbleContainer
	query     *localQuery
	prefix    []byte
	pageSize  int

	lastKey  []byte
	returned int
	done     bool
	err      error // parse error, surfaced by the first NextPage
}

func (it *pebblePageIterator) More() bool {
	return !it.done
}

func (it *pebblePageIterator) NextPage(ctx context.Context) (Page, error) {
	if it.done {
		return Page{}, fmt.Errorf("no more pages")
	}
	if it.err != nil {
		it.done = true
		return Page{}, it.err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	store := it.container.store
	store.mu.RLock()
	defer store.mu.RUnlock()
	if store.db == nil {
		it.done = true
		return Page{}, ErrDatabaseClosed
	}
	if it.lastKey == nil {
		if err := it.container.exists(); err != nil {
			it.done = true
			return Page{}, err
		}
	}

	lower := it.prefix
	if it.lastKey != nil {
		// the immediate successor of lastKey
		lower = append(slices.Clone(it.lastKey), 0)
	}
	iter, err := store.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(it.prefix),
	})
	if err != nil {
		it.done = true
		return Page{}, err
	}
	defer iter.Close()

	page := Page{}
	scanned := 0
	limit := it.pageSize
	if it.query.top > 0 {
		limit = min(limit, it.query.top-it.returned)
	}

	valid := iter.First()
	for ; valid && len(page.Items) < limit; valid = iter.Next() {
		value := iter.Value()
		scanned += len(value)
		it.lastKey = slices.Clone(iter.Key())

		item, ok, err := it.query.apply(value)
		if err != nil {
			it.done = true
			return Page{}, err
		}
		if ok {
			// pebble reuses the value buffer
			page.Items = append(page.Items, bytes.Clone(item))
		}
	}
	if err := iter.Error(); err != nil {
		it.done = true
		return Page{}, err
	}

	it.returned += len(page.Items)
	if !valid || (it.query.top > 0 && it.returned >= it.query.top) {
		it.done = true
	}
	page.RequestCharge = localCharge(scanned)
	return page, nil
}
