package benchmark

import (
	"context"
	"sync"
)

// fakeDatabase records provisioning calls and hands out fakeContainers
type fakeDatabase struct {
	mu sync.Mutex

	existing *fakeContainer // returned by Container
	created  *fakeContainer // returned by CreateContainerIfNotExists

	createDBErr error
	createCtErr error

	createDatabaseCalls  int
	createContainerCalls int
	lastSpec             ContainerSpec
	closed               bool
}

func (d *fakeDatabase) Container(databaseID, containerID string) (Container, error) {
	return d.existing, nil
}

func (d *fakeDatabase) CreateDatabaseIfNotExists(ctx context.Context, databaseID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createDatabaseCalls++
	return d.createDBErr
}

func (d *fakeDatabase) CreateContainerIfNotExists(ctx context.Context, databaseID string, spec ContainerSpec) (Container, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createContainerCalls++
	d.lastSpec = spec
	if d.createCtErr != nil {
		return nil, d.createCtErr
	}
	return d.created, nil
}

func (d *fakeDatabase) Close() error {
	d.closed = true
	return nil
}

// fakeContainer serves scripted query pages
type fakeContainer struct {
	mu sync.Mutex

	id      string
	readErr error

	// pages returns the pages (and a trailing error) for the n-th query, 1-based
	pages func(n int) ([]Page, error)
	// onQuery runs when the n-th query starts
	onQuery func(n int)

	queries  int
	upserted map[string][]byte
}

func (c *fakeContainer) ID() string {
	return c.id
}

func (c *fakeContainer) Read(ctx context.Context) error {
	return c.readErr
}

func (c *fakeContainer) Query(query string, opts QueryOptions) PageIterator {
	c.mu.Lock()
	c.queries++
	n := c.queries
	c.mu.Unlock()

	if c.onQuery != nil {
		c.onQuery(n)
	}
	it := &fakeIterator{}
	if c.pages != nil {
		it.pages, it.err = c.pages(n)
	} else {
		it.pages = []Page{{RequestCharge: 1}}
	}
	return it
}

func (c *fakeContainer) Upsert(ctx context.Context, partitionKey string, document []byte) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upserted == nil {
		c.upserted = make(map[string][]byte)
	}
	c.upserted[partitionKey+"/"+string(document)] = document
	return 1, nil
}

type fakeIterator struct {
	pages   []Page
	err     error
	next    int
	errSent bool
}

func (it *fakeIterator) More() bool {
	return it.next < len(it.pages) || (it.err != nil && !it.errSent)
}

func (it *fakeIterator) NextPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if it.next < len(it.pages) {
		p := it.pages[it.next]
		it.next++
		return p, nil
	}
	it.errSent = true
	return Page{}, it.err
}
