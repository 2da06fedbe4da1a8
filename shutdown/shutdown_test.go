package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCloser struct {
	name   string
	err    error
	calls  int
	closed *[]string
}

func (m *mockCloser) Close() error {
	m.calls++
	*m.closed = append(*m.closed, m.name)
	return m.err
}

func newTestCoordinator() *Coordinator {
	return New(5*time.Second, zerolog.Nop())
}

func TestShutdown_PriorityOrder(t *testing.T) {
	c := newTestCoordinator()
	var order []string

	c.Register("database", &mockCloser{name: "database", closed: &order}, PriorityDatabase)
	c.Register("csv", &mockCloser{name: "csv", closed: &order}, PriorityRecorder)
	c.RegisterHook("metrics", func(ctx context.Context) error {
		order = append(order, "metrics")
		return nil
	}, PriorityMetricsServer)
	c.Register("history", &mockCloser{name: "history", closed: &order}, PriorityHistory)

	require.NoError(t, c.Shutdown())
	assert.Equal(t, []string{"metrics", "csv", "history", "database"}, order)
}

func TestShutdown_ContinuesPastFailures(t *testing.T) {
	c := newTestCoordinator()
	var order []string
	first := errors.New("flush failed")

	c.Register("csv", &mockCloser{name: "csv", err: first, closed: &order}, PriorityRecorder)
	c.Register("history", &mockCloser{name: "history", err: errors.New("second"), closed: &order}, PriorityHistory)
	c.Register("database", &mockCloser{name: "database", closed: &order}, PriorityDatabase)

	err := c.Shutdown()
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"csv", "history", "database"}, order)
}

func TestShutdown_RunsOnce(t *testing.T) {
	c := newTestCoordinator()
	var order []string
	db := &mockCloser{name: "database", closed: &order}
	c.Register("database", db, PriorityDatabase)

	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
	assert.Equal(t, 1, db.calls)
}

func TestShutdown_HookReceivesDeadline(t *testing.T) {
	c := New(time.Second, zerolog.Nop())

	var hasDeadline bool
	c.RegisterHook("metrics", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}, PriorityMetricsServer)

	require.NoError(t, c.Shutdown())
	assert.True(t, hasDeadline)
}

func TestShutdown_Empty(t *testing.T) {
	assert.NoError(t, newTestCoordinator().Shutdown())
}
