package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tclemos/cosmos-bench/benchmark"
)

// syncBuffer lets the test read output while the command is still writing it
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// startRun executes `cosmos-bench run` against a temporary pebble store with
// stdin fed from the returned writer
func startRun(t *testing.T, extra ...string) (*io.PipeWriter, *syncBuffer, <-chan error) {
	t.Helper()

	stdin, keys := io.Pipe()
	t.Cleanup(func() { keys.Close() })
	out := &syncBuffer{}

	args := []string{
		"run",
		"--backend=pebble",
		"--db-path=" + filepath.Join(t.TempDir(), "store"),
		"--block-cache-size=-1",
		"--throughput=6000",
		"--max-iterations=0",
		"--pause-on-exit=true",
		"--log-level=error",
	}
	rootCmd.SetArgs(append(args, extra...))
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(out)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
	})

	done := make(chan error, 1)
	go func() {
		done <- rootCmd.ExecuteContext(context.Background())
	}()
	return keys, out, done
}

func pressEnter(t *testing.T, keys io.Writer) {
	t.Helper()
	_, err := io.WriteString(keys, "\n")
	require.NoError(t, err)
}

func waitForOutput(t *testing.T, out *syncBuffer, text string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), text)
	}, 10*time.Second, 10*time.Millisecond, "waiting for %q", text)
}

func TestRunCommand_StopThenContinue(t *testing.T) {
	keys, out, done := startRun(t)

	waitForOutput(t, out, "Query execution: 1,")
	pressEnter(t, keys)

	waitForOutput(t, out, "Press Enter to continue...")
	assert.Contains(t, out.String(), "\nSummary\n\nAverage Latency:\t")
	assert.Contains(t, out.String(), "Average Request Units:\t")

	// the command holds until the operator presses again
	select {
	case err := <-done:
		t.Fatalf("run returned before the second key press: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	pressEnter(t, keys)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after the second key press")
	}

	// no iteration is printed once the summary is out
	summaryAt := strings.Index(out.String(), "\nSummary\n")
	assert.NotContains(t, out.String()[summaryAt:], "Query execution:")
}

func TestRunCommand_InterruptSkipsPause(t *testing.T) {
	_, out, done := startRun(t)

	waitForOutput(t, out, "Query execution: 1,")

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(os.Interrupt))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after interrupt")
	}
	assert.Contains(t, out.String(), "\nSummary\n")
	assert.NotContains(t, out.String(), "Press Enter to continue...")
}

func TestRunCommand_SetupFailureSkipsPause(t *testing.T) {
	_, out, done := startRun(t, "--throughput=10")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, benchmark.ErrSetup)
		assert.ErrorContains(t, err, "throughput")
	case <-time.After(10 * time.Second):
		t.Fatal("run waited for a key press after failing setup")
	}
	assert.NotContains(t, out.String(), "Press Enter to continue...")
	assert.NotContains(t, out.String(), "Summary")
}
