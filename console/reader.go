// Package console turns operator input on stdin into stop and continue signals.
//
// Terminals deliver input line by line, so a "key press" is a line: the
// operator presses Enter. End of input is not a key press.
package console

import (
	"bufio"
	"context"
	"io"
)

// Reader watches an input stream for key presses
type Reader struct {
	presses chan struct{}
	done    chan struct{}
}

// NewReader starts reading r in the background
func NewReader(r io.Reader) *Reader {
	cr := &Reader{
		presses: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go cr.run(r)
	return cr
}

func (r *Reader) run(in io.Reader) {
	defer close(r.done)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		// keep at most one pending press
		select {
		case r.presses <- struct{}{}:
		default:
		}
	}
}

// Done is closed once the input reaches EOF or fails
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// CancelOnKey returns a context that is cancelled by the next key press
func (r *Reader) CancelOnKey(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-r.presses:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// WaitForKey blocks until a key press and reports true. It returns false
// without waiting further when the input is exhausted or ctx ends.
func (r *Reader) WaitForKey(ctx context.Context) bool {
	select {
	case <-r.presses:
		return true
	case <-r.done:
		// a press read just before EOF is already buffered
		select {
		case <-r.presses:
			return true
		default:
			return false
		}
	case <-ctx.Done():
		return false
	}
}
