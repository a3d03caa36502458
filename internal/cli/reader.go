package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

var (
	// ErrInputCancelled is returned when ctx ends before a line arrives.
	ErrInputCancelled = errors.New("input canceled")
	// ErrInputClosed is returned once the input has no more lines.
	ErrInputClosed = errors.New("input closed")
)

type lineResult struct {
	err  error
	line string
}

// LineReader reads prompt answers one line at a time. A read abandoned by a
// cancelled context stays pending, and its line goes to the next ReadLine
// instead of being lost.
type LineReader struct {
	src     *bufio.Reader
	pending chan lineResult
	mu      sync.Mutex
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{src: bufio.NewReader(r)}
}

// ReadLine returns the next line with surrounding space trimmed. A last
// line without a newline counts as a line.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	if r.pending == nil {
		r.pending = make(chan lineResult, 1)
		go func(out chan<- lineResult) {
			line, err := r.src.ReadString('\n')
			out <- lineResult{line: line, err: err}
		}(r.pending)
	}

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case res := <-r.pending:
		r.pending = nil
		return finishLine(res)
	}
}

func finishLine(res lineResult) (string, error) {
	switch {
	case errors.Is(res.err, io.EOF) && res.line == "":
		return "", ErrInputClosed
	case res.err != nil && !errors.Is(res.err, io.EOF):
		return "", res.err
	}
	return strings.TrimSpace(res.line), nil
}
