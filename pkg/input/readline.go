package input

import (
	"bufio"
	"context"
	"errors"
	"io"
)

type lineResult struct {
	line string
	err  error
}

// LineReader reads lines from an io.Reader while honoring context
// cancellation. A read interrupted by cancellation is delivered to the next
// ReadLine call, so no input is lost.
type LineReader struct {
	rd      *bufio.Reader
	pending chan lineResult
}

func NewLineReader(rd io.Reader) *LineReader {
	return &LineReader{rd: bufio.NewReader(rd)}
}

// ReadLine returns the next line including its trailing newline. A final
// line without a newline is returned before io.EOF.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	if l.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := l.rd.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
		l.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-l.pending:
		l.pending = nil
		if errors.Is(res.err, io.EOF) && res.line != "" {
			return res.line, nil
		}
		return res.line, res.err
	}
}

// ReadLine reads a single line from rd.
func ReadLine(ctx context.Context, rd io.Reader) (string, error) {
	return NewLineReader(rd).ReadLine(ctx)
}
