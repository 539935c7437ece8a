package input

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader_Lines(t *testing.T) {
	t.Parallel()

	lr := NewLineReader(strings.NewReader("first\nsecond\nlast"))

	for _, expected := range []string{"first\n", "second\n", "last"} {
		line, err := lr.ReadLine(t.Context())
		require.NoError(t, err)
		assert.Equal(t, expected, line)
	}

	_, err := lr.ReadLine(t.Context())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_CancelKeepsInput(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	lr := NewLineReader(pr)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := lr.ReadLine(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = pw.Write([]byte("late\n"))
	}()

	line, err := lr.ReadLine(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "late\n", line)
}

func TestReadLine(t *testing.T) {
	t.Parallel()

	line, err := ReadLine(t.Context(), strings.NewReader("hello\nworld\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line)
}
