package textio_test

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/textlab/nlprun/internal/textio"
)

func TestLineReader(t *testing.T) {
	var testCases = []struct {
		scenario string
		given    string
		then     []string
	}{
		{"empty", "", nil},
		{"terminated", "a\nb\n", []string{"a", "b"}},
		{"unterminated", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"empty lines", "\n\nx\n", []string{"", "", "x"}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			r := textio.NewLineReader(iotest.OneByteReader(strings.NewReader(tt.given)))
			lines, err := textio.Lines(r)
			require.NoError(t, err)
			require.Equal(t, tt.then, lines)
			require.True(t, r.EOF())
		})
	}
}

func TestLineReaderEOF(t *testing.T) {
	r := textio.NewLineReader(strings.NewReader("one\ntwo"))
	require.False(t, r.EOF())

	line, err := r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "one", line)
	require.False(t, r.EOF())

	line, err = r.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "two", line)
	require.True(t, r.EOF())

	_, err = r.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}

func TestLineReaderError(t *testing.T) {
	r := textio.NewLineReader(iotest.ErrReader(iotest.ErrTimeout))
	_, err := r.ReadLine()
	require.ErrorIs(t, err, iotest.ErrTimeout)
	require.False(t, r.EOF())
}
