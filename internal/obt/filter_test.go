package obt_test

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/textlab/nlprun/internal/obt"
)

func TestFilteredReader(t *testing.T) {
	testCases := []struct {
		scenario string
		given    string
		then     string
	}{
		{scenario: "no blanks", given: "a\nb\n", then: "a\nb\n"},
		{scenario: "blank lines", given: "\na\n\n  \nb\n\n", then: "a\nb\n"},
		{scenario: "no final newline", given: "a\n\nb", then: "a\nb"},
		{scenario: "only blanks", given: "\n\t\n\n", then: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			out, err := io.ReadAll(iotest.OneByteReader(obt.NewFilteredReader(strings.NewReader(tc.given))))
			require.NoError(t, err)
			require.Equal(t, tc.then, string(out))
		})
	}
}

func TestFilteredReaderLines(t *testing.T) {
	f := obt.NewFilteredReader(strings.NewReader("\nHallo\r\n\n i luken.\n\n"))

	require.False(t, f.EOF())
	line, err := f.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "Hallo", line)

	line, err = f.ReadLine()
	require.NoError(t, err)
	require.Equal(t, " i luken.", line)

	require.True(t, f.EOF())
	_, err = f.ReadLine()
	require.ErrorIs(t, err, io.EOF)
}
