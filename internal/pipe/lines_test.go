package pipe

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineBuffer(t *testing.T) {
	b := newLineBuffer()
	require.Nil(t, b.push([]byte("> Err")))
	require.Equal(t, []byte("> Error: boom\n"), b.push([]byte("or: boom\nnext")))
	require.Equal(t, []byte("next line\na\n"), b.push([]byte(" line\na\nb")))
	require.Equal(t, []byte("b"), b.flush())
	require.Nil(t, b.flush())
}

func TestLineBufferMax(t *testing.T) {
	b := &lineBuffer{max: 8}
	require.Nil(t, b.push([]byte("abcd")))
	require.Equal(t, []byte("abcdefgh"), b.push([]byte("efgh")))
	require.Empty(t, b.flush())
}

func TestLineBufferRuneBoundary(t *testing.T) {
	testCases := []struct {
		scenario string
		given    string
		then     string
		pending  string
	}{
		{scenario: "ascii", given: "abcdefgh", then: "abcdefgh"},
		{scenario: "complete two bytes", given: "abcdefæ", then: "abcdefæ"},
		{scenario: "split two bytes", given: "abcdefg\xc3", then: "abcdefg", pending: "\xc3"},
		{scenario: "split three bytes", given: "abcdef\xe2\x82", then: "abcdef", pending: "\xe2\x82"},
		{scenario: "split four bytes", given: "abcde\xf0\x9f\x98", then: "abcde", pending: "\xf0\x9f\x98"},
		{scenario: "invalid tail", given: "abcdefg\x80", then: "abcdefg\x80"},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			b := &lineBuffer{max: 8}
			require.Equal(t, []byte(tc.then), b.push([]byte(tc.given)))
			require.Equal(t, tc.pending, string(b.flush()))
		})
	}
}

func TestTailBuffer(t *testing.T) {
	tail := &tailBuffer{max: 5}
	_, _ = tail.Write([]byte("hello "))
	_, _ = tail.Write([]byte("world\n"))
	require.Equal(t, "orld", tail.String())
}

func TestCommand(t *testing.T) {
	r := New(Config{})

	var testCases = []struct {
		scenario string
		given    string
		then     []string
	}{
		{"direct", "cat", []string{"cat"}},
		{"direct with args", "tree-tagger -token  -lemma", []string{"tree-tagger", "-token", "-lemma"}},
		{"pipeline", "mtag -wxml | vislcg3", []string{"/bin/sh", "-c", "mtag -wxml | vislcg3"}},
		{"env assignment", "LC_ALL=C sort", []string{"/bin/sh", "-c", "LC_ALL=C sort"}},
		{"quoted", `echo "a b"`, []string{"/bin/sh", "-c", `echo "a b"`}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			cmd, err := r.command(tt.given)
			require.NoError(t, err)
			require.Equal(t, tt.then, cmd.Args)
		})
	}

	t.Run("empty", func(t *testing.T) {
		_, err := r.command("   ")
		require.ErrorIs(t, err, ErrLaunch)
	})
}

func TestIsNotFound(t *testing.T) {
	_, err := exec.LookPath("nlprun-does-not-exist")
	require.True(t, isNotFound(err))

	err = exec.Command(filepath.Join(t.TempDir(), "missing")).Start()
	require.True(t, isNotFound(err))
	require.False(t, isNotFound(exec.ErrDot))
}
