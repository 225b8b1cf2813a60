package walk_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/textlab/nlprun/internal/walk"
)

func collect(t *testing.T, seq func(func(string, error) bool)) []string {
	t.Helper()
	var paths []string
	for path, err := range seq {
		require.NoError(t, err)
		paths = append(paths, path)
	}
	return paths
}

func TestFS(t *testing.T) {
	root := fstest.MapFS{
		"a.txt":       {Data: []byte("a")},
		"b.xml":       {Data: []byte("b")},
		"sub/c.txt":   {Data: []byte("c")},
		"sub/deeper":  {Mode: os.ModeDir},
		"link.txt":    {Mode: os.ModeSymlink},
		"sub/d/e.txt": {Data: []byte("e")},
	}

	testCases := []struct {
		scenario string
		pattern  string
		then     []string
	}{
		{
			scenario: "all regular files",
			then:     []string{"in/a.txt", "in/b.xml", "in/sub/c.txt", "in/sub/d/e.txt"},
		},
		{
			scenario: "pattern",
			pattern:  "*.txt",
			then:     []string{"in/a.txt", "in/sub/c.txt", "in/sub/d/e.txt"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			then := make([]string, len(tc.then))
			for i, p := range tc.then {
				then[i] = filepath.FromSlash(p)
			}
			require.Equal(t, then, collect(t, walk.FS(t.Context(), root, "in", tc.pattern)))
		})
	}
}

func TestFSBadPattern(t *testing.T) {
	root := fstest.MapFS{"a.txt": {Data: []byte("a")}}
	var errs int
	for _, err := range walk.FS(t.Context(), root, "in", "[") {
		if err != nil {
			errs++
		}
	}
	require.Equal(t, 1, errs)
}

func TestPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "corpus", "news"), 0o755))
	for _, name := range []string{"corpus/one.txt", "corpus/news/two.txt", "corpus/skip.bin", "single.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(name), 0o644))
	}

	paths := collect(t, walk.Paths(t.Context(), "*.txt",
		filepath.Join(dir, "single.txt"),
		filepath.Join(dir, "corpus"),
		filepath.Join(dir, "missing.txt"),
	))
	require.Equal(t, []string{
		filepath.Join(dir, "single.txt"),
		filepath.Join(dir, "corpus", "news", "two.txt"),
		filepath.Join(dir, "corpus", "one.txt"),
		filepath.Join(dir, "missing.txt"),
	}, paths)
}

func TestPathsStop(t *testing.T) {
	root := fstest.MapFS{"a.txt": {}, "b.txt": {}, "c.txt": {}}
	var paths []string
	for path := range walk.FS(t.Context(), root, ".", "") {
		paths = append(paths, path)
		if len(paths) == 2 {
			break
		}
	}
	require.Equal(t, []string{"a.txt", "b.txt"}, paths)
}
