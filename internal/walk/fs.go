// Package walk expands the command line inputs into the files to process.
package walk

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
)

// Paths yields every argument naming a regular file as is, and for every
// directory the regular files below it whose base name matches pattern
// (all files when pattern is empty), in lexical order. It does not follow
// symlinks.
func Paths(ctx context.Context, pattern string, args ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, arg := range args {
			info, err := os.Stat(arg)
			if err != nil || !info.IsDir() {
				// a missing file is reported by the job reading it
				if !yield(arg, nil) {
					return
				}
				continue
			}
			for path, err := range FS(ctx, os.DirFS(arg), arg, pattern) {
				if !yield(path, err) {
					return
				}
			}
		}
	}
}

// FS recursively walks root and yields the path of every matching regular
// file, prefixed with name. Or an error if file information retrieval
// fails.
func FS(ctx context.Context, root fs.FS, name, pattern string) iter.Seq2[string, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(string, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			abspath := filepath.Join(name, filepath.FromSlash(path))
			if err != nil {
				if !yield(abspath, err) {
					return fs.SkipAll
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if pattern != "" {
				ok, err := filepath.Match(pattern, d.Name())
				if err != nil {
					yield("", fmt.Errorf("matching %q: %w", pattern, err))
					return fs.SkipAll
				}
				if !ok {
					return nil
				}
			}
			if !yield(abspath, nil) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}
