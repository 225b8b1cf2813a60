package pipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Available runs command with empty input and reports whether it could be
// launched. The exit status does not matter, as some taggers fail on empty
// input. Only a missing executable makes the command unavailable; any other
// failure is returned as an error.
func (r *Runner) Available(ctx context.Context, command string) (string, bool, error) {
	var out bytes.Buffer
	_, err := r.Run(ctx, command, Options{
		Input:  strings.NewReader(""),
		Stdout: &out,
	})
	switch {
	case errors.Is(err, ErrLaunch):
		r.logger.DebugContext(ctx, "command not available", "command", command, "error", err)
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return out.String(), true, nil
}

// LookPath returns the absolute path of program found in PATH.
func LookPath(program string) (string, error) {
	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}
