package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/textlab/nlprun/internal/log"
)

// Serve is the worker side of one job. It reads the input from stdin, runs
// the job registered under name and writes the result envelope to stdout.
// The job logs to stderr as JSON lines. A failing or panicking job ends up
// in the envelope; an error is returned only when no envelope could be
// written.
func Serve(ctx context.Context, reg *Registry, name string, stdin io.Reader, stdout, stderr io.Writer) error {
	fn, ok := reg.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: unknown job %q", ErrArgument, name)
	}
	input, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	logger := log.New(log.Options{
		Level:  slog.LevelDebug,
		Format: log.FormatJSON,
		Writer: stderr,
	})
	out, jobErr := call(ctx, fn, input, logger)
	if jobErr != nil {
		logger.DebugContext(ctx, "job failed", "error", jobErr)
	}

	envelope, err := encode(out, jobErr)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(append(envelope, '\n')); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func call(ctx context.Context, fn JobFunc, input json.RawMessage, logger *slog.Logger) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, input, logger)
}

func encode(out json.RawMessage, jobErr error) ([]byte, error) {
	if jobErr == nil && len(out) > 0 && !gjson.ValidBytes(out) {
		jobErr = fmt.Errorf("job returned invalid JSON: %.64q", out)
	}
	if jobErr != nil {
		b, err := sjson.SetBytes([]byte(`{}`), "error", jobErr.Error())
		if err != nil {
			return nil, fmt.Errorf("encoding error envelope: %w", err)
		}
		return b, nil
	}
	if len(out) == 0 {
		out = json.RawMessage(`null`)
	}
	b, err := sjson.SetRawBytes([]byte(`{}`), "output", out)
	if err != nil {
		return nil, fmt.Errorf("encoding result envelope: %w", err)
	}
	return b, nil
}
