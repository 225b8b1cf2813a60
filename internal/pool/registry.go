package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// JobFunc is a job body. It runs inside a worker process; log goes to the
// parent's logger.
type JobFunc func(ctx context.Context, input json.RawMessage, log *slog.Logger) (json.RawMessage, error)

// Registry maps job names to job bodies. The parent uses it to reject
// unknown names before starting any worker, the worker to find the body.
type Registry struct {
	mx   sync.RWMutex
	jobs map[string]JobFunc
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]JobFunc)}
}

// Add registers fn under name, replacing a previous registration.
func (r *Registry) Add(name string, fn JobFunc) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.jobs[name] = fn
}

func (r *Registry) Lookup(name string) (JobFunc, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	fn, ok := r.jobs[name]
	return fn, ok
}

// Names returns the sorted job names.
func (r *Registry) Names() []string {
	r.mx.RLock()
	defer r.mx.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Register adds a typed job body, inputs and outputs are JSON encoded.
func Register[I, O any](r *Registry, name string, fn func(context.Context, I, *slog.Logger) (O, error)) {
	r.Add(name, func(ctx context.Context, raw json.RawMessage, log *slog.Logger) (json.RawMessage, error) {
		var in I
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decoding input: %w", err)
		}
		out, err := fn(ctx, in, log)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("encoding output: %w", err)
		}
		return b, nil
	})
}
