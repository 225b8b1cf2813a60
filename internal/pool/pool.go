package pool

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvJobID carries the job id into the worker process.
const EnvJobID = "NLPRUN_JOB_ID"

// DefaultFraction of the processors is used when Config.Size is not set.
const DefaultFraction = 0.75

type Mode string

const (
	ModeDirect     Mode = "direct"
	ModeSupervised Mode = "supervised"
)

// ParseMode accepts direct and supervised, "thread" is an alias of
// supervised. An empty string is ModeDirect.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeDirect):
		return ModeDirect, nil
	case string(ModeSupervised), "thread":
		return ModeSupervised, nil
	default:
		return "", fmt.Errorf("%w: unknown scheduling mode %q", ErrArgument, s)
	}
}

// Command describes how to start a worker. The job name is appended as the
// last argument.
type Command struct {
	Path string
	Args []string
	Env  []string
}

type Config struct {
	Mode     Mode
	Size     int     // number of workers, overrides Fraction when positive
	Fraction float64 // of runtime.NumCPU(), defaults to DefaultFraction
	LogLevel slog.Level
	FailFast bool
	Worker   Command // defaults to this executable with the _worker argument
	Registry *Registry
	Logger   *slog.Logger
}

// Result of one input. Err is a *SchedulingError, a *JobError or the
// context error for workers killed by cancellation.
type Result struct {
	Index   int
	ID      uuid.UUID
	Input   json.RawMessage
	Output  json.RawMessage
	Err     error
	Started time.Time
	Stopped time.Time
}

type Pool struct {
	mode     Mode
	size     int
	fraction float64
	logLevel slog.Level
	failFast bool
	worker   Command
	registry *Registry
	logger   *slog.Logger
}

func New(cfg Config) (*Pool, error) {
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: no job registry", ErrArgument)
	}
	if cfg.Size < 0 {
		return nil, fmt.Errorf("%w: negative pool size %d", ErrArgument, cfg.Size)
	}
	if cfg.Fraction < 0 || cfg.Fraction > 1 {
		return nil, fmt.Errorf("%w: processor fraction %v out of (0, 1]", ErrArgument, cfg.Fraction)
	}

	p := &Pool{
		mode:     mode,
		size:     cfg.Size,
		fraction: cmp.Or(cfg.Fraction, DefaultFraction),
		logLevel: cfg.LogLevel,
		failFast: cfg.FailFast,
		worker:   cfg.Worker,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	if p.worker.Path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolving worker executable: %w", err)
		}
		p.worker = Command{Path: exe, Args: []string{"_worker"}, Env: cfg.Worker.Env}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

func (p *Pool) Mode() Mode {
	return p.mode
}

// DefaultSize is floor(fraction * processors), at least 1.
func DefaultSize(fraction float64) int {
	return max(1, int(math.Floor(fraction*float64(runtime.NumCPU()))))
}

// Size returns the number of workers used for n inputs.
func (p *Pool) Size(n int) int {
	size := p.size
	if size == 0 {
		size = DefaultSize(p.fraction)
	}
	return max(min(size, n), 0)
}

// Map runs job once per input and returns the results sorted by input
// index. Failed jobs are reported in Result.Err, see Errors. The returned
// error is ErrArgument before any work, the context error after
// cancellation or, with FailFast, the first scheduling error; the results
// collected so far are returned with it.
func (p *Pool) Map(ctx context.Context, job string, inputs []json.RawMessage) ([]Result, error) {
	if job == "" {
		return nil, fmt.Errorf("%w: no job name", ErrArgument)
	}
	if _, ok := p.registry.Lookup(job); !ok {
		return nil, fmt.Errorf("%w: unknown job %q", ErrArgument, job)
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	st := newState(inputs, p.failFast)
	size := p.Size(len(inputs))
	p.logger.DebugContext(ctx, "pool started",
		"job", job,
		"mode", p.mode,
		"size", size,
		"inputs", len(inputs),
	)

	switch p.mode {
	case ModeSupervised:
		p.supervised(ctx, st, job, size)
	default:
		p.direct(ctx, st, job, size)
	}

	results, err := st.finish()
	slices.SortFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Index, b.Index)
	})
	if ctxErr := ctx.Err(); ctxErr != nil && err == nil {
		err = fmt.Errorf("running pool: %w", ctxErr)
	}
	p.logger.DebugContext(ctx, "pool finished", "job", job, "results", len(results), "error", err)
	return results, err
}

// Outcome is a Result decoded into the typed input and output of a job.
type Outcome[I, O any] struct {
	Index  int
	Input  I
	Output O
	Err    error
}

// Map is the typed variant of Pool.Map.
func Map[I, O any](ctx context.Context, p *Pool, job string, inputs []I) ([]Outcome[I, O], error) {
	raw := make([]json.RawMessage, len(inputs))
	for i, in := range inputs {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding input %d: %w", ErrArgument, i, err)
		}
		raw[i] = b
	}

	results, err := p.Map(ctx, job, raw)
	outcomes := make([]Outcome[I, O], 0, len(results))
	for _, r := range results {
		o := Outcome[I, O]{
			Index: r.Index,
			Input: inputs[r.Index],
			Err:   r.Err,
		}
		if r.Err == nil {
			if uerr := json.Unmarshal(r.Output, &o.Output); uerr != nil {
				o.Err = fmt.Errorf("job %d: decoding output: %w", r.Index, uerr)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, err
}
