package pool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/tidwall/gjson"

	"github.com/textlab/nlprun/internal/log"
	"github.com/textlab/nlprun/internal/metrics"
)

// waitDelay bounds how long Wait waits for the stderr copy after the worker
// was killed, in case a grandchild holds the pipe open.
const waitDelay = 2 * time.Second

// worker is one running worker process.
type worker struct {
	job     job
	cmd     *exec.Cmd
	stdout  bytes.Buffer
	logs    *logWriter
	started time.Time
}

// start launches the worker for j without waiting for it.
func (p *Pool) start(ctx context.Context, name string, j job) (*worker, error) {
	ctx = log.ContextAttrs(ctx, slog.Group("pool",
		slog.String("job", name),
		slog.Int("index", j.Index),
		slog.String("id", j.ID.String()),
	))

	args := append(slices.Clone(p.worker.Args), name)
	cmd := exec.CommandContext(ctx, p.worker.Path, args...)
	cmd.Env = append(os.Environ(), p.worker.Env...)
	cmd.Env = append(cmd.Env, EnvJobID+"="+j.ID.String())
	cmd.Stdin = bytes.NewReader(j.Input)
	cmd.WaitDelay = waitDelay

	w := &worker{
		job:  j,
		cmd:  cmd,
		logs: newLogWriter(ctx, p.logger, p.logLevel),
	}
	cmd.Stdout = &w.stdout
	cmd.Stderr = w.logs

	w.started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker %s: %w", p.worker.Path, err)
	}
	metrics.WorkerStarted()
	p.logger.DebugContext(ctx, "worker started", "pid", cmd.Process.Pid)
	return w, nil
}

// wait blocks until the worker exits and harvests its result.
func (w *worker) wait(ctx context.Context) Result {
	waitErr := w.cmd.Wait()
	metrics.WorkerStopped()
	w.logs.Flush()

	r := Result{
		Index:   w.job.Index,
		ID:      w.job.ID,
		Input:   w.job.Input,
		Started: w.started,
		Stopped: time.Now().UTC(),
	}
	r.Output, r.Err = w.harvest(ctx, waitErr)
	return r
}

func (w *worker) harvest(ctx context.Context, waitErr error) ([]byte, error) {
	out := bytes.TrimSpace(w.stdout.Bytes())
	if len(out) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("job %d: %w", w.job.Index, ctxErr)
		}
		return nil, w.schedulingError(waitErr)
	}
	if !gjson.ValidBytes(out) {
		return nil, w.schedulingError(fmt.Errorf("malformed result: %.64q", out))
	}

	envelope := gjson.ParseBytes(out)
	if e := envelope.Get("error"); e.Exists() {
		return nil, &JobError{Index: w.job.Index, ID: w.job.ID, Message: e.String()}
	}
	output := envelope.Get("output")
	if !output.Exists() {
		return nil, w.schedulingError(errors.New("result without output"))
	}
	return []byte(output.Raw), nil
}

func (w *worker) schedulingError(err error) *SchedulingError {
	code := -1
	if w.cmd.ProcessState != nil {
		code = w.cmd.ProcessState.ExitCode()
	}
	return &SchedulingError{
		Index:    w.job.Index,
		ID:       w.job.ID,
		ExitCode: code,
		Err:      err,
	}
}

// failed is the result of a worker which could not be started.
func failed(j job, err error) Result {
	now := time.Now().UTC()
	return Result{
		Index:   j.Index,
		ID:      j.ID,
		Input:   j.Input,
		Err:     &SchedulingError{Index: j.Index, ID: j.ID, ExitCode: -1, Err: err},
		Started: now,
		Stopped: now,
	}
}

func (p *Pool) record(ctx context.Context, st *state, r Result) {
	st.record(r)
	metrics.PoolJob(string(p.mode), outcome(r.Err))

	var jobErr *JobError
	switch {
	case r.Err == nil:
	case errors.As(r.Err, &jobErr):
		p.logger.WarnContext(ctx, "job failed", "index", r.Index, "id", r.ID.String(), "error", r.Err)
	default:
		p.logger.ErrorContext(ctx, "job not completed", "index", r.Index, "id", r.ID.String(), "error", r.Err)
	}
}

func outcome(err error) string {
	var jobErr *JobError
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.As(err, &jobErr):
		return metrics.ResultJobError
	case errors.Is(err, ErrScheduling):
		return metrics.ResultScheduling
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultOtherFailed
	}
}
