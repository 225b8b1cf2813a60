package pipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/textlab/nlprun/internal/charset"
	"github.com/textlab/nlprun/internal/log"
	"github.com/textlab/nlprun/internal/metrics"
)

// shellMeta lists the characters which make a command string go through the
// shell. Commands without them are split on whitespace and executed directly.
const shellMeta = "*?{}[]<>()~&|\\$;'`\"\n#=%"

// Config holds the settings shared by all invocations of a Runner.
type Config struct {
	Shell      string // defaults to /bin/sh (cmd.exe on windows)
	ShellFlag  string // defaults to -c (/C on windows)
	Silent     bool   // suppresses console echo even when Options.Echo is set
	Console    io.Writer
	ConsoleErr io.Writer
	Logger     *slog.Logger
}

// Options describe one invocation.
type Options struct {
	Input   io.Reader // defaults to empty input
	Stdout  io.Writer // nil discards the output
	Stderr  io.Writer // nil discards the error output
	Echo    bool      // mirror the output to the console
	Bridge  charset.Bridge
	Canary  *regexp.Regexp // stderr line pattern which kills the process
	Timeout time.Duration
}

// Status describes a terminated process.
type Status struct {
	Command  string
	Pid      int
	ExitCode int
	Started  time.Time
	Stopped  time.Time
	State    *os.ProcessState
}

func (s Status) Success() bool {
	return s.State != nil && s.State.Success()
}

type Runner struct {
	shell      string
	shellFlag  string
	silent     bool
	console    io.Writer
	consoleErr io.Writer
	logger     *slog.Logger
}

func New(cfg Config) *Runner {
	r := &Runner{
		shell:      cfg.Shell,
		shellFlag:  cfg.ShellFlag,
		silent:     cfg.Silent,
		console:    cfg.Console,
		consoleErr: cfg.ConsoleErr,
		logger:     cfg.Logger,
	}
	if r.shell == "" {
		r.shell, r.shellFlag = defaultShell()
	}
	if r.shellFlag == "" {
		_, r.shellFlag = defaultShell()
	}
	if r.console == nil {
		r.console = os.Stdout
	}
	if r.consoleErr == nil {
		r.consoleErr = os.Stderr
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func defaultShell() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", "/C"
	}
	return "/bin/sh", "-c"
}

// Run executes command and blocks until it terminates. The returned Status
// is filled whenever the process was started, even together with an error.
func (r *Runner) Run(ctx context.Context, command string, opts Options) (Status, error) {
	start := time.Now()
	status, err := r.run(ctx, command, opts)
	metrics.PipeRun(result(status, err), time.Since(start))
	return status, err
}

func result(status Status, err error) string {
	switch {
	case err == nil && status.ExitCode == 0:
		return metrics.ResultOK
	case err == nil:
		return metrics.ResultExitCode
	case errors.Is(err, ErrLaunch):
		return metrics.ResultLaunch
	case errors.Is(err, ErrBrokenPipe):
		return metrics.ResultBrokenPipe
	case errors.Is(err, ErrRunaway):
		return metrics.ResultRunaway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultOtherFailed
	}
}

func (r *Runner) command(command string) (*exec.Cmd, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrLaunch)
	}
	if strings.ContainsAny(command, shellMeta) {
		return exec.Command(r.shell, r.shellFlag, command), nil
	}
	args := strings.Fields(command)
	return exec.Command(args[0], args[1:]...), nil
}

func (r *Runner) run(ctx context.Context, command string, opts Options) (Status, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = charset.Identity
	}
	input := opts.Input
	if input == nil {
		input = strings.NewReader("")
	}

	status := Status{Command: command, ExitCode: -1}
	cmd, err := r.command(command)
	if err != nil {
		return status, err
	}
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return status, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return status, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return status, fmt.Errorf("creating stderr pipe: %w", err)
	}

	status.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		status.Stopped = time.Now().UTC()
		if isNotFound(err) {
			return status, fmt.Errorf("%w: %w", ErrLaunch, err)
		}
		return status, fmt.Errorf("starting %q: %w", command, err)
	}
	status.Pid = cmd.Process.Pid

	ctx = log.ContextAttrs(ctx, slog.Group("pipe",
		slog.String("id", uuid.NewString()),
		slog.String("command", command),
		slog.Int("pid", status.Pid),
	))
	r.logger.DebugContext(ctx, "process started")

	m := &mux{
		runner:   r,
		opts:     opts,
		bridge:   bridge,
		outLines: newLineBuffer(),
		errLines: newLineBuffer(),
		errTail:  &tailBuffer{max: maxPending},
		quit:     make(chan struct{}),
		outCh:    make(chan []byte),
		errCh:    make(chan []byte),
		inDone:   make(chan error, 1),
		command:  command,
	}
	go drain(stdout, m.outCh, m.quit)
	go drain(stderr, m.errCh, m.quit)
	go func() {
		m.inDone <- feed(stdin, input, bridge)
	}()

	loopErr := m.loop(ctx)
	if loopErr != nil {
		if err := killProcess(cmd); err != nil {
			r.logger.WarnContext(ctx, "killing process", "error", err)
		}
	}
	close(m.quit)
	waitErr := cmd.Wait()
	status = finish(status, cmd)

	if loopErr == nil && m.inDone != nil {
		// the child is gone, a feed blocked in a write fails right away, one
		// blocked reading the caller's input is abandoned
		grace := time.NewTimer(inputGrace)
		select {
		case err := <-m.inDone:
			m.input(err)
		case <-ctx.Done():
			loopErr = fmt.Errorf("running command: %w", ctx.Err())
		case <-grace.C:
			r.logger.DebugContext(ctx, "process exited before the end of input")
		}
		grace.Stop()
	}

	var exitErr *exec.ExitError
	var pipeErr *BrokenPipeError
	switch {
	case loopErr != nil:
		if errors.Is(loopErr, ErrRunaway) {
			r.logger.ErrorContext(ctx, "canary matched, process killed", "stderr", m.errTail.String())
		}
		return status, loopErr
	case errors.As(m.inErr, &pipeErr):
		pipeErr.Stderr = m.errTail.String()
		r.logger.WarnContext(ctx, "process closed its input early", "exit_code", status.ExitCode, "stderr", pipeErr.Stderr)
		return status, pipeErr
	case m.inErr != nil:
		return status, m.inErr
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		return status, fmt.Errorf("waiting for %q: %w", command, waitErr)
	}

	r.logger.DebugContext(ctx, "process exited", "exit_code", status.ExitCode)
	return status, nil
}

func finish(status Status, cmd *exec.Cmd) Status {
	status.Stopped = time.Now().UTC()
	if cmd.ProcessState != nil {
		status.State = cmd.ProcessState
		status.ExitCode = cmd.ProcessState.ExitCode()
	}
	return status
}

// mux is the state of the select loop of one invocation.
type mux struct {
	runner   *Runner
	opts     Options
	bridge   charset.Bridge
	outLines *lineBuffer
	errLines *lineBuffer
	errTail  *tailBuffer
	errLine  []byte // unterminated stderr line carried to the next block
	quit     chan struct{}
	outCh    chan []byte
	errCh    chan []byte
	inDone   chan error
	inErr    error
	command  string
}

// loop services whichever of stdin, stdout and stderr is ready until both
// output streams reach EOF. A non-nil error means the process has to be
// killed.
func (m *mux) loop(ctx context.Context) error {
	for m.outCh != nil || m.errCh != nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running command: %w", ctx.Err())
		case err := <-m.inDone:
			m.input(err)
			if m.inErr != nil && !errors.Is(m.inErr, ErrBrokenPipe) {
				return m.inErr
			}
		case chunk, ok := <-m.outCh:
			var block []byte
			if ok {
				block = m.outLines.push(chunk)
			} else {
				m.outCh = nil
				block = m.outLines.flush()
			}
			if err := m.stdout(block); err != nil {
				return err
			}
		case chunk, ok := <-m.errCh:
			var block []byte
			if ok {
				block = m.errLines.push(chunk)
			} else {
				m.errCh = nil
				block = m.errLines.flush()
			}
			if err := m.stderr(ctx, block); err != nil {
				return err
			}
		}
	}
	return nil
}

// input records the result of feed.
func (m *mux) input(err error) {
	m.inDone = nil
	if err == nil {
		return
	}
	if isBrokenPipe(err) {
		m.inErr = &BrokenPipeError{Command: m.command, Err: err}
		return
	}
	m.inErr = err
}

func (m *mux) stdout(block []byte) error {
	if len(block) == 0 {
		return nil
	}
	out, err := m.bridge.FromProcess(block)
	if err != nil {
		return fmt.Errorf("converting stdout: %w", err)
	}
	if m.opts.Stdout != nil {
		if _, err := m.opts.Stdout.Write(out); err != nil {
			return fmt.Errorf("writing stdout: %w", err)
		}
	}
	m.runner.echo(m.runner.console, m.opts.Echo, out)
	return nil
}

func (m *mux) stderr(ctx context.Context, block []byte) error {
	if len(block) == 0 {
		return nil
	}
	out, err := m.bridge.FromProcess(block)
	if err != nil {
		return fmt.Errorf("converting stderr: %w", err)
	}
	_, _ = m.errTail.Write(out)
	if m.opts.Canary != nil {
		for line := range bytes.Lines(out) {
			full := append(m.errLine, line...)
			if m.opts.Canary.Match(bytes.TrimRight(full, "\r\n")) {
				m.runner.logger.DebugContext(ctx, "canary matched", "line", string(full))
				return ErrRunaway
			}
			m.errLine = nil
			if !bytes.HasSuffix(line, []byte{'\n'}) && len(full) < maxCanaryLine {
				m.errLine = full
			}
		}
	}
	if m.opts.Stderr != nil {
		if _, err := m.opts.Stderr.Write(out); err != nil {
			return fmt.Errorf("writing stderr: %w", err)
		}
	}
	m.runner.echo(m.runner.consoleErr, m.opts.Echo, out)
	return nil
}

func (r *Runner) echo(w io.Writer, enabled bool, p []byte) {
	if !enabled || r.silent {
		return
	}
	_, _ = w.Write(p)
}

// drain reads r until an error and hands the chunks to ch.
func drain(r io.Reader, ch chan<- []byte, quit <-chan struct{}) {
	defer close(ch)
	for {
		buf := make([]byte, chunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case ch <- buf[:n]:
			case <-quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// feed copies r into the child's stdin line by line through the bridge and
// closes stdin at the end of input.
func feed(w io.WriteCloser, r io.Reader, bridge charset.Bridge) error {
	lines := newLineBuffer()
	write := func(block []byte) error {
		if len(block) == 0 {
			return nil
		}
		enc, err := bridge.ToProcess(block)
		if err != nil {
			return fmt.Errorf("converting stdin: %w", err)
		}
		_, err = w.Write(enc)
		return err
	}

	buf := make([]byte, chunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := write(lines.push(buf[:n])); err != nil {
				_ = w.Close()
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			_ = w.Close()
			return fmt.Errorf("reading input: %w", rerr)
		}
	}
	if err := write(lines.flush()); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
