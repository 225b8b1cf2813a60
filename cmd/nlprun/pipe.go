package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/textlab/nlprun/internal/charset"
	"github.com/textlab/nlprun/internal/pipe"
)

var pipeFlags struct {
	canary       string
	encoding     string
	toolEncoding string
	echo         bool
	timeout      time.Duration
	input        string
	output       string
}

var pipeCmd = &cobra.Command{
	Use:   "pipe [flags] -- command [args...]",
	Short: "pipe stdin through a command to stdout and exit with its status",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doPipe,
}

var probeFlags struct {
	path bool
}

var probeCmd = &cobra.Command{
	Use:   "probe command...",
	Short: "check commands can be launched, exit status 1 if any is missing",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doProbe,
}

func init() {
	f := pipeCmd.Flags()
	f.StringVar(&pipeFlags.canary, "canary", "", "kill the command when a stderr line matches this regexp")
	f.StringVar(&pipeFlags.encoding, "encoding", "utf-8", "encoding of the input and output")
	f.StringVar(&pipeFlags.toolEncoding, "tool-encoding", "", "encoding the command expects, defaults to --encoding")
	f.BoolVar(&pipeFlags.echo, "echo", false, "mirror the command output to the console")
	f.DurationVar(&pipeFlags.timeout, "timeout", 0, "kill the command after this duration")
	f.StringVarP(&pipeFlags.input, "input", "i", "", "read the input from a file instead of stdin")
	f.StringVarP(&pipeFlags.output, "output", "o", "", "write the output to a file instead of stdout")

	probeCmd.Flags().BoolVar(&probeFlags.path, "path", false, "print the resolved executable path")
}

func doPipe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	opts := pipe.Options{
		Input:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Echo:    pipeFlags.echo,
		Timeout: pipeFlags.timeout,
	}
	if pipeFlags.canary != "" {
		re, err := regexp.Compile(pipeFlags.canary)
		if err != nil {
			return fmt.Errorf("parsing --canary: %w", err)
		}
		opts.Canary = re
	}
	toolEnc := pipeFlags.toolEncoding
	if toolEnc == "" {
		toolEnc = pipeFlags.encoding
	}
	bridge, err := charset.New(pipeFlags.encoding, toolEnc)
	if err != nil {
		return err
	}
	opts.Bridge = bridge

	if pipeFlags.input != "" {
		f, err := os.Open(pipeFlags.input)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		opts.Input = f
	}
	var out io.WriteCloser
	if pipeFlags.output != "" {
		out, err = os.Create(pipeFlags.output)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		opts.Stdout = out
	}
	if pipeFlags.echo {
		// the echo already reaches the console
		opts.Stderr = nil
		if out == nil {
			opts.Stdout = nil
		}
	}

	status, err := newRunner().Run(ctx, strings.Join(args, " "), opts)
	if out != nil {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output: %w", cerr)
		}
	}
	var bpe *pipe.BrokenPipeError
	if errors.As(err, &bpe) {
		slog.ErrorContext(ctx, "command stopped reading its input", "command", bpe.Command, "stderr", bpe.Stderr)
	}
	if err != nil {
		return err
	}
	if status.ExitCode != 0 {
		slog.DebugContext(ctx, "command failed", "command", status.Command, "exit_code", status.ExitCode)
		return exitCode(status.ExitCode)
	}
	return nil
}

func doProbe(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	runner := newRunner()

	missing := 0
	for _, command := range args {
		_, ok, err := runner.Available(ctx, command)
		if err != nil {
			return fmt.Errorf("probing %s: %w", command, err)
		}
		state := "available"
		if !ok {
			state = "missing"
			missing++
		}
		if fields := strings.Fields(command); probeFlags.path && len(fields) > 0 {
			if path, err := pipe.LookPath(fields[0]); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", state, command, path)
				continue
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", state, command)
	}
	if missing > 0 {
		return exitCode(1)
	}
	return nil
}
