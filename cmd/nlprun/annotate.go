package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/textlab/nlprun/internal/jobs"
	"github.com/textlab/nlprun/internal/log"
	"github.com/textlab/nlprun/internal/metrics"
	"github.com/textlab/nlprun/internal/pool"
	"github.com/textlab/nlprun/internal/walk"
)

var annotateFlags struct {
	tagger            string
	lang              string
	encoding          string
	modelFile         string
	segmentation      string
	mtagOnly          bool
	staticPunctuation bool
	raw               bool
	metricsAddr       string
	pattern           string
}

var annotateCmd = &cobra.Command{
	Use:   "annotate [flags] file|dir...",
	Short: "tag files in parallel worker processes and print one JSON line per file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doAnnotate,
}

func init() {
	f := annotateCmd.Flags()
	f.StringVar(&annotateFlags.tagger, "tagger", "treetagger", "tagger to run: treetagger or obt")
	f.StringVar(&annotateFlags.lang, "lang", "", "language of the input")
	f.StringVar(&annotateFlags.encoding, "encoding", "utf-8", "encoding of the input (treetagger)")
	f.StringVar(&annotateFlags.modelFile, "model", "", "parameter file instead of the language pipeline (treetagger)")
	f.StringVar(&annotateFlags.segmentation, "segmentation", "tag", "sentence segmentation: tag or xml (treetagger)")
	f.BoolVar(&annotateFlags.mtagOnly, "mtag-only", false, "skip the disambiguation (obt)")
	f.BoolVar(&annotateFlags.staticPunctuation, "static-punctuation", false, "end sentences after punctuation (obt)")
	f.BoolVar(&annotateFlags.raw, "raw", false, "return the tool output instead of sentences")
	f.StringVar(&annotateFlags.pattern, "pattern", "", "only tag files matching this glob when walking directories")
	f.StringVar(&annotateFlags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	f.String("mode", "", "scheduling mode: direct or supervised")
	f.IntP("size", "n", 0, "number of workers, 0 uses a fraction of the processors")
	f.Bool("fail-fast", false, "stop after the first worker failure")
	for key, flag := range map[string]string{
		"pool.mode":      "mode",
		"pool.size":      "size",
		"pool.fail_fast": "fail-fast",
	} {
		if err := settings.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func doAnnotate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	var paths []string
	for path, err := range walk.Paths(ctx, annotateFlags.pattern, args...) {
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}
	slog.DebugContext(ctx, "annotating", "files", len(paths))
	job, inputs, err := annotateInputs(paths)
	if err != nil {
		return err
	}
	p, err := newPool()
	if err != nil {
		return err
	}

	var results []pool.Result
	g, gctx := errgroup.WithContext(ctx)
	mctx, stopMetrics := context.WithCancel(gctx)
	if annotateFlags.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(mctx, annotateFlags.metricsAddr)
		})
	}
	g.Go(func() error {
		defer stopMetrics()
		var err error
		results, err = p.Map(ctx, job, inputs)
		return err
	})
	err = g.Wait()
	stopMetrics()

	if werr := writeResults(cmd.OutOrStdout(), paths, results); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return err
	}
	if failed := pool.Errors(results); failed != nil {
		slog.ErrorContext(ctx, "annotation failed", "err", failed)
		return exitCode(1)
	}
	return nil
}

func annotateInputs(paths []string) (string, []json.RawMessage, error) {
	var job string
	var input func(path string) any
	switch annotateFlags.tagger {
	case "treetagger":
		job = jobs.TreeTagger
		input = func(path string) any {
			return jobs.TreeTaggerInput{
				Path:         path,
				Lang:         annotateFlags.lang,
				Encoding:     annotateFlags.encoding,
				ModelFile:    annotateFlags.modelFile,
				Segmentation: annotateFlags.segmentation,
				Raw:          annotateFlags.raw,
			}
		}
	case "obt":
		job = jobs.OBT
		input = func(path string) any {
			return jobs.OBTInput{
				Path:              path,
				Lang:              annotateFlags.lang,
				MtagOnly:          annotateFlags.mtagOnly,
				StaticPunctuation: annotateFlags.staticPunctuation,
				Raw:               annotateFlags.raw,
			}
		}
	default:
		return "", nil, fmt.Errorf("%w: unknown tagger %q", pool.ErrArgument, annotateFlags.tagger)
	}

	inputs := make([]json.RawMessage, len(paths))
	for i, path := range paths {
		b, err := json.Marshal(input(path))
		if err != nil {
			return "", nil, err
		}
		inputs[i] = b
	}
	return job, inputs, nil
}

func newPool() (*pool.Pool, error) {
	mode, err := pool.ParseMode(config.Pool.Mode)
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(config.Pool.LogLevel)
	if err != nil {
		return nil, err
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving worker executable: %w", err)
	}
	args := []string{"_worker"}
	if configPath != "" {
		args = []string{"--config", configPath, "_worker"}
	}

	return pool.New(pool.Config{
		Mode:     mode,
		Size:     config.Pool.Size,
		Fraction: config.Pool.Fraction,
		LogLevel: level,
		FailFast: config.Pool.FailFast,
		Worker:   pool.Command{Path: exe, Args: args},
		Registry: jobs.Registry(config),
		Logger:   slog.Default(),
	})
}

// writeResults prints the job output, or the path and error of a failed
// job, one line per input.
func writeResults(w io.Writer, paths []string, results []pool.Result) error {
	for _, r := range results {
		line := []byte(r.Output)
		if r.Err != nil {
			var err error
			line, err = sjson.SetBytes([]byte(`{}`), "path", paths[r.Index])
			if err == nil {
				line, err = sjson.SetBytes(line, "error", r.Err.Error())
			}
			if err != nil {
				return fmt.Errorf("encoding result %d: %w", r.Index, err)
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}
