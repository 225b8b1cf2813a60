// Package obt runs the Oslo-Bergen tagger, the mtag multitagger followed by
// the vislcg3 constraint grammar disambiguator.
package obt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/textlab/nlprun/internal/model"
	"github.com/textlab/nlprun/internal/pipe"
	"github.com/textlab/nlprun/internal/textio"
)

var (
	ErrLanguage = errors.New("unsupported language")
	ErrPlatform = errors.New("unsupported platform")
)

// Canary matches the prompt of the debugger mtag drops into on some inputs,
// where it would wait for commands forever.
var Canary = regexp.MustCompile(`^> Error: `)

const (
	LangBokmal  = "bm"
	LangNynorsk = "nn"
)

type Tagger struct {
	runner   *pipe.Runner
	cfg      model.OBT
	platform string
}

// New returns a tagger for platform (linux, osx, win or unix), detected
// from runtime.GOOS when empty.
func New(runner *pipe.Runner, cfg model.OBT, platform string) (*Tagger, error) {
	if platform == "" {
		var err error
		if platform, err = Platform(runtime.GOOS); err != nil {
			return nil, err
		}
	}
	return &Tagger{runner: runner, cfg: cfg, platform: platform}, nil
}

// Platform maps a GOOS value to the platform keys of the configuration.
func Platform(goos string) (string, error) {
	switch goos {
	case "linux":
		return "linux", nil
	case "darwin":
		return "osx", nil
	case "windows":
		return "win", nil
	case "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos":
		return "unix", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrPlatform, goos)
	}
}

func (t *Tagger) join(name string) string {
	if t.cfg.Path == "" {
		return name
	}
	return filepath.Join(t.cfg.Path, name)
}

func (t *Tagger) mtagBin() (string, error) {
	bin, ok := t.cfg.Mtag[t.platform]
	if !ok || bin == "" {
		return "", fmt.Errorf("%w: no mtag for %s", ErrPlatform, t.platform)
	}
	return t.join(bin), nil
}

// MtagCmd runs mtag with XML word output. On unix like systems the output is
// copied to stderr, so the canary sees the debugger prompt mtag prints to
// stdout.
func (t *Tagger) MtagCmd(lang string) (string, error) {
	bin, err := t.mtagBin()
	if err != nil {
		return "", err
	}
	var cmd string
	switch lang {
	case "", LangBokmal:
		cmd = bin + " -wxml"
	case LangNynorsk:
		cmd = bin + " -wxml -nno"
	default:
		return "", fmt.Errorf("%w: %q", ErrLanguage, lang)
	}
	if t.platform == "linux" || t.platform == "osx" {
		cmd += " | tee /dev/stderr"
	}
	return cmd, nil
}

// Vislcg3Cmd is the disambiguator, usually installed on the PATH apart from
// the tagger.
func (t *Tagger) Vislcg3Cmd() (string, error) {
	bin, ok := t.cfg.Vislcg3[t.platform]
	if !ok || bin == "" {
		return "", fmt.Errorf("%w: no vislcg3 for %s", ErrPlatform, t.platform)
	}
	return bin, nil
}

// GrammarPath returns the constraint grammar of lang. The bokmål grammar
// prepared for statistical disambiguation is used when prestat is set.
func (t *Tagger) GrammarPath(lang string, prestat bool) (string, error) {
	key := lang
	switch {
	case lang == "" || lang == LangBokmal:
		key = LangBokmal
		if prestat {
			key = "bm_prestat"
		}
	case lang == LangNynorsk:
	default:
		return "", fmt.Errorf("%w: %q", ErrLanguage, lang)
	}
	grammar, ok := t.cfg.Grammar[key]
	if !ok || grammar == "" {
		return "", fmt.Errorf("%w: no grammar for %q", ErrLanguage, key)
	}
	return t.join(grammar), nil
}

// PipelineCmd is mtag piped into vislcg3.
func (t *Tagger) PipelineCmd(lang string) (string, error) {
	mtag, err := t.MtagCmd(lang)
	if err != nil {
		return "", err
	}
	vislcg3, err := t.Vislcg3Cmd()
	if err != nil {
		return "", err
	}
	grammar, err := t.GrammarPath(lang, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s | %s -C latin1 --codepage-input utf-8 -g %s --codepage-output utf-8 --no-pass-origin -e",
		mtag, vislcg3, grammar), nil
}

// Available reports whether both mtag and vislcg3 can be launched.
func (t *Tagger) Available(ctx context.Context) (bool, error) {
	mtag, err := t.mtagBin()
	if err != nil {
		return false, err
	}
	vislcg3, err := t.Vislcg3Cmd()
	if err != nil {
		return false, err
	}
	for _, cmd := range []string{mtag, vislcg3} {
		_, ok, err := t.runner.Available(ctx, cmd)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

type Options struct {
	Lang     string // bm (default) or nn
	MtagOnly bool   // skip the disambiguation by vislcg3
	NoFilter bool   // pass blank input lines to mtag
	Echo     bool   // mirror the tool output to the runner's console
}

// Annotate writes the raw tagger output of in to out.
func (t *Tagger) Annotate(ctx context.Context, in io.Reader, out io.Writer, opts Options) error {
	var cmd string
	var err error
	if opts.MtagOnly {
		cmd, err = t.MtagCmd(opts.Lang)
	} else {
		cmd, err = t.PipelineCmd(opts.Lang)
	}
	if err != nil {
		return err
	}
	if !opts.NoFilter {
		in = NewFilteredReader(in)
	}

	status, err := t.runner.Run(ctx, cmd, pipe.Options{
		Input:  in,
		Stdout: out,
		Echo:   opts.Echo,
		Canary: Canary,
	})
	if err != nil {
		return fmt.Errorf("obt: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("obt: %w", err)
	}
	return nil
}

// AnnotateSentences tags in and parses the output.
func (t *Tagger) AnnotateSentences(ctx context.Context, in io.Reader, opts Options, staticPunctuation bool) ([]Sentence, error) {
	var out bytes.Buffer
	if err := t.Annotate(ctx, in, &out, opts); err != nil {
		return nil, err
	}
	return Parse(textio.NewLineReader(strings.NewReader(out.String())), staticPunctuation)
}
