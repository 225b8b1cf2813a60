// Package treetagger runs the TreeTagger part-of-speech tagger and parses its
// output.
package treetagger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/textlab/nlprun/internal/charset"
	"github.com/textlab/nlprun/internal/model"
	"github.com/textlab/nlprun/internal/pipe"
	"github.com/textlab/nlprun/internal/textio"
)

var (
	ErrLanguage = errors.New("unsupported language")
	ErrEncoding = errors.New("unsupported encoding")
)

const defaultSentTag = "SENT"

type Options struct {
	Lang      string // ISO-639-2 code, a key of the configured languages
	Encoding  string // encoding of the caller's input and output, utf-8 by default
	ModelFile string // parameter file used instead of the language pipeline
	Echo      bool   // mirror the tool output to the runner's console
}

type Tagger struct {
	runner       *pipe.Runner
	cfg          model.TreeTagger
	lang         string
	langCfg      *model.Language
	encoding     string
	toolEncoding string
	bridge       charset.Bridge
	modelFile    string
	echo         bool
}

// New prepares a tagger for one language and encoding. When the language
// models do not exist in the requested encoding, the tool runs in utf-8 if
// available, otherwise in the first listed encoding, and the input and
// output are converted.
func New(runner *pipe.Runner, cfg model.TreeTagger, opts Options) (*Tagger, error) {
	enc, err := normalizeEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	t := &Tagger{
		runner:       runner,
		cfg:          cfg,
		lang:         opts.Lang,
		encoding:     enc,
		toolEncoding: enc,
		bridge:       charset.Identity,
		modelFile:    opts.ModelFile,
		echo:         opts.Echo,
	}
	if lc, ok := cfg.Languages[opts.Lang]; ok {
		t.langCfg = &lc
	}

	if t.modelFile != "" {
		return t, nil
	}
	if t.langCfg == nil {
		return nil, fmt.Errorf("%w: %q", ErrLanguage, opts.Lang)
	}
	if len(t.langCfg.Encoding) == 0 {
		return nil, fmt.Errorf("%w: no encodings configured for %q", ErrLanguage, opts.Lang)
	}
	if !slices.Contains(t.langCfg.Encoding, enc) {
		t.toolEncoding = preferredEncoding(t.langCfg.Encoding)
		t.bridge, err = charset.New(enc, t.toolEncoding)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
		}
	}
	return t, nil
}

func normalizeEncoding(enc string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return model.EncodingUTF8, nil
	case "latin1", "iso-8859-1":
		return model.EncodingLatin1, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrEncoding, enc)
	}
}

func preferredEncoding(encodings []string) string {
	if slices.Contains(encodings, model.EncodingUTF8) {
		return model.EncodingUTF8
	}
	return encodings[0]
}

func (t *Tagger) Encoding() string     { return t.encoding }
func (t *Tagger) ToolEncoding() string { return t.toolEncoding }

// SentTag is the tag the language model gives to sentence ends.
func (t *Tagger) SentTag() string {
	if t.langCfg != nil && t.langCfg.SentTag != "" {
		return t.langCfg.SentTag
	}
	return defaultSentTag
}

// join resolves a file below the installation directory.
func (t *Tagger) join(dir, name string) string {
	p := filepath.Join(dir, name)
	if t.cfg.Path != "" {
		p = filepath.Join(t.cfg.Path, p)
	}
	return p
}

// TokenizeCmd is the tokenizer command for the caller's encoding.
func (t *Tagger) TokenizeCmd() string {
	bin, abbrev := t.cfg.TokenizeUTF8Cmd, ""
	if t.langCfg != nil {
		abbrev = t.langCfg.AbbreviationsUTF8File
	}
	if t.encoding == model.EncodingLatin1 {
		bin = t.cfg.TokenizeLatin1Cmd
		if t.langCfg != nil {
			abbrev = t.langCfg.AbbreviationsLatin1File
		}
	}

	args := []string{t.join(t.cfg.CmdDir, bin)}
	if t.cfg.Path != "" && abbrev != "" {
		args = append(args, "-a", t.join(t.cfg.LibDir, abbrev))
	}
	switch t.lang {
	case "fra":
		args = append(args, "-f")
	case "ita":
		args = append(args, "-i")
	case "eng":
		args = append(args, "-e")
	}
	return strings.Join(args, " ")
}

// TagCmd runs the tagger binary with the configured model file.
func (t *Tagger) TagCmd() string {
	bin := t.join(t.cfg.BinDir, t.cfg.TagBin)
	return strings.Join([]string{bin, "-token", "-lemma", "-sgml", t.modelFile}, " ")
}

// PipelineCmd is the complete tokenize and tag command. With a model file
// it is the tokenizer piped into TagCmd.
func (t *Tagger) PipelineCmd() (string, error) {
	if t.modelFile != "" {
		return t.TokenizeCmd() + " | " + t.TagCmd(), nil
	}
	if t.langCfg == nil {
		return "", fmt.Errorf("%w: %q", ErrLanguage, t.lang)
	}

	cmd := t.langCfg.PipelineUTF8Cmd
	if t.toolEncoding == model.EncodingLatin1 {
		cmd = t.langCfg.PipelineLatin1Cmd
	}
	if cmd == "" {
		return "", fmt.Errorf("%w: no %s pipeline for %q", ErrLanguage, t.toolEncoding, t.lang)
	}
	return t.join(t.cfg.CmdDir, cmd), nil
}

// Available reports whether the pipeline command can be launched.
func (t *Tagger) Available(ctx context.Context) (bool, error) {
	cmd, err := t.PipelineCmd()
	if err != nil {
		return false, err
	}
	_, ok, err := t.runner.Available(ctx, cmd)
	return ok, err
}

// Tokenize writes one token per line.
func (t *Tagger) Tokenize(ctx context.Context, in io.Reader, out io.Writer) error {
	return t.run(ctx, t.TokenizeCmd(), charset.Identity, in, out)
}

// AnnotateRaw writes the tab separated tagger output.
func (t *Tagger) AnnotateRaw(ctx context.Context, in io.Reader, out io.Writer) error {
	cmd, err := t.PipelineCmd()
	if err != nil {
		return err
	}
	return t.run(ctx, cmd, t.bridge, in, out)
}

// Annotate tags in and returns the parsed sentences.
func (t *Tagger) Annotate(ctx context.Context, in io.Reader, seg Segmentation) ([]Sentence, error) {
	var out bytes.Buffer
	if err := t.AnnotateRaw(ctx, in, &out); err != nil {
		return nil, err
	}
	return Parse(textio.NewLineReader(&out), t.SentTag(), seg)
}

func (t *Tagger) run(ctx context.Context, cmd string, bridge charset.Bridge, in io.Reader, out io.Writer) error {
	var stderr bytes.Buffer
	status, err := t.runner.Run(ctx, cmd, pipe.Options{
		Input:  in,
		Stdout: out,
		Stderr: &stderr,
		Echo:   t.echo,
		Bridge: bridge,
	})
	if err != nil {
		return fmt.Errorf("treetagger: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("treetagger: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
