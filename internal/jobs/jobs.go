// Package jobs registers the tagger runs which the pool executes in worker
// processes.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/textlab/nlprun/internal/model"
	"github.com/textlab/nlprun/internal/obt"
	"github.com/textlab/nlprun/internal/pipe"
	"github.com/textlab/nlprun/internal/pool"
	"github.com/textlab/nlprun/internal/treetagger"
)

const (
	TreeTagger = "treetagger.annotate"
	OBT        = "obt.annotate"
)

var ErrInput = errors.New("invalid job input")

// TreeTaggerInput names a file to tag, or carries the text itself.
type TreeTaggerInput struct {
	Path         string `json:"path,omitempty"`
	Text         string `json:"text,omitempty"`
	Lang         string `json:"lang"`
	Encoding     string `json:"encoding,omitempty"`
	ModelFile    string `json:"model_file,omitempty"`
	Segmentation string `json:"segmentation,omitempty"`
	Raw          bool   `json:"raw,omitempty"`
}

type TreeTaggerOutput struct {
	Path      string                `json:"path,omitempty"`
	Sentences []treetagger.Sentence `json:"sentences,omitempty"`
	Raw       string                `json:"raw,omitempty"`
}

type OBTInput struct {
	Path              string `json:"path,omitempty"`
	Text              string `json:"text,omitempty"`
	Lang              string `json:"lang,omitempty"`
	MtagOnly          bool   `json:"mtag_only,omitempty"`
	StaticPunctuation bool   `json:"static_punctuation,omitempty"`
	Raw               bool   `json:"raw,omitempty"`
}

type OBTOutput struct {
	Path      string         `json:"path,omitempty"`
	Sentences []obt.Sentence `json:"sentences,omitempty"`
	Raw       string         `json:"raw,omitempty"`
}

// Register adds the tagger jobs to reg. Workers write their result to
// stdout, so the runner never echoes tool output.
func Register(reg *pool.Registry, cfg model.Config) {
	j := jobs{cfg: cfg}
	pool.Register(reg, TreeTagger, j.treeTagger)
	pool.Register(reg, OBT, j.obt)
}

// Registry returns a registry holding the tagger jobs.
func Registry(cfg model.Config) *pool.Registry {
	reg := pool.NewRegistry()
	Register(reg, cfg)
	return reg
}

type jobs struct {
	cfg model.Config
}

func (j jobs) runner(log *slog.Logger) *pipe.Runner {
	return pipe.New(pipe.Config{
		Shell:  j.cfg.Shell,
		Silent: true,
		Logger: log,
	})
}

func open(path, text string) (io.ReadCloser, error) {
	switch {
	case path != "" && text != "":
		return nil, fmt.Errorf("%w: both path and text given", ErrInput)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		return f, nil
	default:
		return io.NopCloser(strings.NewReader(text)), nil
	}
}

func (j jobs) treeTagger(ctx context.Context, in TreeTaggerInput, log *slog.Logger) (TreeTaggerOutput, error) {
	out := TreeTaggerOutput{Path: in.Path}
	seg, err := treetagger.ParseSegmentation(in.Segmentation)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrInput, err)
	}
	tagger, err := treetagger.New(j.runner(log), j.cfg.TreeTagger, treetagger.Options{
		Lang:      in.Lang,
		Encoding:  in.Encoding,
		ModelFile: in.ModelFile,
	})
	if err != nil {
		return out, err
	}
	r, err := open(in.Path, in.Text)
	if err != nil {
		return out, err
	}
	defer r.Close()

	log.DebugContext(ctx, "tagging", "lang", in.Lang, "encoding", tagger.Encoding(), "tool_encoding", tagger.ToolEncoding())
	if in.Raw {
		var buf bytes.Buffer
		if err := tagger.AnnotateRaw(ctx, r, &buf); err != nil {
			return out, err
		}
		out.Raw = buf.String()
		return out, nil
	}
	out.Sentences, err = tagger.Annotate(ctx, r, seg)
	if err != nil {
		return out, err
	}
	log.InfoContext(ctx, "tagged", "sentences", len(out.Sentences))
	return out, nil
}

func (j jobs) obt(ctx context.Context, in OBTInput, log *slog.Logger) (OBTOutput, error) {
	out := OBTOutput{Path: in.Path}
	tagger, err := obt.New(j.runner(log), j.cfg.OBT, j.cfg.OBT.Platform)
	if err != nil {
		return out, err
	}
	r, err := open(in.Path, in.Text)
	if err != nil {
		return out, err
	}
	defer r.Close()

	opts := obt.Options{Lang: in.Lang, MtagOnly: in.MtagOnly}
	log.DebugContext(ctx, "tagging", "lang", in.Lang, "mtag_only", in.MtagOnly)
	if in.Raw {
		var buf bytes.Buffer
		if err := tagger.Annotate(ctx, r, &buf, opts); err != nil {
			return out, err
		}
		out.Raw = buf.String()
		return out, nil
	}
	out.Sentences, err = tagger.AnnotateSentences(ctx, r, opts, in.StaticPunctuation)
	if err != nil {
		return out, err
	}
	log.InfoContext(ctx, "tagged", "sentences", len(out.Sentences))
	return out, nil
}
