package model

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	_ "embed"
)

// Enum helpers.
const (
	PoolModeDirect     = "direct"
	PoolModeSupervised = "supervised"

	LogFormatJSON = "json"
	LogFormatText = "text"

	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin1"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version    int        `json:"version" mapstructure:"version"` // fixed 0 for now
	Log        Log        `json:"log" mapstructure:"log"`
	Silent     bool       `json:"silent" mapstructure:"silent"` // no console echo of tool output
	Shell      string     `json:"shell" mapstructure:"shell"`
	Pool       Pool       `json:"pool" mapstructure:"pool"`
	TreeTagger TreeTagger `json:"treetagger" mapstructure:"treetagger"`
	OBT        OBT        `json:"obt" mapstructure:"obt"`
}

type Log struct {
	Level  string `json:"level" mapstructure:"level"`   // debug|info|warn|error
	Format string `json:"format" mapstructure:"format"` // json|text
}

// Pool settings of the worker pool.
type Pool struct {
	Mode     string  `json:"mode" mapstructure:"mode"` // direct|supervised
	Size     int     `json:"size" mapstructure:"size"` // 0 => Fraction of processors
	Fraction float64 `json:"fraction" mapstructure:"fraction"`
	LogLevel string  `json:"log_level" mapstructure:"log_level"` // minimal level of forwarded worker logs
	FailFast bool    `json:"fail_fast" mapstructure:"fail_fast"`
}

// TreeTagger installation. Relative directories are resolved against Path.
type TreeTagger struct {
	Path              string              `json:"path" mapstructure:"path"`
	CmdDir            string              `json:"cmd_dir" mapstructure:"cmd_dir"`
	BinDir            string              `json:"bin_dir" mapstructure:"bin_dir"`
	LibDir            string              `json:"lib_dir" mapstructure:"lib_dir"`
	TagBin            string              `json:"tag_bin" mapstructure:"tag_bin"`
	TrainBin          string              `json:"train_bin" mapstructure:"train_bin"`
	TokenizeUTF8Cmd   string              `json:"tokenize_utf8_cmd" mapstructure:"tokenize_utf8_cmd"`
	TokenizeLatin1Cmd string              `json:"tokenize_latin1_cmd" mapstructure:"tokenize_latin1_cmd"`
	Languages         map[string]Language `json:"languages,omitempty" mapstructure:"languages"`
}

// Language is the TreeTagger setup of one ISO-639-2 language.
type Language struct {
	Encoding                []string `json:"encoding,omitempty" mapstructure:"encoding"` // encodings the models exist in
	PipelineUTF8Cmd         string   `json:"pipeline_utf8_cmd,omitempty" mapstructure:"pipeline_utf8_cmd"`
	PipelineLatin1Cmd       string   `json:"pipeline_latin1_cmd,omitempty" mapstructure:"pipeline_latin1_cmd"`
	AbbreviationsUTF8File   string   `json:"abbreviations_utf8_file,omitempty" mapstructure:"abbreviations_utf8_file"`
	AbbreviationsLatin1File string   `json:"abbreviations_latin1_file,omitempty" mapstructure:"abbreviations_latin1_file"`
	SentTag                 string   `json:"sent_tag,omitempty" mapstructure:"sent_tag"`
}

// OBT is the Oslo-Bergen tagger installation. Mtag and Vislcg3 are keyed by
// platform (linux, osx, win, unix), Grammar by language (bm, nn, bm_prestat).
type OBT struct {
	Path     string            `json:"path" mapstructure:"path"`
	Platform string            `json:"platform" mapstructure:"platform"` // empty detects the running platform
	Mtag     map[string]string `json:"mtag,omitempty" mapstructure:"mtag"`
	Vislcg3  map[string]string `json:"vislcg3,omitempty" mapstructure:"vislcg3"`
	Grammar  map[string]string `json:"grammar,omitempty" mapstructure:"grammar"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version: 0,
		Log:     Log{Level: "info", Format: LogFormatJSON},
		Shell:   "/bin/sh",
		Pool: Pool{
			Mode:     PoolModeDirect,
			Fraction: 0.75,
			LogLevel: "info",
		},
		TreeTagger: TreeTagger{
			CmdDir:            "cmd",
			BinDir:            "bin",
			LibDir:            "lib",
			TagBin:            "tree-tagger",
			TrainBin:          "train-tree-tagger",
			TokenizeUTF8Cmd:   "utf8-tokenize.perl",
			TokenizeLatin1Cmd: "tokenize.pl",
			Languages: map[string]Language{
				"eng": {
					Encoding:              []string{EncodingUTF8},
					PipelineUTF8Cmd:       "tree-tagger-english",
					AbbreviationsUTF8File: "english-abbreviations",
					SentTag:               "SENT",
				},
				"fra": {
					Encoding:              []string{EncodingUTF8},
					PipelineUTF8Cmd:       "tree-tagger-french",
					AbbreviationsUTF8File: "french-abbreviations",
					SentTag:               "SENT",
				},
				"ita": {
					Encoding:              []string{EncodingUTF8},
					PipelineUTF8Cmd:       "tree-tagger-italian",
					AbbreviationsUTF8File: "italian-abbreviations",
					SentTag:               "SENT",
				},
				"swe": {
					Encoding:          []string{EncodingLatin1},
					PipelineLatin1Cmd: "tree-tagger-swedish",
					SentTag:           "FE",
				},
			},
		},
		OBT: OBT{
			Mtag: map[string]string{
				"linux": "bin/mtag-linux",
				"osx":   "bin/mtag-osx64",
				"win":   "bin/mtag.exe",
			},
			Vislcg3: map[string]string{
				"linux": "vislcg3",
				"osx":   "vislcg3",
				"win":   "vislcg3.exe",
			},
			Grammar: map[string]string{
				"bm":         "cg/bm_morf.cg",
				"nn":         "cg/nn_morf.cg",
				"bm_prestat": "cg/bm_morf-prestat.cg",
			},
		},
	}
}

// Validate checks cfg against the configuration schema.
func Validate(cfg Config) error {
	value := cueCtx.Encode(cfg)
	if err := value.Err(); err != nil {
		return newConfigError(err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return newConfigError(err)
	}
	return nil
}
