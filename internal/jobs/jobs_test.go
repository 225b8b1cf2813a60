package jobs_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textlab/nlprun/internal/jobs"
	"github.com/textlab/nlprun/internal/log"
	"github.com/textlab/nlprun/internal/model"
	"github.com/textlab/nlprun/internal/treetagger"
)

const fakeTagger = `#!/bin/sh
(cat; echo) | tr -s ' \n' '\n\n' | while IFS= read -r w; do
  [ -z "$w" ] && continue
  if [ "$w" = "." ]; then
    printf '%s\tSENT\t%s\n' "$w" "$w"
  else
    printf '%s\tNN\t%s\n' "$w" "$w"
  fi
done
`

const fakeMtag = `#!/bin/sh
cat >/dev/null
printf '<word>Hei</word>\n"<hei>"\n\t"hei" interj\n<word>.</word>\n"<.>"\n\t"$." clb <<< <punkt>\n'
`

func testConfig(t *testing.T) model.Config {
	t.Helper()
	for _, tool := range []string{"sh", "tr", "cat", "tee"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available: %v", tool, err)
		}
	}
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cmd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmd", "fake-tagger"), []byte(fakeTagger), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-mtag"), []byte(fakeMtag), 0o755))

	cfg := model.Default()
	cfg.TreeTagger.Path = dir
	cfg.TreeTagger.Languages["tst"] = model.Language{
		Encoding:        []string{"utf-8"},
		PipelineUTF8Cmd: "fake-tagger",
	}
	cfg.OBT.Path = dir
	cfg.OBT.Platform = "linux"
	cfg.OBT.Mtag["linux"] = "fake-mtag"
	return cfg
}

func run(t *testing.T, cfg model.Config, name string, input any) (json.RawMessage, error) {
	t.Helper()
	fn, ok := jobs.Registry(cfg).Lookup(name)
	require.True(t, ok)
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return fn(t.Context(), raw, log.Discard())
}

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{jobs.OBT, jobs.TreeTagger}, jobs.Registry(model.Default()).Names())
}

func TestTreeTagger(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("a b . c ."), 0o644))

	raw, err := run(t, cfg, jobs.TreeTagger, jobs.TreeTaggerInput{Path: path, Lang: "tst"})
	require.NoError(t, err)

	var out jobs.TreeTaggerOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, path, out.Path)
	require.Len(t, out.Sentences, 2)
	require.Equal(t, []treetagger.Word{
		{Word: "c", Annotation: []treetagger.Annotation{{Tag: "NN", Lemma: "c"}}},
		{Word: ".", Annotation: []treetagger.Annotation{{Tag: "SENT", Lemma: "."}}},
	}, out.Sentences[1].Words)
}

func TestTreeTaggerRaw(t *testing.T) {
	cfg := testConfig(t)

	raw, err := run(t, cfg, jobs.TreeTagger, jobs.TreeTaggerInput{Text: "a .", Lang: "tst", Raw: true})
	require.NoError(t, err)

	var out jobs.TreeTaggerOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "a\tNN\ta\n.\tSENT\t.\n", out.Raw)
	require.Empty(t, out.Sentences)
}

func TestOBT(t *testing.T) {
	cfg := testConfig(t)

	raw, err := run(t, cfg, jobs.OBT, jobs.OBTInput{Text: "Hei.\n", MtagOnly: true})
	require.NoError(t, err)

	var out jobs.OBTOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Sentences, 1)
	require.Len(t, out.Sentences[0], 2)
	require.Equal(t, "hei", out.Sentences[0][0].Form)
}

func TestJobsFail(t *testing.T) {
	cfg := testConfig(t)

	testCases := []struct {
		scenario string
		job      string
		input    any
		then     error
	}{
		{
			scenario: "unknown language",
			job:      jobs.TreeTagger,
			input:    jobs.TreeTaggerInput{Text: "a", Lang: "xxx"},
			then:     treetagger.ErrLanguage,
		},
		{
			scenario: "unknown segmentation",
			job:      jobs.TreeTagger,
			input:    jobs.TreeTaggerInput{Text: "a", Lang: "tst", Segmentation: "paragraph"},
			then:     jobs.ErrInput,
		},
		{
			scenario: "path and text",
			job:      jobs.OBT,
			input:    jobs.OBTInput{Path: "/dev/null", Text: "a", MtagOnly: true},
			then:     jobs.ErrInput,
		},
		{
			scenario: "missing file",
			job:      jobs.OBT,
			input:    jobs.OBTInput{Path: filepath.Join(t.TempDir(), "missing"), MtagOnly: true},
			then:     os.ErrNotExist,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			_, err := run(t, cfg, tc.job, tc.input)
			require.ErrorIs(t, err, tc.then)
		})
	}
}
