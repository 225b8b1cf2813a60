package treetagger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textlab/nlprun/internal/textio"
)

const fraOutput = "Les\tDET:ART\tle\ntribulations\tNOM\ttribulation\nd'\tPRP\tde\nune\tDET:ART\tun\ncaissière\tNOM\tcaissier\n.\tSENT\t.\n"

func fraSentence(attrs map[string]string) Sentence {
	return Sentence{
		Attrs: attrs,
		Words: []Word{
			{Word: "Les", Annotation: []Annotation{{Tag: "DET:ART", Lemma: "le"}}},
			{Word: "tribulations", Annotation: []Annotation{{Tag: "NOM", Lemma: "tribulation"}}},
			{Word: "d'", Annotation: []Annotation{{Tag: "PRP", Lemma: "de"}}},
			{Word: "une", Annotation: []Annotation{{Tag: "DET:ART", Lemma: "un"}}},
			{Word: "caissière", Annotation: []Annotation{{Tag: "NOM", Lemma: "caissier"}}},
			{Word: ".", Annotation: []Annotation{{Tag: "SENT", Lemma: "."}}},
		},
	}
}

func TestParse(t *testing.T) {
	type given struct {
		output  string
		sentTag string
		seg     Segmentation
	}

	var testCases = []struct {
		scenario string
		given    given
		then     []Sentence
	}{
		{
			"tag segmentation",
			given{fraOutput + fraOutput, "SENT", SegmentTag},
			[]Sentence{fraSentence(nil), fraSentence(nil)},
		},
		{
			"xml segmentation",
			given{`<s id="1">` + "\n" + fraOutput + "</s>\n<s id='2' n=x>\n" + fraOutput + "</s>\n", "SENT", SegmentXML},
			[]Sentence{fraSentence(map[string]string{"id": "1"}), fraSentence(map[string]string{"id": "2", "n": "x"})},
		},
		{
			"xml tags ignored by tag segmentation",
			given{"<s id=\"1\">\n" + fraOutput + "</s>\n", "SENT", SegmentTag},
			[]Sentence{fraSentence(nil)},
		},
		{
			"unterminated last sentence",
			given{"Problem\tNCNPN@IS\tproblem\nmed\tSPS\tmed\n", "FE", SegmentTag},
			[]Sentence{{Words: []Word{
				{Word: "Problem", Annotation: []Annotation{{Tag: "NCNPN@IS", Lemma: "problem"}}},
				{Word: "med", Annotation: []Annotation{{Tag: "SPS", Lemma: "med"}}},
			}}},
		},
		{
			"empty",
			given{"", "SENT", SegmentTag},
			nil,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			text, err := Parse(textio.NewLineReader(strings.NewReader(tt.given.output)), tt.given.sentTag, tt.given.seg)
			require.NoError(t, err)
			require.Equal(t, tt.then, text)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse(textio.NewLineReader(strings.NewReader("Les\tDET:ART\tle\ntribulations\tNOM\n")), "SENT", SegmentTag)
	require.ErrorIs(t, err, ErrFormat)
	require.Contains(t, err.Error(), "line 2")
}

func TestParseTag(t *testing.T) {
	var testCases = []struct {
		given string
		name  string
		state tagState
		attrs map[string]string
	}{
		{`<s id="1">`, "s", tagOpen, map[string]string{"id": "1"}},
		{`  <p>`, "p", tagOpen, nil},
		{`</s>`, "s", tagClosed, nil},
		{`<text title="a b" lang=fra>`, "text", tagOpen, map[string]string{"title": "a b", "lang": "fra"}},
		{`word`, "", tagNone, nil},
		{`< not a tag`, "", tagNone, nil},
	}
	for _, tt := range testCases {
		t.Run(tt.given, func(t *testing.T) {
			name, state, attrs := parseTag(tt.given)
			require.Equal(t, tt.name, name)
			require.Equal(t, tt.state, state)
			require.Equal(t, tt.attrs, attrs)
		})
	}
}

func TestSentenceJSON(t *testing.T) {
	s := Sentence{
		Attrs: map[string]string{"id": "1", "xml.lang": "fr"},
		Words: []Word{{Word: "Les", Annotation: []Annotation{{Tag: "DET:ART", Lemma: "le"}}}},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"1","xml.lang":"fr","words":[{"word":"Les","annotation":[{"tag":"DET:ART","lemma":"le"}]}]}`, string(b))

	var back Sentence
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, s, back)

	b, err = json.Marshal(Sentence{})
	require.NoError(t, err)
	require.JSONEq(t, `{"words":[]}`, string(b))
}

func TestParseSegmentation(t *testing.T) {
	seg, err := ParseSegmentation("")
	require.NoError(t, err)
	require.Equal(t, SegmentTag, seg)
	seg, err = ParseSegmentation("XML")
	require.NoError(t, err)
	require.Equal(t, SegmentXML, seg)
	_, err = ParseSegmentation("mtag")
	require.Error(t, err)
}
