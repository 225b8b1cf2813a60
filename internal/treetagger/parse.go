package treetagger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/textlab/nlprun/internal/textio"
)

var ErrFormat = errors.New("malformed tagger output")

// Segmentation selects how the output is split into sentences.
type Segmentation string

const (
	SegmentTag Segmentation = "tag" // a token tagged with the sentence tag ends a sentence
	SegmentXML Segmentation = "xml" // <s ...> and </s> lines delimit sentences
)

func ParseSegmentation(s string) (Segmentation, error) {
	switch Segmentation(strings.ToLower(s)) {
	case "", SegmentTag:
		return SegmentTag, nil
	case SegmentXML:
		return SegmentXML, nil
	default:
		return "", fmt.Errorf("unknown sentence segmentation %q", s)
	}
}

type Annotation struct {
	Tag   string `json:"tag"`
	Lemma string `json:"lemma"`
}

type Word struct {
	Word       string       `json:"word"`
	Annotation []Annotation `json:"annotation"`
}

// Sentence is a list of tagged words. Attrs come from the opening <s> tag
// and are encoded next to the words: {"id": "1", "words": [...]}.
type Sentence struct {
	Attrs map[string]string
	Words []Word
}

func (s Sentence) MarshalJSON() ([]byte, error) {
	words := s.Words
	if words == nil {
		words = []Word{}
	}
	b, err := json.Marshal(struct {
		Words []Word `json:"words"`
	}{words})
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.Attrs))
	for k := range s.Attrs {
		if k != "words" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		b, err = sjson.SetBytes(b, escapePath(k), s.Attrs[k])
		if err != nil {
			return nil, fmt.Errorf("encoding sentence attribute %q: %w", k, err)
		}
	}
	return b, nil
}

func (s *Sentence) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) {
		return fmt.Errorf("%w: invalid sentence json", ErrFormat)
	}
	*s = Sentence{}
	var err error
	gjson.ParseBytes(b).ForEach(func(key, value gjson.Result) bool {
		if key.String() == "words" {
			err = json.Unmarshal([]byte(value.Raw), &s.Words)
			return err == nil
		}
		if s.Attrs == nil {
			s.Attrs = make(map[string]string)
		}
		s.Attrs[key.String()] = value.String()
		return true
	})
	return err
}

// escapePath quotes the characters sjson treats as path syntax.
func escapePath(key string) string {
	var sb strings.Builder
	for _, r := range key {
		if strings.ContainsRune(`.*?|#@\:`, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Parse reads tab separated "word tag lemma" lines.
func Parse(r textio.LineReader, sentTag string, seg Segmentation) ([]Sentence, error) {
	var text []Sentence
	sentence := Sentence{}

	for n := 1; ; n++ {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tagger output: %w", err)
		}

		if name, state, attrs := parseTag(line); name != "" && !strings.Contains(line, "\t") {
			if seg == SegmentXML && name == "s" {
				switch state {
				case tagOpen:
					sentence.Attrs = attrs
				case tagClosed:
					text = append(text, sentence)
					sentence = Sentence{}
				}
			}
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(strings.TrimSpace(line), "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected word, tag and lemma, got %q", ErrFormat, n, line)
		}
		word, tag, lemma := fields[0], fields[1], fields[2]
		sentence.Words = append(sentence.Words, Word{
			Word:       word,
			Annotation: []Annotation{{Tag: tag, Lemma: lemma}},
		})
		if seg == SegmentTag && tag == sentTag {
			text = append(text, sentence)
			sentence = Sentence{}
		}
	}

	if len(sentence.Words) > 0 {
		text = append(text, sentence)
	}
	return text, nil
}

type tagState int

const (
	tagNone tagState = iota
	tagOpen
	tagClosed
)

var (
	reOpenTag   = regexp.MustCompile(`^\s*<(\w+)(.*)>`)
	reClosedTag = regexp.MustCompile(`^\s*</(\w+)>`)
	reAttr      = regexp.MustCompile(`([\w.:-]+)\s*=\s*("[^"]*"|'[^']*'|[^\s"'>/]+)`)
)

// parseTag recognizes an XML or SGML tag line and returns its name, whether
// it opens or closes and the attributes of an opening tag.
func parseTag(line string) (string, tagState, map[string]string) {
	if m := reClosedTag.FindStringSubmatch(line); m != nil {
		return m[1], tagClosed, nil
	}
	m := reOpenTag.FindStringSubmatch(line)
	if m == nil {
		return "", tagNone, nil
	}
	var attrs map[string]string
	for _, a := range reAttr.FindAllStringSubmatch(m[2], -1) {
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[a[1]] = strings.Trim(a[2], `"'`)
	}
	return m[1], tagOpen, attrs
}
