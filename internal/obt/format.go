package obt

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/textlab/nlprun/internal/textio"
)

var ErrFormat = errors.New("malformed tagger output")

type Annotation struct {
	Tag   string `json:"tag"`
	Lemma string `json:"lemma"`
}

// Word is one cohort of the mtag/vislcg3 output. Word is the original
// spelling from the <word> line, Form the normalized reading form.
type Word struct {
	Word       string       `json:"word"`
	Form       string       `json:"form"`
	Annotation []Annotation `json:"annotation"`
}

type Sentence []Word

var (
	reOrigWord    = regexp.MustCompile(`^<word>(.*)</word>$`)
	reWordForm    = regexp.MustCompile(`"<(.*)>"`)
	reTagLemma    = regexp.MustCompile(`^;?\s+"(.*)"(.*)`)
	rePunctuation = regexp.MustCompile(`^\$?[.:|?!]$`)
	reSelect      = regexp.MustCompile(`^SELECT:\d+$`)
)

const (
	markerCorrect       = "<Correct!>"
	markerCapitalized   = "<*>"
	markerEndOfSentence = "<<<"
)

// Parse reads the Oslo-Bergen tagger output into sentences. With
// staticPunctuation sentences end after punctuation forms, otherwise after
// the words mtag marked with <<<.
func Parse(r textio.LineReader, staticPunctuation bool) ([]Sentence, error) {
	var (
		text     []Sentence
		sentence Sentence
		word     *Word
		wordEOS  bool
		orig     string
	)

	finish := func(n int) error {
		if word == nil {
			return nil
		}
		if len(word.Annotation) == 0 {
			return fmt.Errorf("%w: line %d: word %q without readings", ErrFormat, n, word.Form)
		}
		sentence = append(sentence, *word)
		end := wordEOS
		if staticPunctuation {
			end = rePunctuation.MatchString(word.Form)
		}
		if end {
			text = append(text, sentence)
			sentence = nil
		}
		word, wordEOS = nil, false
		return nil
	}

	n := 0
	for {
		line, err := r.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tagger output: %w", err)
		}
		n++
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := reTagLemma.FindStringSubmatch(line); m != nil {
			if word == nil {
				return nil, fmt.Errorf("%w: line %d: reading without a word", ErrFormat, n)
			}
			ann, eos := reading(m[1], m[2])
			word.Annotation = append(word.Annotation, ann)
			wordEOS = wordEOS || eos
			continue
		}
		if m := reOrigWord.FindStringSubmatch(line); m != nil {
			if err := finish(n); err != nil {
				return nil, err
			}
			orig = m[1]
			continue
		}
		if m := reWordForm.FindStringSubmatch(line); m != nil {
			if err := finish(n); err != nil {
				return nil, err
			}
			word = &Word{Word: orig, Form: m[1]}
			if word.Word == "" {
				word.Word = m[1]
			}
			orig = ""
			continue
		}
		// preamble and trace lines carry nothing we keep
	}

	if err := finish(n); err != nil {
		return nil, err
	}
	if len(sentence) > 0 {
		text = append(text, sentence)
	}
	return text, nil
}

// reading parses the part after the quoted lemma of a reading line.
func reading(lemma, rest string) (Annotation, bool) {
	fields := strings.Fields(rest)
	eos := slices.Contains(fields, markerEndOfSentence)
	fields = slices.DeleteFunc(fields, func(f string) bool {
		return f == markerCorrect || f == markerCapitalized || f == markerEndOfSentence || reSelect.MatchString(f)
	})
	return Annotation{Tag: strings.Join(fields, " "), Lemma: lemma}, eos
}
