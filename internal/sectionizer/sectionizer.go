// Package sectionizer turns a page's raw wikitext into the token-bounded
// Section rows that get embedded and stored.
package sectionizer

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/bull/wikiquery/internal/wikitext"
)

// Section is one token-bounded piece of a page, the unit stored and embedded.
// SectionIndex is the 0-based position of this piece within its (possibly
// split) source section.
type Section struct {
	PageTitle    string
	Heading      string // empty for the lead section
	SectionIndex int
	Content      string
	TokenCount   int
}

// TokenCounter counts model tokens in text.
type TokenCounter interface {
	Count(text string) int
}

// discardHeadings lists section headings that carry no prose worth indexing.
// Compared case-insensitively against the trimmed heading.
var discardHeadings = map[string]struct{}{
	"see also":                     {},
	"references":                   {},
	"external links":               {},
	"further reading":              {},
	"footnotes":                    {},
	"bibliography":                 {},
	"sources":                      {},
	"citations":                    {},
	"literature":                   {},
	"notes and references":         {},
	"photo gallery":                {},
	"works cited":                  {},
	"photos":                       {},
	"gallery":                      {},
	"notes":                        {},
	"references and sources":       {},
	"references and notes":         {},
	"general and cited references": {},
}

// Sectionizer splits pages into Sections under a fixed token cap.
type Sectionizer struct {
	counter   TokenCounter
	maxTokens int
	sentences *sentences.DefaultSentenceTokenizer
}

// New builds a Sectionizer. maxTokens is the per-section token cap.
func New(counter TokenCounter, maxTokens int) (*Sectionizer, error) {
	st, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	return &Sectionizer{counter: counter, maxTokens: maxTokens, sentences: st}, nil
}

// Split parses the page and emits Sections in document order. Sections whose
// heading is in the discard set are dropped; the lead is always kept.
func (s *Sectionizer) Split(pageTitle, raw string) []Section {
	var out []Section
	for _, raw := range wikitext.Parse(raw) {
		if raw.Heading != "" {
			if _, drop := discardHeadings[strings.ToLower(strings.TrimSpace(raw.Heading))]; drop {
				continue
			}
		}
		if raw.Body == "" {
			// Nothing to embed.
			continue
		}
		for i, piece := range s.splitByTokens(raw.Body) {
			out = append(out, Section{
				PageTitle:    pageTitle,
				Heading:      raw.Heading,
				SectionIndex: i,
				Content:      piece.text,
				TokenCount:   piece.tokens,
			})
		}
	}
	return out
}

type piece struct {
	text   string
	tokens int
}

// splitByTokens returns the section unsplit when it fits under the cap.
// Otherwise it accumulates sentences into runs, charging one token for each
// inter-sentence space, and closes a run when the running total reaches the
// cap. A run whose joined text still exceeds the cap (a single oversized
// sentence) is discarded rather than truncated.
func (s *Sectionizer) splitByTokens(text string) []piece {
	total := s.counter.Count(text)
	if total < s.maxTokens {
		return []piece{{text: text, tokens: total}}
	}

	sents := s.sentenceTexts(strings.ReplaceAll(text, "\n", " "))

	var out []piece
	nTokens := 0
	prev := 0
	for i, sent := range sents {
		nTokens += 1 + s.counter.Count(sent)
		if nTokens >= s.maxTokens {
			out = s.appendRun(out, sents[prev:i])
			nTokens = 0
			prev = i
		}
	}
	return s.appendRun(out, sents[prev:])
}

// appendRun joins a sentence run with spaces and emits it if it fits.
func (s *Sectionizer) appendRun(out []piece, run []string) []piece {
	if len(run) == 0 {
		return out
	}
	joined := strings.Join(run, " ")
	if n := s.counter.Count(joined); n <= s.maxTokens {
		out = append(out, piece{text: joined, tokens: n})
	}
	return out
}

func (s *Sectionizer) sentenceTexts(text string) []string {
	var out []string
	for _, sent := range s.sentences.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
