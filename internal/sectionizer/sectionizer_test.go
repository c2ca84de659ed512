package sectionizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter stands in for the BPE tokenizer: one token per word. Tests pick
// budgets in word units so split points are exact.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

func newSectionizer(t *testing.T, maxTokens int) *Sectionizer {
	t.Helper()
	s, err := New(wordCounter{}, maxTokens)
	require.NoError(t, err)
	return s
}

func TestSplit_SmallPageSingleSection(t *testing.T) {
	s := newSectionizer(t, 100)

	sections := s.Split("Alpha", "Alpha is the first letter of the Greek alphabet.")
	require.Len(t, sections, 1)
	assert.Equal(t, "Alpha", sections[0].PageTitle)
	assert.Equal(t, "", sections[0].Heading)
	assert.Equal(t, 0, sections[0].SectionIndex)
	assert.Equal(t, 9, sections[0].TokenCount)
}

func TestSplit_DiscardsReferenceHeadings(t *testing.T) {
	s := newSectionizer(t, 100)

	raw := `Lead text about the topic.

== History ==
Something happened.

== REFERENCES ==
Citation one. Citation two.

== See Also ==
Related article.`

	sections := s.Split("Topic", raw)
	headings := make([]string, len(sections))
	for i, sec := range sections {
		headings[i] = sec.Heading
	}
	assert.Equal(t, []string{"", "History"}, headings)
	for _, sec := range sections {
		assert.NotContains(t, sec.Content, "Citation")
	}
}

// TestSplit_SentenceSplitting drives a section over the cap and checks piece
// numbering plus reconstruction of the original text modulo whitespace.
func TestSplit_SentenceSplitting(t *testing.T) {
	s := newSectionizer(t, 10)

	sents := []string{
		"Alpha beta gamma delta.",
		"Epsilon zeta eta theta.",
		"Iota kappa lambda mu.",
		"Nu xi omicron pi.",
		"Rho sigma tau upsilon.",
	}
	body := strings.Join(sents, " ")

	sections := s.Split("Letters", body)
	require.NotEmpty(t, sections)

	for i, sec := range sections {
		assert.Equal(t, i, sec.SectionIndex, "pieces numbered in emission order")
		assert.LessOrEqual(t, sec.TokenCount, 10)
	}

	var joined []string
	for _, sec := range sections {
		joined = append(joined, sec.Content)
	}
	got := strings.Join(strings.Fields(strings.Join(joined, " ")), " ")
	want := strings.Join(strings.Fields(body), " ")
	assert.Equal(t, want, got, "split pieces must reconstruct the section")
}

// TestSplit_OversizedSentenceDiscarded pins the documented data-loss edge: a
// single sentence that alone exceeds the cap is dropped, never truncated.
func TestSplit_OversizedSentenceDiscarded(t *testing.T) {
	s := newSectionizer(t, 5)

	body := "One two three four five six seven eight nine ten."
	sections := s.Split("Long", body)
	assert.Empty(t, sections)
}

func TestSplit_EmptySectionsSkipped(t *testing.T) {
	s := newSectionizer(t, 100)

	raw := "Lead.\n\n== Empty ==\n{{stub}}\n\n== Full ==\nReal content here."
	sections := s.Split("Page", raw)

	headings := make([]string, len(sections))
	for i, sec := range sections {
		headings[i] = sec.Heading
	}
	assert.Equal(t, []string{"", "Full"}, headings)
}
