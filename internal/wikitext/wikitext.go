// Package wikitext reduces raw MediaWiki markup to an ordered sequence of
// (heading, plain-text body) sections. This is the only place markup syntax
// is interpreted; everything downstream works on plain text.
package wikitext

import (
	"regexp"
	"strings"
)

// RawSection is one logical section of a page. The lead section has an empty
// Heading.
type RawSection struct {
	Heading string
	Body    string
}

var (
	headingRe  = regexp.MustCompile(`(?m)^(={2,6})\s*(.+?)\s*=+[ \t]*$`)
	templateRe = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	tableRe    = regexp.MustCompile(`(?s)\{\|.*?\|\}`)
	refPairRe  = regexp.MustCompile(`(?s)<ref[^>/]*>.*?</ref>`)
	refSoloRe  = regexp.MustCompile(`<ref[^>]*/>`)
	commentRe  = regexp.MustCompile(`(?s)<!--.*?-->`)
	mediaRe    = regexp.MustCompile(`\[\[(?:File|Image|Category):[^\[\]]*(?:\[\[[^\[\]]*\]\][^\[\]]*)*\]\]`)
	linkRe     = regexp.MustCompile(`\[\[([^\[\]|]*)(?:\|([^\[\]]*))?\]\]`)
	extLinkRe  = regexp.MustCompile(`\[https?://\S+(?:\s+([^\]]+))?\]`)
	tagRe      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
)

// Parse splits raw wikitext at `== Heading ==` boundaries and strips markup
// from each body. The lead (everything before the first heading) is always
// the first section. Subheadings of any depth become their own sections.
func Parse(raw string) []RawSection {
	locs := headingRe.FindAllStringSubmatchIndex(raw, -1)

	leadEnd := len(raw)
	if len(locs) > 0 {
		leadEnd = locs[0][0]
	}
	sections := []RawSection{{Heading: "", Body: plainText(raw[:leadEnd])}}

	for i, loc := range locs {
		heading := strings.TrimSpace(raw[loc[4]:loc[5]])
		bodyEnd := len(raw)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		sections = append(sections, RawSection{
			Heading: heading,
			Body:    plainText(raw[loc[1]:bodyEnd]),
		})
	}
	return sections
}

// plainText strips templates, tables, references, links, and markup quoting.
// Lossy by design: media and citations carry nothing worth embedding.
func plainText(s string) string {
	s = commentRe.ReplaceAllString(s, "")
	s = tableRe.ReplaceAllString(s, "")

	// Templates nest; peel innermost pairs until none remain.
	for {
		stripped := templateRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	s = refPairRe.ReplaceAllString(s, "")
	s = refSoloRe.ReplaceAllString(s, "")
	s = mediaRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllStringFunc(s, func(m string) string {
		parts := linkRe.FindStringSubmatch(m)
		if parts[2] != "" {
			return parts[2]
		}
		return parts[1]
	})
	s = extLinkRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "'''", "")
	s = strings.ReplaceAll(s, "''", "")
	s = tagRe.ReplaceAllString(s, "")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
