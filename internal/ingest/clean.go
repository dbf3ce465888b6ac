package ingest

import (
	"regexp"
	"strings"
)

var (
	pageNumberLine = regexp.MustCompile(`^\d+$`)
	separatorLine  = regexp.MustCompile(`^[_─\-=]{3,}$`)
	multiSpace     = regexp.MustCompile(`[ \t]{2,}`)
	multiNewline   = regexp.MustCompile(`\n{2,}`)
)

// CleanPage removes OCR noise from a page of extracted text: bare page
// numbers, horizontal separators, and lines repeated on every page
// (running headers). Lines broken mid-sentence are rejoined into
// paragraphs. repeatedHeaders holds lines that appear on most pages;
// only their first occurrence is kept.
func CleanPage(raw string, repeatedHeaders map[string]bool) string {
	var cleaned []string
	seen := make(map[string]bool)

	for _, line := range strings.Split(raw, "\n") {
		s := strings.TrimSpace(line)
		if s == "" || pageNumberLine.MatchString(s) {
			continue
		}
		if separatorLine.MatchString(s) {
			continue
		}
		if repeatedHeaders[s] {
			if seen[s] {
				continue
			}
			seen[s] = true
		}
		cleaned = append(cleaned, s)
	}

	// Rejoin lines broken inside a sentence: a line gets appended to the
	// previous one unless that previous line ends a sentence or clause.
	var b strings.Builder
	for _, line := range cleaned {
		if b.Len() > 0 && !endsSentence(b.String()) {
			b.WriteString(" ")
			b.WriteString(line)
		} else {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(line)
		}
	}

	text := multiNewline.ReplaceAllString(b.String(), "\n\n")
	text = multiSpace.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

func endsSentence(text string) bool {
	trimmed := strings.TrimRight(text, " ")
	if trimmed == "" {
		return true
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '?', '!', ':':
		return true
	}
	return false
}

// FindRepeatedHeaders returns lines that occur on more than half of the
// given pages, which are almost always running headers or footers left
// behind by OCR.
func FindRepeatedHeaders(pages []string) map[string]bool {
	if len(pages) < 3 {
		return map[string]bool{}
	}

	counts := make(map[string]int)
	for _, page := range pages {
		pageLines := make(map[string]bool)
		for _, line := range strings.Split(page, "\n") {
			s := strings.TrimSpace(line)
			if s == "" || len(s) > 120 || pageNumberLine.MatchString(s) {
				continue
			}
			pageLines[s] = true
		}
		for line := range pageLines {
			counts[line]++
		}
	}

	headers := make(map[string]bool)
	for line, n := range counts {
		if n > len(pages)/2 {
			headers[line] = true
		}
	}
	return headers
}
