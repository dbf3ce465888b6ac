package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// sectionMarker matches the structural units of Spanish regulatory text
// at the start of a line.
var sectionMarker = regexp.MustCompile(`(?mi)^[ \t]*(T[ÍI]TULO\s+[IVXLC]+|CAP[ÍI]TULO\s+[IVXLC]+|Art[íi]culo\s+\d+\.)`)

func markerLevel(label string) int {
	upper := strings.ToUpper(label)
	switch {
	case strings.HasPrefix(upper, "TÍTULO"), strings.HasPrefix(upper, "TITULO"):
		return 1
	case strings.HasPrefix(upper, "CAPÍTULO"), strings.HasPrefix(upper, "CAPITULO"):
		return 2
	default:
		return 3
	}
}

// PageText is a cleaned page of extracted document text.
type PageText struct {
	Number int
	Text   string
}

// Chunk is a retrieval unit produced by segmentation. Offsets are rune
// positions into the assembled document text.
type Chunk struct {
	Index       int
	Page        int
	HeadingPath string
	Text        string
	StartOffset int
	EndOffset   int
}

// SegmentationError reports a document that could not be segmented.
type SegmentationError struct {
	DocumentID string
	Reason     string
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segmentation failed for document %s: %s", e.DocumentID, e.Reason)
}

// Segmenter splits extracted regulatory text into chunks. It prefers
// structural boundaries (markdown headings and TÍTULO/CAPÍTULO/Artículo
// markers); sections that still exceed the chunk size fall back to fixed
// windows with trailing overlap.
type Segmenter struct {
	parser         goldmark.Markdown
	chunkSize      int
	chunkOverlap   int
	minSectionSize int
	minDocumentLen int
}

// NewSegmenter creates a segmenter. Sizes are measured in runes.
func NewSegmenter(chunkSize, chunkOverlap, minSectionSize, minDocumentLen int) *Segmenter {
	return &Segmenter{
		parser:         goldmark.New(),
		chunkSize:      chunkSize,
		chunkOverlap:   chunkOverlap,
		minSectionSize: minSectionSize,
		minDocumentLen: minDocumentLen,
	}
}

// section is a structural slice of the document, in rune offsets.
type section struct {
	headingPath string
	start       int
	end         int
}

// boundary marks the start of a structural unit, in byte offsets into
// the assembled text.
type boundary struct {
	byteOffset int
	level      int
	label      string
}

// Segment splits the document into chunks. Pages are joined with blank
// lines; each chunk records the page its start offset falls on.
func (s *Segmenter) Segment(documentID string, pages []PageText) ([]Chunk, error) {
	fullText, pageStarts := assembleDocument(pages)

	if strings.TrimSpace(fullText) == "" {
		return nil, &SegmentationError{DocumentID: documentID, Reason: "empty document"}
	}
	if utf8.RuneCountInString(fullText) < s.minDocumentLen {
		return nil, &SegmentationError{DocumentID: documentID, Reason: "document too short"}
	}

	runes := []rune(fullText)
	byteToRune := buildByteToRune(fullText)

	boundaries := s.findBoundaries(fullText)
	sections := buildSections(boundaries, byteToRune, len(runes))
	sections = mergeSmallSections(sections, runes, s.minSectionSize)

	var chunks []Chunk
	for _, sec := range sections {
		chunks = append(chunks, s.windowSection(sec, runes)...)
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Page = pageForOffset(pageStarts, pages, chunks[i].StartOffset)
	}

	if len(chunks) == 0 {
		return nil, &SegmentationError{DocumentID: documentID, Reason: "no chunks produced"}
	}

	return chunks, nil
}

// assembleDocument joins pages with blank lines and records the rune
// offset where each page starts.
func assembleDocument(pages []PageText) (string, []int) {
	var b strings.Builder
	pageStarts := make([]int, 0, len(pages))
	runeOffset := 0

	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n")
			runeOffset += 2
		}
		pageStarts = append(pageStarts, runeOffset)
		b.WriteString(page.Text)
		runeOffset += utf8.RuneCountInString(page.Text)
	}

	return b.String(), pageStarts
}

func buildByteToRune(s string) map[int]int {
	m := make(map[int]int, len(s))
	runeIdx := 0
	for byteIdx := range s {
		m[byteIdx] = runeIdx
		runeIdx++
	}
	m[len(s)] = runeIdx
	return m
}

// findBoundaries collects structural starts from both the markdown AST
// and the regulatory section markers, deduplicated by line start.
func (s *Segmenter) findBoundaries(fullText string) []boundary {
	found := make(map[int]boundary)

	// Markdown headings via goldmark.
	content := []byte(fullText)
	doc := s.parser.Parser().Parse(text.NewReader(content))
	_ = gast.Walk(doc, func(n gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		heading, ok := n.(*gast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			return gast.WalkContinue, nil
		}
		segStart := heading.Lines().At(0).Start
		lineStart := strings.LastIndexByte(fullText[:segStart], '\n') + 1
		found[lineStart] = boundary{
			byteOffset: lineStart,
			level:      heading.Level,
			label:      headingText(heading, content),
		}
		return gast.WalkContinue, nil
	})

	// Regulatory markers at line starts.
	for _, m := range sectionMarker.FindAllStringSubmatchIndex(fullText, -1) {
		label := fullText[m[2]:m[3]]
		lineStart := strings.LastIndexByte(fullText[:m[2]], '\n') + 1
		if _, exists := found[lineStart]; exists {
			continue
		}
		found[lineStart] = boundary{
			byteOffset: lineStart,
			level:      markerLevel(label),
			label:      strings.TrimSpace(label),
		}
	}

	boundaries := make([]boundary, 0, len(found))
	for _, b := range found {
		boundaries = append(boundaries, b)
	}
	sort.Slice(boundaries, func(i, j int) bool {
		return boundaries[i].byteOffset < boundaries[j].byteOffset
	})
	return boundaries
}

// buildSections turns sorted boundaries into contiguous sections with
// heading paths built from the boundary hierarchy. Text before the first
// boundary becomes an unlabelled preamble section.
func buildSections(boundaries []boundary, byteToRune map[int]int, totalRunes int) []section {
	if len(boundaries) == 0 {
		return []section{{start: 0, end: totalRunes}}
	}

	var sections []section

	firstStart := byteToRune[boundaries[0].byteOffset]
	if firstStart > 0 {
		sections = append(sections, section{start: 0, end: firstStart})
	}

	// Stack of open structural levels, same mechanism as nested
	// markdown headings.
	type stackEntry struct {
		level int
		label string
	}
	var stack []stackEntry

	for i, b := range boundaries {
		for len(stack) > 0 && stack[len(stack)-1].level >= b.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, stackEntry{level: b.level, label: b.label})

		parts := make([]string, len(stack))
		for j, e := range stack {
			parts[j] = e.label
		}

		start := byteToRune[b.byteOffset]
		end := totalRunes
		if i+1 < len(boundaries) {
			end = byteToRune[boundaries[i+1].byteOffset]
		}
		sections = append(sections, section{
			headingPath: strings.Join(parts, " > "),
			start:       start,
			end:         end,
		})
	}

	return sections
}

// mergeSmallSections merges sections below the minimum size into the
// following section, keeping the earlier start and the more specific
// heading path. A small trailing section has no following section and is
// folded backward into the previous one instead.
func mergeSmallSections(sections []section, runes []rune, minSize int) []section {
	var merged []section
	i := 0
	for i < len(sections) {
		current := sections[i]
		for current.end-current.start < minSize && i+1 < len(sections) {
			next := sections[i+1]
			path := next.headingPath
			if textLen(runes, current) >= textLen(runes, next) && current.headingPath != "" {
				path = current.headingPath
			}
			current = section{
				headingPath: path,
				start:       current.start,
				end:         next.end,
			}
			i++
		}
		merged = append(merged, current)
		i++
	}

	if len(merged) >= 2 {
		last := merged[len(merged)-1]
		if last.end-last.start < minSize {
			prev := merged[len(merged)-2]
			path := prev.headingPath
			if path == "" {
				path = last.headingPath
			}
			merged[len(merged)-2] = section{
				headingPath: path,
				start:       prev.start,
				end:         last.end,
			}
			merged = merged[:len(merged)-1]
		}
	}

	return merged
}

func textLen(runes []rune, sec section) int {
	return len(strings.TrimSpace(string(runes[sec.start:sec.end])))
}

// windowSection emits a section as chunks. Sections that fit in the
// chunk size stay whole; larger ones are cut into fixed windows where
// each window repeats the last chunkOverlap runes of the previous one.
func (s *Segmenter) windowSection(sec section, runes []rune) []Chunk {
	length := sec.end - sec.start
	if strings.TrimSpace(string(runes[sec.start:sec.end])) == "" {
		return nil
	}

	if length <= s.chunkSize {
		return []Chunk{{
			HeadingPath: sec.headingPath,
			Text:        string(runes[sec.start:sec.end]),
			StartOffset: sec.start,
			EndOffset:   sec.end,
		}}
	}

	var chunks []Chunk
	step := s.chunkSize - s.chunkOverlap
	for start := sec.start; start < sec.end; start += step {
		end := start + s.chunkSize
		if end > sec.end {
			end = sec.end
		}
		chunks = append(chunks, Chunk{
			HeadingPath: sec.headingPath,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == sec.end {
			break
		}
	}
	return chunks
}

func pageForOffset(pageStarts []int, pages []PageText, offset int) int {
	page := 1
	for i, start := range pageStarts {
		if offset >= start {
			page = pages[i].Number
		}
	}
	return page
}

func headingText(n gast.Node, content []byte) string {
	var b strings.Builder
	_ = gast.Walk(n, func(node gast.Node, entering bool) (gast.WalkStatus, error) {
		if !entering {
			return gast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *gast.Text:
			b.Write(v.Segment.Value(content))
		case *gast.String:
			b.Write(v.Value)
		}
		return gast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
