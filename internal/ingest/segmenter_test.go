package ingest

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestSegmenter() *Segmenter {
	return NewSegmenter(1000, 200, 120, 80)
}

func TestSegmentEmptyDocument(t *testing.T) {
	seg := newTestSegmenter()

	_, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: "   \n  "}})

	var segErr *SegmentationError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentationError, got %v", err)
	}
	if segErr.DocumentID != "doc-1" {
		t.Errorf("unexpected document in error: %q", segErr.DocumentID)
	}
}

func TestSegmentTooShort(t *testing.T) {
	seg := newTestSegmenter()

	_, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: "demasiado corto"}})

	var segErr *SegmentationError
	if !errors.As(err, &segErr) {
		t.Fatalf("expected SegmentationError, got %v", err)
	}
}

func TestSegmentStructuralBoundaries(t *testing.T) {
	body := strings.Repeat("Las entidades sujetas cumplirán las obligaciones establecidas. ", 5)
	text := "TÍTULO I\n" + body + "\nCAPÍTULO II\n" + body + "\nArtículo 3. Obligaciones generales.\n" + body

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	if chunks[0].HeadingPath != "TÍTULO I" {
		t.Errorf("unexpected heading path: %q", chunks[0].HeadingPath)
	}
	if chunks[1].HeadingPath != "TÍTULO I > CAPÍTULO II" {
		t.Errorf("unexpected heading path: %q", chunks[1].HeadingPath)
	}
	if chunks[2].HeadingPath != "TÍTULO I > CAPÍTULO II > Artículo 3." {
		t.Errorf("unexpected heading path: %q", chunks[2].HeadingPath)
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestSegmentMarkdownHeadings(t *testing.T) {
	body := strings.Repeat("Provisions applicable to credit institutions operating in the market. ", 4)
	text := "# General Provisions\n" + body + "\n## Capital Requirements\n" + body

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].HeadingPath != "General Provisions" {
		t.Errorf("unexpected heading path: %q", chunks[0].HeadingPath)
	}
	if chunks[1].HeadingPath != "General Provisions > Capital Requirements" {
		t.Errorf("unexpected heading path: %q", chunks[1].HeadingPath)
	}
}

func TestSegmentWindowsUnstructuredText(t *testing.T) {
	sentence := "El régimen jurídico aplicable exige su cumplimiento íntegro. "
	text := strings.Repeat(sentence, 60) // well over two chunk sizes

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) < 3 {
		t.Fatalf("expected multiple window chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > 1000 {
			t.Errorf("chunk %d exceeds chunk size: %d runes", i, n)
		}
	}

	// Consecutive windows share exactly the overlap.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		curr := []rune(chunks[i].Text)
		tail := string(prev[len(prev)-200:])
		head := string(curr[:200])
		if tail != head {
			t.Errorf("chunks %d and %d do not share the overlap window", i-1, i)
		}
	}
}

func TestSegmentSpansCoverSource(t *testing.T) {
	sentence := "Obligación de información periódica ante el organismo supervisor competente. "
	text := "Artículo 1. Objeto.\n" + strings.Repeat(sentence, 40) + "\nArtículo 2. Ámbito.\n" + strings.Repeat(sentence, 10)

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runes := []rune(text)
	covered := 0
	for i, c := range chunks {
		if c.StartOffset < 0 || c.EndOffset > len(runes) || c.StartOffset >= c.EndOffset {
			t.Fatalf("chunk %d has invalid span [%d, %d)", i, c.StartOffset, c.EndOffset)
		}
		if got := string(runes[c.StartOffset:c.EndOffset]); got != c.Text {
			t.Errorf("chunk %d text does not match its span", i)
		}
		if c.StartOffset > covered {
			t.Errorf("gap before chunk %d: covered to %d, chunk starts at %d", i, covered, c.StartOffset)
		}
		if c.EndOffset > covered {
			covered = c.EndOffset
		}
	}
	if covered != len(runes) {
		t.Errorf("chunks cover %d of %d runes", covered, len(runes))
	}
}

func TestSegmentMergesSmallSections(t *testing.T) {
	long := strings.Repeat("Contenido normativo extenso y detallado. ", 6)
	text := "Artículo 1. Breve.\ncorto\nArtículo 2. Extenso.\n" + long

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 1 {
		t.Fatalf("expected small section merged into one chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "corto") || !strings.Contains(chunks[0].Text, "Contenido normativo") {
		t.Error("expected merged chunk to contain both sections")
	}
}

func TestSegmentMergesSmallTrailingSection(t *testing.T) {
	body := strings.Repeat("Las entidades deberán cumplir las obligaciones establecidas. ", 5)
	text := "Artículo 1. Obligaciones.\n" + body + "\nArtículo 2. Entrada en vigor."

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{{Number: 1, Text: text}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 1 {
		t.Fatalf("expected trailing section merged backward into one chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "Artículo 2. Entrada en vigor.") {
		t.Error("expected merged chunk to contain the trailing section")
	}
	if chunks[0].HeadingPath != "Artículo 1." {
		t.Errorf("unexpected heading path: %q", chunks[0].HeadingPath)
	}
}

func TestSegmentTracksPages(t *testing.T) {
	pageOne := "Artículo 1. Primera página.\n" + strings.Repeat("Contenido de la primera página del documento. ", 5)
	pageTwo := "Artículo 2. Segunda página.\n" + strings.Repeat("Contenido de la segunda página del documento. ", 5)

	seg := newTestSegmenter()
	chunks, err := seg.Segment("doc-1", []PageText{
		{Number: 1, Text: pageOne},
		{Number: 2, Text: pageTwo},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Page != 1 {
		t.Errorf("expected first chunk on page 1, got %d", chunks[0].Page)
	}
	if chunks[1].Page != 2 {
		t.Errorf("expected second chunk on page 2, got %d", chunks[1].Page)
	}
}
