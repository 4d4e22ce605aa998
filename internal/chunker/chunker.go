// Package chunker turns one raw course document into an ordered list of
// chunks: normalized text, split into sections at heading lines, then
// into overlapping word windows, each carrying propagated and
// chunk-specific metadata.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cssci-tools/jonathan/internal/course"
)

// Metadata keys present on every chunk.
const (
	MetaSemester            = "semester"
	MetaAssignmentType      = "assignment_type"
	MetaAssignment          = "assignment"
	MetaSectionIndex        = "section_index"
	MetaChunkIndex          = "chunk_index"
	MetaTotalChunksInSec    = "total_chunks_in_section"
	MetaSectionSummary      = "section_summary"
	MetaFilterKey           = "filter_key"
	MetaAccessiblePath      = "accessible_path"
	MetaCourseCode          = "course_code"
	MetaDocumentType        = "document_type"
	MetaSourceDocument      = "source_document"
	sectionSummaryMaxLength = 150
)

// ErrInvalidWindow indicates overlap >= size, which would produce a
// zero or negative stride and the window loop would never advance.
var ErrInvalidWindow = errors.New("chunk overlap must be strictly less than chunk size")

// Chunk is a bounded span of a document's text, the unit of indexing
// and retrieval. Chunks are immutable once created.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Chunker splits documents with a fixed word window.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// New creates a Chunker. size is the window in words, overlap the
// number of words shared by adjacent windows.
func New(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidWindow, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidWindow, size, overlap)
	}
	return &Chunker{chunkSize: size, chunkOverlap: overlap}, nil
}

// Chunk converts a document into its ordered chunk sequence. An empty
// document yields zero chunks, not an error. Chunk IDs are
// deterministic, so re-chunking the same document produces identical
// IDs and idempotent index upserts.
func (c *Chunker) Chunk(doc course.RawDocument) []Chunk {
	sections := splitSections(Normalize(doc.Text))
	if len(sections) == 0 {
		return nil
	}

	cls := course.ClassifyPath(doc.Metadata.OriginalPath)

	var chunks []Chunk
	for si, section := range sections {
		texts := c.window(section)
		for ci, text := range texts {
			meta := map[string]string{
				MetaSemester:         cls.Semester,
				MetaAssignmentType:   cls.AssignmentType,
				MetaAssignment:       cls.Assignment,
				MetaFilterKey:        cls.FilterKey(),
				MetaSectionIndex:     strconv.Itoa(si),
				MetaChunkIndex:       strconv.Itoa(ci),
				MetaTotalChunksInSec: strconv.Itoa(len(texts)),
				MetaSectionSummary:   summarize(section),
				MetaAccessiblePath:   doc.Metadata.AccessiblePath,
				MetaCourseCode:       doc.Metadata.CourseCode,
				MetaDocumentType:     doc.Metadata.DocumentType,
				MetaSourceDocument:   doc.ID,
			}
			chunks = append(chunks, Chunk{
				ID:       fmt.Sprintf("%s_s%d_c%d", doc.ID, si, ci),
				Text:     text,
				Metadata: meta,
			})
		}
	}
	return chunks
}

// allowedRune keeps letters, digits, common punctuation, brackets,
// quotes, hyphen, newline and space. Everything else is stripped; the
// loss is intentional so downstream matching is insensitive to exotic
// characters PDF extraction tends to produce.
func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '\n' || r == ' ':
		return true
	}
	return strings.ContainsRune(`.,;:!?'"()[]{}<>-–/&%@#+=*`, r)
}

// Normalize strips disallowed characters and collapses every run of
// horizontal whitespace to a single space, preserving line structure
// for section splitting.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune('\n')
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			if allowedRune(r) {
				b.WriteRune(r)
			}
		}
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

// outlineLabel matches numeric outline headings like "2.1" or "3.1.4",
// optionally followed by a short title.
var outlineLabel = regexp.MustCompile(`^\d+\.\d+(\.\d+)?\.?(\s|$)`)

// isHeading reports whether a normalized line looks like a section
// heading: an all-caps word/phrase, or a numeric outline label.
func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if outlineLabel.MatchString(line) {
		return true
	}

	// All-caps phrase: at least one letter, no lowercase letters.
	hasLetter := false
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}

// splitSections partitions normalized text on heading lines. A heading
// opens a new section and stays part of it. Sections that are empty
// after trimming are dropped.
func splitSections(text string) []string {
	var sections []string
	var current []string

	flush := func() {
		joined := strings.TrimSpace(strings.Join(current, "\n"))
		if joined != "" {
			sections = append(sections, joined)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if isHeading(line) {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return sections
}

// window splits one section's words into overlapping windows of
// chunkSize words with stride chunkSize-chunkOverlap. Sections at or
// under the window size come back as a single chunk.
func (c *Chunker) window(section string) []string {
	words := strings.Fields(section)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.chunkSize {
		return []string{strings.Join(words, " ")}
	}

	stride := c.chunkSize - c.chunkOverlap
	var out []string
	for i := 0; i < len(words); i += stride {
		end := min(i+c.chunkSize, len(words))
		out = append(out, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// summarize returns up to sectionSummaryMaxLength bytes of the section
// with line breaks flattened, cut on a rune boundary.
func summarize(section string) string {
	flat := strings.Join(strings.Fields(section), " ")
	if len(flat) <= sectionSummaryMaxLength {
		return flat
	}
	cut := sectionSummaryMaxLength
	for cut > 0 && !utf8.RuneStart(flat[cut]) {
		cut--
	}
	return flat[:cut]
}
