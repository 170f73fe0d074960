package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"ragalert/internal/domain"
)

// DefaultSeparators tries paragraphs, then lines, then sentences, then
// words, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// segmentNamespace scopes deterministic segment IDs.
var segmentNamespace = uuid.MustParse("6f1c0d7e-3b1a-4c55-9b8e-2f0a4d3c9e11")

// piece is a span of page text together with its byte offset in the page.
type piece struct {
	text   string
	offset int
}

// RecursiveChunker splits text on the largest separator that keeps pieces
// within size characters, then merges neighbouring pieces back up to size
// with up to overlap characters carried between consecutive segments.
type RecursiveChunker struct {
	size       int
	overlap    int
	separators []string
}

type Option func(*RecursiveChunker)

// WithSeparators replaces the separator hierarchy.
func WithSeparators(seps ...string) Option {
	return func(c *RecursiveChunker) {
		if len(seps) > 0 {
			c.separators = seps
		}
	}
}

func NewRecursiveChunker(size, overlap int, opts ...Option) *RecursiveChunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	c := &RecursiveChunker{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RecursiveChunker) Chunk(source string, pages []domain.Page) []domain.Segment {
	var segments []domain.Segment
	for _, page := range pages {
		for _, p := range c.split(page.Text) {
			ordinal := len(segments)
			segments = append(segments, domain.Segment{
				ID:      SegmentID(source, page.Number, ordinal),
				Source:  source,
				Page:    page.Number,
				Ordinal: ordinal,
				Offset:  p.offset,
				Text:    p.text,
			})
		}
	}
	return segments
}

func (c *RecursiveChunker) ChunkText(source, text string) []domain.Segment {
	return c.Chunk(source, []domain.Page{{Number: 1, Text: text}})
}

// SegmentID derives a stable UUID from a segment's position.
func SegmentID(source string, page, ordinal int) string {
	return uuid.NewSHA1(segmentNamespace, []byte(fmt.Sprintf("%s:%d:%d", source, page, ordinal))).String()
}

func (c *RecursiveChunker) split(text string) []piece {
	return c.splitRecursive(piece{text: text}, c.separators)
}

func (c *RecursiveChunker) splitRecursive(p piece, separators []string) []piece {
	sep := ""
	var rest []string
	if len(separators) > 0 {
		sep = separators[len(separators)-1]
	}
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(p.text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var out, good []piece
	for _, sp := range splitKeep(p, sep) {
		if runeLen(sp.text) <= c.size {
			good = append(good, sp)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			rest = []string{""}
		}
		out = append(out, c.splitRecursive(sp, rest)...)
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge joins consecutive pieces into segments of at most size characters.
// A segment that does not extend past the end of the one before it holds
// only overlap text and is dropped.
func (c *RecursiveChunker) merge(splits []piece) []piece {
	var docs, current []piece
	lastEnd := -1
	emit := func() {
		doc, ok := join(current)
		if !ok {
			return
		}
		if end := doc.offset + len(doc.text); end > lastEnd {
			docs = append(docs, doc)
			lastEnd = end
		}
	}
	total := 0
	for _, d := range splits {
		l := runeLen(d.text)
		if total+l > c.size && len(current) > 0 {
			emit()
			for total > c.overlap || (total+l > c.size && total > 0) {
				total -= runeLen(current[0].text)
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l
	}
	emit()
	return docs
}

// join concatenates contiguous pieces and trims surrounding whitespace,
// adjusting the offset past any trimmed prefix.
func join(pieces []piece) (piece, bool) {
	if len(pieces) == 0 {
		return piece{}, false
	}
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.text)
	}
	text := b.String()
	lead := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return piece{}, false
	}
	return piece{text: trimmed, offset: pieces[0].offset + lead}, true
}

// splitKeep splits p after every occurrence of sep, keeping sep attached to
// the preceding piece so the pieces tile the original text.
func splitKeep(p piece, sep string) []piece {
	var out []piece
	if sep == "" {
		for i := 0; i < len(p.text); {
			_, n := utf8.DecodeRuneInString(p.text[i:])
			out = append(out, piece{text: p.text[i : i+n], offset: p.offset + i})
			i += n
		}
		return out
	}
	offset := p.offset
	for _, part := range strings.SplitAfter(p.text, sep) {
		if part != "" {
			out = append(out, piece{text: part, offset: offset})
		}
		offset += len(part)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
